package eventstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/event"
	"tenantcore/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	in    *domain.Interner
	store *InMemoryStore
	aggID *domain.Identity
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.in = domain.NewInterner()
	s.store = NewInMemoryStore()
	s.aggID = s.in.Generate(domain.KindTenant)
}

func (s *InMemoryStoreSuite) batch(from int64, n int) []event.Event {
	out := make([]event.Event, 0, n)
	for i := range n {
		out = append(out, event.Event{
			ID:            s.in.Generate(domain.KindGeneric),
			OccurredAt:    time.Now().UTC(),
			AggregateID:   s.aggID,
			AggregateType: "tenant",
			Version:       from + int64(i),
			Type:          "tenant.renamed",
			Data:          event.EmptyPayload,
		})
	}
	return out
}

func (s *InMemoryStoreSuite) TestAppendAndLoad() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.aggID, 0, s.batch(1, 3)))
	s.Require().NoError(s.store.Append(ctx, s.aggID, 3, s.batch(4, 2)))

	all, err := s.store.Load(ctx, s.aggID, 0)
	s.Require().NoError(err)
	s.Len(all, 5)
	for i, e := range all {
		s.Equal(int64(i+1), e.Version)
	}

	s.Run("after version returns the tail", func() {
		tail, err := s.store.Load(ctx, s.aggID, 3)
		s.Require().NoError(err)
		s.Len(tail, 2)
		s.Equal(int64(4), tail[0].Version)
	})

	s.Run("after the head is empty", func() {
		none, err := s.store.Load(ctx, s.aggID, 5)
		s.Require().NoError(err)
		s.NotNil(none)
		s.Empty(none)
	})

	s.Run("unknown aggregate is empty", func() {
		none, err := s.store.Load(ctx, s.in.Generate(domain.KindTenant), 0)
		s.Require().NoError(err)
		s.Empty(none)
	})

	s.Run("untyped identity addresses the same stream", func() {
		untyped := s.in.MustCreate(domain.KindGeneric, s.aggID.String())
		events, err := s.store.Load(ctx, untyped, 0)
		s.Require().NoError(err)
		s.Len(events, 5)
	})
}

func (s *InMemoryStoreSuite) TestAppendConflict() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.aggID, 0, s.batch(1, 2)))

	err := s.store.Append(ctx, s.aggID, 1, s.batch(2, 1))
	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrConflict))
	s.Equal(int64(2), s.store.Version(s.aggID), "failed append leaves the stream unchanged")
}

func (s *InMemoryStoreSuite) TestAppendRejectsMalformedBatches() {
	ctx := context.Background()

	s.Run("gap in versions", func() {
		events := s.batch(1, 2)
		events[1].Version = 3
		err := s.store.Append(ctx, s.aggID, 0, events)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("foreign aggregate", func() {
		events := s.batch(1, 1)
		events[0].AggregateID = s.in.Generate(domain.KindTenant)
		err := s.store.Append(ctx, s.aggID, 0, events)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("negative expected version", func() {
		err := s.store.Append(ctx, s.aggID, -1, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("empty batch is a no-op", func() {
		s.NoError(s.store.Append(ctx, s.aggID, 0, nil))
		s.Equal(int64(0), s.store.Version(s.aggID))
	})
}

// TestConcurrentAppendsExactlyOneWins verifies the optimistic check under
// contention: writers racing on the same expected version see one success.
func (s *InMemoryStoreSuite) TestConcurrentAppendsExactlyOneWins() {
	ctx := context.Background()
	const writers = 50

	var wg sync.WaitGroup
	var successes, conflicts atomic.Int32
	for range writers {
		events := s.batch(1, 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Append(ctx, s.aggID, 0, events)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(writers-1), conflicts.Load())
}
