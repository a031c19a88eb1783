package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantcore/pkg/domain"
	"tenantcore/pkg/event"
	"tenantcore/pkg/isolation"
)

func sampleEvents(in *domain.Interner, n int) []event.Event {
	aggID := in.Generate(domain.KindTenant)
	scope := isolation.MustNew(isolation.WithTenant(aggID))
	out := make([]event.Event, 0, n)
	for i := range n {
		out = append(out, event.Event{
			ID:            in.Generate(domain.KindGeneric),
			OccurredAt:    time.Date(2026, 2, 1, 0, 0, i, 0, time.UTC),
			AggregateID:   aggID,
			AggregateType: "tenant",
			Version:       int64(i + 1),
			Isolation:     &scope,
			Type:          "tenant.renamed",
			Data:          event.MustPayload(map[string]int{"seq": i}),
		})
	}
	return out
}

func TestInMemoryBus(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryBus()
	events := sampleEvents(domain.NewInterner(), 3)

	var seen []int64
	bus.Subscribe(func(_ context.Context, e event.Event) error {
		seen = append(seen, e.Version)
		return nil
	})

	require.NoError(t, bus.Publish(ctx, events))
	assert.Equal(t, []int64{1, 2, 3}, seen, "order is preserved")
	assert.Len(t, bus.Published(), 3)

	t.Run("handler error stops delivery", func(t *testing.T) {
		boom := errors.New("boom")
		bus.Subscribe(func(context.Context, event.Event) error { return boom })
		err := bus.Publish(ctx, events[:1])
		assert.ErrorIs(t, err, boom)
	})
}

func TestRecordCodec(t *testing.T) {
	in := domain.NewInterner()
	e := sampleEvents(in, 1)[0]

	r, err := encodeRecord("events", e)
	require.NoError(t, err)
	assert.Equal(t, e.AggregateID.String(), string(r.Key))
	assert.Equal(t, "events", r.Topic)
	require.Len(t, r.Headers, 3)
	assert.Equal(t, HeaderScope, r.Headers[2].Key)
	assert.Equal(t, e.Scope().Identifier(), string(r.Headers[2].Value))

	decoded, err := DecodeRecord(in, r)
	require.NoError(t, err)
	assert.Same(t, e.ID, decoded.ID)
	assert.Equal(t, e.Version, decoded.Version)
	assert.True(t, e.Data.Equal(decoded.Data))
	require.NotNil(t, decoded.Isolation)
	assert.True(t, e.Isolation.Matches(*decoded.Isolation))
}
