// Package eventstore persists aggregate event streams with optimistic
// concurrency: an append names the version it expects the stream to be at and
// fails with sentinel.ErrConflict when another writer got there first.
package eventstore

import (
	"context"
	"fmt"

	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/event"
)

// Store is an append-only per-aggregate event log.
type Store interface {
	// Append adds events to the stream of aggregateID. The stream must be at
	// expectedVersion and the events must be numbered expectedVersion+1
	// onwards without gaps.
	Append(ctx context.Context, aggregateID *domain.Identity, expectedVersion int64, events []event.Event) error
	// Load returns the events with a version greater than afterVersion in
	// version order. An unknown aggregate yields an empty slice.
	Load(ctx context.Context, aggregateID *domain.Identity, afterVersion int64) ([]event.Event, error)
}

// checkBatch rejects batches that could never be appended correctly. These are
// programming errors, not conflicts.
func checkBatch(aggregateID *domain.Identity, expectedVersion int64, events []event.Event) error {
	if aggregateID == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "aggregate id is required")
	}
	if expectedVersion < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "expected version cannot be negative")
	}
	for i, e := range events {
		if e.AggregateID.String() != aggregateID.String() {
			return dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("event %d belongs to aggregate %s", i, e.AggregateID))
		}
		if want := expectedVersion + int64(i) + 1; e.Version != want {
			return dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("event %d has version %d, want %d", i, e.Version, want))
		}
		if e.ID == nil {
			return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("event %d has no id", i))
		}
	}
	return nil
}
