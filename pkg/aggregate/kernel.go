package aggregate

import (
	"fmt"
	"time"

	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/event"
	"tenantcore/pkg/isolation"
)

// Aggregate is implemented by every concrete aggregate. Base is promoted from
// an embedded Root; HandleEvent is the per-type dispatch that folds one event
// into the aggregate's state. HandleEvent must not call Apply or Raise.
type Aggregate interface {
	Base() *Root
	HandleEvent(e event.Event) error
}

// Snapshotter is implemented by aggregates whose state can be captured as an
// opaque JSON object and restored from it.
type Snapshotter interface {
	SnapshotState() (event.Payload, error)
	RestoreState(state event.Payload) error
}

// RaiseOption customizes an event before it is handled and applied.
type RaiseOption func(*event.Event)

// WithIsolation records the scope the event occurred under.
func WithIsolation(scope isolation.Context) RaiseOption {
	return func(e *event.Event) {
		e.Isolation = &scope
	}
}

// At fixes the event timestamp instead of reading the aggregate's clock.
func At(t time.Time) RaiseOption {
	return func(e *event.Event) {
		e.OccurredAt = t.UTC()
	}
}

// Raise records a new event on a: the envelope is stamped with the next
// version, passed to a.HandleEvent, and appended with Apply only when the
// handler succeeds. A failed handler leaves the aggregate untouched.
//
// A nil data raises an event with an empty payload.
//
// Errors: CodeInvalidInput when data cannot be encoded or typ is empty; any
// error returned by HandleEvent.
func Raise(a Aggregate, typ event.Type, data any, opts ...RaiseOption) error {
	if !typ.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "event type is required")
	}
	payload := event.EmptyPayload
	if data != nil {
		var err error
		if payload, err = event.NewPayload(data); err != nil {
			return err
		}
	}
	e := event.Event{Type: typ, Data: payload}
	for _, opt := range opts {
		opt(&e)
	}

	root := a.Base()
	e = root.stamp(e)
	if err := a.HandleEvent(e); err != nil {
		return err
	}
	root.Apply(e)
	return nil
}

// Replay folds a historical stream into a. Each event goes through
// HandleEvent and the version is set to the event's own Version; the stream's
// numbering is trusted, not recomputed. Replayed events are history and never
// enter the pending list.
//
// Stored streams carry untyped identities, so ownership is checked on the UUID
// value alone.
//
// Errors: CodeInvariantViolation when an event belongs to another aggregate
// or another aggregate type;
// handler errors are wrapped with the failing version.
func Replay(a Aggregate, events []event.Event) error {
	root := a.Base()
	for _, e := range events {
		if root.id != nil && root.id.String() != e.AggregateID.String() {
			return dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("event %s belongs to aggregate %s, not %s", e.ID, e.AggregateID, root.id))
		}
		if e.AggregateType != "" && e.AggregateType != root.aggregateType {
			return dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("event %s belongs to a %s aggregate, not %s", e.ID, e.AggregateType, root.aggregateType))
		}
		if err := a.HandleEvent(e); err != nil {
			return fmt.Errorf("replay %s at version %d: %w", e.Type, e.Version, err)
		}
		root.version = e.Version
		root.touch(e.OccurredAt)
	}
	if len(events) > 0 {
		root.state = StateRehydrated
	}
	return nil
}

// Snapshot is a point-in-time capture of an aggregate's state.
type Snapshot struct {
	AggregateID   string
	AggregateType string
	Version       int64
	State         event.Payload
	TakenAt       time.Time
	// CreatedAt and UpdatedAt are the Root timestamps at Version.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateSnapshot captures a's current state and records its version as the
// snapshot version.
//
// Errors: CodeSnapshotSerialization when a does not implement Snapshotter or
// its SnapshotState fails.
func CreateSnapshot(a Aggregate) (Snapshot, error) {
	root := a.Base()
	s, ok := a.(Snapshotter)
	if !ok {
		return Snapshot{}, dErrors.New(dErrors.CodeSnapshotSerialization,
			root.aggregateType+" aggregate does not support snapshots")
	}
	state, err := s.SnapshotState()
	if err != nil {
		return Snapshot{}, dErrors.Wrap(err, dErrors.CodeSnapshotSerialization, "capture "+root.aggregateType+" state")
	}
	root.snapshotVersion = root.version
	return Snapshot{
		AggregateID:   root.id.String(),
		AggregateType: root.aggregateType,
		Version:       root.version,
		State:         state,
		TakenAt:       root.clock().UTC(),
		CreatedAt:     root.createdAt,
		UpdatedAt:     root.updatedAt,
	}, nil
}

// RestoreSnapshot repopulates a from state and sets both its version and
// snapshot version to version. Pending events are dropped. Callers then
// Replay only events whose version exceeds the restored one.
//
// Errors: CodeSnapshotSerialization when a does not implement Snapshotter or
// rejects the blob. On error the version is unchanged.
func RestoreSnapshot(a Aggregate, state event.Payload, version int64) error {
	root := a.Base()
	s, ok := a.(Snapshotter)
	if !ok {
		return dErrors.New(dErrors.CodeSnapshotSerialization,
			root.aggregateType+" aggregate does not support snapshots")
	}
	if version < 0 {
		return dErrors.New(dErrors.CodeSnapshotSerialization, "snapshot version cannot be negative")
	}
	if err := s.RestoreState(state); err != nil {
		return dErrors.Wrap(err, dErrors.CodeSnapshotSerialization, "restore "+root.aggregateType+" state")
	}
	root.version = version
	root.snapshotVersion = version
	root.pending = nil
	root.state = StateRehydrated
	return nil
}

// Restore is RestoreSnapshot for a stored Snapshot. It also restores the
// creation and modification timestamps the snapshot carries.
//
// Errors: CodeSnapshotSerialization when snap belongs to another aggregate
// type, plus those of RestoreSnapshot.
func Restore(a Aggregate, snap Snapshot) error {
	root := a.Base()
	if snap.AggregateType != "" && snap.AggregateType != root.aggregateType {
		return dErrors.New(dErrors.CodeSnapshotSerialization,
			fmt.Sprintf("snapshot of %s cannot restore a %s aggregate", snap.AggregateType, root.aggregateType))
	}
	if err := RestoreSnapshot(a, snap.State, snap.Version); err != nil {
		return err
	}
	root.createdAt = snap.CreatedAt.UTC()
	root.updatedAt = snap.UpdatedAt.UTC()
	return nil
}
