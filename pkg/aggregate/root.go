// Package aggregate is the event-sourcing kernel business aggregates compose.
//
// A concrete aggregate embeds Root and implements HandleEvent. It changes
// state only by raising events:
//
//	type Tenant struct {
//		aggregate.Root
//		name string
//	}
//
//	func (t *Tenant) Rename(name string) error {
//		return aggregate.Raise(t, "tenant.renamed", renamed{Name: name})
//	}
//
//	func (t *Tenant) HandleEvent(e event.Event) error { ... }
//
// Raise runs the aggregate's handler and then Apply, so live mutation and
// Replay go through the same code path and produce the same state.
//
// Root performs no locking. One unit of work owns an aggregate at a time;
// repositories serialize writers with the optimistic version check.
package aggregate

import (
	"slices"
	"time"

	"tenantcore/pkg/domain"
	"tenantcore/pkg/event"
)

// State is the conceptual lifecycle position of an aggregate.
type State string

const (
	StateNew        State = "new"
	StateMutated    State = "mutated"
	StatePersisted  State = "persisted"
	StateRehydrated State = "rehydrated"
)

// Root holds the bookkeeping every aggregate shares: identity, version,
// pending events and snapshot version.
//
// Invariant: version only increases through Apply. Replay and snapshot
// restore may set it to any value; that is an explicit rehydration step.
type Root struct {
	id              *domain.Identity
	aggregateType   string
	version         int64
	snapshotVersion int64
	pending         []event.Event
	state           State
	createdAt       time.Time
	updatedAt       time.Time

	clock func() time.Time
	ids   *domain.Interner
}

// Option configures a Root.
type Option func(*Root)

// WithClock injects the time source used to stamp events.
func WithClock(clock func() time.Time) Option {
	return func(r *Root) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithInterner sets the table event identities are generated in.
func WithInterner(in *domain.Interner) Option {
	return func(r *Root) {
		if in != nil {
			r.ids = in
		}
	}
}

// NewRoot returns a fresh Root at version 0.
func NewRoot(id *domain.Identity, aggregateType string, opts ...Option) Root {
	r := Root{
		id:            id,
		aggregateType: aggregateType,
		state:         StateNew,
		clock:         time.Now,
		ids:           domain.Default(),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Base returns the Root itself. Embedding Root promotes Base, which is how a
// concrete aggregate satisfies Aggregate without extra code.
func (r *Root) Base() *Root { return r }

func (r *Root) ID() *domain.Identity   { return r.id }
func (r *Root) AggregateType() string  { return r.aggregateType }
func (r *Root) Version() int64         { return r.version }
func (r *Root) SnapshotVersion() int64 { return r.snapshotVersion }
func (r *Root) CreatedAt() time.Time   { return r.createdAt }
func (r *Root) UpdatedAt() time.Time   { return r.updatedAt }
func (r *Root) State() State           { return r.state }

// Interner is the table identities decoded from this aggregate's events are
// interned in.
func (r *Root) Interner() *domain.Interner { return r.ids }

// Apply appends e to the pending list and increments the version by one.
// The envelope is stamped with this aggregate's id, type and new version, and
// with an id and timestamp when missing. It is the only way the version moves
// during normal business flow.
func (r *Root) Apply(e event.Event) event.Event {
	e = r.stamp(e)
	r.pending = append(r.pending, e)
	r.version = e.Version
	r.touch(e.OccurredAt)
	r.state = StateMutated
	return e
}

// stamp fills envelope fields for the next version without recording it.
func (r *Root) stamp(e event.Event) event.Event {
	e.AggregateID = r.id
	e.AggregateType = r.aggregateType
	e.Version = r.version + 1
	if e.ID == nil {
		e.ID = r.ids.Generate(domain.KindGeneric)
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.clock().UTC()
	}
	if e.Data.IsZero() {
		e.Data = event.EmptyPayload
	}
	return e
}

func (r *Root) touch(at time.Time) {
	if r.createdAt.IsZero() {
		r.createdAt = at
	}
	r.updatedAt = at
}

// PullEvents returns the pending events and clears the list. A second call
// without an intervening Apply returns an empty slice.
func (r *Root) PullEvents() []event.Event {
	out := r.pending
	r.pending = nil
	if out == nil {
		return []event.Event{}
	}
	r.state = StatePersisted
	return out
}

// PendingEvents returns a copy of the pending list without draining it.
func (r *Root) PendingEvents() []event.Event {
	return slices.Clone(r.pending)
}

// HasPendingEvents reports whether events await persistence.
func (r *Root) HasPendingEvents() bool {
	return len(r.pending) > 0
}

// ClearPendingEvents drops pending events without returning them. This is
// lossy; use it only when the events were persisted through another path.
func (r *Root) ClearPendingEvents() {
	r.pending = nil
	if r.state == StateMutated {
		r.state = StatePersisted
	}
}

// ExpectedStoredVersion is the version the store must hold for the pending
// events to append cleanly: the version before the first pending event.
func (r *Root) ExpectedStoredVersion() int64 {
	return r.version - int64(len(r.pending))
}
