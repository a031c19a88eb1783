// Package event defines the domain event envelope recorded by aggregates and
// handed to event stores and buses.
package event

import (
	"strings"
	"time"

	"tenantcore/pkg/domain"
	"tenantcore/pkg/isolation"
)

// Type identifies the kind of event, namespaced by aggregate:
// "tenant.created", "role.permission_granted".
type Type string

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the namespace prefix ("tenant" for "tenant.created").
func (t Type) Domain() string {
	if i := strings.IndexByte(string(t), '.'); i >= 0 {
		return string(t[:i])
	}
	return string(t)
}

// Event is an immutable record of a state change.
//
// Invariant: Version is the owning aggregate's version after this event, so
// versions within one stream are contiguous and start at 1.
type Event struct {
	// ID uniquely identifies the event.
	ID *domain.Identity
	// OccurredAt is when the aggregate recorded the event.
	OccurredAt time.Time
	// AggregateID is the owning aggregate.
	AggregateID *domain.Identity
	// AggregateType names the owning aggregate's type ("tenant", "user").
	AggregateType string
	// Version is the aggregate version after this event.
	Version int64
	// Isolation is the scope the event occurred under, when known.
	Isolation *isolation.Context
	// Type tags the event.
	Type Type
	// Data is the event-specific payload.
	Data Payload
}

// Scope returns the event's isolation context, or platform scope when none
// was recorded.
func (e Event) Scope() isolation.Context {
	if e.Isolation == nil {
		return isolation.Platform()
	}
	return *e.Isolation
}
