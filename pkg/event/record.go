package event

import (
	"time"

	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/isolation"
)

// Record is the flat, string-keyed form of an Event used by stores and buses.
type Record struct {
	ID            string            `json:"id"`
	OccurredAt    time.Time         `json:"occurred_at"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int64             `json:"version"`
	Isolation     *isolation.Claims `json:"isolation,omitempty"`
	Type          string            `json:"type"`
	Data          Payload           `json:"data"`
}

// ToRecord flattens e.
func ToRecord(e Event) Record {
	r := Record{
		ID:            e.ID.String(),
		OccurredAt:    e.OccurredAt.UTC(),
		AggregateID:   e.AggregateID.String(),
		AggregateType: e.AggregateType,
		Version:       e.Version,
		Type:          string(e.Type),
		Data:          e.Data,
	}
	if e.Isolation != nil {
		claims := e.Isolation.Claims()
		r.Isolation = &claims
	}
	return r
}

// FromRecord rebuilds an Event, interning its identities through in.
//
// Errors: CodeInvalidIdentityFormat or CodeInvalidIsolationContext when the
// stored identities are malformed; CodeInvalidInput for an empty type or a
// non-positive version.
func FromRecord(in *domain.Interner, r Record) (Event, error) {
	id, err := in.Create(domain.KindGeneric, r.ID)
	if err != nil {
		return Event{}, dErrors.Wrap(err, dErrors.CodeInvalidIdentityFormat, "event id")
	}
	aggID, err := in.Create(domain.KindGeneric, r.AggregateID)
	if err != nil {
		return Event{}, dErrors.Wrap(err, dErrors.CodeInvalidIdentityFormat, "aggregate id")
	}
	if !Type(r.Type).IsValid() {
		return Event{}, dErrors.New(dErrors.CodeInvalidInput, "event type is empty")
	}
	if r.Version < 1 {
		return Event{}, dErrors.New(dErrors.CodeInvalidInput, "event version must be positive")
	}
	e := Event{
		ID:            id,
		OccurredAt:    r.OccurredAt,
		AggregateID:   aggID,
		AggregateType: r.AggregateType,
		Version:       r.Version,
		Type:          Type(r.Type),
		Data:          r.Data,
	}
	if r.Isolation != nil {
		scope, err := isolation.FromClaims(in, *r.Isolation)
		if err != nil {
			return Event{}, err
		}
		e.Isolation = &scope
	}
	return e, nil
}
