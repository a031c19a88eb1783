package models

import (
	"tenantcore/pkg/aggregate"
	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/event"
	"tenantcore/pkg/isolation"
)

const TenantAggregateType = "tenant"

const (
	EventTenantCreated     event.Type = "tenant.created"
	EventTenantRenamed     event.Type = "tenant.renamed"
	EventTenantDeactivated event.Type = "tenant.deactivated"
	EventTenantReactivated event.Type = "tenant.reactivated"
)

type TenantCreated struct {
	Name string `json:"name"`
}

type TenantRenamed struct {
	Name string `json:"name"`
}

// Tenant is the top of the isolation hierarchy.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Status transitions: active ↔ inactive only
//   - Created exactly once, as the first event of the stream
//
// Deactivation does not cascade. Services check IsActive on the owning
// tenant before mutating anything beneath it.
type Tenant struct {
	aggregate.Root
	name   string
	status Status
}

// NewTenant returns an empty Tenant for id. Use Create to start a new stream
// or hand it to a repository to rehydrate an existing one.
func NewTenant(id *domain.Identity, opts ...aggregate.Option) *Tenant {
	return &Tenant{Root: aggregate.NewRoot(id, TenantAggregateType, opts...)}
}

func (t *Tenant) Name() string   { return t.name }
func (t *Tenant) Status() Status { return t.status }
func (t *Tenant) IsActive() bool { return t.status == StatusActive }

// Scope is the isolation context of data owned by this tenant.
func (t *Tenant) Scope() isolation.Context {
	return isolation.MustNew(isolation.WithTenant(t.ID()))
}

func (t *Tenant) Create(name string) error {
	if t.Version() != 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant already exists")
	}
	if t.ID() == nil || t.ID().Kind() != domain.KindTenant {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant id must be a tenant identity")
	}
	name, err := validateName("tenant", name)
	if err != nil {
		return err
	}
	return aggregate.Raise(t, EventTenantCreated, TenantCreated{Name: name}, aggregate.WithIsolation(t.Scope()))
}

func (t *Tenant) Rename(name string) error {
	name, err := validateName("tenant", name)
	if err != nil {
		return err
	}
	if name == t.name {
		return nil
	}
	return aggregate.Raise(t, EventTenantRenamed, TenantRenamed{Name: name}, aggregate.WithIsolation(t.Scope()))
}

// CanDeactivate returns an error if the tenant cannot become inactive.
func (t *Tenant) CanDeactivate() error {
	if !t.status.CanTransitionTo(StatusInactive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already inactive")
	}
	return nil
}

func (t *Tenant) Deactivate() error {
	if err := t.CanDeactivate(); err != nil {
		return err
	}
	return aggregate.Raise(t, EventTenantDeactivated, nil, aggregate.WithIsolation(t.Scope()))
}

// CanReactivate returns an error if the tenant cannot become active.
func (t *Tenant) CanReactivate() error {
	if !t.status.CanTransitionTo(StatusActive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already active")
	}
	return nil
}

func (t *Tenant) Reactivate() error {
	if err := t.CanReactivate(); err != nil {
		return err
	}
	return aggregate.Raise(t, EventTenantReactivated, nil, aggregate.WithIsolation(t.Scope()))
}

func (t *Tenant) HandleEvent(e event.Event) error {
	switch e.Type {
	case EventTenantCreated:
		var p TenantCreated
		if err := e.Data.Decode(&p); err != nil {
			return err
		}
		t.name = p.Name
		t.status = StatusActive
	case EventTenantRenamed:
		var p TenantRenamed
		if err := e.Data.Decode(&p); err != nil {
			return err
		}
		t.name = p.Name
	case EventTenantDeactivated:
		t.status = StatusInactive
	case EventTenantReactivated:
		t.status = StatusActive
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant cannot handle "+string(e.Type))
	}
	return nil
}

type tenantState struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

func (t *Tenant) SnapshotState() (event.Payload, error) {
	return event.NewPayload(tenantState{Name: t.name, Status: t.status})
}

func (t *Tenant) RestoreState(state event.Payload) error {
	var s tenantState
	if err := state.Decode(&s); err != nil {
		return err
	}
	t.name, t.status = s.Name, s.Status
	return nil
}
