package models

import (
	"tenantcore/pkg/aggregate"
	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/event"
	"tenantcore/pkg/isolation"
)

const OrganizationAggregateType = "organization"

const (
	EventOrganizationCreated  event.Type = "organization.created"
	EventOrganizationRenamed  event.Type = "organization.renamed"
	EventOrganizationArchived event.Type = "organization.archived"
)

type OrganizationCreated struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
}

type OrganizationRenamed struct {
	Name string `json:"name"`
}

// Organization groups departments inside one tenant. Archiving is terminal.
type Organization struct {
	aggregate.Root
	tenantID *domain.Identity
	name     string
	status   Status
}

func NewOrganization(id *domain.Identity, opts ...aggregate.Option) *Organization {
	return &Organization{Root: aggregate.NewRoot(id, OrganizationAggregateType, opts...)}
}

func (o *Organization) TenantID() *domain.Identity { return o.tenantID }
func (o *Organization) Name() string               { return o.name }
func (o *Organization) Status() Status             { return o.status }
func (o *Organization) IsArchived() bool           { return o.status == StatusArchived }

// Scope is the isolation context of the organization. Before Create it is
// the platform context.
func (o *Organization) Scope() isolation.Context {
	if o.tenantID == nil {
		return isolation.Platform()
	}
	return isolation.MustNew(isolation.WithTenant(o.tenantID), isolation.WithOrganization(o.ID()))
}

func (o *Organization) Create(tenantID *domain.Identity, name string) error {
	if o.Version() != 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization already exists")
	}
	if tenantID == nil || tenantID.Kind() != domain.KindTenant {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization requires a tenant")
	}
	name, err := validateName("organization", name)
	if err != nil {
		return err
	}
	scope, err := isolation.New(isolation.WithTenant(tenantID), isolation.WithOrganization(o.ID()))
	if err != nil {
		return err
	}
	return aggregate.Raise(o, EventOrganizationCreated,
		OrganizationCreated{TenantID: tenantID.String(), Name: name},
		aggregate.WithIsolation(scope))
}

func (o *Organization) Rename(name string) error {
	if o.IsArchived() {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization is archived")
	}
	name, err := validateName("organization", name)
	if err != nil {
		return err
	}
	if name == o.name {
		return nil
	}
	return aggregate.Raise(o, EventOrganizationRenamed, OrganizationRenamed{Name: name}, aggregate.WithIsolation(o.Scope()))
}

func (o *Organization) Archive() error {
	if !o.status.CanTransitionTo(StatusArchived) {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization is already archived")
	}
	return aggregate.Raise(o, EventOrganizationArchived, nil, aggregate.WithIsolation(o.Scope()))
}

func (o *Organization) HandleEvent(e event.Event) error {
	switch e.Type {
	case EventOrganizationCreated:
		var p OrganizationCreated
		if err := e.Data.Decode(&p); err != nil {
			return err
		}
		tenantID, err := intern(o.Interner(), domain.KindTenant, p.TenantID)
		if err != nil {
			return err
		}
		o.tenantID = tenantID
		o.name = p.Name
		o.status = StatusActive
	case EventOrganizationRenamed:
		var p OrganizationRenamed
		if err := e.Data.Decode(&p); err != nil {
			return err
		}
		o.name = p.Name
	case EventOrganizationArchived:
		o.status = StatusArchived
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "organization cannot handle "+string(e.Type))
	}
	return nil
}

type organizationState struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Status   Status `json:"status"`
}

func (o *Organization) SnapshotState() (event.Payload, error) {
	return event.NewPayload(organizationState{TenantID: idString(o.tenantID), Name: o.name, Status: o.status})
}

func (o *Organization) RestoreState(state event.Payload) error {
	var s organizationState
	if err := state.Decode(&s); err != nil {
		return err
	}
	tenantID, err := intern(o.Interner(), domain.KindTenant, s.TenantID)
	if err != nil {
		return err
	}
	o.tenantID, o.name, o.status = tenantID, s.Name, s.Status
	return nil
}
