package models

import (
	"tenantcore/pkg/aggregate"
	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/event"
	"tenantcore/pkg/isolation"
)

const DepartmentAggregateType = "department"

const (
	EventDepartmentCreated event.Type = "department.created"
	EventDepartmentRenamed event.Type = "department.renamed"
	EventDepartmentMoved   event.Type = "department.moved"
)

type DepartmentCreated struct {
	TenantID       string `json:"tenant_id"`
	OrganizationID string `json:"organization_id"`
	ParentID       string `json:"parent_id,omitempty"`
	Name           string `json:"name"`
}

type DepartmentRenamed struct {
	Name string `json:"name"`
}

// DepartmentMoved re-parents a department. An empty ParentID moves it to the
// top of its organization.
type DepartmentMoved struct {
	ParentID string `json:"parent_id,omitempty"`
}

// Department belongs to one organization and may nest under another
// department of the same organization. Cycle detection across departments
// belongs to the caller, which can load the chain of parents.
type Department struct {
	aggregate.Root
	tenantID       *domain.Identity
	organizationID *domain.Identity
	parentID       *domain.Identity
	name           string
}

func NewDepartment(id *domain.Identity, opts ...aggregate.Option) *Department {
	return &Department{Root: aggregate.NewRoot(id, DepartmentAggregateType, opts...)}
}

func (d *Department) TenantID() *domain.Identity       { return d.tenantID }
func (d *Department) OrganizationID() *domain.Identity { return d.organizationID }
func (d *Department) ParentID() *domain.Identity       { return d.parentID }
func (d *Department) Name() string                     { return d.name }

func (d *Department) Scope() isolation.Context {
	if d.organizationID == nil {
		return isolation.Platform()
	}
	return isolation.MustNew(
		isolation.WithTenant(d.tenantID),
		isolation.WithOrganization(d.organizationID),
		isolation.WithDepartment(d.ID()),
	)
}

func (d *Department) Create(tenantID, organizationID, parentID *domain.Identity, name string) error {
	if d.Version() != 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "department already exists")
	}
	name, err := validateName("department", name)
	if err != nil {
		return err
	}
	if err := d.checkParent(parentID); err != nil {
		return err
	}
	scope, err := isolation.New(
		isolation.WithTenant(tenantID),
		isolation.WithOrganization(organizationID),
		isolation.WithDepartment(d.ID()),
	)
	if err != nil {
		return err
	}
	return aggregate.Raise(d, EventDepartmentCreated, DepartmentCreated{
		TenantID:       tenantID.String(),
		OrganizationID: organizationID.String(),
		ParentID:       idString(parentID),
		Name:           name,
	}, aggregate.WithIsolation(scope))
}

func (d *Department) Rename(name string) error {
	name, err := validateName("department", name)
	if err != nil {
		return err
	}
	if name == d.name {
		return nil
	}
	return aggregate.Raise(d, EventDepartmentRenamed, DepartmentRenamed{Name: name}, aggregate.WithIsolation(d.Scope()))
}

// MoveTo re-parents the department. A nil parent moves it to the top level.
func (d *Department) MoveTo(parentID *domain.Identity) error {
	if err := d.checkParent(parentID); err != nil {
		return err
	}
	if idString(parentID) == idString(d.parentID) {
		return nil
	}
	return aggregate.Raise(d, EventDepartmentMoved, DepartmentMoved{ParentID: idString(parentID)}, aggregate.WithIsolation(d.Scope()))
}

func (d *Department) checkParent(parentID *domain.Identity) error {
	if parentID == nil {
		return nil
	}
	if parentID.Kind() != domain.KindDepartment {
		return dErrors.New(dErrors.CodeInvariantViolation, "parent must be a department")
	}
	if parentID.String() == d.ID().String() {
		return dErrors.New(dErrors.CodeInvariantViolation, "department cannot be its own parent")
	}
	return nil
}

func (d *Department) HandleEvent(e event.Event) error {
	in := d.Interner()
	switch e.Type {
	case EventDepartmentCreated:
		var p DepartmentCreated
		if err := e.Data.Decode(&p); err != nil {
			return err
		}
		tenantID, err := intern(in, domain.KindTenant, p.TenantID)
		if err != nil {
			return err
		}
		orgID, err := intern(in, domain.KindOrganization, p.OrganizationID)
		if err != nil {
			return err
		}
		parentID, err := intern(in, domain.KindDepartment, p.ParentID)
		if err != nil {
			return err
		}
		d.tenantID, d.organizationID, d.parentID, d.name = tenantID, orgID, parentID, p.Name
	case EventDepartmentRenamed:
		var p DepartmentRenamed
		if err := e.Data.Decode(&p); err != nil {
			return err
		}
		d.name = p.Name
	case EventDepartmentMoved:
		var p DepartmentMoved
		if err := e.Data.Decode(&p); err != nil {
			return err
		}
		parentID, err := intern(in, domain.KindDepartment, p.ParentID)
		if err != nil {
			return err
		}
		d.parentID = parentID
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "department cannot handle "+string(e.Type))
	}
	return nil
}

func (d *Department) SnapshotState() (event.Payload, error) {
	return event.NewPayload(DepartmentCreated{
		TenantID:       idString(d.tenantID),
		OrganizationID: idString(d.organizationID),
		ParentID:       idString(d.parentID),
		Name:           d.name,
	})
}

func (d *Department) RestoreState(state event.Payload) error {
	return d.HandleEvent(event.Event{Type: EventDepartmentCreated, Data: state})
}
