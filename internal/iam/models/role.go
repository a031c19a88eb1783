package models

import (
	"slices"
	"strings"

	"tenantcore/pkg/aggregate"
	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/event"
	"tenantcore/pkg/isolation"
)

const RoleAggregateType = "role"

const (
	EventRoleCreated           event.Type = "role.created"
	EventRolePermissionGranted event.Type = "role.permission_granted"
	EventRolePermissionRevoked event.Type = "role.permission_revoked"
)

type RoleCreated struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
}

type RolePermissionChanged struct {
	Permission string `json:"permission"`
}

// Role is a named set of permissions defined by a tenant. Permissions are
// referenced by name so a role never depends on a permission's stream.
type Role struct {
	aggregate.Root
	tenantID    *domain.Identity
	name        string
	permissions []string
}

func NewRole(id *domain.Identity, opts ...aggregate.Option) *Role {
	return &Role{Root: aggregate.NewRoot(id, RoleAggregateType, opts...)}
}

func (r *Role) TenantID() *domain.Identity { return r.tenantID }
func (r *Role) Name() string               { return r.name }

// Permissions returns the granted permission names, sorted.
func (r *Role) Permissions() []string { return slices.Clone(r.permissions) }

func (r *Role) Grants(permission string) bool {
	_, found := slices.BinarySearch(r.permissions, permission)
	return found
}

func (r *Role) Scope() isolation.Context {
	if r.tenantID == nil {
		return isolation.Platform()
	}
	return isolation.MustNew(isolation.WithTenant(r.tenantID))
}

func (r *Role) Create(tenantID *domain.Identity, name string) error {
	if r.Version() != 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "role already exists")
	}
	if tenantID == nil || tenantID.Kind() != domain.KindTenant {
		return dErrors.New(dErrors.CodeInvariantViolation, "role requires a tenant")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "role name cannot be empty")
	}
	return aggregate.Raise(r, EventRoleCreated, RoleCreated{TenantID: tenantID.String(), Name: name},
		aggregate.WithIsolation(isolation.MustNew(isolation.WithTenant(tenantID))))
}

func (r *Role) Grant(permission string) error {
	permission, err := normalizePermission(permission)
	if err != nil {
		return err
	}
	if r.Grants(permission) {
		return nil
	}
	return aggregate.Raise(r, EventRolePermissionGranted, RolePermissionChanged{Permission: permission}, aggregate.WithIsolation(r.Scope()))
}

func (r *Role) Revoke(permission string) error {
	permission, err := normalizePermission(permission)
	if err != nil {
		return err
	}
	if !r.Grants(permission) {
		return dErrors.New(dErrors.CodeInvariantViolation, "permission is not granted")
	}
	return aggregate.Raise(r, EventRolePermissionRevoked, RolePermissionChanged{Permission: permission}, aggregate.WithIsolation(r.Scope()))
}

func (r *Role) HandleEvent(e event.Event) error {
	switch e.Type {
	case EventRoleCreated:
		var p RoleCreated
		if err := e.Data.Decode(&p); err != nil {
			return err
		}
		tenantID, err := r.Interner().Create(domain.KindTenant, p.TenantID)
		if err != nil {
			return err
		}
		r.tenantID, r.name = tenantID, p.Name
	case EventRolePermissionGranted:
		var p RolePermissionChanged
		if err := e.Data.Decode(&p); err != nil {
			return err
		}
		if i, found := slices.BinarySearch(r.permissions, p.Permission); !found {
			r.permissions = slices.Insert(r.permissions, i, p.Permission)
		}
	case EventRolePermissionRevoked:
		var p RolePermissionChanged
		if err := e.Data.Decode(&p); err != nil {
			return err
		}
		if i, found := slices.BinarySearch(r.permissions, p.Permission); found {
			r.permissions = slices.Delete(r.permissions, i, i+1)
		}
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "role cannot handle "+string(e.Type))
	}
	return nil
}

type roleState struct {
	RoleCreated
	Permissions []string `json:"permissions"`
}

func (r *Role) SnapshotState() (event.Payload, error) {
	return event.NewPayload(roleState{
		RoleCreated: RoleCreated{TenantID: idString(r.tenantID), Name: r.name},
		Permissions: r.permissions,
	})
}

func (r *Role) RestoreState(state event.Payload) error {
	var s roleState
	if err := state.Decode(&s); err != nil {
		return err
	}
	tenantID, err := r.Interner().Create(domain.KindTenant, s.TenantID)
	if err != nil {
		return err
	}
	r.tenantID, r.name = tenantID, s.Name
	r.permissions = slices.Sorted(slices.Values(s.Permissions))
	return nil
}
