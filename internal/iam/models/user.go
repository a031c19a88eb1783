// Package models holds the identity and access aggregates: users, the roles
// assigned to them and the permissions roles grant.
package models

import (
	"net/mail"
	"slices"
	"strings"

	"tenantcore/pkg/aggregate"
	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/event"
	"tenantcore/pkg/isolation"
)

const UserAggregateType = "user"

const (
	EventUserRegistered   event.Type = "user.registered"
	EventUserEmailChanged event.Type = "user.email_changed"
	EventUserRoleAssigned event.Type = "user.role_assigned"
	EventUserRoleRevoked  event.Type = "user.role_revoked"
	EventUserDisabled     event.Type = "user.disabled"
)

// UserRegistered places the user in the isolation hierarchy. Organization and
// department are optional; a department implies an organization.
type UserRegistered struct {
	TenantID       string `json:"tenant_id"`
	OrganizationID string `json:"organization_id,omitempty"`
	DepartmentID   string `json:"department_id,omitempty"`
	Email          string `json:"email"`
	DisplayName    string `json:"display_name,omitempty"`
}

type UserEmailChanged struct {
	Email string `json:"email"`
}

type UserRoleChanged struct {
	RoleID string `json:"role_id"`
}

// User is a person acting inside one tenant.
//
// Invariants:
//   - Email is a valid address, stored lower case
//   - A role is assigned at most once
//   - Disabled users accept no further changes
type User struct {
	aggregate.Root
	scope       isolation.Context
	email       string
	displayName string
	roles       []*domain.Identity
	disabled    bool
}

func NewUser(id *domain.Identity, opts ...aggregate.Option) *User {
	return &User{Root: aggregate.NewRoot(id, UserAggregateType, opts...)}
}

func (u *User) Email() string       { return u.email }
func (u *User) DisplayName() string { return u.displayName }
func (u *User) IsDisabled() bool    { return u.disabled }

// Roles returns the assigned roles in assignment order.
func (u *User) Roles() []*domain.Identity { return slices.Clone(u.roles) }

func (u *User) HasRole(roleID *domain.Identity) bool {
	return u.roleIndex(roleID) >= 0
}

// Scope is the user's full isolation context, down to the user itself.
func (u *User) Scope() isolation.Context { return u.scope }

// Register records the user under home, which must name at least a tenant.
func (u *User) Register(home isolation.Context, email, displayName string) error {
	if u.Version() != 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "user already registered")
	}
	if home.TenantID() == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "user must belong to a tenant")
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	scope, err := isolation.New(
		isolation.WithTenant(home.TenantID()),
		isolation.WithOrganization(home.OrganizationID()),
		isolation.WithDepartment(home.DepartmentID()),
		isolation.WithUser(u.ID()),
	)
	if err != nil {
		return err
	}
	return aggregate.Raise(u, EventUserRegistered, UserRegistered{
		TenantID:       idString(home.TenantID()),
		OrganizationID: idString(home.OrganizationID()),
		DepartmentID:   idString(home.DepartmentID()),
		Email:          email,
		DisplayName:    strings.TrimSpace(displayName),
	}, aggregate.WithIsolation(scope))
}

func (u *User) ChangeEmail(email string) error {
	if err := u.checkEnabled(); err != nil {
		return err
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if email == u.email {
		return nil
	}
	return aggregate.Raise(u, EventUserEmailChanged, UserEmailChanged{Email: email}, aggregate.WithIsolation(u.scope))
}

func (u *User) AssignRole(roleID *domain.Identity) error {
	if err := u.checkEnabled(); err != nil {
		return err
	}
	if roleID == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "role id is required")
	}
	if u.HasRole(roleID) {
		return dErrors.New(dErrors.CodeInvariantViolation, "role is already assigned")
	}
	return aggregate.Raise(u, EventUserRoleAssigned, UserRoleChanged{RoleID: roleID.String()}, aggregate.WithIsolation(u.scope))
}

func (u *User) RevokeRole(roleID *domain.Identity) error {
	if err := u.checkEnabled(); err != nil {
		return err
	}
	if !u.HasRole(roleID) {
		return dErrors.New(dErrors.CodeInvariantViolation, "role is not assigned")
	}
	return aggregate.Raise(u, EventUserRoleRevoked, UserRoleChanged{RoleID: roleID.String()}, aggregate.WithIsolation(u.scope))
}

// Disable is the terminal transition. The user's history is kept.
func (u *User) Disable() error {
	if err := u.checkEnabled(); err != nil {
		return err
	}
	return aggregate.Raise(u, EventUserDisabled, nil, aggregate.WithIsolation(u.scope))
}

func (u *User) checkEnabled() error {
	if u.Version() == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "user is not registered")
	}
	if u.disabled {
		return dErrors.New(dErrors.CodeInvariantViolation, "user is disabled")
	}
	return nil
}

func (u *User) roleIndex(roleID *domain.Identity) int {
	if roleID == nil {
		return -1
	}
	return slices.IndexFunc(u.roles, func(r *domain.Identity) bool {
		return r.String() == roleID.String()
	})
}

func (u *User) HandleEvent(e event.Event) error {
	switch e.Type {
	case EventUserRegistered:
		var p UserRegistered
		if err := e.Data.Decode(&p); err != nil {
			return err
		}
		scope, err := isolation.FromClaims(u.Interner(), isolation.Claims{
			TenantID:       optional(p.TenantID),
			OrganizationID: optional(p.OrganizationID),
			DepartmentID:   optional(p.DepartmentID),
			UserID:         optional(u.ID().String()),
		})
		if err != nil {
			return err
		}
		u.scope, u.email, u.displayName = scope, p.Email, p.DisplayName
	case EventUserEmailChanged:
		var p UserEmailChanged
		if err := e.Data.Decode(&p); err != nil {
			return err
		}
		u.email = p.Email
	case EventUserRoleAssigned:
		roleID, err := decodeRole(u.Interner(), e)
		if err != nil {
			return err
		}
		u.roles = append(u.roles, roleID)
	case EventUserRoleRevoked:
		roleID, err := decodeRole(u.Interner(), e)
		if err != nil {
			return err
		}
		if i := u.roleIndex(roleID); i >= 0 {
			u.roles = slices.Delete(u.roles, i, i+1)
		}
	case EventUserDisabled:
		u.disabled = true
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "user cannot handle "+string(e.Type))
	}
	return nil
}

type userState struct {
	UserRegistered
	Roles    []string `json:"roles"`
	Disabled bool     `json:"disabled"`
}

func (u *User) SnapshotState() (event.Payload, error) {
	roles := make([]string, len(u.roles))
	for i, r := range u.roles {
		roles[i] = r.String()
	}
	return event.NewPayload(userState{
		UserRegistered: UserRegistered{
			TenantID:       idString(u.scope.TenantID()),
			OrganizationID: idString(u.scope.OrganizationID()),
			DepartmentID:   idString(u.scope.DepartmentID()),
			Email:          u.email,
			DisplayName:    u.displayName,
		},
		Roles:    roles,
		Disabled: u.disabled,
	})
}

func (u *User) RestoreState(state event.Payload) error {
	var s userState
	if err := state.Decode(&s); err != nil {
		return err
	}
	registered, err := event.NewPayload(s.UserRegistered)
	if err != nil {
		return err
	}
	if err := u.HandleEvent(event.Event{Type: EventUserRegistered, Data: registered}); err != nil {
		return err
	}
	u.roles = u.roles[:0]
	for _, raw := range s.Roles {
		roleID, err := u.Interner().Create(domain.KindGeneric, raw)
		if err != nil {
			return err
		}
		u.roles = append(u.roles, roleID)
	}
	u.disabled = s.Disabled
	return nil
}

func decodeRole(in *domain.Interner, e event.Event) (*domain.Identity, error) {
	var p UserRoleChanged
	if err := e.Data.Decode(&p); err != nil {
		return nil, err
	}
	return in.Create(domain.KindGeneric, p.RoleID)
}

// normalizeEmail accepts a bare address and returns it lower case.
func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "email address is invalid")
	}
	return strings.ToLower(addr.Address), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func idString(id *domain.Identity) string {
	if id == nil {
		return ""
	}
	return id.String()
}
