package isolation

import (
	"encoding/json"

	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
)

// Claims is the wire shape of a Context: verified token claims on the way in,
// persisted event metadata on the way out. A nil field is absent; a non-nil
// field is populated even when it points at "".
type Claims struct {
	TenantID       *string `json:"tenant_id,omitempty"`
	OrganizationID *string `json:"organization_id,omitempty"`
	DepartmentID   *string `json:"department_id,omitempty"`
	UserID         *string `json:"user_id,omitempty"`
	SharingLevel   string  `json:"sharing_level,omitempty"`
}

// FromClaims interns every populated identifier and builds a validated Context.
//
// Errors: CodeInvalidIsolationContext when a populated field is empty or not a
// UUIDv4, when the sharing level is unknown, or when nesting is inconsistent.
func FromClaims(in *domain.Interner, claims Claims) (Context, error) {
	var opts []Option

	fields := []struct {
		name string
		raw  *string
		kind domain.Kind
		with func(*domain.Identity) Option
	}{
		{"tenant", claims.TenantID, domain.KindTenant, WithTenant},
		{"organization", claims.OrganizationID, domain.KindOrganization, WithOrganization},
		{"department", claims.DepartmentID, domain.KindDepartment, WithDepartment},
		{"user", claims.UserID, domain.KindUser, WithUser},
	}
	for _, f := range fields {
		if f.raw == nil {
			continue
		}
		id, err := in.Create(f.kind, *f.raw)
		if err != nil {
			return Context{}, dErrors.Wrap(err, dErrors.CodeInvalidIsolationContext, f.name+" identity is invalid")
		}
		opts = append(opts, f.with(id))
	}

	sharing, err := ParseSharingLevel(claims.SharingLevel)
	if err != nil {
		return Context{}, dErrors.Wrap(err, dErrors.CodeInvalidIsolationContext, "invalid sharing level")
	}
	opts = append(opts, WithSharing(sharing))

	return New(opts...)
}

// Claims returns the wire shape of c. Round-trips through FromClaims.
func (c Context) Claims() Claims {
	ptr := func(id *domain.Identity) *string {
		if id == nil {
			return nil
		}
		s := id.String()
		return &s
	}
	return Claims{
		TenantID:       ptr(c.tenant),
		OrganizationID: ptr(c.organization),
		DepartmentID:   ptr(c.department),
		UserID:         ptr(c.user),
		SharingLevel:   c.sharing.String(),
	}
}

// MarshalJSON encodes the Claims form. Decoding goes through FromClaims so
// identities are interned.
func (c Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Claims())
}
