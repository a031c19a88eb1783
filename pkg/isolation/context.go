// Package isolation models the scope an operation executes under and decides
// whether one scope may reach data owned by another.
//
// A Context nests tenant → organization → department → user. Its Level is
// the most specific populated field. Contexts are immutable values; narrowing
// or widening returns a new Context. They are safe to share across goroutines.
//
// Two questions are answered separately and must not be merged:
//   - Matches: would two requests read and write under the same storage key?
//   - Decide: may a caller with some privilege access a target's data?
package isolation

import (
	"strings"

	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
)

// Context is an immutable isolation scope. The zero value is platform scope.
type Context struct {
	tenant       *domain.Identity
	organization *domain.Identity
	department   *domain.Identity
	user         *domain.Identity
	sharing      SharingLevel
}

// Option populates a field while building a Context with New.
type Option func(*Context)

func WithTenant(id *domain.Identity) Option {
	return func(c *Context) { c.tenant = id }
}

func WithOrganization(id *domain.Identity) Option {
	return func(c *Context) { c.organization = id }
}

func WithDepartment(id *domain.Identity) Option {
	return func(c *Context) { c.department = id }
}

func WithUser(id *domain.Identity) Option {
	return func(c *Context) { c.user = id }
}

func WithSharing(s SharingLevel) Option {
	return func(c *Context) { c.sharing = s }
}

// Platform returns the unscoped platform context.
func Platform() Context {
	return Context{}
}

// New builds a validated Context.
//
// Invariants enforced:
//   - every populated field holds a valid identity of the matching kind
//   - a department implies an organization, an organization implies a tenant
//
// Errors: CodeInvalidIsolationContext when any invariant fails.
func New(opts ...Option) (Context, error) {
	var c Context
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.validate(); err != nil {
		return Context{}, err
	}
	return c, nil
}

// MustNew is New for fixtures known to be valid.
func MustNew(opts ...Option) Context {
	c, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Context) validate() error {
	fields := []struct {
		name string
		id   *domain.Identity
		kind domain.Kind
	}{
		{"tenant", c.tenant, domain.KindTenant},
		{"organization", c.organization, domain.KindOrganization},
		{"department", c.department, domain.KindDepartment},
		{"user", c.user, domain.KindUser},
	}
	for _, f := range fields {
		if f.id == nil {
			continue
		}
		if err := f.id.Validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidIsolationContext, f.name+" identity is invalid")
		}
		if f.id.Kind() != f.kind {
			return dErrors.New(dErrors.CodeInvalidIsolationContext,
				f.name+" field holds a "+f.id.Kind().String()+" identity")
		}
	}
	if c.department != nil && c.organization == nil {
		return dErrors.New(dErrors.CodeInvalidIsolationContext, "department scope requires an organization")
	}
	if c.organization != nil && c.tenant == nil {
		return dErrors.New(dErrors.CodeInvalidIsolationContext, "organization scope requires a tenant")
	}
	if c.sharing > SharingUser {
		return dErrors.New(dErrors.CodeInvalidIsolationContext, "unknown sharing level")
	}
	return nil
}

func (c Context) TenantID() *domain.Identity       { return c.tenant }
func (c Context) OrganizationID() *domain.Identity { return c.organization }
func (c Context) DepartmentID() *domain.Identity   { return c.department }
func (c Context) UserID() *domain.Identity         { return c.user }

// Sharing returns the sharing level, resolving unset to the context's own level.
func (c Context) Sharing() SharingLevel {
	if c.sharing == SharingUnset {
		return sharingFor(c.Level())
	}
	return c.sharing
}

// Level returns the most specific populated field's level.
func (c Context) Level() Level {
	switch {
	case c.user != nil:
		return LevelUser
	case c.department != nil:
		return LevelDepartment
	case c.organization != nil:
		return LevelOrganization
	case c.tenant != nil:
		return LevelTenant
	default:
		return LevelPlatform
	}
}

// IsPlatform reports whether no scope field is populated.
func (c Context) IsPlatform() bool {
	return c.Level() == LevelPlatform
}

// Identifier returns the canonical scope key, for example
// "tenant:<uuid>:organization:<uuid>", or "platform" when unscoped.
func (c Context) Identifier() string {
	var b strings.Builder
	appendToken := func(kind, value string) {
		if b.Len() > 0 {
			b.WriteByte(':')
		}
		b.WriteString(kind)
		b.WriteByte(':')
		b.WriteString(value)
	}
	if c.tenant != nil {
		appendToken("tenant", c.tenant.String())
	}
	if c.organization != nil {
		appendToken("organization", c.organization.String())
	}
	if c.department != nil {
		appendToken("department", c.department.String())
	}
	if c.user != nil {
		appendToken("user", c.user.String())
	}
	if b.Len() == 0 {
		return "platform"
	}
	return b.String()
}

// KeyPrefix namespaces a storage or cache key under this scope.
func (c Context) KeyPrefix(base string) string {
	return base + c.Identifier() + ":"
}

// IsValid reports whether every populated field holds a syntactically valid
// identity. A platform context is always valid.
func (c Context) IsValid() bool {
	for _, id := range []*domain.Identity{c.tenant, c.organization, c.department, c.user} {
		if id != nil && id.Validate() != nil {
			return false
		}
	}
	return true
}

// Matches reports exact scope equality: for each of the four fields both are
// absent or both hold equal identities. It is not hierarchical containment.
func (c Context) Matches(other Context) bool {
	return c.tenant.Equals(other.tenant) &&
		c.organization.Equals(other.organization) &&
		c.department.Equals(other.department) &&
		c.user.Equals(other.user)
}

// SatisfiesLevel reports whether the context is at least as specific as required.
func (c Context) SatisfiesLevel(required Level) bool {
	return c.Level() >= required
}

// WithSharing returns a copy with the given sharing level.
func (c Context) WithSharing(s SharingLevel) Context {
	c.sharing = s
	return c
}

// Narrow returns a copy with additional fields populated. The result is
// validated like New.
func (c Context) Narrow(opts ...Option) (Context, error) {
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.validate(); err != nil {
		return Context{}, err
	}
	return c, nil
}

// Widen returns a copy with every field more specific than level cleared.
func (c Context) Widen(level Level) Context {
	if level < LevelUser {
		c.user = nil
	}
	if level < LevelDepartment {
		c.department = nil
	}
	if level < LevelOrganization {
		c.organization = nil
	}
	if level < LevelTenant {
		c.tenant = nil
	}
	return c
}

// String renders the identifier; handy in logs.
func (c Context) String() string {
	return c.Identifier()
}
