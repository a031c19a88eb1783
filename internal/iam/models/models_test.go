package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"tenantcore/pkg/aggregate"
	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/isolation"
)

type UserSuite struct {
	suite.Suite
	in     *domain.Interner
	tenant *domain.Identity
	org    *domain.Identity
	user   *User
}

func TestUserSuite(t *testing.T) {
	suite.Run(t, new(UserSuite))
}

func (s *UserSuite) SetupTest() {
	s.in = domain.NewInterner()
	s.tenant = s.in.Generate(domain.KindTenant)
	s.org = s.in.Generate(domain.KindOrganization)
	s.user = NewUser(s.in.Generate(domain.KindUser), aggregate.WithInterner(s.in))
	home := isolation.MustNew(isolation.WithTenant(s.tenant), isolation.WithOrganization(s.org))
	s.Require().NoError(s.user.Register(home, " Ada@Example.com ", "Ada"))
}

func (s *UserSuite) TestRegister() {
	s.Equal("ada@example.com", s.user.Email())
	s.Equal(isolation.LevelUser, s.user.Scope().Level())
	s.Same(s.org, s.user.Scope().OrganizationID())

	events := s.user.PendingEvents()
	s.Require().NotNil(events[0].Isolation)
	s.True(events[0].Isolation.Matches(s.user.Scope()))

	s.Run("registering twice is rejected", func() {
		err := s.user.Register(isolation.MustNew(isolation.WithTenant(s.tenant)), "b@example.com", "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("tenant is required", func() {
		u := NewUser(s.in.Generate(domain.KindUser), aggregate.WithInterner(s.in))
		s.True(dErrors.HasCode(u.Register(isolation.Platform(), "c@example.com", ""), dErrors.CodeInvariantViolation))
	})

	s.Run("invalid email is rejected", func() {
		u := NewUser(s.in.Generate(domain.KindUser), aggregate.WithInterner(s.in))
		home := isolation.MustNew(isolation.WithTenant(s.tenant))
		for _, email := range []string{"", "nope", "Ada <ada@example.com>"} {
			s.True(dErrors.HasCode(u.Register(home, email, ""), dErrors.CodeInvariantViolation), email)
		}
	})
}

func (s *UserSuite) TestRoles() {
	admin := s.in.Generate(domain.KindGeneric)
	viewer := s.in.Generate(domain.KindGeneric)

	s.Require().NoError(s.user.AssignRole(admin))
	s.Require().NoError(s.user.AssignRole(viewer))
	s.True(dErrors.HasCode(s.user.AssignRole(admin), dErrors.CodeInvariantViolation))

	s.Require().NoError(s.user.RevokeRole(admin))
	s.False(s.user.HasRole(admin))
	s.True(dErrors.HasCode(s.user.RevokeRole(admin), dErrors.CodeInvariantViolation))

	replayed := NewUser(s.user.ID(), aggregate.WithInterner(s.in))
	s.Require().NoError(aggregate.Replay(replayed, s.user.PullEvents()))
	s.Equal([]*domain.Identity{viewer}, replayed.Roles())
	s.True(replayed.Scope().Matches(s.user.Scope()))
}

func (s *UserSuite) TestDisableIsTerminal() {
	s.Require().NoError(s.user.Disable())
	s.True(s.user.IsDisabled())
	s.True(dErrors.HasCode(s.user.ChangeEmail("x@example.com"), dErrors.CodeInvariantViolation))
	s.True(dErrors.HasCode(s.user.AssignRole(s.in.Generate(domain.KindGeneric)), dErrors.CodeInvariantViolation))
	s.True(dErrors.HasCode(s.user.Disable(), dErrors.CodeInvariantViolation))
}

func (s *UserSuite) TestSnapshot() {
	role := s.in.Generate(domain.KindGeneric)
	s.Require().NoError(s.user.AssignRole(role))
	s.Require().NoError(s.user.ChangeEmail("ada@lovelace.dev"))

	snap, err := aggregate.CreateSnapshot(s.user)
	s.Require().NoError(err)

	restored := NewUser(s.user.ID(), aggregate.WithInterner(s.in))
	s.Require().NoError(aggregate.Restore(restored, snap))
	s.Equal("ada@lovelace.dev", restored.Email())
	s.True(restored.HasRole(role))
	s.True(restored.Scope().Matches(s.user.Scope()))
	s.Equal(s.user.Version(), restored.Version())
}

func TestRole(t *testing.T) {
	in := domain.NewInterner()
	tenant := in.Generate(domain.KindTenant)
	r := NewRole(in.Generate(domain.KindGeneric), aggregate.WithInterner(in))

	require.NoError(t, r.Create(tenant, "Auditor"))
	require.NoError(t, r.Grant("Tenant.Read"))
	require.NoError(t, r.Grant("audit.read"))
	require.NoError(t, r.Grant("tenant.read"))
	assert.Equal(t, []string{"audit.read", "tenant.read"}, r.Permissions())
	assert.Equal(t, int64(3), r.Version(), "granting twice raises nothing")

	assert.True(t, dErrors.HasCode(r.Grant("read"), dErrors.CodeInvariantViolation))
	assert.True(t, dErrors.HasCode(r.Revoke("user.write"), dErrors.CodeInvariantViolation))
	require.NoError(t, r.Revoke("audit.read"))

	snap, err := aggregate.CreateSnapshot(r)
	require.NoError(t, err)
	restored := NewRole(r.ID(), aggregate.WithInterner(in))
	require.NoError(t, aggregate.Restore(restored, snap))
	assert.Equal(t, []string{"tenant.read"}, restored.Permissions())
	assert.Same(t, tenant, restored.TenantID())

	replayed := NewRole(r.ID(), aggregate.WithInterner(in))
	require.NoError(t, aggregate.Replay(replayed, r.PullEvents()))
	assert.True(t, replayed.Grants("tenant.read"))
	assert.False(t, replayed.Grants("audit.read"))

	t.Run("requires a tenant", func(t *testing.T) {
		other := NewRole(in.Generate(domain.KindGeneric), aggregate.WithInterner(in))
		assert.True(t, dErrors.HasCode(other.Create(nil, "x"), dErrors.CodeInvariantViolation))
	})
}

func TestPermission(t *testing.T) {
	in := domain.NewInterner()
	p := NewPermission(in.Generate(domain.KindGeneric), aggregate.WithInterner(in))

	require.NoError(t, p.Define(" Tenant.Deactivate ", "Suspend a tenant"))
	assert.Equal(t, "tenant.deactivate", p.Name())
	assert.True(t, p.Scope().IsPlatform())
	assert.True(t, dErrors.HasCode(p.Define("x.y", ""), dErrors.CodeInvariantViolation))

	require.NoError(t, p.Describe("Suspend a tenant and its clients"))
	require.NoError(t, p.Describe("Suspend a tenant and its clients"))
	assert.Equal(t, int64(2), p.Version())

	replayed := NewPermission(p.ID(), aggregate.WithInterner(in))
	require.NoError(t, aggregate.Replay(replayed, p.PullEvents()))
	assert.Equal(t, "Suspend a tenant and its clients", replayed.Description())

	t.Run("describe before define", func(t *testing.T) {
		fresh := NewPermission(in.Generate(domain.KindGeneric))
		assert.True(t, dErrors.HasCode(fresh.Describe("x"), dErrors.CodeInvariantViolation))
	})
}
