package isolation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	f := newFixture()
	otherTenant := "77777777-7777-4777-8777-777777777777"

	a := MustNew(WithTenant(f.tenant(t1)), WithOrganization(f.org(o1)))
	b := MustNew(WithTenant(f.tenant(t1)), WithOrganization(f.org(o2)))
	foreign := MustNew(WithTenant(f.tenant(otherTenant)), WithOrganization(f.org(o1)))

	tests := []struct {
		name      string
		caller    Context
		privilege Privilege
		target    Context
		scope     OperationScope
		allowed   bool
		rule      Rule
	}{
		{"super bypasses a failed match", a, PrivilegeSuper, foreign, ScopeTenant, true, RuleSuperBypass},
		{"super bypasses even on exact operations", a, PrivilegeSuper, foreign, ScopeExact, true, RuleSuperBypass},
		{"admin crosses organizations in same tenant", a, PrivilegeAdmin, b, ScopeTenant, true, RuleTenantAdmin},
		{"admin cannot cross tenants", a, PrivilegeAdmin, foreign, ScopeTenant, false, RuleTenantAdmin},
		{"admin at platform scope reaches any tenant", Platform(), PrivilegeAdmin, foreign, ScopeTenant, true, RuleTenantAdmin},
		{"admin on exact operations needs a match", a, PrivilegeAdmin, b, ScopeExact, false, RuleExactScope},
		{"read needs a match", a, PrivilegeRead, b, ScopeTenant, false, RuleExactScope},
		{"read with match", a, PrivilegeRead, a, ScopeTenant, true, RuleExactScope},
		{"write with match", b, PrivilegeWrite, b, ScopeTenant, true, RuleExactScope},
		{"no privilege with match", a, PrivilegeNone, a, ScopeTenant, true, RuleExactScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(Request{Caller: tt.caller, Privilege: tt.privilege, Target: tt.target, Scope: tt.scope})
			assert.Equal(t, tt.allowed, got.Allowed)
			assert.Equal(t, tt.rule, got.Rule)
		})
	}
}

// TestConcreteScenario encodes the reference example: same tenant, different
// organizations.
func TestConcreteScenario(t *testing.T) {
	f := newFixture()
	a := MustNew(WithTenant(f.tenant(t1)), WithOrganization(f.org(o1)))
	b := MustNew(WithTenant(f.tenant(t1)), WithOrganization(f.org(o2)))

	assert.False(t, a.Matches(b))
	assert.True(t, CanAccess(a, PrivilegeAdmin, b))
	assert.False(t, CanAccess(a, PrivilegeRead, b))
}

func TestParsePrivilege(t *testing.T) {
	for _, s := range []string{"read", "write", "admin", "SUPER"} {
		p, err := ParsePrivilege(s)
		require.NoError(t, err, s)
		assert.NotEqual(t, PrivilegeNone, p)
	}
	_, err := ParsePrivilege("none")
	assert.Error(t, err)
	_, err = ParsePrivilege("root")
	assert.Error(t, err)
}
