package isolation

import (
	"strings"

	dErrors "tenantcore/pkg/domain-errors"
)

// Privilege is the caller's session privilege. It belongs to the session, not
// to the Context. Values are ordered: a higher privilege includes the lower.
type Privilege uint8

const (
	PrivilegeNone Privilege = iota
	PrivilegeRead
	PrivilegeWrite
	PrivilegeAdmin
	PrivilegeSuper
)

var privilegeNames = map[Privilege]string{
	PrivilegeNone:  "none",
	PrivilegeRead:  "read",
	PrivilegeWrite: "write",
	PrivilegeAdmin: "admin",
	PrivilegeSuper: "super",
}

func (p Privilege) String() string {
	if name, ok := privilegeNames[p]; ok {
		return name
	}
	return "unknown"
}

// AtLeast reports whether p includes min.
func (p Privilege) AtLeast(min Privilege) bool {
	return p >= min
}

// ParsePrivilege maps read|write|admin|super to a Privilege.
func ParsePrivilege(s string) (Privilege, error) {
	for p, name := range privilegeNames {
		if p != PrivilegeNone && strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return PrivilegeNone, dErrors.New(dErrors.CodeInvalidInput, "unknown privilege: "+s)
}

// OperationScope says how far an operation may reach. The zero value is
// tenant-scoped: tenant admins may cross organization and department
// boundaries inside their tenant. ScopeExact disables that escalation.
type OperationScope uint8

const (
	ScopeTenant OperationScope = iota
	ScopeExact
)

// Rule names the rule that produced a Decision.
type Rule string

const (
	RuleSuperBypass Rule = "super_bypass"
	RuleTenantAdmin Rule = "tenant_admin"
	RuleExactScope  Rule = "exact_scope"
)

// Request is the input of an access decision.
type Request struct {
	Caller    Context
	Privilege Privilege
	Target    Context
	Scope     OperationScope
}

// Decision is the outcome and the rule that produced it.
type Decision struct {
	Allowed bool
	Rule    Rule
}

// Decide evaluates the rules in order and stops at the first that applies:
//
//  1. super privilege is granted unconditionally
//  2. on tenant-scoped operations, admin or above is granted when the caller
//     has no tenant or the same tenant as the target
//  3. otherwise access requires Caller.Matches(Target)
//
// Decide is pure and total.
func Decide(r Request) Decision {
	if r.Privilege.AtLeast(PrivilegeSuper) {
		return Decision{Allowed: true, Rule: RuleSuperBypass}
	}
	if r.Scope == ScopeTenant && r.Privilege.AtLeast(PrivilegeAdmin) {
		caller := r.Caller.TenantID()
		// A caller tenant that differs from the target's can never match
		// exactly either, so the rule's answer is final.
		return Decision{
			Allowed: caller == nil || caller.Equals(r.Target.TenantID()),
			Rule:    RuleTenantAdmin,
		}
	}
	return Decision{Allowed: r.Caller.Matches(r.Target), Rule: RuleExactScope}
}

// CanAccess decides a tenant-scoped operation.
func CanAccess(caller Context, privilege Privilege, target Context) bool {
	return Decide(Request{Caller: caller, Privilege: privilege, Target: target}).Allowed
}
