package audit

import "time"

// EventCategory classifies audit events by their primary purpose so stores
// can apply different retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers changes with regulatory significance, such as
	// tenant lifecycle and role grants.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring: refused
	// data access, disabled users.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Scopes are
// recorded as isolation identifiers so stores need no domain types.
type Event struct {
	Category    EventCategory
	Timestamp   time.Time
	Action      string
	CallerScope string
	TargetScope string
	UserID      string
	AggregateID string
	Privilege   string
	Rule        string
	Decision    string
	Reason      string
	RequestID   string
}

// Action names an audited occurrence.
type Action string

const (
	EventDataAccessDenied Action = "data_access_denied"

	EventTenantCreated     Action = "tenant_created"
	EventTenantRenamed     Action = "tenant_renamed"
	EventTenantDeactivated Action = "tenant_deactivated"
	EventTenantReactivated Action = "tenant_reactivated"

	EventOrganizationCreated  Action = "organization_created"
	EventOrganizationRenamed  Action = "organization_renamed"
	EventOrganizationArchived Action = "organization_archived"
	EventDepartmentCreated    Action = "department_created"
	EventDepartmentRenamed    Action = "department_renamed"
	EventDepartmentMoved      Action = "department_moved"

	EventUserRegistered Action = "user_registered"
	EventUserDisabled   Action = "user_disabled"
	EventRoleAssigned   Action = "role_assigned"
	EventRoleRevoked    Action = "role_revoked"
)

var actionCategories = map[Action]EventCategory{
	EventDataAccessDenied: CategorySecurity,
	EventUserDisabled:     CategorySecurity,

	EventTenantCreated:     CategoryCompliance,
	EventTenantDeactivated: CategoryCompliance,
	EventTenantReactivated: CategoryCompliance,
	EventUserRegistered:    CategoryCompliance,
	EventRoleAssigned:      CategoryCompliance,
	EventRoleRevoked:       CategoryCompliance,
}

// Category returns the EventCategory for this action.
// Unknown actions default to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}
