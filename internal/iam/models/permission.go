package models

import (
	"regexp"
	"strings"

	"tenantcore/pkg/aggregate"
	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
	"tenantcore/pkg/event"
	"tenantcore/pkg/isolation"
)

const PermissionAggregateType = "permission"

const (
	EventPermissionDefined   event.Type = "permission.defined"
	EventPermissionDescribed event.Type = "permission.described"
)

type PermissionDefined struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type PermissionDescribed struct {
	Description string `json:"description"`
}

// permissionName is "<resource>.<action>", for example "tenant.read".
var permissionName = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// Permission is an entry in the platform-wide permission catalog. Its name
// never changes once defined.
type Permission struct {
	aggregate.Root
	name        string
	description string
}

func NewPermission(id *domain.Identity, opts ...aggregate.Option) *Permission {
	return &Permission{Root: aggregate.NewRoot(id, PermissionAggregateType, opts...)}
}

func (p *Permission) Name() string        { return p.name }
func (p *Permission) Description() string { return p.description }

// Scope is always the platform context: the catalog is shared by all tenants.
func (p *Permission) Scope() isolation.Context { return isolation.Platform() }

func (p *Permission) Define(name, description string) error {
	if p.Version() != 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "permission already defined")
	}
	name, err := normalizePermission(name)
	if err != nil {
		return err
	}
	return aggregate.Raise(p, EventPermissionDefined,
		PermissionDefined{Name: name, Description: strings.TrimSpace(description)},
		aggregate.WithIsolation(p.Scope()))
}

func (p *Permission) Describe(description string) error {
	if p.Version() == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "permission is not defined")
	}
	description = strings.TrimSpace(description)
	if description == p.description {
		return nil
	}
	return aggregate.Raise(p, EventPermissionDescribed, PermissionDescribed{Description: description}, aggregate.WithIsolation(p.Scope()))
}

func (p *Permission) HandleEvent(e event.Event) error {
	switch e.Type {
	case EventPermissionDefined:
		var d PermissionDefined
		if err := e.Data.Decode(&d); err != nil {
			return err
		}
		p.name, p.description = d.Name, d.Description
	case EventPermissionDescribed:
		var d PermissionDescribed
		if err := e.Data.Decode(&d); err != nil {
			return err
		}
		p.description = d.Description
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "permission cannot handle "+string(e.Type))
	}
	return nil
}

func (p *Permission) SnapshotState() (event.Payload, error) {
	return event.NewPayload(PermissionDefined{Name: p.name, Description: p.description})
}

func (p *Permission) RestoreState(state event.Payload) error {
	return p.HandleEvent(event.Event{Type: EventPermissionDefined, Data: state})
}

func normalizePermission(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !permissionName.MatchString(name) {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "permission name must look like resource.action")
	}
	return name, nil
}
