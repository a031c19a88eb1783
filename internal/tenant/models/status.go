package models

import (
	"strings"

	"tenantcore/pkg/domain"
	dErrors "tenantcore/pkg/domain-errors"
)

// Status is the lifecycle state of a tenant or organization. Nothing is ever
// removed; leaving the active state is itself an event.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

// CanTransitionTo reports whether moving from s to next is allowed:
// active ↔ inactive, and active → archived. Archived is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusInactive || next == StatusArchived
	case StatusInactive:
		return next == StatusActive
	default:
		return false
	}
}

const maxNameLength = 128

func validateName(kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", dErrors.New(dErrors.CodeInvariantViolation, kind+" name cannot be empty")
	}
	if len(name) > maxNameLength {
		return "", dErrors.New(dErrors.CodeInvariantViolation, kind+" name must be 128 characters or less")
	}
	return name, nil
}

// intern resolves an identity carried in an event payload. Empty means absent.
func intern(in *domain.Interner, kind domain.Kind, value string) (*domain.Identity, error) {
	if value == "" {
		return nil, nil
	}
	return in.Create(kind, value)
}

func idString(id *domain.Identity) string {
	if id == nil {
		return ""
	}
	return id.String()
}
