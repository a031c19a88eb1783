package isolation

import (
	"fmt"
	"strings"

	dErrors "tenantcore/pkg/domain-errors"
)

// Level is a scope depth. Ordering is fixed: more specific levels compare
// greater.
type Level uint8

const (
	LevelPlatform Level = iota
	LevelTenant
	LevelOrganization
	LevelDepartment
	LevelUser
)

var levelNames = [...]string{"platform", "tenant", "organization", "department", "user"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// ParseLevel maps a level name to its Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, "unknown isolation level: "+s)
}

// SharingLevel states how broadly data scoped at some level is visible. It is
// independent of how deeply the context is nested. The zero value means
// "not set" and resolves to the context's own level.
type SharingLevel uint8

const (
	SharingUnset SharingLevel = iota
	SharingPlatform
	SharingTenant
	SharingOrganization
	SharingDepartment
	SharingUser
)

func sharingFor(l Level) SharingLevel {
	return SharingLevel(l) + 1
}

// Level returns the scope depth the sharing level corresponds to.
func (s SharingLevel) Level() Level {
	if s == SharingUnset {
		return LevelPlatform
	}
	return Level(s - 1)
}

func (s SharingLevel) String() string {
	if s == SharingUnset {
		return ""
	}
	return s.Level().String()
}

// ParseSharingLevel maps a level name to a SharingLevel; "" is SharingUnset.
func ParseSharingLevel(s string) (SharingLevel, error) {
	if s == "" {
		return SharingUnset, nil
	}
	l, err := ParseLevel(s)
	if err != nil {
		return SharingUnset, dErrors.New(dErrors.CodeInvalidInput, "unknown sharing level: "+s)
	}
	return sharingFor(l), nil
}
