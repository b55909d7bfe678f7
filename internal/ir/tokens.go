package ir

import (
	"fmt"
	"strings"
)

// ObjectType identifies the kind of chronicle in the first header byte.
// These values are protocol constants.
type ObjectType byte

const (
	ObjectTypeConcept  ObjectType = 1
	ObjectTypeSemantic ObjectType = 2
)

// String returns the name of the object type.
func (t ObjectType) String() string {
	switch t {
	case ObjectTypeConcept:
		return "CONCEPT"
	case ObjectTypeSemantic:
		return "SEMANTIC"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}

// VersionType identifies the payload schema of a chronicle's versions.
// These values are protocol constants.
type VersionType byte

const (
	VersionTypeConcept      VersionType = 1
	VersionTypeMember       VersionType = 2
	VersionTypeComponentNid VersionType = 3
	VersionTypeString       VersionType = 4
	VersionTypeLong         VersionType = 5
	VersionTypeDescription  VersionType = 6
)

// String returns the name of the version type.
func (t VersionType) String() string {
	switch t {
	case VersionTypeConcept:
		return "CONCEPT"
	case VersionTypeMember:
		return "MEMBER"
	case VersionTypeComponentNid:
		return "COMPONENT_NID"
	case VersionTypeString:
		return "STRING"
	case VersionTypeLong:
		return "LONG"
	case VersionTypeDescription:
		return "DESCRIPTION"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}

// ObjectType returns the object type that carries versions of this type.
func (t VersionType) ObjectType() ObjectType {
	if t == VersionTypeConcept {
		return ObjectTypeConcept
	}
	return ObjectTypeSemantic
}

// Valid reports whether t is a defined version type.
func (t VersionType) Valid() bool {
	return t >= VersionTypeConcept && t <= VersionTypeDescription
}

// ParseVersionType parses a version type name as produced by
// VersionType.String. Lower-case names are accepted.
func ParseVersionType(name string) (VersionType, error) {
	for t := VersionTypeConcept; t <= VersionTypeDescription; t++ {
		if s := t.String(); s == name || strings.ToLower(s) == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown version type %q", name)
}
