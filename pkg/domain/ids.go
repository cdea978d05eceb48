// Package domain holds the typed identifiers shared across the session core.
//
// Identifiers are opaque strings issued by the hosted backend. Distinct types keep
// a raw auth identity from being passed where a profile id is expected, except
// through the explicit fallback in IdentityID.AsProfileID.
package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "peoplehub/pkg/domain-errors"
)

const maxIDLength = 128

type (
	ProfileID  string
	IdentityID string
	EmployeeID string
)

func (id ProfileID) String() string  { return string(id) }
func (id IdentityID) String() string { return string(id) }
func (id EmployeeID) String() string { return string(id) }

func (id ProfileID) IsZero() bool  { return id == "" }
func (id IdentityID) IsZero() bool { return id == "" }
func (id EmployeeID) IsZero() bool { return id == "" }

// AsProfileID returns the identity id reinterpreted as a profile id. Identities
// created before multi-email linking share their id with their profile.
func (id IdentityID) AsProfileID() ProfileID {
	return ProfileID(id)
}

func ParseProfileID(s string) (ProfileID, error) {
	v, err := parseOpaque(s, "profile")
	return ProfileID(v), err
}

func ParseIdentityID(s string) (IdentityID, error) {
	v, err := parseOpaque(s, "identity")
	return IdentityID(v), err
}

func ParseEmployeeID(s string) (EmployeeID, error) {
	v, err := parseOpaque(s, "employee")
	return EmployeeID(v), err
}

func parseOpaque(s, kind string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, kind+" ID required")
	}
	if len(v) > maxIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, kind+" ID too long")
	}
	if !utf8.ValidString(v) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" ID")
	}
	for _, r := range v {
		if unicode.IsControl(r) || unicode.IsSpace(r) || r == '​' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" ID")
		}
	}
	return v, nil
}
