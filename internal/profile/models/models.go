package models

import (
	"slices"
	"strings"
	"time"

	id "peoplehub/pkg/domain"
	dErrors "peoplehub/pkg/domain-errors"
)

// Role is the permission tier of a profile.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleEmployee
}

// EmploymentStatus mirrors the HR record of the person behind a profile.
type EmploymentStatus string

const (
	StatusActive     EmploymentStatus = "active"
	StatusInactive   EmploymentStatus = "inactive"
	StatusTerminated EmploymentStatus = "terminated"
	StatusOnLeave    EmploymentStatus = "on_leave"
)

// DeniesAccess reports whether the status alone must keep the person out,
// whatever the profile's active flag says.
func (s EmploymentStatus) DeniesAccess() bool {
	return s == StatusTerminated || s == StatusInactive
}

// Profile is the application-level user record. The fields below the blank
// line are derived on every load and never persisted.
type Profile struct {
	ID id.ProfileID
	// Email is the denormalized primary email. Legacy rows may hold a
	// semicolon-joined list.
	Email            string
	FirstName        string
	LastName         string
	FullName         string
	Role             Role
	IsActive         bool
	EmploymentStatus EmploymentStatus
	EmployeeID       id.EmployeeID
	Position         string
	Department       string
	ManagerID        id.EmployeeID
	LastLogin        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	DisplayName      string
	LinkedEmployeeID id.EmployeeID
	Manager          *ManagerSummary
	Permissions      []Permission
}

// CheckAccess rejects profiles that must never back an authenticated session.
// The active flag and the employment status can disagree; either one denies.
func (p *Profile) CheckAccess() error {
	if !p.IsActive {
		return dErrors.New(dErrors.CodeAccountDisabled, "account is deactivated, contact your administrator")
	}
	if p.EmploymentStatus.DeniesAccess() {
		return dErrors.New(dErrors.CodeAccountDisabled, "account is no longer active, contact your administrator")
	}
	return nil
}

func (p *Profile) HasPermission(permission Permission) bool {
	return slices.Contains(p.Permissions, permission)
}

// Clone returns a deep copy so callers sharing a coalesced load cannot see
// each other's mutations.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.LastLogin != nil {
		t := *p.LastLogin
		c.LastLogin = &t
	}
	if p.Manager != nil {
		m := *p.Manager
		c.Manager = &m
	}
	c.Permissions = slices.Clone(p.Permissions)
	return &c
}

// Employee is a record of the HR employee directory.
type Employee struct {
	ID         id.EmployeeID
	Name       string
	Email      string
	Position   string
	Department string
	ManagerID  id.EmployeeID
}

// ManagerSummary is the slice of a manager's employee record shown next to a profile.
type ManagerSummary struct {
	ID       id.EmployeeID
	Name     string
	Email    string
	Position string
}

func (e *Employee) Summary() *ManagerSummary {
	return &ManagerSummary{ID: e.ID, Name: e.Name, Email: e.Email, Position: e.Position}
}

// RoleForPosition derives the role granted to a newly provisioned profile.
func RoleForPosition(position string) Role {
	switch strings.ToLower(strings.TrimSpace(position)) {
	case "general_manager":
		return RoleAdmin
	case "hr_specialist":
		return RoleManager
	default:
		return RoleEmployee
	}
}
