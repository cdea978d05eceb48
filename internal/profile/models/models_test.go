package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "peoplehub/pkg/domain-errors"
)

func TestProfile_CheckAccess(t *testing.T) {
	cases := []struct {
		name    string
		active  bool
		status  EmploymentStatus
		allowed bool
	}{
		{"active employee", true, StatusActive, true},
		{"on leave keeps access", true, StatusOnLeave, true},
		{"deactivated", false, StatusActive, false},
		{"terminated but flag still active", true, StatusTerminated, false},
		{"inactive status", true, StatusInactive, false},
		{"both deny", false, StatusTerminated, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &Profile{IsActive: tc.active, EmploymentStatus: tc.status}
			err := p.CheckAccess()
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeAccountDisabled))
		})
	}
}

func TestRoleForPosition(t *testing.T) {
	assert.Equal(t, RoleAdmin, RoleForPosition("general_manager"))
	assert.Equal(t, RoleManager, RoleForPosition(" HR_Specialist "))
	assert.Equal(t, RoleEmployee, RoleForPosition("developer"))
	assert.Equal(t, RoleEmployee, RoleForPosition(""))
}

func TestPermissionsForRole(t *testing.T) {
	employee := PermissionsForRole(RoleEmployee)
	manager := PermissionsForRole(RoleManager)
	admin := PermissionsForRole(RoleAdmin)

	assert.Contains(t, employee, PermTrackTime)
	assert.NotContains(t, employee, PermViewTeam)
	assert.Contains(t, manager, PermViewTeam)
	assert.Contains(t, manager, PermTrackTime)
	assert.NotContains(t, manager, PermManageUsers)
	assert.Contains(t, admin, PermManageUsers)
	assert.Subset(t, admin, manager)
	assert.Empty(t, PermissionsForRole("contractor"))
}

func TestProfile_Clone(t *testing.T) {
	p := &Profile{
		ID:          "P1",
		Manager:     &ManagerSummary{Name: "Boss"},
		Permissions: []Permission{PermTrackTime},
	}
	c := p.Clone()
	c.Manager.Name = "Other"
	c.Permissions[0] = PermManageUsers

	assert.Equal(t, "Boss", p.Manager.Name)
	assert.Equal(t, PermTrackTime, p.Permissions[0])
	assert.True(t, c.HasPermission(PermManageUsers))
}
