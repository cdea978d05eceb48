package models

// Permission names an action the UI may offer.
type Permission string

const (
	PermViewOwnProfile   Permission = "view_own_profile"
	PermEditOwnProfile   Permission = "edit_own_profile"
	PermTrackTime        Permission = "track_time"
	PermViewOwnReviews   Permission = "view_own_reviews"
	PermViewOwnTasks     Permission = "view_own_tasks"
	PermViewTeam         Permission = "view_team"
	PermApproveTime      Permission = "approve_time"
	PermManageReviews    Permission = "manage_reviews"
	PermManageTasks      Permission = "manage_tasks"
	PermViewReports      Permission = "view_reports"
	PermExportReports    Permission = "export_reports"
	PermManageEmployees  Permission = "manage_employees"
	PermManageUsers      Permission = "manage_users"
	PermManageEmailLinks Permission = "manage_email_links"
	PermManageSettings   Permission = "manage_settings"
)

var (
	selfService = []Permission{
		PermViewOwnProfile,
		PermEditOwnProfile,
		PermTrackTime,
		PermViewOwnReviews,
		PermViewOwnTasks,
	}
	teamLevel = []Permission{
		PermViewTeam,
		PermApproveTime,
		PermManageReviews,
		PermManageTasks,
		PermViewReports,
	}
	administrative = []Permission{
		PermExportReports,
		PermManageEmployees,
		PermManageUsers,
		PermManageEmailLinks,
		PermManageSettings,
	}
)

// PermissionsForRole returns the permission set of a role. Each tier includes
// the tiers below it. Unknown roles get nothing.
func PermissionsForRole(role Role) []Permission {
	var out []Permission
	switch role {
	case RoleAdmin:
		out = append(out, administrative...)
		fallthrough
	case RoleManager:
		out = append(out, teamLevel...)
		fallthrough
	case RoleEmployee:
		out = append(out, selfService...)
	}
	return out
}
