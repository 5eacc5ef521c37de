package auth

const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleHR       = "hr"
	RoleAdmin    = "admin"
)

const (
	PermCoreRead         = "core.read"
	PermCoreWrite        = "core.write"
	PermEvaluationsRead  = "evaluations.read"
	PermEvaluationsWrite = "evaluations.write"
	PermEvaluationsAdmin = "evaluations.admin"
	PermInvitationsRead  = "invitations.read"
	PermInvitationsWrite = "invitations.write"
	PermReportsRead      = "reports.read"
	PermMetricsRead      = "metrics.read"
)

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermCoreRead,
		PermEvaluationsRead,
		PermEvaluationsWrite,
		PermInvitationsRead,
		PermInvitationsWrite,
		PermReportsRead,
	},
	RoleManager: {
		PermCoreRead,
		PermEvaluationsRead,
		PermEvaluationsWrite,
		PermInvitationsRead,
		PermInvitationsWrite,
		PermReportsRead,
	},
	RoleHR: {
		PermCoreRead,
		PermCoreWrite,
		PermEvaluationsRead,
		PermEvaluationsWrite,
		PermEvaluationsAdmin,
		PermInvitationsRead,
		PermInvitationsWrite,
		PermReportsRead,
	},
	RoleAdmin: {
		PermCoreRead,
		PermCoreWrite,
		PermEvaluationsRead,
		PermEvaluationsWrite,
		PermEvaluationsAdmin,
		PermInvitationsRead,
		PermInvitationsWrite,
		PermReportsRead,
		PermMetricsRead,
	},
}

// HasPermission resolves against the static role map; roles are few and
// fixed so no store round-trip is needed.
func HasPermission(role, permission string) bool {
	for _, candidate := range RolePermissions[role] {
		if candidate == permission {
			return true
		}
	}
	return false
}
