package rbac

const (
	RoleViewer  = "viewer"
	RoleAnalyst = "analyst"
	RoleAdmin   = "admin"
)

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	RoleViewer: {
		"indicator:view",
		"city:view",
		"report:view",
	},
	RoleAnalyst: {
		"indicator:view",
		"city:view",
		"city:submit",
		"report:view",
		"report:export",
	},
	RoleAdmin: {
		"*", // everything, including city:list_all, city:delete and users:manage
	},
}

// ValidRole reports whether role has an entry in the default policy.
func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
