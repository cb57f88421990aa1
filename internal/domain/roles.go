package domain

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
)

var (
	AllRoles     = []string{RoleAdmin, RoleManager, RoleCashier}
	ManagerRoles = []string{RoleAdmin, RoleManager}
	AdminRoles   = []string{RoleAdmin}
)

func IsValidRole(role string) bool {
	return IsAllowed(role, AllRoles)
}

// IsAllowed reports whether role is one of the roles a route accepts. An empty
// allow list admits any authenticated role.
func IsAllowed(role string, allowed []string) bool {
	if role == "" {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}
