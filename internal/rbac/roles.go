package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAdministrator = "administrator"
	RoleSystemManager = "system_manager"
	RoleAgent         = "agent"
)

func IsAdministrator(role string) bool { return role == RoleAdministrator }

// Known reports whether role is one the API issues tokens for.
func Known(role string) bool {
	switch role {
	case RoleAdministrator, RoleSystemManager, RoleAgent:
		return true
	}
	return false
}
