package rbac

type Role string
type Action string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

const (
	ActionRead         Action = "read"
	ActionManageStores Action = "manage_stores"
	ActionManageBanner Action = "manage_banner"
)

// Can reports whether a role may perform an action. Only admins mutate the
// directory; moderators are reserved for future soft-moderation duties and
// currently read like everyone else.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleModerator, RoleUser:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleModerator, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}
