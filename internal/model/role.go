package model

// Roles understood by the authorization middleware.  Every profile is a
// citizen; admin must be granted explicitly in profile_roles.
const (
	RoleCitizen = "citizen"
	RoleAdmin   = "admin"
)

// ProfileRole maps a profile to one granted role.
//
// Fields:
//
//	ProfileID – owner of the grant.
//	Role      – granted role name.
type ProfileRole struct {
	ProfileID uint64 // profile_roles.profile_id
	Role      string // profile_roles.role
}
