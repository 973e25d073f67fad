package enums

// UserRole is the marketplace role carried in access tokens.
type UserRole string

const (
	UserRoleBuyer  UserRole = "buyer"
	UserRoleSeller UserRole = "seller"
	UserRoleAdmin  UserRole = "admin"
)

var userRoles = newClosedSet("user role",
	UserRoleBuyer,
	UserRoleSeller,
	UserRoleAdmin,
)

func (u UserRole) String() string { return string(u) }

func (u UserRole) IsValid() bool { return userRoles.has(u) }

func ParseUserRole(value string) (UserRole, error) {
	return userRoles.parse(value)
}
