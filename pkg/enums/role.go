package enums

// Role is the marketplace role carried in access tokens.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleDealer Role = "dealer"
	RoleAdmin  Role = "admin"
)

var validRoles = []Role{
	RoleFarmer,
	RoleDealer,
	RoleAdmin,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	return member(validRoles, r)
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	return parse(validRoles, "role", value)
}
