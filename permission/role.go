package permission

import (
	"errors"
	"fmt"
	"strings"
)

// Role names one of the fixed account roles. The string value is the wire
// name stored on user records.
type Role string

const (
	RoleUser      Role = "ROLE_USER"
	RoleHR        Role = "ROLE_HR"
	RoleManager   Role = "ROLE_MANAGER"
	RoleAdmin     Role = "ROLE_ADMIN"
	RoleSuperUser Role = "ROLE_SUPER_USER"
)

// Authority strings granted by the roles below.
const (
	UserRead   = "user:read"
	UserCreate = "user:create"
	UserUpdate = "user:update"
	UserDelete = "user:delete"
)

const rolePrefix = "ROLE_"

// ErrUnknownRole is returned when a role name matches none of the fixed roles.
var ErrUnknownRole = errors.New("unknown role")

var roleOrder = []Role{RoleUser, RoleHR, RoleManager, RoleAdmin, RoleSuperUser}

var roleAuthorities = map[Role][]string{
	RoleUser:      {UserRead},
	RoleHR:        {UserRead, UserUpdate},
	RoleManager:   {UserRead, UserUpdate},
	RoleAdmin:     {UserRead, UserCreate, UserUpdate},
	RoleSuperUser: {UserRead, UserCreate, UserUpdate, UserDelete},
}

// ParseRole resolves a role name case-insensitively. Both "admin" and
// "ROLE_ADMIN" resolve to [RoleAdmin].
func ParseRole(name string) (Role, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	if normalized == "" {
		return "", fmt.Errorf("%w: empty role name", ErrUnknownRole)
	}
	if !strings.HasPrefix(normalized, rolePrefix) {
		normalized = rolePrefix + normalized
	}

	role := Role(normalized)
	if _, ok := roleAuthorities[role]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}
	return role, nil
}

// AuthoritiesFor returns the ordered authority list of the named role.
func AuthoritiesFor(name string) ([]string, error) {
	role, err := ParseRole(name)
	if err != nil {
		return nil, err
	}
	return role.Authorities(), nil
}

// Authorities returns a copy of the role's authority list, or nil for an
// unrecognized role value.
func (r Role) Authorities() []string {
	list, ok := roleAuthorities[r]
	if !ok {
		return nil
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// Valid reports whether r is one of the fixed roles.
func (r Role) Valid() bool {
	_, ok := roleAuthorities[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// Roles lists every role in declaration order.
func Roles() []Role {
	out := make([]Role, len(roleOrder))
	copy(out, roleOrder)
	return out
}
