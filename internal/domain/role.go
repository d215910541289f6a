package domain

import "fmt"

type Role string

const (
	RoleUser      Role = "user"
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
)

var AllRoles = []Role{RoleUser, RoleDeveloper, RoleAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleDeveloper, RoleAdmin:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", Validation(fmt.Sprintf("invalid role %q", s))
	}
	return r, nil
}
