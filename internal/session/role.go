package session

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleTechnician Role = "technician"
	RoleCustomer   Role = "customer"
)

func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleTechnician:
		return RoleTechnician, nil
	case RoleCustomer:
		return RoleCustomer, nil
	default:
		return "", fmt.Errorf("%w %q (expected %s or %s)", ErrInvalidRole, raw, RoleTechnician, RoleCustomer)
	}
}

// Other returns the counterpart role.
func (r Role) Other() Role {
	if r == RoleTechnician {
		return RoleCustomer
	}
	return RoleTechnician
}
