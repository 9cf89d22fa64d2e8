package domain

import (
	"errors"
	"strings"
)

// Role is the closed set of actors. It is fixed when the user signs up.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDonor     Role = "donor"
	RoleAgent     Role = "agent"
	RoleCollector Role = "collector"
)

var ErrUnknownRole = errors.New("domain: unknown role")

// Roles lists every role in display order.
var Roles = []Role{RoleAdmin, RoleDonor, RoleAgent, RoleCollector}

// ParseRole maps user input onto a Role, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleDonor:
		return RoleDonor, nil
	case RoleAgent:
		return RoleAgent, nil
	case RoleCollector:
		return RoleCollector, nil
	default:
		return "", ErrUnknownRole
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string { return string(r) }

// Home is the first page a role lands on once its session is verified.
func (r Role) Home() string {
	switch r {
	case RoleAdmin:
		return "/admin/donations/pending"
	case RoleDonor:
		return "/donor/donations/pending"
	case RoleAgent:
		return "/agent/collections/pending"
	case RoleCollector:
		return "/collector/donations/available"
	default:
		return "/dashboard"
	}
}
