package domain

import (
	"fmt"
	"strings"
)

// ============================================================
// Roles
// ============================================================

// Role is the closed set of roles the backend can assign to an email.
// The zero value is not a role: code that holds a Role it did not parse
// or resolve must treat it as "not yet authorized".
type Role int

const (
	roleUnknown Role = iota
	RoleAdmin
	RoleAgent
	RoleCustomer
)

// FallbackRole is the least-privileged role used when resolution fails.
const FallbackRole = RoleCustomer

// ParseRole maps a backend role string onto Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "agent":
		return RoleAgent, nil
	case "customer":
		return RoleCustomer, nil
	}
	return roleUnknown, fmt.Errorf("unknown role %q", s)
}

// Valid reports whether r is one of the three assignable roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAgent || r == RoleCustomer
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleAgent:
		return "agent"
	case RoleCustomer:
		return "customer"
	}
	return ""
}

// MarshalText encodes the role as its backend string.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot encode unresolved role")
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a backend role string.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// In reports whether r is one of roles.
func (r Role) In(roles []Role) bool {
	for _, candidate := range roles {
		if candidate == r {
			return true
		}
	}
	return false
}
