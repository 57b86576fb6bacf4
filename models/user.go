package models

import "strings"

// Role is the caller's authority level. The zero value is not a valid role.
type Role uint8

const (
	RoleCustomer Role = iota + 1
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// RoleFromClaims collapses the token's role list into a single Role. Any "admin" entry wins;
// anything else is a customer.
func RoleFromClaims(roles []string) Role {
	for _, r := range roles {
		if strings.EqualFold(strings.TrimSpace(r), "admin") {
			return RoleAdmin
		}
	}
	return RoleCustomer
}

// Caller is the resolved identity behind a request.
type Caller struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	Role     Role   `json:"role"`
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

func (c Caller) Authenticated() bool { return c.UserID != "" && c.Role != 0 }
