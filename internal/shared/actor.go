package shared

import (
	"fmt"
	"strings"
	"time"
)

// Role tags the capability tier of an actor.
type Role string

const (
	RoleUser       Role = "user"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// AccountStatus captures the registration lifecycle of an actor.
type AccountStatus string

const (
	AccountPending AccountStatus = "pending"
	AccountActive  AccountStatus = "active"
	AccountDenied  AccountStatus = "denied"
)

// Actor is the resolved identity behind a request.
type Actor struct {
	ID            int64         `json:"id"`
	Email         string        `json:"email"`
	Name          string        `json:"name"`
	Role          Role          `json:"role"`
	AccountStatus AccountStatus `json:"account_status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsActive reports whether the account has been approved.
func (a Actor) IsActive() bool {
	return a.AccountStatus == AccountActive
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalises and validates a role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("role %q: %w", raw, ErrInvalidInput)
	}
	return role, nil
}

// Valid reports whether s is a known account status.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountPending, AccountActive, AccountDenied:
		return true
	}
	return false
}
