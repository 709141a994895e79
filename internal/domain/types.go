package domain

import "strings"

// Role is the closed set of caller roles supplied by the auth service.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a claim value onto a Role. Unknown values are rejected.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleCustomer, "user", "penumpang":
		return RoleCustomer, true
	case RoleAgent:
		return RoleAgent, true
	case RoleAdmin, "owner":
		return RoleAdmin, true
	default:
		return "", false
	}
}

// RequestContext carries authenticated account info when available.
type RequestContext struct {
	AccountID string `json:"accountId"`
	Role      Role   `json:"role"`
}

// CanActFor reports whether the caller may act on accountID's resources.
func (rc RequestContext) CanActFor(accountID string) bool {
	return rc.Role == RoleAdmin || (rc.AccountID != "" && rc.AccountID == accountID)
}
