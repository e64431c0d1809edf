package domain

import (
	"strings"

	dErrors "vigil/pkg/domain-errors"
)

// Role is a platform role ordered by privilege.
// Invariant: unknown roles rank below every known role, so a malformed role
// can never satisfy a privilege check.
type Role string

const (
	RoleViewer     Role = "VIEWER"
	RoleResearcher Role = "RESEARCHER"
	RoleSteward    Role = "STEWARD"
	RoleAdmin      Role = "ADMIN"
)

// MinApproverRole is the lowest role allowed to resolve exports and grant overrides.
const MinApproverRole = RoleSteward

var roleRank = map[Role]int{
	RoleViewer:     1,
	RoleResearcher: 2,
	RoleSteward:    3,
	RoleAdmin:      4,
}

// ParseRole constructs a Role from external input (case-insensitive).
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

// IsValid checks the role is one of the known values.
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r carries at least the privilege of min.
func (r Role) AtLeast(min Role) bool {
	rank, ok := roleRank[r]
	if !ok {
		return false
	}
	return rank >= roleRank[min]
}

// CanApprove reports whether r may resolve exports and grant overrides.
func (r Role) CanApprove() bool {
	return r.AtLeast(MinApproverRole)
}

func (r Role) String() string {
	return string(r)
}
