package models

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
)

// ParseRole maps gateway role names onto the three roles the engine knows.
// venueOwner and eventPlanner both manage resources and collapse into RoleOwner.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "customer", "user":
		return RoleCustomer, nil
	case "owner", "venueowner", "venue_owner", "eventplanner", "event_planner":
		return RoleOwner, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Requester is the authenticated caller of a booking operation.
type Requester struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

func (r Requester) IsAdmin() bool {
	return r.Role == RoleAdmin
}

// CanActFor reports whether the requester may act on something owned by ownerID.
func (r Requester) CanActFor(ownerID int64) bool {
	return r.IsAdmin() || (r.UserID != 0 && r.UserID == ownerID)
}
