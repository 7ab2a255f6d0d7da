package domain

import "github.com/shopspring/decimal"

// Route is reference data for a bus route.
type Route struct {
	RouteID  string          `json:"id"`
	Name     string          `json:"name"`
	BaseFare decimal.Decimal `json:"baseFare"` // Default fare when a boarding omits one
	IsActive bool            `json:"isActive"`
}

// Role is the authority level of an authenticated caller.
type Role string

const (
	RoleConductor Role = "conductor"
	RoleAdmin     Role = "admin"
)

// IsValid checks if the role is one the ledger understands.
func (r Role) IsValid() bool {
	return r == RoleConductor || r == RoleAdmin
}

// Conductor is the operator who records boardings and top-ups.
type Conductor struct {
	ConductorID     string  `json:"id"`
	FullName        string  `json:"fullName"`
	AssignedRouteID *string `json:"assignedRouteId,omitempty"` // nil means the conductor may work any route
	IsActive        bool    `json:"isActive"`
}

// CanOperate reports whether the conductor may record boardings on routeID.
func (c Conductor) CanOperate(routeID string) bool {
	return c.AssignedRouteID == nil || *c.AssignedRouteID == routeID
}
