package domain

import "github.com/shopspring/decimal"

// Passenger is the balance-holding entity. CurrentBalance is a snapshot of the ledger.
type Passenger struct {
	PassengerID    string          `json:"id"`                 // Primary Key (UUID)
	LegacyID       *string         `json:"legacyId,omitempty"` // Identifier from the card system being replaced
	FullName       string          `json:"fullName"`
	Ministry       string          `json:"ministry"`
	BoardingArea   string          `json:"boardingArea"`
	RouteID        *string         `json:"routeId,omitempty"` // Current route, changed by transfers
	OpeningBalance decimal.Decimal `json:"openingBalance"`    // Balance set at registration
	CurrentBalance decimal.Decimal `json:"currentBalance"`    // Never negative
	IsActive       bool            `json:"isActive"`          // Inactive passengers are soft deleted
	Timestamps
}
