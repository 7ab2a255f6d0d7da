package dto

import (
	"time"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// RegisterPassengerRequest defines the data needed to register a passenger.
type RegisterPassengerRequest struct {
	LegacyID       *string         `json:"legacyId"`
	FullName       string          `json:"fullName" binding:"required"`
	Ministry       string          `json:"ministry"`
	BoardingArea   string          `json:"boardingArea"`
	RouteID        *string         `json:"routeId"`
	OpeningBalance decimal.Decimal `json:"openingBalance" binding:"money_nonneg"`
}

// PassengerResponse defines the data returned for a passenger.
type PassengerResponse struct {
	PassengerID    string          `json:"id"`
	LegacyID       *string         `json:"legacyId,omitempty"`
	FullName       string          `json:"fullName"`
	Ministry       string          `json:"ministry"`
	BoardingArea   string          `json:"boardingArea"`
	RouteID        *string         `json:"routeId,omitempty"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	IsActive       bool            `json:"isActive"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ToPassengerResponse converts a domain.Passenger to PassengerResponse DTO.
func ToPassengerResponse(p *domain.Passenger) PassengerResponse {
	return PassengerResponse{
		PassengerID:    p.PassengerID,
		LegacyID:       p.LegacyID,
		FullName:       p.FullName,
		Ministry:       p.Ministry,
		BoardingArea:   p.BoardingArea,
		RouteID:        p.RouteID,
		CurrentBalance: p.CurrentBalance,
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
