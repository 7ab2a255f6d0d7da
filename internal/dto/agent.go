package dto

import (
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ExecuteOperationRequest is an operation submitted to the conductor agent.
// The conductor is taken from the agent's configuration.
type ExecuteOperationRequest struct {
	OperationID     string           `json:"operationId" binding:"omitempty,uuid"`
	Type            string           `json:"type" binding:"required,oneof=deduct_fare add_balance adjust_balance transfer_route"`
	PassengerID     string           `json:"passengerId" binding:"required"`
	RouteID         string           `json:"routeId"`
	NewRouteID      string           `json:"newRouteId"`
	Amount          *decimal.Decimal `json:"amount" binding:"omitempty,money"`
	TargetBalance   *decimal.Decimal `json:"targetBalance" binding:"omitempty,money_nonneg"`
	Notes           string           `json:"notes"`
	ExpectedBalance *decimal.Decimal `json:"expectedBalance" binding:"omitempty,money_nonneg"`
}

// ToOperation converts the request to a domain.Operation for conductorID.
func (r ExecuteOperationRequest) ToOperation(conductorID string) domain.Operation {
	op := domain.Operation{
		OperationID:     r.OperationID,
		Type:            domain.OperationType(r.Type),
		PassengerID:     r.PassengerID,
		ConductorID:     conductorID,
		RouteID:         r.RouteID,
		NewRouteID:      r.NewRouteID,
		Notes:           r.Notes,
		ExpectedBalance: r.ExpectedBalance,
	}
	if r.Amount != nil {
		op.Amount = *r.Amount
	}
	if r.TargetBalance != nil {
		op.TargetBalance = *r.TargetBalance
	}
	return op
}

// ExecuteOperationResponse reports whether the agent applied or queued an operation.
type ExecuteOperationResponse struct {
	Status string             `json:"status"` // applied or queued
	Result *MutationResponse  `json:"result,omitempty"`
	Queued *domain.QueueEntry `json:"queued,omitempty"`
}

// QueueStatusQuery binds the filter of the queue listing.
type QueueStatusQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=pending processing failed"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}
