package dto

import (
	"errors"
	"time"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// DeductFareRequest records a boarding. A missing fare uses the route's base fare.
type DeductFareRequest struct {
	OperationID string           `json:"operationId" binding:"omitempty,uuid"`
	FareAmount  *decimal.Decimal `json:"fareAmount" binding:"omitempty,money_nonneg"` // Omitted or zero uses the route base fare
	RouteID     string           `json:"routeId" binding:"required"`
}

// AddBalanceRequest records a top-up.
type AddBalanceRequest struct {
	OperationID string          `json:"operationId" binding:"omitempty,uuid"`
	Amount      decimal.Decimal `json:"amount" binding:"money"`
	RouteID     string          `json:"routeId"`
	Notes       string          `json:"notes"`
}

// AdjustBalanceRequest sets a balance to an explicit value.
type AdjustBalanceRequest struct {
	OperationID   string          `json:"operationId" binding:"omitempty,uuid"`
	TargetBalance decimal.Decimal `json:"targetBalance" binding:"money_nonneg"`
	RouteID       string          `json:"routeId"`
	Reason        string          `json:"reason" binding:"required"`
}

// TransferRouteRequest moves a passenger to another route.
type TransferRouteRequest struct {
	OperationID string `json:"operationId" binding:"omitempty,uuid"`
	NewRouteID  string `json:"newRouteId" binding:"required"`
}

// TransactionResponse defines the data returned for a ledger entry.
type TransactionResponse struct {
	TransactionID   string          `json:"id"`
	PassengerID     string          `json:"passengerId"`
	ConductorID     string          `json:"conductorId"`
	RouteID         string          `json:"routeId,omitempty"`
	TransactionType string          `json:"transactionType"`
	Amount          decimal.Decimal `json:"amount"`
	BalanceBefore   decimal.Decimal `json:"balanceBefore"`
	BalanceAfter    decimal.Decimal `json:"balanceAfter"`
	Notes           string          `json:"notes,omitempty"`
	IsOffline       bool            `json:"isOffline"`
	SyncStatus      string          `json:"syncStatus"`
	TransactionDate time.Time       `json:"transactionDate"`
	RecordedAt      *time.Time      `json:"recordedAt,omitempty"`
}

// MutationResponse is returned by every balance-changing endpoint.
type MutationResponse struct {
	Passenger    PassengerResponse    `json:"passenger"`
	Transaction  *TransactionResponse `json:"transaction,omitempty"`
	Replayed     bool                 `json:"replayed"`
	AuditWarning string               `json:"auditWarning,omitempty"`
}

// ToTransactionResponse converts a domain.Transaction to TransactionResponse DTO.
func ToTransactionResponse(txn *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID:   txn.TransactionID,
		PassengerID:     txn.PassengerID,
		ConductorID:     txn.ConductorID,
		RouteID:         txn.RouteID,
		TransactionType: string(txn.TransactionType),
		Amount:          txn.Amount,
		BalanceBefore:   txn.BalanceBefore,
		BalanceAfter:    txn.BalanceAfter,
		Notes:           txn.Notes,
		IsOffline:       txn.IsOffline,
		SyncStatus:      string(txn.SyncStatus),
		TransactionDate: txn.TransactionDate,
		RecordedAt:      txn.RecordedAt,
	}
}

// ToTransactionResponses converts a slice of domain.Transaction to []TransactionResponse.
func ToTransactionResponses(txns []domain.Transaction) []TransactionResponse {
	responses := make([]TransactionResponse, len(txns))
	for i, txn := range txns {
		responses[i] = ToTransactionResponse(&txn)
	}
	return responses
}

// ToMutationResponse converts a domain.MutationResult to MutationResponse DTO.
func ToMutationResponse(res *domain.MutationResult) MutationResponse {
	resp := MutationResponse{
		Passenger: ToPassengerResponse(&res.Passenger),
		Replayed:  res.Replayed,
	}
	if res.Transaction != nil {
		txn := ToTransactionResponse(res.Transaction)
		resp.Transaction = &txn
	}
	if res.AuditWarning != nil {
		resp.AuditWarning = res.AuditWarning.Error()
	}
	return resp
}

// FromTransactionResponse converts a TransactionResponse DTO back to a domain.Transaction.
func FromTransactionResponse(t TransactionResponse) domain.Transaction {
	return domain.Transaction{
		TransactionID:   t.TransactionID,
		PassengerID:     t.PassengerID,
		ConductorID:     t.ConductorID,
		RouteID:         t.RouteID,
		TransactionType: domain.TransactionType(t.TransactionType),
		Amount:          t.Amount,
		BalanceBefore:   t.BalanceBefore,
		BalanceAfter:    t.BalanceAfter,
		Notes:           t.Notes,
		IsOffline:       t.IsOffline,
		SyncStatus:      domain.SyncStatus(t.SyncStatus),
		TransactionDate: t.TransactionDate,
		RecordedAt:      t.RecordedAt,
	}
}

// FromMutationResponse converts a MutationResponse DTO back to a domain.MutationResult.
// An audit warning is carried over as an error value.
func FromMutationResponse(r MutationResponse) *domain.MutationResult {
	p := r.Passenger
	res := &domain.MutationResult{
		Passenger: domain.Passenger{
			PassengerID:    p.PassengerID,
			LegacyID:       p.LegacyID,
			FullName:       p.FullName,
			Ministry:       p.Ministry,
			BoardingArea:   p.BoardingArea,
			RouteID:        p.RouteID,
			CurrentBalance: p.CurrentBalance,
			IsActive:       p.IsActive,
			Timestamps:     domain.Timestamps{CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt},
		},
		Replayed: r.Replayed,
	}
	if r.Transaction != nil {
		txn := FromTransactionResponse(*r.Transaction)
		res.Transaction = &txn
	}
	if r.AuditWarning != "" {
		res.AuditWarning = errors.New(r.AuditWarning)
	}
	return res
}
