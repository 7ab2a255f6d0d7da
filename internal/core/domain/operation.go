package domain

import (
	"strings"
	"time"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationType names a balance-changing operation.
type OperationType string

const (
	OpDeductFare    OperationType = "deduct_fare"
	OpAddBalance    OperationType = "add_balance"
	OpAdjustBalance OperationType = "adjust_balance"
	OpTransferRoute OperationType = "transfer_route"
)

// TransactionType returns the ledger entry type the operation produces.
func (o OperationType) TransactionType() TransactionType {
	switch o {
	case OpDeductFare:
		return TransactionBoarding
	case OpAddBalance:
		return TransactionTopup
	case OpAdjustBalance:
		return TransactionAdjustment
	case OpTransferRoute:
		return TransactionTransfer
	}
	return ""
}

// Operation is a serializable balance mutation. The same value is executed online
// or queued offline and replayed later; OperationID is its idempotency key and
// becomes the id of the resulting Transaction.
type Operation struct {
	OperationID     string           `json:"operationId"`
	Type            OperationType    `json:"type"`
	PassengerID     string           `json:"passengerId"`
	ConductorID     string           `json:"conductorId"`
	RouteID         string           `json:"routeId,omitempty"`
	NewRouteID      string           `json:"newRouteId,omitempty"`      // transfer_route only
	Amount          decimal.Decimal  `json:"amount"`                    // Fare or top-up amount
	TargetBalance   decimal.Decimal  `json:"targetBalance"`             // adjust_balance only
	Notes           string           `json:"notes,omitempty"`           // Required reason for adjustments
	ExpectedBalance *decimal.Decimal `json:"expectedBalance,omitempty"` // Device's last known balance when recorded
	IsOffline       bool             `json:"isOffline"`
	RecordedAt      time.Time        `json:"recordedAt"`
}

// Validate checks the operation's shape. It does not consult the ledger.
func (op Operation) Validate() error {
	if _, err := uuid.Parse(op.OperationID); err != nil {
		return apperrors.NewValidationError("operationId", "must be a UUID")
	}
	if strings.TrimSpace(op.PassengerID) == "" {
		return apperrors.NewValidationError("passengerId", "is required")
	}
	if strings.TrimSpace(op.ConductorID) == "" {
		return apperrors.NewValidationError("conductorId", "is required")
	}
	if op.ExpectedBalance != nil && op.ExpectedBalance.IsNegative() {
		return apperrors.NewValidationError("expectedBalance", "cannot be negative")
	}

	switch op.Type {
	case OpDeductFare:
		if strings.TrimSpace(op.RouteID) == "" {
			return apperrors.NewValidationError("routeId", "is required")
		}
		return validatePositiveMoney("fareAmount", op.Amount)
	case OpAddBalance:
		return validatePositiveMoney("amount", op.Amount)
	case OpAdjustBalance:
		if op.TargetBalance.IsNegative() {
			return apperrors.NewValidationError("targetBalance", "cannot be negative")
		}
		if !HasMoneyScale(op.TargetBalance) {
			return apperrors.NewValidationError("targetBalance", "must have at most 2 decimal places")
		}
		if strings.TrimSpace(op.Notes) == "" {
			return apperrors.NewValidationError("reason", "is required for balance adjustments")
		}
		return nil
	case OpTransferRoute:
		if strings.TrimSpace(op.NewRouteID) == "" {
			return apperrors.NewValidationError("newRouteId", "is required")
		}
		return nil
	}
	return apperrors.NewValidationError("type", "unknown operation type '"+string(op.Type)+"'")
}

func validatePositiveMoney(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.NewValidationError(field, "must be greater than zero")
	}
	if !HasMoneyScale(amount) {
		return apperrors.NewValidationError(field, "must have at most 2 decimal places")
	}
	return nil
}

// TargetRouteID is the route recorded on the resulting ledger entry.
func (op Operation) TargetRouteID() string {
	if op.Type == OpTransferRoute {
		return op.NewRouteID
	}
	return op.RouteID
}

// Draft builds the ledger entry skeleton for the operation.
func (op Operation) Draft() TransactionDraft {
	draft := TransactionDraft{
		TransactionID:   op.OperationID,
		ConductorID:     op.ConductorID,
		RouteID:         op.TargetRouteID(),
		TransactionType: op.Type.TransactionType(),
		Notes:           strings.TrimSpace(op.Notes),
		IsOffline:       op.IsOffline,
	}
	if op.IsOffline && !op.RecordedAt.IsZero() {
		recordedAt := op.RecordedAt.UTC()
		draft.RecordedAt = &recordedAt
	}
	return draft
}
