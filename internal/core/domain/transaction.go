package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionBoarding   TransactionType = "boarding"
	TransactionTopup      TransactionType = "topup"
	TransactionAdjustment TransactionType = "adjustment"
	TransactionTransfer   TransactionType = "transfer"
)

// IsValid checks if the transaction type is valid.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionBoarding, TransactionTopup, TransactionAdjustment, TransactionTransfer:
		return true
	}
	return false
}

// SyncStatus tracks whether an offline-recorded entry has been acknowledged.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// CanTransitionTo reports whether moving from s to next is allowed.
// Status only moves forward, except an operator retry of a failed entry.
func (s SyncStatus) CanTransitionTo(next SyncStatus) bool {
	switch s {
	case SyncPending:
		return next == SyncSynced || next == SyncFailed
	case SyncFailed:
		return next == SyncPending
	}
	return false
}

// Transaction is one immutable ledger entry. BalanceAfter always equals BalanceBefore plus Amount.
type Transaction struct {
	TransactionID   string          `json:"id"`                   // Primary Key; equals the operation id
	PassengerID     string          `json:"passengerId"`          // FK -> Passenger
	ConductorID     string          `json:"conductorId"`          // FK -> Conductor
	RouteID         string          `json:"routeId,omitempty"`    // FK -> Route; empty for route-less adjustments
	TransactionType TransactionType `json:"transactionType"`
	Amount          decimal.Decimal `json:"amount"`               // Signed: negative for boardings, zero for transfers
	BalanceBefore   decimal.Decimal `json:"balanceBefore"`
	BalanceAfter    decimal.Decimal `json:"balanceAfter"`
	Notes           string          `json:"notes"`
	IsOffline       bool            `json:"isOffline"`
	SyncStatus      SyncStatus      `json:"syncStatus"`
	TransactionDate time.Time       `json:"transactionDate"`      // When the entry was applied to the ledger
	RecordedAt      *time.Time      `json:"recordedAt,omitempty"` // When an offline entry was captured on the device
	CreatedAt       time.Time       `json:"createdAt"`
}

// IsBalanced reports whether the entry satisfies BalanceAfter = BalanceBefore + Amount.
func (t Transaction) IsBalanced() bool {
	return t.BalanceBefore.Add(t.Amount).Equal(t.BalanceAfter)
}

// TransactionDraft is a ledger entry before the store derives its balances from the locked passenger row.
type TransactionDraft struct {
	TransactionID   string
	ConductorID     string
	RouteID         string
	TransactionType TransactionType
	Notes           string
	IsOffline       bool
	RecordedAt      *time.Time
}

// InitialSyncStatus is pending for offline entries until the device acknowledges them.
func (d TransactionDraft) InitialSyncStatus() SyncStatus {
	if d.IsOffline {
		return SyncPending
	}
	return SyncSynced
}

// BalanceRule computes the signed amount to apply given the freshly locked passenger.
// Returning an error aborts the mutation without writing anything.
type BalanceRule func(current Passenger) (decimal.Decimal, error)

// MutationResult is the outcome of a balance-changing operation.
type MutationResult struct {
	Passenger    Passenger    `json:"passenger"`
	Transaction  *Transaction `json:"transaction,omitempty"`
	Replayed     bool         `json:"replayed"` // True when the operation id was already applied
	AuditWarning error        `json:"-"`        // Set when a transfer succeeded but its audit entry was not written
}
