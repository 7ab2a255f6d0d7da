package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QueueStatus is the lifecycle state of an offline queue entry.
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

// IsValid checks if the queue status is valid.
func (s QueueStatus) IsValid() bool {
	switch s {
	case QueuePending, QueueProcessing, QueueCompleted, QueueFailed:
		return true
	}
	return false
}

// FailureKind explains why an entry stopped replaying.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureConflict  FailureKind = "conflict"  // Authoritative balance no longer covers the operation
	FailureRejected  FailureKind = "rejected"  // Ledger refused the operation as invalid
	FailureExhausted FailureKind = "exhausted" // Transient failures exceeded the attempt limit
)

// ReplayConflict is the balance discrepancy shown to the operator for a conflicting entry.
type ReplayConflict struct {
	ExpectedBalance *decimal.Decimal `json:"expectedBalance,omitempty"` // What the device believed when recording
	CurrentBalance  decimal.Decimal  `json:"currentBalance"`            // Authoritative balance at replay
	Required        decimal.Decimal  `json:"required"`
	Shortfall       decimal.Decimal  `json:"shortfall"`
}

// Discrepancy is the drift between the recorded and authoritative balances, when the former is known.
func (c ReplayConflict) Discrepancy() *decimal.Decimal {
	if c.ExpectedBalance == nil {
		return nil
	}
	d := c.ExpectedBalance.Sub(c.CurrentBalance)
	return &d
}

// QueueEntry is an operation captured while the ledger was unreachable.
type QueueEntry struct {
	EntryID       string          `json:"id"`       // Equals Payload.OperationID
	Sequence      int64           `json:"sequence"` // Strictly increasing in enqueue order
	OperationType OperationType   `json:"operationType"`
	Payload       Operation       `json:"payload"`
	Attempts      int             `json:"attempts"`
	LastAttempt   *time.Time      `json:"lastAttempt,omitempty"`
	NextAttemptAt *time.Time      `json:"nextAttemptAt,omitempty"`
	Status        QueueStatus     `json:"status"`
	FailureKind   FailureKind     `json:"failureKind,omitempty"`
	LastError     string          `json:"lastError,omitempty"`
	Conflict      *ReplayConflict `json:"conflict,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// DueAt reports whether the entry's backoff has elapsed at now.
func (e QueueEntry) DueAt(now time.Time) bool {
	return e.NextAttemptAt == nil || !e.NextAttemptAt.After(now)
}

// SyncReport summarizes one reconciliation cycle.
type SyncReport struct {
	StartedAt     time.Time    `json:"startedAt"`
	FinishedAt    time.Time    `json:"finishedAt"`
	Skipped       bool         `json:"skipped"`
	SkipReason    string       `json:"skipReason,omitempty"`
	Attempted     int          `json:"attempted"`
	Synced        int          `json:"synced"`
	Replayed      int          `json:"replayed"` // Synced entries the ledger had already applied
	Conflicts     int          `json:"conflicts"`
	Rejected      int          `json:"rejected"`
	Deferred      int          `json:"deferred"`
	Exhausted     int          `json:"exhausted"`
	AuditWarnings int          `json:"auditWarnings"`
	Failures      []QueueEntry `json:"failures,omitempty"` // Entries that moved to failed this cycle
}

// ExecutionOutcome is returned by an operation executor. Exactly one field is set.
type ExecutionOutcome struct {
	Result *MutationResult `json:"result,omitempty"` // Applied to the ledger
	Queued *QueueEntry     `json:"queued,omitempty"` // Captured for later replay
}
