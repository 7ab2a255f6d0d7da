package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceCheck is the raw material for verifying one passenger against the ledger.
type BalanceCheck struct {
	PassengerID              string
	SnapshotBalance          decimal.Decimal
	OpeningBalance           decimal.Decimal
	LatestTransactionID      *string          // nil when the passenger has no ledger entries
	LatestBalanceAfter       *decimal.Decimal
	UnbalancedTransactionIDs []string
}

// Drift compares the snapshot against the ledger and returns nil when they agree.
func (c BalanceCheck) Drift() *BalanceDrift {
	expected := c.OpeningBalance
	if c.LatestBalanceAfter != nil {
		expected = *c.LatestBalanceAfter
	}
	if c.SnapshotBalance.Equal(expected) && len(c.UnbalancedTransactionIDs) == 0 {
		return nil
	}
	drift := &BalanceDrift{
		PassengerID:              c.PassengerID,
		SnapshotBalance:          c.SnapshotBalance,
		LedgerBalance:            expected,
		UnbalancedTransactionIDs: c.UnbalancedTransactionIDs,
	}
	if c.LatestTransactionID != nil {
		drift.LatestTransactionID = *c.LatestTransactionID
	}
	return drift
}

// BalanceDrift reports a passenger whose snapshot disagrees with the ledger.
type BalanceDrift struct {
	PassengerID              string          `json:"passengerId"`
	SnapshotBalance          decimal.Decimal `json:"snapshotBalance"`
	LedgerBalance            decimal.Decimal `json:"ledgerBalance"`
	LatestTransactionID      string          `json:"latestTransactionId,omitempty"`
	UnbalancedTransactionIDs []string        `json:"unbalancedTransactionIds,omitempty"`
}

// VerificationReport is the result of a ledger verification run.
type VerificationReport struct {
	CheckedAt         time.Time      `json:"checkedAt"`
	PassengersChecked int            `json:"passengersChecked"`
	Drifts            []BalanceDrift `json:"drifts"`
}

// Clean reports whether no drift was found.
func (r VerificationReport) Clean() bool {
	return len(r.Drifts) == 0
}
