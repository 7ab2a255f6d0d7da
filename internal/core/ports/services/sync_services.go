package services

import (
	"context"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
)

// SyncStatusSvc moves offline ledger entries through pending, synced and failed
type SyncStatusSvc interface {
	MarkSynced(ctx context.Context, transactionID string) error
	MarkFailed(ctx context.Context, transactionID string) error
	MarkPending(ctx context.Context, transactionID string) error
}

// LedgerVerifierSvc detects drift between balance snapshots and the ledger. It never repairs.
type LedgerVerifierSvc interface {
	VerifyPassenger(ctx context.Context, passengerID string) (*domain.BalanceDrift, error)
	VerifyAll(ctx context.Context) (*domain.VerificationReport, error)
}
