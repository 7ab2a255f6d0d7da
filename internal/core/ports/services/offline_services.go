package services

import (
	"context"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
)

// OperationExecutor runs an operation either against the ledger or into the offline queue.
// Online and offline execution share this one interface and the same validation.
type OperationExecutor interface {
	Execute(ctx context.Context, op domain.Operation) (*domain.ExecutionOutcome, error)
}

// LedgerGateway is the conductor device's path to the authoritative ledger.
type LedgerGateway interface {
	// Ping fails when the ledger cannot currently be reached
	Ping(ctx context.Context) error

	// Apply executes an operation, returning the original result if it was already applied
	Apply(ctx context.Context, op domain.Operation) (*domain.MutationResult, error)

	// ConfirmSynced acknowledges an offline entry after the device has processed it
	ConfirmSynced(ctx context.Context, transactionID string) error
}

// OfflineQueueSvc defines the operator-facing side of the offline queue
type OfflineQueueSvc interface {
	Enqueue(ctx context.Context, op domain.Operation) (*domain.QueueEntry, error)
	ListEntries(ctx context.Context, status domain.QueueStatus, limit int) ([]domain.QueueEntry, error)
	GetEntry(ctx context.Context, entryID string) (*domain.QueueEntry, error)
	Depth(ctx context.Context) (map[domain.QueueStatus]int, error)

	// RetryEntry returns a failed entry to pending with its attempt count reset
	RetryEntry(ctx context.Context, entryID string) error

	// DiscardEntry removes a failed entry without applying it
	DiscardEntry(ctx context.Context, entryID string) error
}

// ReconcilerSvc replays the offline queue against the ledger
type ReconcilerSvc interface {
	// Run replays on every tick and trigger until ctx is cancelled
	Run(ctx context.Context) error

	// Trigger requests a cycle as soon as possible, for example when connectivity returns
	Trigger()

	// SyncOnce runs one cycle now. Concurrent calls are skipped, not queued.
	SyncOnce(ctx context.Context) (*domain.SyncReport, error)
}
