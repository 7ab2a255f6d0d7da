package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
)

// QueueReader defines read operations for the offline queue
type QueueReader interface {
	// ListEntries returns entries in enqueue order. An empty status lists every entry.
	ListEntries(ctx context.Context, status domain.QueueStatus, limit int) ([]domain.QueueEntry, error)

	// FindEntry retrieves an entry by ID
	FindEntry(ctx context.Context, entryID string) (*domain.QueueEntry, error)

	// CountEntries returns the number of entries per status
	CountEntries(ctx context.Context) (map[domain.QueueStatus]int, error)
}

// QueueWriter defines the state transitions of offline queue entries
type QueueWriter interface {
	// Enqueue appends an entry unless the queue already holds maxLength entries.
	// Enqueueing an existing entry ID returns the stored entry unchanged.
	Enqueue(ctx context.Context, entry domain.QueueEntry, maxLength int) (*domain.QueueEntry, error)

	// MarkProcessing claims a pending entry and counts the attempt
	MarkProcessing(ctx context.Context, entryID string, now time.Time) error

	// MarkDeferred returns a processing entry to pending until nextAttemptAt
	MarkDeferred(ctx context.Context, entryID, lastError string, nextAttemptAt time.Time) error

	// MarkFailed parks an entry for operator attention
	MarkFailed(ctx context.Context, entryID string, kind domain.FailureKind, lastError string, conflict *domain.ReplayConflict) error

	// ResetEntry returns a failed entry to pending with its attempt count reset
	ResetEntry(ctx context.Context, entryID string) error

	// RemoveEntry deletes an entry
	RemoveEntry(ctx context.Context, entryID string) error

	// RecoverInFlight returns entries left processing by an interrupted cycle to pending
	RecoverInFlight(ctx context.Context) (int, error)
}

// QueueRepositoryFacade combines all offline queue repository interfaces
type QueueRepositoryFacade interface {
	QueueReader
	QueueWriter
}
