package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
)

// PassengerReader defines read operations for passengers
type PassengerReader interface {
	// FindPassengerByID retrieves a passenger by ID, active or not
	FindPassengerByID(ctx context.Context, passengerID string) (*domain.Passenger, error)

	// FindPassengerByLegacyID retrieves a passenger by the identifier of the card system being replaced
	FindPassengerByLegacyID(ctx context.Context, legacyID string) (*domain.Passenger, error)
}

// PassengerWriter defines write operations for passengers that do not touch the balance
type PassengerWriter interface {
	// SavePassenger inserts a new passenger with its opening balance
	SavePassenger(ctx context.Context, passenger domain.Passenger) error

	// SetPassengerActive soft deletes or restores a passenger
	SetPassengerActive(ctx context.Context, passengerID string, active bool, now time.Time) error
}

// LedgerWriter defines the only operations that may change a balance or append to the ledger
type LedgerWriter interface {
	// RecordMutation locks the passenger, applies rule to the locked row and persists
	// the new balance together with one ledger entry built from draft. Nothing is written
	// if rule fails. When an entry with draft.TransactionID already exists it is returned
	// with Replayed set and nothing is written.
	RecordMutation(ctx context.Context, passengerID string, draft domain.TransactionDraft, rule domain.BalanceRule) (*domain.MutationResult, error)

	// UpdatePassengerRoute moves an active passenger to a new route without touching the balance
	UpdatePassengerRoute(ctx context.Context, passengerID, routeID string, now time.Time) (*domain.Passenger, error)

	// AppendTransferAudit writes a zero-amount transfer entry at the passenger's current balance
	AppendTransferAudit(ctx context.Context, passengerID string, draft domain.TransactionDraft) (*domain.Transaction, error)
}

// TransactionReader defines read operations for ledger entries
type TransactionReader interface {
	// FindTransactionByID retrieves a ledger entry by ID
	FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// ListTransactionsByPassenger returns a passenger's entries, newest first
	ListTransactionsByPassenger(ctx context.Context, passengerID string, limit int) ([]domain.Transaction, error)

	// ListTransactionsByConductor returns a conductor's entries, newest first
	ListTransactionsByConductor(ctx context.Context, conductorID string, limit int) ([]domain.Transaction, error)
}

// SyncStatusWriter defines updates of the sync status of offline entries
type SyncStatusWriter interface {
	// UpdateSyncStatus moves an entry from one status to another. It returns the status
	// after the call and whether this call changed it.
	UpdateSyncStatus(ctx context.Context, transactionID string, from, to domain.SyncStatus) (domain.SyncStatus, bool, error)
}

// LedgerAuditor defines the read model used to verify snapshots against the ledger
type LedgerAuditor interface {
	// ListBalanceChecks returns one check per passenger, or only passengerID when it is not empty
	ListBalanceChecks(ctx context.Context, passengerID string) ([]domain.BalanceCheck, error)
}

// LedgerRepositoryFacade combines all ledger repository interfaces
type LedgerRepositoryFacade interface {
	PassengerReader
	PassengerWriter
	LedgerWriter
	TransactionReader
	SyncStatusWriter
	LedgerAuditor
}
