package pgsql

import (
	"context"
	"errors"
	"time"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portsrepo "github.com/SscSPs/fare_collection_app/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const passengerColumns = `passenger_id, legacy_id, full_name, ministry, boarding_area, route_id,
	opening_balance, current_balance, is_active, created_at, updated_at`

const transactionColumns = `transaction_id, passenger_id, conductor_id, route_id, transaction_type,
	amount, balance_before, balance_after, notes, is_offline, sync_status,
	transaction_date, recorded_at, created_at`

// rowScanner is satisfied by pgx.Row and pgx.CollectableRow.
type rowScanner interface {
	Scan(dest ...any) error
}

type PgxLedgerRepository struct {
	BaseRepository
}

// newPgxLedgerRepository creates a new repository for passengers and their ledger.
func newPgxLedgerRepository(pool *pgxpool.Pool) *PgxLedgerRepository {
	return &PgxLedgerRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

// Ensure PgxLedgerRepository implements portsrepo.LedgerRepositoryFacade
var _ portsrepo.LedgerRepositoryFacade = (*PgxLedgerRepository)(nil)

// RecordMutation applies rule to the locked passenger row and writes the balance and the ledger entry in one transaction.
func (r *PgxLedgerRepository) RecordMutation(ctx context.Context, passengerID string, draft domain.TransactionDraft, rule domain.BalanceRule) (*domain.MutationResult, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	// Ignored once the transaction is committed
	defer r.Rollback(ctx, tx)

	// 1. Lock the passenger; concurrent mutations of the same passenger queue here
	passenger, err := r.lockPassenger(ctx, tx, passengerID)
	if err != nil {
		return nil, err
	}

	// 2. An operation that already produced an entry is answered from the ledger
	existing, err := r.findTransaction(ctx, tx, draft.TransactionID)
	if err == nil {
		return &domain.MutationResult{Passenger: *passenger, Transaction: existing, Replayed: true}, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	// 3. Business rules see the locked balance, never a stale read
	amount, err := rule(*passenger)
	if err != nil {
		return nil, err
	}

	// 4. Append the entry, then move the snapshot to its balance_after
	txn, err := r.insertTransaction(ctx, tx, *passenger, draft, amount)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE passengers SET current_balance = $2, updated_at = $3 WHERE passenger_id = $1`,
		passengerID, txn.BalanceAfter, txn.CreatedAt)
	if err != nil {
		return nil, translateError("failed to update passenger balance", err)
	}

	if err := r.Commit(ctx, tx); err != nil {
		return nil, err
	}

	passenger.CurrentBalance = txn.BalanceAfter
	passenger.UpdatedAt = txn.CreatedAt
	return &domain.MutationResult{Passenger: *passenger, Transaction: txn}, nil
}

// AppendTransferAudit writes a zero-amount entry at the passenger's locked balance.
func (r *PgxLedgerRepository) AppendTransferAudit(ctx context.Context, passengerID string, draft domain.TransactionDraft) (*domain.Transaction, error) {
	res, err := r.RecordMutation(ctx, passengerID, draft, func(domain.Passenger) (decimal.Decimal, error) {
		return decimal.Zero, nil
	})
	if err != nil {
		return nil, err
	}
	return res.Transaction, nil
}

// UpdatePassengerRoute moves an active passenger to routeID.
func (r *PgxLedgerRepository) UpdatePassengerRoute(ctx context.Context, passengerID, routeID string, now time.Time) (*domain.Passenger, error) {
	query := `
		UPDATE passengers SET route_id = $2, updated_at = $3
		WHERE passenger_id = $1 AND is_active
		RETURNING ` + passengerColumns
	passenger, err := scanPassenger(r.Pool.QueryRow(ctx, query, passengerID, routeID, now))
	if err == nil {
		return passenger, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, translateError("failed to update passenger route", err)
	}

	// Distinguish a missing passenger from an inactive one
	if _, findErr := r.FindPassengerByID(ctx, passengerID); findErr != nil {
		return nil, findErr
	}
	return nil, apperrors.NewValidationError("passengerId", "passenger is inactive")
}

// SavePassenger inserts a new passenger.
func (r *PgxLedgerRepository) SavePassenger(ctx context.Context, passenger domain.Passenger) error {
	query := `
		INSERT INTO passengers (` + passengerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err := r.Pool.Exec(ctx, query,
		passenger.PassengerID,
		passenger.LegacyID,
		passenger.FullName,
		passenger.Ministry,
		passenger.BoardingArea,
		passenger.RouteID,
		passenger.OpeningBalance,
		passenger.CurrentBalance,
		passenger.IsActive,
		passenger.CreatedAt,
		passenger.UpdatedAt,
	)
	return translateError("failed to insert passenger "+passenger.PassengerID, err)
}

// SetPassengerActive soft deletes or restores a passenger.
func (r *PgxLedgerRepository) SetPassengerActive(ctx context.Context, passengerID string, active bool, now time.Time) error {
	tag, err := r.Pool.Exec(ctx,
		`UPDATE passengers SET is_active = $2, updated_at = $3 WHERE passenger_id = $1`,
		passengerID, active, now)
	if err != nil {
		return translateError("failed to update passenger status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// FindPassengerByID retrieves a passenger by its ID.
func (r *PgxLedgerRepository) FindPassengerByID(ctx context.Context, passengerID string) (*domain.Passenger, error) {
	query := `SELECT ` + passengerColumns + ` FROM passengers WHERE passenger_id = $1`
	passenger, err := scanPassenger(r.Pool.QueryRow(ctx, query, passengerID))
	if err != nil {
		return nil, translateError("failed to find passenger "+passengerID, err)
	}
	return passenger, nil
}

// FindPassengerByLegacyID retrieves a passenger by its legacy card identifier.
func (r *PgxLedgerRepository) FindPassengerByLegacyID(ctx context.Context, legacyID string) (*domain.Passenger, error) {
	query := `SELECT ` + passengerColumns + ` FROM passengers WHERE legacy_id = $1`
	passenger, err := scanPassenger(r.Pool.QueryRow(ctx, query, legacyID))
	if err != nil {
		return nil, translateError("failed to find passenger by legacy id", err)
	}
	return passenger, nil
}

// FindTransactionByID retrieves a ledger entry by its ID.
func (r *PgxLedgerRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return r.findTransaction(ctx, r.Pool, transactionID)
}

// ListTransactionsByPassenger returns a passenger's entries, newest first.
func (r *PgxLedgerRepository) ListTransactionsByPassenger(ctx context.Context, passengerID string, limit int) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE passenger_id = $1
		ORDER BY transaction_date DESC, seq DESC
		LIMIT $2`
	return r.listTransactions(ctx, query, passengerID, limit)
}

// ListTransactionsByConductor returns a conductor's entries, newest first.
func (r *PgxLedgerRepository) ListTransactionsByConductor(ctx context.Context, conductorID string, limit int) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE conductor_id = $1
		ORDER BY transaction_date DESC, seq DESC
		LIMIT $2`
	return r.listTransactions(ctx, query, conductorID, limit)
}

// UpdateSyncStatus moves an entry from one sync status to another if it is currently in from.
func (r *PgxLedgerRepository) UpdateSyncStatus(ctx context.Context, transactionID string, from, to domain.SyncStatus) (domain.SyncStatus, bool, error) {
	var status string
	err := r.Pool.QueryRow(ctx,
		`UPDATE transactions SET sync_status = $3 WHERE transaction_id = $1 AND sync_status = $2 RETURNING sync_status`,
		transactionID, string(from), string(to)).Scan(&status)
	if err == nil {
		return domain.SyncStatus(status), true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, translateError("failed to update sync status", err)
	}

	err = r.Pool.QueryRow(ctx, `SELECT sync_status FROM transactions WHERE transaction_id = $1`, transactionID).Scan(&status)
	if err != nil {
		return "", false, translateError("failed to read sync status", err)
	}
	return domain.SyncStatus(status), false, nil
}

// ListBalanceChecks pairs every passenger snapshot with its latest ledger entry.
func (r *PgxLedgerRepository) ListBalanceChecks(ctx context.Context, passengerID string) ([]domain.BalanceCheck, error) {
	query := `
		SELECT p.passenger_id, p.current_balance, p.opening_balance,
		       lt.transaction_id, lt.balance_after,
		       COALESCE((
		           SELECT array_agg(t.transaction_id ORDER BY t.seq)
		           FROM transactions t
		           WHERE t.passenger_id = p.passenger_id
		             AND t.balance_after <> t.balance_before + t.amount
		       ), '{}') AS unbalanced
		FROM passengers p
		LEFT JOIN LATERAL (
		    SELECT t.transaction_id, t.balance_after
		    FROM transactions t
		    WHERE t.passenger_id = p.passenger_id
		    ORDER BY t.transaction_date DESC, t.seq DESC
		    LIMIT 1
		) lt ON TRUE
		WHERE $1 = '' OR p.passenger_id = $1
		ORDER BY p.passenger_id`

	rows, err := r.Pool.Query(ctx, query, passengerID)
	if err != nil {
		return nil, translateError("failed to query balance checks", err)
	}
	checks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.BalanceCheck, error) {
		var c domain.BalanceCheck
		err := row.Scan(&c.PassengerID, &c.SnapshotBalance, &c.OpeningBalance,
			&c.LatestTransactionID, &c.LatestBalanceAfter, &c.UnbalancedTransactionIDs)
		return c, err
	})
	if err != nil {
		return nil, translateError("failed to scan balance checks", err)
	}
	return checks, nil
}

func (r *PgxLedgerRepository) lockPassenger(ctx context.Context, tx pgx.Tx, passengerID string) (*domain.Passenger, error) {
	query := `SELECT ` + passengerColumns + ` FROM passengers WHERE passenger_id = $1 FOR UPDATE`
	passenger, err := scanPassenger(tx.QueryRow(ctx, query, passengerID))
	if err != nil {
		return nil, translateError("failed to lock passenger "+passengerID, err)
	}
	return passenger, nil
}

func (r *PgxLedgerRepository) findTransaction(ctx context.Context, q querier, transactionID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1`
	txn, err := scanTransaction(q.QueryRow(ctx, query, transactionID))
	if err != nil {
		return nil, translateError("failed to find transaction "+transactionID, err)
	}
	return txn, nil
}

// insertTransaction stamps the entry with the database clock after the row lock is held,
// so entry order by transaction_date follows commit order for each passenger.
func (r *PgxLedgerRepository) insertTransaction(ctx context.Context, tx pgx.Tx, passenger domain.Passenger, draft domain.TransactionDraft, amount decimal.Decimal) (*domain.Transaction, error) {
	txn := &domain.Transaction{
		TransactionID:   draft.TransactionID,
		PassengerID:     passenger.PassengerID,
		ConductorID:     draft.ConductorID,
		RouteID:         draft.RouteID,
		TransactionType: draft.TransactionType,
		Amount:          amount,
		BalanceBefore:   passenger.CurrentBalance,
		BalanceAfter:    passenger.CurrentBalance.Add(amount),
		Notes:           draft.Notes,
		IsOffline:       draft.IsOffline,
		SyncStatus:      draft.InitialSyncStatus(),
		RecordedAt:      draft.RecordedAt,
	}

	query := `
		WITH clock AS (SELECT clock_timestamp() AS ts)
		INSERT INTO transactions (transaction_id, passenger_id, conductor_id, route_id, transaction_type,
			amount, balance_before, balance_after, notes, is_offline, sync_status,
			transaction_date, recorded_at, created_at)
		SELECT $1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, clock.ts, $12, clock.ts
		FROM clock
		RETURNING transaction_date, created_at`

	err := tx.QueryRow(ctx, query,
		txn.TransactionID,
		txn.PassengerID,
		txn.ConductorID,
		txn.RouteID,
		string(txn.TransactionType),
		txn.Amount,
		txn.BalanceBefore,
		txn.BalanceAfter,
		txn.Notes,
		txn.IsOffline,
		string(txn.SyncStatus),
		txn.RecordedAt,
	).Scan(&txn.TransactionDate, &txn.CreatedAt)
	if err != nil {
		return nil, translateError("failed to insert transaction "+txn.TransactionID, err)
	}
	return txn, nil
}

func (r *PgxLedgerRepository) listTransactions(ctx context.Context, query, key string, limit int) ([]domain.Transaction, error) {
	rows, err := r.Pool.Query(ctx, query, key, limit)
	if err != nil {
		return nil, translateError("failed to list transactions", err)
	}
	txns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Transaction, error) {
		txn, err := scanTransaction(row)
		if err != nil {
			return domain.Transaction{}, err
		}
		return *txn, nil
	})
	if err != nil {
		return nil, translateError("failed to scan transactions", err)
	}
	return txns, nil
}

func scanPassenger(row rowScanner) (*domain.Passenger, error) {
	var p domain.Passenger
	err := row.Scan(
		&p.PassengerID,
		&p.LegacyID,
		&p.FullName,
		&p.Ministry,
		&p.BoardingArea,
		&p.RouteID,
		&p.OpeningBalance,
		&p.CurrentBalance,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t          domain.Transaction
		routeID    *string
		txnType    string
		syncStatus string
	)
	err := row.Scan(
		&t.TransactionID,
		&t.PassengerID,
		&t.ConductorID,
		&routeID,
		&txnType,
		&t.Amount,
		&t.BalanceBefore,
		&t.BalanceAfter,
		&t.Notes,
		&t.IsOffline,
		&syncStatus,
		&t.TransactionDate,
		&t.RecordedAt,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if routeID != nil {
		t.RouteID = *routeID
	}
	t.TransactionType = domain.TransactionType(txnType)
	t.SyncStatus = domain.SyncStatus(syncStatus)
	return &t, nil
}
