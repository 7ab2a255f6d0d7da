// Package sqlite stores the conductor agent's offline queue in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portsrepo "github.com/SscSPs/fare_collection_app/internal/core/ports/repositories"
	"github.com/SscSPs/fare_collection_app/internal/models"
	"github.com/SscSPs/fare_collection_app/internal/utils/mapping"
)

const schema = `
CREATE TABLE IF NOT EXISTS offline_queue (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id        TEXT NOT NULL UNIQUE,
	operation_type  TEXT NOT NULL,
	payload         TEXT NOT NULL,
	attempts        INTEGER NOT NULL DEFAULT 0,
	last_attempt    TEXT,
	next_attempt_at TEXT,
	status          TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
	failure_kind    TEXT NOT NULL DEFAULT '',
	last_error      TEXT NOT NULL DEFAULT '',
	conflict        TEXT,
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_offline_queue_status_seq ON offline_queue(status, seq);
`

const selectColumns = `seq, entry_id, operation_type, payload, attempts, last_attempt, next_attempt_at,
	status, failure_kind, last_error, conflict, created_at`

// OpenQueueStore opens (creating if needed) the queue database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func OpenQueueStore(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}
	// One connection keeps ":memory:" stores shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the queue schema if it does not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate queue database: %w", err)
	}
	return nil
}

// QueueRepository implements the offline queue on SQLite.
type QueueRepository struct {
	db *sqlx.DB
}

// NewQueueRepository creates a new queue repository.
func NewQueueRepository(db *sqlx.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

var _ portsrepo.QueueRepositoryFacade = (*QueueRepository)(nil)

func storageError(op string, err error) error {
	return apperrors.NewStorageError("offline queue: "+op, err)
}

func (r *QueueRepository) Enqueue(ctx context.Context, entry domain.QueueEntry, maxLength int) (*domain.QueueEntry, error) {
	row, err := mapping.ToModelQueueEntry(entry)
	if err != nil {
		return nil, apperrors.NewValidationError("payload", err.Error())
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageError("begin enqueue", err)
	}
	defer tx.Rollback()

	existing, err := findEntry(ctx, tx, entry.EntryID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if maxLength > 0 {
		var stored int
		if err := tx.GetContext(ctx, &stored, `SELECT COUNT(*) FROM offline_queue`); err != nil {
			return nil, storageError("count entries", err)
		}
		if stored >= maxLength {
			return nil, fmt.Errorf("%w: %d entries stored", apperrors.ErrQueueFull, stored)
		}
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO offline_queue (entry_id, operation_type, payload, attempts, status, failure_kind, last_error, created_at)
		VALUES (:entry_id, :operation_type, :payload, 0, 'pending', '', '', :created_at)
		ON CONFLICT (entry_id) DO NOTHING`, row)
	if err != nil {
		return nil, storageError("insert entry", err)
	}

	stored, err := findEntry(ctx, tx, entry.EntryID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, storageError("commit enqueue", err)
	}
	return stored, nil
}

func (r *QueueRepository) ListEntries(ctx context.Context, status domain.QueueStatus, limit int) ([]domain.QueueEntry, error) {
	query := `SELECT ` + selectColumns + ` FROM offline_queue`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY seq`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []models.QueueEntry
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, storageError("list entries", err)
	}

	entries := make([]domain.QueueEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := mapping.ToDomainQueueEntry(row)
		if err != nil {
			return nil, storageError("decode entry", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *QueueRepository) FindEntry(ctx context.Context, entryID string) (*domain.QueueEntry, error) {
	return findEntry(ctx, r.db, entryID)
}

func findEntry(ctx context.Context, q sqlx.QueryerContext, entryID string) (*domain.QueueEntry, error) {
	var row models.QueueEntry
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+selectColumns+` FROM offline_queue WHERE entry_id = ?`, entryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, storageError("find entry", err)
	}
	entry, err := mapping.ToDomainQueueEntry(row)
	if err != nil {
		return nil, storageError("decode entry", err)
	}
	return &entry, nil
}

func (r *QueueRepository) CountEntries(ctx context.Context) (map[domain.QueueStatus]int, error) {
	var rows []models.StatusCount
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM offline_queue GROUP BY status`); err != nil {
		return nil, storageError("count entries", err)
	}
	counts := map[domain.QueueStatus]int{
		domain.QueuePending:    0,
		domain.QueueProcessing: 0,
		domain.QueueFailed:     0,
	}
	for _, row := range rows {
		counts[domain.QueueStatus(row.Status)] = row.Count
	}
	return counts, nil
}

func (r *QueueRepository) MarkProcessing(ctx context.Context, entryID string, now time.Time) error {
	return r.transition(ctx, entryID, "mark processing", `
		UPDATE offline_queue
		SET status = 'processing', attempts = attempts + 1, last_attempt = ?
		WHERE entry_id = ? AND status = 'pending'`,
		mapping.FormatTime(now), entryID)
}

func (r *QueueRepository) MarkDeferred(ctx context.Context, entryID, lastError string, nextAttemptAt time.Time) error {
	return r.transition(ctx, entryID, "defer entry", `
		UPDATE offline_queue
		SET status = 'pending', last_error = ?, next_attempt_at = ?
		WHERE entry_id = ? AND status = 'processing'`,
		lastError, mapping.FormatTime(nextAttemptAt), entryID)
}

func (r *QueueRepository) MarkFailed(ctx context.Context, entryID string, kind domain.FailureKind, lastError string, conflict *domain.ReplayConflict) error {
	var conflictJSON sql.NullString
	if conflict != nil {
		m, err := mapping.ToModelQueueEntry(domain.QueueEntry{Conflict: conflict})
		if err != nil {
			return storageError("encode conflict", err)
		}
		conflictJSON = m.Conflict
	}
	return r.transition(ctx, entryID, "mark failed", `
		UPDATE offline_queue
		SET status = 'failed', failure_kind = ?, last_error = ?, conflict = ?, next_attempt_at = NULL
		WHERE entry_id = ? AND status IN ('pending', 'processing')`,
		string(kind), lastError, conflictJSON, entryID)
}

func (r *QueueRepository) ResetEntry(ctx context.Context, entryID string) error {
	return r.transition(ctx, entryID, "reset entry", `
		UPDATE offline_queue
		SET status = 'pending', attempts = 0, failure_kind = '', last_error = '', conflict = NULL, next_attempt_at = NULL
		WHERE entry_id = ? AND status = 'failed'`,
		entryID)
}

func (r *QueueRepository) RemoveEntry(ctx context.Context, entryID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE entry_id = ?`, entryID)
	if err != nil {
		return storageError("remove entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageError("remove entry", err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *QueueRepository) RecoverInFlight(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE offline_queue SET status = 'pending' WHERE status = 'processing'`)
	if err != nil {
		return 0, storageError("recover in-flight entries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageError("recover in-flight entries", err)
	}
	return int(n), nil
}

// transition runs a guarded status update and explains a no-op: a missing entry
// is ErrNotFound, an entry in the wrong state is a validation error.
func (r *QueueRepository) transition(ctx context.Context, entryID, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return storageError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageError(op, err)
	}
	if n > 0 {
		return nil
	}

	entry, err := r.FindEntry(ctx, entryID)
	if err != nil {
		return err
	}
	return apperrors.NewValidationError("status", fmt.Sprintf("cannot %s while entry is %s", op, entry.Status))
}
