package pgsql

import (
	"context"
	"errors"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	portsrepo "github.com/SscSPs/fare_collection_app/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes the ledger reacts to.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	Pool *pgxpool.Pool
}

var _ portsrepo.TransactionManager = (*BaseRepository)(nil)

// Begin starts a new database transaction
func (r *BaseRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to begin transaction", err)
	}
	return tx, nil
}

// Commit commits a transaction
func (r *BaseRepository) Commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewStorageError("failed to commit transaction", err)
	}
	return nil
}

// Rollback rolls back a transaction
func (r *BaseRepository) Rollback(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return apperrors.NewStorageError("failed to rollback transaction", err)
	}
	return nil
}

// translateError maps constraint violations to domain errors and everything else to a storage failure.
func translateError(msg string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return errors.Join(apperrors.ErrDuplicate, err)
		case pgForeignKeyViolation:
			return apperrors.NewValidationError(pgErr.ColumnName, "references an unknown "+referencedEntity(pgErr.ConstraintName))
		case pgCheckViolation:
			return apperrors.NewValidationError("", "violates "+pgErr.ConstraintName)
		}
	}
	return apperrors.NewStorageError(msg, err)
}

func referencedEntity(constraint string) string {
	switch constraint {
	case "transactions_conductor_id_fkey":
		return "conductor"
	case "transactions_route_id_fkey", "passengers_route_id_fkey":
		return "route"
	case "transactions_passenger_id_fkey":
		return "passenger"
	}
	return "record"
}
