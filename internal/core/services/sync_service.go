package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portsrepo "github.com/SscSPs/fare_collection_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
)

var (
	ErrTransactionNotFound = fmt.Errorf("transaction %w", apperrors.ErrNotFound)
)

type syncStatusService struct {
	BaseService
	ledgerRepo portsrepo.SyncStatusWriter
}

// NewSyncStatusService creates a service that moves offline entries between sync states.
func NewSyncStatusService(ledgerRepo portsrepo.SyncStatusWriter) portssvc.SyncStatusSvc {
	return &syncStatusService{ledgerRepo: ledgerRepo}
}

var _ portssvc.SyncStatusSvc = (*syncStatusService)(nil)

// MarkSynced is idempotent: acknowledging an already synced entry succeeds.
func (s *syncStatusService) MarkSynced(ctx context.Context, transactionID string) error {
	return s.transition(ctx, transactionID, domain.SyncPending, domain.SyncSynced)
}

func (s *syncStatusService) MarkFailed(ctx context.Context, transactionID string) error {
	return s.transition(ctx, transactionID, domain.SyncPending, domain.SyncFailed)
}

// MarkPending is the operator retry of a failed entry.
func (s *syncStatusService) MarkPending(ctx context.Context, transactionID string) error {
	return s.transition(ctx, transactionID, domain.SyncFailed, domain.SyncPending)
}

func (s *syncStatusService) transition(ctx context.Context, transactionID string, from, to domain.SyncStatus) error {
	current, changed, err := s.ledgerRepo.UpdateSyncStatus(ctx, transactionID, from, to)
	if errors.Is(err, apperrors.ErrNotFound) {
		return ErrTransactionNotFound
	}
	if err != nil {
		s.LogError(ctx, err, "Failed to update sync status", slog.String("transaction_id", transactionID))
		return err
	}
	if changed || current == to {
		if changed {
			s.LogInfo(ctx, "Sync status updated",
				slog.String("transaction_id", transactionID),
				slog.String("from", string(from)),
				slog.String("to", string(to)))
		}
		return nil
	}
	return apperrors.NewValidationError("syncStatus", fmt.Sprintf("cannot move from %s to %s", current, to))
}
