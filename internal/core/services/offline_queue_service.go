package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portsrepo "github.com/SscSPs/fare_collection_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/platform/metrics"
)

var (
	ErrQueueEntryNotFound = fmt.Errorf("queue entry %w", apperrors.ErrNotFound)
)

const defaultQueueMaxLength = 10000

type offlineQueueService struct {
	BaseService
	queueRepo portsrepo.QueueRepositoryFacade
	maxLength int
	now       func() time.Time
}

// OfflineQueueOption is a functional option for configuring the offline queue service
type OfflineQueueOption func(*offlineQueueService)

// WithQueueMaxLength caps the number of stored entries. Zero or less keeps the default.
func WithQueueMaxLength(n int) OfflineQueueOption {
	return func(s *offlineQueueService) {
		if n > 0 {
			s.maxLength = n
		}
	}
}

// WithQueueClock sets the clock used to stamp captured operations.
func WithQueueClock(now func() time.Time) OfflineQueueOption {
	return func(s *offlineQueueService) {
		s.now = now
	}
}

// NewOfflineQueueService creates the device-side queue service.
func NewOfflineQueueService(queueRepo portsrepo.QueueRepositoryFacade, options ...OfflineQueueOption) portssvc.OfflineQueueSvc {
	svc := &offlineQueueService{
		queueRepo: queueRepo,
		maxLength: defaultQueueMaxLength,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.OfflineQueueSvc = (*offlineQueueService)(nil)

// Enqueue captures an operation for later replay. The operation is validated the
// same way the ledger would validate it online.
func (s *offlineQueueService) Enqueue(ctx context.Context, op domain.Operation) (*domain.QueueEntry, error) {
	now := s.now()
	op.IsOffline = true
	if op.RecordedAt.IsZero() {
		op.RecordedAt = now
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}

	entry, err := s.queueRepo.Enqueue(ctx, domain.QueueEntry{
		EntryID:       op.OperationID,
		OperationType: op.Type,
		Payload:       op,
		Status:        domain.QueuePending,
		CreatedAt:     now,
	}, s.maxLength)
	if err != nil {
		if errors.Is(err, apperrors.ErrQueueFull) {
			s.GetLogger(ctx).Warn("Offline queue is full, operation not captured",
				slog.String("operation_id", op.OperationID),
				slog.Int("max_length", s.maxLength))
		} else {
			s.LogError(ctx, err, "Failed to enqueue operation", slog.String("operation_id", op.OperationID))
		}
		return nil, err
	}

	metrics.RecordMutation(string(op.Type), metrics.OutcomeQueued)
	s.LogInfo(ctx, "Operation queued for replay",
		slog.String("entry_id", entry.EntryID),
		slog.Int64("sequence", entry.Sequence),
		slog.String("operation", string(op.Type)),
		slog.String("passenger_id", op.PassengerID))
	s.refreshDepth(ctx)
	return entry, nil
}

func (s *offlineQueueService) ListEntries(ctx context.Context, status domain.QueueStatus, limit int) ([]domain.QueueEntry, error) {
	if status != "" && !status.IsValid() {
		return nil, apperrors.NewValidationError("status", "unknown queue status '"+string(status)+"'")
	}
	return s.queueRepo.ListEntries(ctx, status, clampLimit(limit))
}

func (s *offlineQueueService) GetEntry(ctx context.Context, entryID string) (*domain.QueueEntry, error) {
	entry, err := s.queueRepo.FindEntry(ctx, entryID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, ErrQueueEntryNotFound
	}
	return entry, err
}

func (s *offlineQueueService) Depth(ctx context.Context) (map[domain.QueueStatus]int, error) {
	return s.queueRepo.CountEntries(ctx)
}

// RetryEntry only applies to failed entries. Attempts start over from zero.
func (s *offlineQueueService) RetryEntry(ctx context.Context, entryID string) error {
	if _, err := s.failedEntry(ctx, entryID); err != nil {
		return err
	}
	if err := s.queueRepo.ResetEntry(ctx, entryID); err != nil {
		return err
	}
	s.LogInfo(ctx, "Failed queue entry returned to pending", slog.String("entry_id", entryID))
	s.refreshDepth(ctx)
	return nil
}

func (s *offlineQueueService) DiscardEntry(ctx context.Context, entryID string) error {
	entry, err := s.failedEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if err := s.queueRepo.RemoveEntry(ctx, entryID); err != nil {
		return err
	}
	s.GetLogger(ctx).Warn("Failed queue entry discarded",
		slog.String("entry_id", entryID),
		slog.String("failure_kind", string(entry.FailureKind)),
		slog.String("last_error", entry.LastError))
	s.refreshDepth(ctx)
	return nil
}

func (s *offlineQueueService) failedEntry(ctx context.Context, entryID string) (*domain.QueueEntry, error) {
	entry, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != domain.QueueFailed {
		return nil, apperrors.NewValidationError("status", fmt.Sprintf("entry is %s, only failed entries can be changed", entry.Status))
	}
	return entry, nil
}

func (s *offlineQueueService) refreshDepth(ctx context.Context) {
	counts, err := s.queueRepo.CountEntries(ctx)
	if err != nil {
		s.LogDebug(ctx, "Could not refresh queue depth", slog.String("error", err.Error()))
		return
	}
	metrics.SetQueueDepth(depthLabels(counts))
}

func depthLabels(counts map[domain.QueueStatus]int) map[string]int {
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out
}
