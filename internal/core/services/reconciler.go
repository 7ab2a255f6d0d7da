package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portsrepo "github.com/SscSPs/fare_collection_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/platform/metrics"
)

// ReconcilerConfig controls replay cadence and retry behaviour.
type ReconcilerConfig struct {
	Interval    time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	PingTimeout time.Duration
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.BackoffMax < c.BackoffBase {
		c.BackoffMax = 5 * time.Minute
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 3 * time.Second
	}
	return c
}

// Backoff returns the wait after the given number of failed attempts.
func (c ReconcilerConfig) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := c.BackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= c.BackoffMax || d <= 0 {
			return c.BackoffMax
		}
	}
	if d > c.BackoffMax {
		return c.BackoffMax
	}
	return d
}

const (
	skipAlreadyRunning = "sync already running"
	skipUnreachable    = "ledger unreachable"
)

// reconciler replays queued operations in enqueue order. An entry that fails
// transiently blocks the entries behind it until its backoff elapses.
type reconciler struct {
	BaseService
	queueRepo portsrepo.QueueRepositoryFacade
	gateway   portssvc.LedgerGateway
	cfg       ReconcilerConfig
	now       func() time.Time

	mu          sync.Mutex
	trigger     chan struct{}
	unreachable bool // guarded by mu
}

// ReconcilerOption is a functional option for configuring the reconciler
type ReconcilerOption func(*reconciler)

// WithReconcilerClock sets the clock used for attempt timestamps and backoff.
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *reconciler) {
		r.now = now
	}
}

// NewReconciler creates a new reconciler.
func NewReconciler(queueRepo portsrepo.QueueRepositoryFacade, gateway portssvc.LedgerGateway, cfg ReconcilerConfig, options ...ReconcilerOption) portssvc.ReconcilerSvc {
	r := &reconciler{
		queueRepo: queueRepo,
		gateway:   gateway,
		cfg:       cfg.withDefaults(),
		now:       func() time.Time { return time.Now().UTC() },
		trigger:   make(chan struct{}, 1),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

var _ portssvc.ReconcilerSvc = (*reconciler)(nil)

// Run recovers entries interrupted by a crash, then replays on every tick and trigger.
func (r *reconciler) Run(ctx context.Context) error {
	recovered, err := r.queueRepo.RecoverInFlight(ctx)
	if err != nil {
		r.LogError(ctx, err, "Failed to recover in-flight queue entries")
		return err
	}
	if recovered > 0 {
		r.GetLogger(ctx).Warn("Recovered queue entries left processing by an interrupted sync", slog.Int("entries", recovered))
	}
	r.refreshDepth(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	// Set only while the ledger is unreachable and work is waiting
	var probe <-chan time.Time

	r.LogInfo(ctx, "Reconciler started", slog.Duration("interval", r.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			r.LogInfo(ctx, "Reconciler stopped")
			return nil
		case <-ticker.C:
		case <-r.trigger:
		case <-probe:
		}
		report, err := r.SyncOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.LogError(ctx, err, "Sync cycle failed")
		}
		probe = nil
		if report != nil && report.SkipReason == skipUnreachable && r.hasPending(ctx) {
			probe = time.After(r.cfg.BackoffBase)
		}
	}
}

func (r *reconciler) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

func (r *reconciler) SyncOnce(ctx context.Context) (*domain.SyncReport, error) {
	report := &domain.SyncReport{StartedAt: r.now()}
	if !r.mu.TryLock() {
		report.Skipped = true
		report.SkipReason = skipAlreadyRunning
		report.FinishedAt = r.now()
		metrics.RecordSyncCycle("skipped")
		return report, nil
	}
	defer r.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(ctx, r.cfg.PingTimeout)
	err := r.gateway.Ping(pingCtx)
	cancel()
	if err != nil {
		if !r.unreachable {
			r.GetLogger(ctx).Warn("Ledger unreachable, holding queued operations", slog.String("error", err.Error()))
		}
		r.unreachable = true
		report.Skipped = true
		report.SkipReason = skipUnreachable
		report.FinishedAt = r.now()
		metrics.RecordSyncCycle("unreachable")
		return report, nil
	}

	if r.unreachable {
		r.LogInfo(ctx, "Ledger reachable again, replaying queue")
		r.unreachable = false
	}

	err = r.drain(ctx, report)
	report.FinishedAt = r.now()
	r.refreshDepth(ctx)

	switch {
	case err != nil:
		metrics.RecordSyncCycle("error")
	case report.Deferred > 0:
		metrics.RecordSyncCycle("partial")
	default:
		metrics.RecordSyncCycle("completed")
	}

	if report.Attempted > 0 {
		r.LogInfo(ctx, "Sync cycle finished",
			slog.Int("attempted", report.Attempted),
			slog.Int("synced", report.Synced),
			slog.Int("replayed", report.Replayed),
			slog.Int("conflicts", report.Conflicts),
			slog.Int("rejected", report.Rejected),
			slog.Int("deferred", report.Deferred),
			slog.Int("exhausted", report.Exhausted))
	}
	return report, err
}

// drain processes the head of the pending queue until it is empty, not yet due,
// or blocked by a transient failure.
func (r *reconciler) drain(ctx context.Context, report *domain.SyncReport) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		head, err := r.queueRepo.ListEntries(ctx, domain.QueuePending, 1)
		if err != nil {
			return err
		}
		if len(head) == 0 || !head[0].DueAt(r.now()) {
			return nil
		}

		report.Attempted++
		proceed, err := r.replay(ctx, head[0], report)
		if err != nil || !proceed {
			return err
		}
	}
}

// replay applies one entry and records its outcome. It reports whether the
// cycle may continue with the next entry.
func (r *reconciler) replay(ctx context.Context, entry domain.QueueEntry, report *domain.SyncReport) (bool, error) {
	now := r.now()
	if err := r.queueRepo.MarkProcessing(ctx, entry.EntryID, now); err != nil {
		return false, err
	}
	entry.Attempts++
	entry.LastAttempt = &now
	entry.Status = domain.QueueProcessing

	logger := r.GetLogger(ctx).With(
		slog.String("entry_id", entry.EntryID),
		slog.Int64("sequence", entry.Sequence),
		slog.Int("attempt", entry.Attempts))

	op := entry.Payload
	op.OperationID = entry.EntryID
	op.IsOffline = true

	res, err := r.gateway.Apply(ctx, op)
	if err == nil && res.Transaction != nil {
		err = r.gateway.ConfirmSynced(ctx, res.Transaction.TransactionID)
		if err != nil && !apperrors.IsRetryable(err) {
			logger.Warn("Ledger refused sync acknowledgement", slog.String("error", err.Error()))
			err = nil
		}
	}

	switch {
	case err == nil:
		if rmErr := r.queueRepo.RemoveEntry(ctx, entry.EntryID); rmErr != nil {
			return false, rmErr
		}
		report.Synced++
		if res.Replayed {
			report.Replayed++
		}
		if res.AuditWarning != nil {
			report.AuditWarnings++
			logger.Warn("Replayed transfer has no audit entry", slog.String("warning", res.AuditWarning.Error()))
		}
		metrics.RecordReplay("synced")
		logger.Info("Queued operation synced", slog.Bool("already_applied", res.Replayed))
		return true, nil

	case errors.Is(err, apperrors.ErrInsufficientBalance):
		conflict, conflictErr := replayConflict(entry, err)
		report.Conflicts++
		metrics.RecordReplay("conflict")
		logger.Warn("Queued operation conflicts with ledger balance", slog.String("error", conflictErr.Error()))
		return r.fail(ctx, entry, domain.FailureConflict, conflictErr.Error(), conflict, report)

	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrDuplicate),
		errors.Is(err, apperrors.ErrForbidden) && op.Type == domain.OpAdjustBalance:
		// The agent's token does not change between attempts
		report.Rejected++
		metrics.RecordReplay("rejected")
		logger.Warn("Queued operation rejected by ledger", slog.String("error", err.Error()))
		return r.fail(ctx, entry, domain.FailureRejected, err.Error(), nil, report)
	}

	if entry.Attempts >= r.cfg.MaxAttempts {
		report.Exhausted++
		metrics.RecordReplay("exhausted")
		logger.Error("Queued operation exhausted its retries", slog.String("error", err.Error()))
		_, failErr := r.fail(ctx, entry, domain.FailureExhausted, err.Error(), nil, report)
		return false, failErr
	}

	next := now.Add(r.cfg.Backoff(entry.Attempts))
	if deferErr := r.queueRepo.MarkDeferred(ctx, entry.EntryID, err.Error(), next); deferErr != nil {
		return false, deferErr
	}
	report.Deferred++
	metrics.RecordReplay("deferred")
	logger.Warn("Queued operation deferred", slog.Time("next_attempt_at", next), slog.String("error", err.Error()))
	return false, nil
}

func (r *reconciler) fail(ctx context.Context, entry domain.QueueEntry, kind domain.FailureKind, lastError string, conflict *domain.ReplayConflict, report *domain.SyncReport) (bool, error) {
	if err := r.queueRepo.MarkFailed(ctx, entry.EntryID, kind, lastError, conflict); err != nil {
		return false, err
	}
	entry.Status = domain.QueueFailed
	entry.FailureKind = kind
	entry.LastError = lastError
	entry.Conflict = conflict
	report.Failures = append(report.Failures, entry)
	return true, nil
}

func replayConflict(entry domain.QueueEntry, cause error) (*domain.ReplayConflict, error) {
	conflictErr := &apperrors.ConflictError{
		EntryID:         entry.EntryID,
		PassengerID:     entry.Payload.PassengerID,
		ExpectedBalance: entry.Payload.ExpectedBalance,
		Cause:           cause,
	}
	var insufficient *apperrors.InsufficientBalanceError
	if !errors.As(cause, &insufficient) {
		return nil, conflictErr
	}
	current := insufficient.Balance
	conflictErr.CurrentBalance = &current
	return &domain.ReplayConflict{
		ExpectedBalance: entry.Payload.ExpectedBalance,
		CurrentBalance:  insufficient.Balance,
		Required:        insufficient.Required,
		Shortfall:       insufficient.Shortfall(),
	}, conflictErr
}

func (r *reconciler) hasPending(ctx context.Context) bool {
	counts, err := r.queueRepo.CountEntries(ctx)
	return err == nil && counts[domain.QueuePending] > 0
}

func (r *reconciler) refreshDepth(ctx context.Context) {
	counts, err := r.queueRepo.CountEntries(ctx)
	if err != nil {
		r.LogDebug(ctx, "Could not refresh queue depth", slog.String("error", err.Error()))
		return
	}
	metrics.SetQueueDepth(depthLabels(counts))
}
