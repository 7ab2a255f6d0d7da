package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
)

// directExecutor always applies against the ledger.
type directExecutor struct {
	gateway portssvc.LedgerGateway
}

// NewDirectExecutor creates an executor that only runs operations online.
func NewDirectExecutor(gateway portssvc.LedgerGateway) portssvc.OperationExecutor {
	return &directExecutor{gateway: gateway}
}

func (e *directExecutor) Execute(ctx context.Context, op domain.Operation) (*domain.ExecutionOutcome, error) {
	op.IsOffline = false
	res, err := e.gateway.Apply(ctx, op)
	if err != nil {
		return nil, err
	}
	return &domain.ExecutionOutcome{Result: res}, nil
}

// queueExecutor always captures operations for later replay.
type queueExecutor struct {
	queue portssvc.OfflineQueueSvc
}

// NewQueueExecutor creates an executor that only queues operations.
func NewQueueExecutor(queue portssvc.OfflineQueueSvc) portssvc.OperationExecutor {
	return &queueExecutor{queue: queue}
}

func (e *queueExecutor) Execute(ctx context.Context, op domain.Operation) (*domain.ExecutionOutcome, error) {
	entry, err := e.queue.Enqueue(ctx, op)
	if err != nil {
		return nil, err
	}
	return &domain.ExecutionOutcome{Queued: entry}, nil
}

// fallbackExecutor tries the ledger first and queues the operation when the ledger is
// unreachable. While earlier operations are still waiting in the queue, new ones are
// queued behind them so the ledger sees them in capture order.
type fallbackExecutor struct {
	BaseService
	online  portssvc.OperationExecutor
	offline portssvc.OperationExecutor
	queue   portssvc.OfflineQueueSvc
	replay  func()
	now     func() time.Time

	mu sync.Mutex
}

// FallbackOption is a functional option for configuring the fallback executor
type FallbackOption func(*fallbackExecutor)

// WithReplayTrigger sets the hook called whenever an operation lands behind a queue backlog.
func WithReplayTrigger(trigger func()) FallbackOption {
	return func(e *fallbackExecutor) {
		e.replay = trigger
	}
}

// NewFallbackExecutor creates the executor used by the conductor agent.
func NewFallbackExecutor(gateway portssvc.LedgerGateway, queue portssvc.OfflineQueueSvc, options ...FallbackOption) portssvc.OperationExecutor {
	e := &fallbackExecutor{
		online:  NewDirectExecutor(gateway),
		offline: NewQueueExecutor(queue),
		queue:   queue,
		replay:  func() {},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(e)
	}
	return e
}

var (
	_ portssvc.OperationExecutor = (*directExecutor)(nil)
	_ portssvc.OperationExecutor = (*queueExecutor)(nil)
	_ portssvc.OperationExecutor = (*fallbackExecutor)(nil)
)

// Execute assigns the operation id once so the online attempt and any queued
// replay share the same idempotency key.
func (e *fallbackExecutor) Execute(ctx context.Context, op domain.Operation) (*domain.ExecutionOutcome, error) {
	if op.OperationID == "" {
		op.OperationID = uuid.NewString()
	}
	if op.RecordedAt.IsZero() {
		op.RecordedAt = e.now()
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}

	// Serialized so no operation reaches the ledger between a backlog check and its own apply
	e.mu.Lock()
	defer e.mu.Unlock()

	waiting, err := e.backlog(ctx)
	if err != nil {
		return nil, err
	}
	if waiting > 0 {
		e.GetLogger(ctx).Info("Queueing operation behind unsynced entries",
			slog.String("operation_id", op.OperationID),
			slog.Int("waiting", waiting))
		outcome, err := e.offline.Execute(ctx, op)
		e.replay()
		return outcome, err
	}

	outcome, err := e.online.Execute(ctx, op)
	if err == nil || !apperrors.IsRetryable(err) {
		return outcome, err
	}

	e.GetLogger(ctx).Warn("Ledger unavailable, queueing operation",
		slog.String("operation_id", op.OperationID),
		slog.String("operation", string(op.Type)),
		slog.String("error", err.Error()))
	return e.offline.Execute(ctx, op)
}

// backlog counts entries the reconciler has yet to deliver. Failed entries are
// parked for an operator and no longer hold back new operations.
func (e *fallbackExecutor) backlog(ctx context.Context) (int, error) {
	depth, err := e.queue.Depth(ctx)
	if err != nil {
		return 0, err
	}
	return depth[domain.QueuePending] + depth[domain.QueueProcessing], nil
}
