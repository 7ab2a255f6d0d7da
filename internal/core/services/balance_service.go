package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portsrepo "github.com/SscSPs/fare_collection_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/platform/metrics"
	"github.com/shopspring/decimal"
)

var (
	ErrOperationIDReused = errors.New("operation id was already used for a different operation")
)

// balanceService is the only writer of passenger balances.
type balanceService struct {
	BaseService
	ledgerRepo    portsrepo.LedgerRepositoryFacade
	referenceRepo portsrepo.ReferenceReader
	timeout       time.Duration
	now           func() time.Time
}

// BalanceServiceOption is a functional option for configuring the balance service
type BalanceServiceOption func(*balanceService)

// WithMutationTimeout bounds each operation. An operation that times out was not applied.
func WithMutationTimeout(d time.Duration) BalanceServiceOption {
	return func(s *balanceService) {
		s.timeout = d
	}
}

// WithBalanceClock sets the clock used for route updates.
func WithBalanceClock(now func() time.Time) BalanceServiceOption {
	return func(s *balanceService) {
		s.now = now
	}
}

// NewBalanceService creates a new balance service.
func NewBalanceService(ledgerRepo portsrepo.LedgerRepositoryFacade, referenceRepo portsrepo.ReferenceReader, options ...BalanceServiceOption) portssvc.BalanceMutatorSvc {
	svc := &balanceService{
		ledgerRepo:    ledgerRepo,
		referenceRepo: referenceRepo,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.BalanceMutatorSvc = (*balanceService)(nil)

func (s *balanceService) DeductFare(ctx context.Context, operationID, passengerID string, fareAmount decimal.Decimal, conductorID, routeID string) (*domain.MutationResult, error) {
	return s.Apply(ctx, domain.Operation{
		OperationID: operationID,
		Type:        domain.OpDeductFare,
		PassengerID: passengerID,
		ConductorID: conductorID,
		RouteID:     routeID,
		Amount:      fareAmount,
	})
}

func (s *balanceService) AddBalance(ctx context.Context, operationID, passengerID string, amount decimal.Decimal, conductorID, routeID, notes string) (*domain.MutationResult, error) {
	return s.Apply(ctx, domain.Operation{
		OperationID: operationID,
		Type:        domain.OpAddBalance,
		PassengerID: passengerID,
		ConductorID: conductorID,
		RouteID:     routeID,
		Amount:      amount,
		Notes:       notes,
	})
}

func (s *balanceService) AdjustBalance(ctx context.Context, operationID, passengerID string, targetBalance decimal.Decimal, conductorID, routeID, reason string) (*domain.MutationResult, error) {
	return s.Apply(ctx, domain.Operation{
		OperationID:   operationID,
		Type:          domain.OpAdjustBalance,
		PassengerID:   passengerID,
		ConductorID:   conductorID,
		RouteID:       routeID,
		TargetBalance: targetBalance,
		Notes:         reason,
	})
}

func (s *balanceService) TransferRoute(ctx context.Context, operationID, passengerID, newRouteID, conductorID string) (*domain.MutationResult, error) {
	return s.Apply(ctx, domain.Operation{
		OperationID: operationID,
		Type:        domain.OpTransferRoute,
		PassengerID: passengerID,
		ConductorID: conductorID,
		NewRouteID:  newRouteID,
	})
}

// Apply validates and executes an operation of any type.
func (s *balanceService) Apply(ctx context.Context, op domain.Operation) (*domain.MutationResult, error) {
	if op.OperationID == "" {
		op.OperationID = uuid.NewString()
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := s.GetLogger(ctx).With(
		slog.String("operation_id", op.OperationID),
		slog.String("operation", string(op.Type)),
		slog.String("passenger_id", op.PassengerID),
		slog.Bool("offline", op.IsOffline),
	)

	res, err := s.apply(ctx, op, logger)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) && !apperrors.IsRetryable(err) {
		err = apperrors.NewStorageError("balance operation did not complete", err)
	}
	metrics.RecordMutation(string(op.Type), mutationOutcome(res, err))

	if err != nil {
		switch {
		case apperrors.IsRetryable(err):
			logger.Error("Balance operation failed in storage", slog.String("error", err.Error()))
		case errors.Is(err, apperrors.ErrInsufficientBalance):
			logger.Info("Fare rejected for insufficient balance", slog.String("error", err.Error()))
		default:
			logger.Warn("Balance operation rejected", slog.String("error", err.Error()))
		}
		return nil, err
	}

	if res.Replayed {
		logger.Info("Operation already applied, returning original result")
	} else {
		logger.Info("Balance operation applied", slog.String("balance_after", res.Passenger.CurrentBalance.StringFixed(2)))
	}
	return res, nil
}

func (s *balanceService) apply(ctx context.Context, op domain.Operation, logger *slog.Logger) (*domain.MutationResult, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}

	// A retried operation is answered before reference data is consulted,
	// since routes or assignments may have changed since it was applied.
	if res, err := s.findApplied(ctx, op); err != nil || res != nil {
		return res, err
	}

	conductor, err := s.activeConductor(ctx, op.ConductorID)
	if err != nil {
		return nil, err
	}

	switch op.Type {
	case domain.OpDeductFare:
		if _, err := s.activeRoute(ctx, "routeId", op.RouteID); err != nil {
			return nil, err
		}
		if !conductor.CanOperate(op.RouteID) {
			return nil, apperrors.NewValidationError("routeId", "conductor is not assigned to this route")
		}
		return s.record(ctx, op, deductRule(op.Amount))
	case domain.OpAddBalance:
		if err := s.optionalRoute(ctx, op.RouteID); err != nil {
			return nil, err
		}
		return s.record(ctx, op, topupRule(op.Amount))
	case domain.OpAdjustBalance:
		if err := s.optionalRoute(ctx, op.RouteID); err != nil {
			return nil, err
		}
		return s.record(ctx, op, adjustRule(op.TargetBalance))
	case domain.OpTransferRoute:
		return s.transfer(ctx, op, logger)
	}
	return nil, apperrors.NewValidationError("type", "unknown operation type")
}

// findApplied returns the stored result when the operation id already produced a ledger entry.
func (s *balanceService) findApplied(ctx context.Context, op domain.Operation) (*domain.MutationResult, error) {
	txn, err := s.ledgerRepo.FindTransactionByID(ctx, op.OperationID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := sameOperation(op, txn); err != nil {
		return nil, err
	}

	passenger, err := s.ledgerRepo.FindPassengerByID(ctx, op.PassengerID)
	if err != nil {
		return nil, err
	}
	return &domain.MutationResult{Passenger: *passenger, Transaction: txn, Replayed: true}, nil
}

func sameOperation(op domain.Operation, txn *domain.Transaction) error {
	if txn.PassengerID != op.PassengerID || txn.TransactionType != op.Type.TransactionType() {
		return fmt.Errorf("%w: %w: %s", apperrors.ErrDuplicate, ErrOperationIDReused, op.OperationID)
	}
	return nil
}

func (s *balanceService) record(ctx context.Context, op domain.Operation, rule domain.BalanceRule) (*domain.MutationResult, error) {
	res, err := s.ledgerRepo.RecordMutation(ctx, op.PassengerID, op.Draft(), rule)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewValidationError("passengerId", "unknown passenger")
	}
	if err != nil {
		return nil, err
	}
	if res.Replayed {
		if err := sameOperation(op, res.Transaction); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// transfer updates the route first. The audit entry is best effort: its failure is
// reported on the result and does not undo the transfer.
func (s *balanceService) transfer(ctx context.Context, op domain.Operation, logger *slog.Logger) (*domain.MutationResult, error) {
	if _, err := s.activeRoute(ctx, "newRouteId", op.NewRouteID); err != nil {
		return nil, err
	}

	current, err := s.ledgerRepo.FindPassengerByID(ctx, op.PassengerID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewValidationError("passengerId", "unknown passenger")
	}
	if err != nil {
		return nil, err
	}
	if !current.IsActive {
		return nil, apperrors.NewValidationError("passengerId", "passenger is inactive")
	}

	passenger, err := s.ledgerRepo.UpdatePassengerRoute(ctx, op.PassengerID, op.NewRouteID, s.now())
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewValidationError("passengerId", "unknown passenger")
	}
	if err != nil {
		return nil, err
	}

	draft := op.Draft()
	if draft.Notes == "" {
		from := "none"
		if current.RouteID != nil {
			from = *current.RouteID
		}
		draft.Notes = fmt.Sprintf("route transfer from %s to %s", from, op.NewRouteID)
	}

	res := &domain.MutationResult{Passenger: *passenger}
	txn, auditErr := s.ledgerRepo.AppendTransferAudit(ctx, op.PassengerID, draft)
	if auditErr != nil {
		logger.Error("Route transfer applied but audit entry was not written",
			slog.String("new_route_id", op.NewRouteID),
			slog.String("error", auditErr.Error()))
		res.AuditWarning = fmt.Errorf("route transfer applied but its audit entry was not written: %w", auditErr)
		return res, nil
	}
	res.Transaction = txn
	return res, nil
}

func (s *balanceService) activeConductor(ctx context.Context, conductorID string) (*domain.Conductor, error) {
	conductor, err := s.referenceRepo.FindConductorByID(ctx, conductorID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewValidationError("conductorId", "unknown conductor")
	}
	if err != nil {
		return nil, err
	}
	if !conductor.IsActive {
		return nil, apperrors.NewValidationError("conductorId", "conductor is not active")
	}
	return conductor, nil
}

func (s *balanceService) activeRoute(ctx context.Context, field, routeID string) (*domain.Route, error) {
	route, err := s.referenceRepo.FindRouteByID(ctx, routeID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewValidationError(field, "unknown route")
	}
	if err != nil {
		return nil, err
	}
	if !route.IsActive {
		return nil, apperrors.NewValidationError(field, "route is not active")
	}
	return route, nil
}

func (s *balanceService) optionalRoute(ctx context.Context, routeID string) error {
	if routeID == "" {
		return nil
	}
	_, err := s.activeRoute(ctx, "routeId", routeID)
	return err
}

func requireActive(p domain.Passenger) error {
	if !p.IsActive {
		return apperrors.NewValidationError("passengerId", "passenger is inactive")
	}
	return nil
}

func deductRule(fare decimal.Decimal) domain.BalanceRule {
	return func(p domain.Passenger) (decimal.Decimal, error) {
		if err := requireActive(p); err != nil {
			return decimal.Zero, err
		}
		if p.CurrentBalance.LessThan(fare) {
			return decimal.Zero, &apperrors.InsufficientBalanceError{
				PassengerID: p.PassengerID,
				Balance:     p.CurrentBalance,
				Required:    fare,
			}
		}
		return fare.Neg(), nil
	}
}

func topupRule(amount decimal.Decimal) domain.BalanceRule {
	return func(p domain.Passenger) (decimal.Decimal, error) {
		if err := requireActive(p); err != nil {
			return decimal.Zero, err
		}
		return amount, nil
	}
}

// adjustRule records the delta to the target, including a zero delta.
func adjustRule(target decimal.Decimal) domain.BalanceRule {
	return func(p domain.Passenger) (decimal.Decimal, error) {
		if err := requireActive(p); err != nil {
			return decimal.Zero, err
		}
		return target.Sub(p.CurrentBalance), nil
	}
}

func mutationOutcome(res *domain.MutationResult, err error) string {
	switch {
	case err == nil && res != nil && res.Replayed:
		return metrics.OutcomeReplayed
	case err == nil:
		return metrics.OutcomeApplied
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		return metrics.OutcomeInsufficient
	case apperrors.IsRetryable(err):
		return metrics.OutcomeStorage
	}
	return metrics.OutcomeRejected
}
