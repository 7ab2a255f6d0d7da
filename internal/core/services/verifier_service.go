package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portsrepo "github.com/SscSPs/fare_collection_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/platform/metrics"
)

// ledgerVerifier compares balance snapshots with the ledger and reports any drift.
type ledgerVerifier struct {
	BaseService
	auditor portsrepo.LedgerAuditor
	now     func() time.Time
}

// NewLedgerVerifier creates a new verifier.
func NewLedgerVerifier(auditor portsrepo.LedgerAuditor) portssvc.LedgerVerifierSvc {
	return &ledgerVerifier{
		auditor: auditor,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var _ portssvc.LedgerVerifierSvc = (*ledgerVerifier)(nil)

// VerifyPassenger returns nil when the passenger's snapshot matches the ledger.
func (v *ledgerVerifier) VerifyPassenger(ctx context.Context, passengerID string) (*domain.BalanceDrift, error) {
	if strings.TrimSpace(passengerID) == "" {
		return nil, apperrors.NewValidationError("passengerId", "is required")
	}
	checks, err := v.auditor.ListBalanceChecks(ctx, passengerID)
	if err != nil {
		return nil, err
	}
	if len(checks) == 0 {
		return nil, ErrPassengerNotFound
	}
	drift := checks[0].Drift()
	if drift != nil {
		v.logDrift(ctx, *drift)
	}
	return drift, nil
}

func (v *ledgerVerifier) VerifyAll(ctx context.Context) (*domain.VerificationReport, error) {
	checks, err := v.auditor.ListBalanceChecks(ctx, "")
	if err != nil {
		v.LogError(ctx, err, "Failed to load balance checks")
		return nil, err
	}

	report := &domain.VerificationReport{
		CheckedAt:         v.now(),
		PassengersChecked: len(checks),
		Drifts:            []domain.BalanceDrift{},
	}
	for _, check := range checks {
		if drift := check.Drift(); drift != nil {
			v.logDrift(ctx, *drift)
			report.Drifts = append(report.Drifts, *drift)
		}
	}

	metrics.SetLedgerDrift(len(report.Drifts))
	v.LogInfo(ctx, "Ledger verification completed",
		slog.Int("passengers_checked", report.PassengersChecked),
		slog.Int("drifts", len(report.Drifts)))
	return report, nil
}

func (v *ledgerVerifier) logDrift(ctx context.Context, drift domain.BalanceDrift) {
	v.GetLogger(ctx).Error("Balance snapshot disagrees with ledger",
		slog.String("passenger_id", drift.PassengerID),
		slog.String("snapshot_balance", drift.SnapshotBalance.StringFixed(2)),
		slog.String("ledger_balance", drift.LedgerBalance.StringFixed(2)),
		slog.Int("unbalanced_entries", len(drift.UnbalancedTransactionIDs)))
}
