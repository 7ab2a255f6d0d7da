package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/core/services"
)

var testReconcilerConfig = services.ReconcilerConfig{
	Interval:    time.Hour,
	MaxAttempts: 3,
	BackoffBase: 2 * time.Second,
	BackoffMax:  10 * time.Second,
	PingTimeout: time.Second,
}

type ReconcilerTestSuite struct {
	suite.Suite
	fx         *offlineFixture
	reconciler portssvc.ReconcilerSvc
}

func (suite *ReconcilerTestSuite) SetupTest() {
	suite.fx = newOfflineFixture(&suite.Suite, 100)
	suite.reconciler = services.NewReconciler(suite.fx.queueRepo, suite.fx.gateway, testReconcilerConfig,
		services.WithReconcilerClock(suite.fx.clock.Now))
}

func (suite *ReconcilerTestSuite) enqueue(op domain.Operation) *domain.QueueEntry {
	entry, err := suite.fx.queue.Enqueue(suite.fx.ctx, op)
	suite.Require().NoError(err)
	return entry
}

func (suite *ReconcilerTestSuite) sync() *domain.SyncReport {
	report, err := suite.reconciler.SyncOnce(suite.fx.ctx)
	suite.Require().NoError(err)
	return report
}

func (suite *ReconcilerTestSuite) entry(id string) *domain.QueueEntry {
	entry, err := suite.fx.queue.GetEntry(suite.fx.ctx, id)
	suite.Require().NoError(err)
	return entry
}

func (suite *ReconcilerTestSuite) TestReplaysInEnqueueOrder() {
	passengerID := suite.fx.register(&suite.Suite, "0.00")
	known := dec("0.00")
	credit := topupOp(passengerID, "100.00")
	credit.ExpectedBalance = &known
	topup := suite.enqueue(credit)
	afterTopup := dec("100.00")
	boarding := fareOp(passengerID, "30.00")
	boarding.ExpectedBalance = &afterTopup
	fare := suite.enqueue(boarding)

	report := suite.sync()

	suite.Equal(2, report.Attempted)
	suite.Equal(2, report.Synced)
	suite.Zero(report.Conflicts)
	suite.Empty(report.Failures)
	suite.Equal([]string{topup.EntryID, fare.EntryID}, suite.fx.gateway.appliedIDs())
	suite.True(suite.fx.balanceOf(&suite.Suite, passengerID).Equal(dec("70.00")))

	depth, err := suite.fx.queue.Depth(suite.fx.ctx)
	suite.Require().NoError(err)
	suite.Zero(depth[domain.QueuePending])
	suite.Zero(depth[domain.QueueFailed])

	txn, err := suite.fx.store.FindTransactionByID(suite.fx.ctx, fare.EntryID)
	suite.Require().NoError(err)
	suite.True(txn.IsOffline)
	suite.Equal(domain.SyncSynced, txn.SyncStatus)
	suite.Require().NotNil(txn.RecordedAt)
	suite.True(txn.BalanceBefore.Equal(dec("100.00")))
	suite.True(txn.BalanceAfter.Equal(dec("70.00")))
}

func (suite *ReconcilerTestSuite) TestForbiddenAdjustmentIsRejectedWithoutRetry() {
	passengerID := suite.fx.register(&suite.Suite, "50.00")
	suite.fx.gateway.forbidAdjust = true
	adjust := suite.enqueue(domain.Operation{
		OperationID:   uuid.NewString(),
		Type:          domain.OpAdjustBalance,
		PassengerID:   passengerID,
		ConductorID:   conductorA,
		TargetBalance: dec("80.00"),
		Notes:         "card reader double charge",
	})
	fare := suite.enqueue(fareOp(passengerID, "10.00"))

	report := suite.sync()

	suite.Equal(1, report.Rejected)
	suite.Zero(report.Deferred)
	suite.Equal(1, report.Synced)
	failed := suite.entry(adjust.EntryID)
	suite.Equal(domain.QueueFailed, failed.Status)
	suite.Equal(domain.FailureRejected, failed.FailureKind)
	suite.Equal(1, failed.Attempts)
	suite.Contains(failed.LastError, apperrors.ErrForbidden.Error())

	_, err := suite.fx.queue.GetEntry(suite.fx.ctx, fare.EntryID)
	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.True(suite.fx.balanceOf(&suite.Suite, passengerID).Equal(dec("40.00")))
}

func (suite *ReconcilerTestSuite) TestConflictIsParkedAndQueueContinues() {
	passengerID := suite.fx.register(&suite.Suite, "20.00")
	expected := dec("50.00")
	op := fareOp(passengerID, "30.00")
	op.ExpectedBalance = &expected
	fare := suite.enqueue(op)
	topup := suite.enqueue(topupOp(passengerID, "5.00"))

	report := suite.sync()

	suite.Equal(1, report.Conflicts)
	suite.Equal(1, report.Synced)
	suite.Require().Len(report.Failures, 1)

	failed := suite.entry(fare.EntryID)
	suite.Equal(domain.QueueFailed, failed.Status)
	suite.Equal(domain.FailureConflict, failed.FailureKind)
	suite.Contains(failed.LastError, apperrors.ErrConflictOnReplay.Error())
	suite.Require().NotNil(failed.Conflict)
	suite.True(failed.Conflict.CurrentBalance.Equal(dec("20.00")))
	suite.True(failed.Conflict.Required.Equal(dec("30.00")))
	suite.True(failed.Conflict.Shortfall.Equal(dec("10.00")))
	suite.True(failed.Conflict.ExpectedBalance.Equal(expected))

	_, err := suite.fx.queue.GetEntry(suite.fx.ctx, topup.EntryID)
	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.True(suite.fx.balanceOf(&suite.Suite, passengerID).Equal(dec("25.00")))
}

func (suite *ReconcilerTestSuite) TestRejectedEntryIsParked() {
	entry := suite.enqueue(fareOp("no-such-passenger", "30.00"))

	report := suite.sync()

	suite.Equal(1, report.Rejected)
	failed := suite.entry(entry.EntryID)
	suite.Equal(domain.FailureRejected, failed.FailureKind)
	suite.Contains(failed.LastError, "unknown passenger")
}

func (suite *ReconcilerTestSuite) TestTransientFailureBlocksQueueUntilBackoffElapses() {
	passengerID := suite.fx.register(&suite.Suite, "50.00")
	first := suite.enqueue(fareOp(passengerID, "10.00"))
	second := suite.enqueue(fareOp(passengerID, "10.00"))
	suite.fx.gateway.failApplies(1)

	report := suite.sync()

	suite.Equal(1, report.Attempted)
	suite.Equal(1, report.Deferred)
	deferred := suite.entry(first.EntryID)
	suite.Equal(domain.QueuePending, deferred.Status)
	suite.Equal(1, deferred.Attempts)
	suite.Require().NotNil(deferred.NextAttemptAt)
	suite.True(suite.fx.clock.Now().Add(2 * time.Second).Equal(*deferred.NextAttemptAt))
	suite.Equal(0, suite.entry(second.EntryID).Attempts)

	report = suite.sync()
	suite.Zero(report.Attempted)

	suite.fx.clock.Advance(2 * time.Second)
	report = suite.sync()
	suite.Equal(2, report.Synced)
	suite.True(suite.fx.balanceOf(&suite.Suite, passengerID).Equal(dec("30.00")))
}

func (suite *ReconcilerTestSuite) TestExhaustedAfterMaxAttempts() {
	passengerID := suite.fx.register(&suite.Suite, "50.00")
	entry := suite.enqueue(fareOp(passengerID, "10.00"))
	suite.fx.gateway.failApplies(3)

	for i := 0; i < 3; i++ {
		suite.sync()
		suite.fx.clock.Advance(time.Minute)
	}

	failed := suite.entry(entry.EntryID)
	suite.Equal(domain.QueueFailed, failed.Status)
	suite.Equal(domain.FailureExhausted, failed.FailureKind)
	suite.Equal(3, failed.Attempts)

	suite.Require().NoError(suite.fx.queue.RetryEntry(suite.fx.ctx, entry.EntryID))
	report := suite.sync()
	suite.Equal(1, report.Synced)
	suite.True(suite.fx.balanceOf(&suite.Suite, passengerID).Equal(dec("40.00")))
}

func (suite *ReconcilerTestSuite) TestAlreadyAppliedOperationIsNotAppliedTwice() {
	passengerID := suite.fx.register(&suite.Suite, "50.00")
	op := fareOp(passengerID, "30.00")
	op.IsOffline = true
	_, err := suite.fx.gateway.balance.Apply(suite.fx.ctx, op)
	suite.Require().NoError(err)
	suite.enqueue(op)

	report := suite.sync()

	suite.Equal(1, report.Synced)
	suite.Equal(1, report.Replayed)
	suite.True(suite.fx.balanceOf(&suite.Suite, passengerID).Equal(dec("20.00")))
}

func (suite *ReconcilerTestSuite) TestTransferWithoutAuditCountsAsSynced() {
	passengerID := suite.fx.register(&suite.Suite, "50.00")
	suite.enqueue(domain.Operation{
		OperationID: uuid.NewString(),
		Type:        domain.OpTransferRoute,
		PassengerID: passengerID,
		ConductorID: conductorA,
		NewRouteID:  routeB,
	})
	suite.fx.store.FailNext("AppendTransferAudit", apperrors.NewStorageError("insert failed", errors.New("disk full")))

	report := suite.sync()

	suite.Equal(1, report.Synced)
	suite.Equal(1, report.AuditWarnings)
	p, err := suite.fx.store.FindPassengerByID(suite.fx.ctx, passengerID)
	suite.Require().NoError(err)
	suite.Equal(routeB, *p.RouteID)
}

func (suite *ReconcilerTestSuite) TestSkipsWhenLedgerUnreachable() {
	passengerID := suite.fx.register(&suite.Suite, "50.00")
	entry := suite.enqueue(fareOp(passengerID, "10.00"))
	suite.fx.gateway.setDown(true)

	report := suite.sync()

	suite.True(report.Skipped)
	suite.Equal("ledger unreachable", report.SkipReason)
	suite.Zero(suite.entry(entry.EntryID).Attempts)
}

func (suite *ReconcilerTestSuite) TestConcurrentCycleIsSkipped() {
	passengerID := suite.fx.register(&suite.Suite, "50.00")
	suite.enqueue(fareOp(passengerID, "10.00"))
	suite.fx.gateway.block = make(chan struct{})
	suite.fx.gateway.entered = make(chan struct{})

	done := make(chan *domain.SyncReport)
	go func() {
		report, _ := suite.reconciler.SyncOnce(suite.fx.ctx)
		done <- report
	}()
	<-suite.fx.gateway.entered

	skipped := suite.sync()
	suite.True(skipped.Skipped)
	suite.Equal("sync already running", skipped.SkipReason)

	close(suite.fx.gateway.block)
	first := <-done
	suite.Equal(1, first.Synced)
}

func (suite *ReconcilerTestSuite) TestRunRecoversInterruptedEntries() {
	passengerID := suite.fx.register(&suite.Suite, "50.00")
	entry := suite.enqueue(fareOp(passengerID, "10.00"))
	suite.Require().NoError(suite.fx.queueRepo.MarkProcessing(suite.fx.ctx, entry.EntryID, suite.fx.clock.Now()))

	ctx, cancel := context.WithCancel(suite.fx.ctx)
	stopped := make(chan error, 1)
	go func() { stopped <- suite.reconciler.Run(ctx) }()

	suite.Eventually(func() bool {
		recovered, err := suite.fx.queue.GetEntry(suite.fx.ctx, entry.EntryID)
		return err == nil && recovered.Status == domain.QueuePending
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	suite.Require().NoError(<-stopped)

	report := suite.sync()
	suite.Equal(1, report.Synced)
}

func (suite *ReconcilerTestSuite) TestTriggerRunsACycle() {
	passengerID := suite.fx.register(&suite.Suite, "50.00")
	suite.enqueue(fareOp(passengerID, "10.00"))

	ctx, cancel := context.WithCancel(suite.fx.ctx)
	defer cancel()
	stopped := make(chan error, 1)
	go func() { stopped <- suite.reconciler.Run(ctx) }()

	suite.reconciler.Trigger()
	suite.reconciler.Trigger()

	suite.Eventually(func() bool {
		p, err := suite.fx.store.FindPassengerByID(suite.fx.ctx, passengerID)
		return err == nil && p.CurrentBalance.Equal(dec("40.00"))
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	suite.NoError(<-stopped)
}

func (suite *ReconcilerTestSuite) TestRunReplaysSoonAfterLedgerReturns() {
	cfg := testReconcilerConfig
	cfg.BackoffBase = 20 * time.Millisecond
	reconciler := services.NewReconciler(suite.fx.queueRepo, suite.fx.gateway, cfg,
		services.WithReconcilerClock(suite.fx.clock.Now))
	passengerID := suite.fx.register(&suite.Suite, "50.00")
	suite.enqueue(fareOp(passengerID, "10.00"))
	suite.fx.gateway.setDown(true)

	ctx, cancel := context.WithCancel(suite.fx.ctx)
	defer cancel()
	stopped := make(chan error, 1)
	go func() { stopped <- reconciler.Run(ctx) }()
	reconciler.Trigger()

	time.Sleep(50 * time.Millisecond)
	suite.fx.gateway.setDown(false)

	suite.Eventually(func() bool {
		p, err := suite.fx.store.FindPassengerByID(suite.fx.ctx, passengerID)
		return err == nil && p.CurrentBalance.Equal(dec("40.00"))
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	suite.NoError(<-stopped)
}

func TestReconcilerTestSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerTestSuite))
}

func TestReconcilerConfig_Backoff(t *testing.T) {
	cfg := services.ReconcilerConfig{BackoffBase: time.Second, BackoffMax: 10 * time.Second}

	assert.Equal(t, time.Second, cfg.Backoff(1))
	assert.Equal(t, 2*time.Second, cfg.Backoff(2))
	assert.Equal(t, 8*time.Second, cfg.Backoff(4))
	assert.Equal(t, 10*time.Second, cfg.Backoff(5))
	assert.Equal(t, 10*time.Second, cfg.Backoff(60))
}
