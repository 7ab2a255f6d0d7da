package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/core/services"
	"github.com/SscSPs/fare_collection_app/internal/dto"
	"github.com/SscSPs/fare_collection_app/internal/repositories/memory"
)

type SyncServiceTestSuite struct {
	suite.Suite
	ctx         context.Context
	store       *memory.LedgerStore
	balance     portssvc.BalanceMutatorSvc
	passengers  portssvc.PassengerSvcFacade
	service     portssvc.SyncStatusSvc
	verifier    portssvc.LedgerVerifierSvc
	passengerID string
}

func (suite *SyncServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = memory.NewLedgerStore()
	seedReferenceData(suite.store)
	suite.balance = services.NewBalanceService(suite.store, suite.store)
	suite.passengers = services.NewPassengerService(suite.store, suite.store)
	suite.service = services.NewSyncStatusService(suite.store)
	suite.verifier = services.NewLedgerVerifier(suite.store)

	p, err := suite.passengers.RegisterPassenger(suite.ctx, dto.RegisterPassengerRequest{FullName: "Esi Owusu", OpeningBalance: dec("50.00")})
	suite.Require().NoError(err)
	suite.passengerID = p.PassengerID
}

func (suite *SyncServiceTestSuite) applyOffline(amount decimal.Decimal) *domain.Transaction {
	res, err := suite.balance.Apply(suite.ctx, domain.Operation{
		OperationID: uuid.NewString(),
		Type:        domain.OpAddBalance,
		PassengerID: suite.passengerID,
		ConductorID: conductorA,
		Amount:      amount,
		IsOffline:   true,
		RecordedAt:  time.Now().Add(-time.Hour),
	})
	suite.Require().NoError(err)
	return res.Transaction
}

func (suite *SyncServiceTestSuite) statusOf(id string) domain.SyncStatus {
	txns, err := suite.passengers.GetTransactionsByPassenger(suite.ctx, suite.passengerID, 0)
	suite.Require().NoError(err)
	for _, t := range txns {
		if t.TransactionID == id {
			return t.SyncStatus
		}
	}
	suite.FailNow("transaction not found")
	return ""
}

func (suite *SyncServiceTestSuite) TestMarkSynced_IsIdempotent() {
	txn := suite.applyOffline(dec("5.00"))
	suite.Equal(domain.SyncPending, txn.SyncStatus)

	suite.Require().NoError(suite.service.MarkSynced(suite.ctx, txn.TransactionID))
	suite.Require().NoError(suite.service.MarkSynced(suite.ctx, txn.TransactionID))
	suite.Equal(domain.SyncSynced, suite.statusOf(txn.TransactionID))
}

func (suite *SyncServiceTestSuite) TestFailedEntryCanBeRetried() {
	txn := suite.applyOffline(dec("5.00"))

	suite.Require().NoError(suite.service.MarkFailed(suite.ctx, txn.TransactionID))
	suite.Equal(domain.SyncFailed, suite.statusOf(txn.TransactionID))

	suite.Require().NoError(suite.service.MarkPending(suite.ctx, txn.TransactionID))
	suite.Require().NoError(suite.service.MarkSynced(suite.ctx, txn.TransactionID))
	suite.Equal(domain.SyncSynced, suite.statusOf(txn.TransactionID))
}

func (suite *SyncServiceTestSuite) TestStatusNeverMovesBackwards() {
	txn := suite.applyOffline(dec("5.00"))
	suite.Require().NoError(suite.service.MarkSynced(suite.ctx, txn.TransactionID))

	err := suite.service.MarkFailed(suite.ctx, txn.TransactionID)
	suite.ErrorIs(err, apperrors.ErrValidation)

	err = suite.service.MarkPending(suite.ctx, txn.TransactionID)
	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.Equal(domain.SyncSynced, suite.statusOf(txn.TransactionID))
}

func (suite *SyncServiceTestSuite) TestSyncStatusDoesNotTouchBalances() {
	txn := suite.applyOffline(dec("5.00"))
	suite.Require().NoError(suite.service.MarkFailed(suite.ctx, txn.TransactionID))

	p, err := suite.passengers.GetPassenger(suite.ctx, suite.passengerID)
	suite.Require().NoError(err)
	suite.True(p.CurrentBalance.Equal(dec("55.00")))
}

func (suite *SyncServiceTestSuite) TestUnknownTransaction() {
	err := suite.service.MarkSynced(suite.ctx, uuid.NewString())

	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.ErrorIs(err, services.ErrTransactionNotFound)
}

func (suite *SyncServiceTestSuite) TestVerifier_CleanLedger() {
	suite.applyOffline(dec("5.00"))

	drift, err := suite.verifier.VerifyPassenger(suite.ctx, suite.passengerID)
	suite.Require().NoError(err)
	suite.Nil(drift)

	report, err := suite.verifier.VerifyAll(suite.ctx)
	suite.Require().NoError(err)
	suite.True(report.Clean())
	suite.Equal(1, report.PassengersChecked)
}

func (suite *SyncServiceTestSuite) TestVerifier_NoEntriesComparesOpeningBalance() {
	drift, err := suite.verifier.VerifyPassenger(suite.ctx, suite.passengerID)
	suite.Require().NoError(err)
	suite.Nil(drift)

	suite.store.SetSnapshotBalance(suite.passengerID, dec("49.00"))
	drift, err = suite.verifier.VerifyPassenger(suite.ctx, suite.passengerID)
	suite.Require().NoError(err)
	suite.Require().NotNil(drift)
	suite.True(drift.LedgerBalance.Equal(dec("50.00")))
}

func (suite *SyncServiceTestSuite) TestVerifier_DetectsSnapshotDrift() {
	txn := suite.applyOffline(dec("5.00"))
	suite.store.SetSnapshotBalance(suite.passengerID, dec("99.00"))

	drift, err := suite.verifier.VerifyPassenger(suite.ctx, suite.passengerID)

	suite.Require().NoError(err)
	suite.Require().NotNil(drift)
	suite.True(drift.SnapshotBalance.Equal(dec("99.00")))
	suite.True(drift.LedgerBalance.Equal(dec("55.00")))
	suite.Equal(txn.TransactionID, drift.LatestTransactionID)
}

func (suite *SyncServiceTestSuite) TestVerifier_DetectsUnbalancedEntry() {
	txn := suite.applyOffline(dec("5.00"))
	suite.store.CorruptTransaction(txn.TransactionID, dec("56.00"))
	suite.store.SetSnapshotBalance(suite.passengerID, dec("56.00"))

	report, err := suite.verifier.VerifyAll(suite.ctx)

	suite.Require().NoError(err)
	suite.Require().Len(report.Drifts, 1)
	suite.Equal([]string{txn.TransactionID}, report.Drifts[0].UnbalancedTransactionIDs)
}

func (suite *SyncServiceTestSuite) TestVerifier_UnknownPassenger() {
	_, err := suite.verifier.VerifyPassenger(suite.ctx, uuid.NewString())
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func TestSyncServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SyncServiceTestSuite))
}
