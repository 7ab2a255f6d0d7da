package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
)

type QueueRepositoryTestSuite struct {
	suite.Suite
	ctx  context.Context
	db   *sqlx.DB
	repo *QueueRepository
	now  time.Time
}

func (suite *QueueRepositoryTestSuite) SetupTest() {
	db, err := OpenQueueStore(":memory:")
	suite.Require().NoError(err)
	suite.ctx = context.Background()
	suite.db = db
	suite.repo = NewQueueRepository(db)
	suite.now = time.Date(2026, 3, 2, 6, 45, 0, 0, time.UTC)
}

func (suite *QueueRepositoryTestSuite) TearDownTest() {
	suite.db.Close()
}

func (suite *QueueRepositoryTestSuite) newEntry(amount string) domain.QueueEntry {
	id := uuid.NewString()
	expected := decimal.RequireFromString("50.00")
	return domain.QueueEntry{
		EntryID:       id,
		OperationType: domain.OpDeductFare,
		Payload: domain.Operation{
			OperationID:     id,
			Type:            domain.OpDeductFare,
			PassengerID:     "passenger-1",
			ConductorID:     "conductor-a",
			RouteID:         "route-a",
			Amount:          decimal.RequireFromString(amount),
			ExpectedBalance: &expected,
			IsOffline:       true,
			RecordedAt:      suite.now,
		},
		Status:    domain.QueuePending,
		CreatedAt: suite.now,
	}
}

func (suite *QueueRepositoryTestSuite) enqueue(amount string) *domain.QueueEntry {
	entry, err := suite.repo.Enqueue(suite.ctx, suite.newEntry(amount), 0)
	suite.Require().NoError(err)
	return entry
}

func (suite *QueueRepositoryTestSuite) TestEnqueue_RoundTripsPayload() {
	in := suite.newEntry("30.00")

	stored, err := suite.repo.Enqueue(suite.ctx, in, 10)

	suite.Require().NoError(err)
	suite.Equal(in.EntryID, stored.EntryID)
	suite.Positive(stored.Sequence)
	suite.Equal(domain.QueuePending, stored.Status)
	suite.Zero(stored.Attempts)
	suite.True(stored.Payload.Amount.Equal(decimal.RequireFromString("30.00")))
	suite.Require().NotNil(stored.Payload.ExpectedBalance)
	suite.True(stored.Payload.ExpectedBalance.Equal(decimal.RequireFromString("50.00")))
	suite.True(stored.Payload.IsOffline)
	suite.True(suite.now.Equal(stored.Payload.RecordedAt))
	suite.True(suite.now.Equal(stored.CreatedAt))
}

func (suite *QueueRepositoryTestSuite) TestEnqueue_SameIDIsStoredOnce() {
	in := suite.newEntry("30.00")

	first, err := suite.repo.Enqueue(suite.ctx, in, 10)
	suite.Require().NoError(err)
	second, err := suite.repo.Enqueue(suite.ctx, in, 10)
	suite.Require().NoError(err)

	suite.Equal(first.Sequence, second.Sequence)
	all, err := suite.repo.ListEntries(suite.ctx, "", 0)
	suite.Require().NoError(err)
	suite.Len(all, 1)
}

func (suite *QueueRepositoryTestSuite) TestEnqueue_RejectsWhenFull() {
	_, err := suite.repo.Enqueue(suite.ctx, suite.newEntry("1.00"), 2)
	suite.Require().NoError(err)
	_, err = suite.repo.Enqueue(suite.ctx, suite.newEntry("2.00"), 2)
	suite.Require().NoError(err)

	_, err = suite.repo.Enqueue(suite.ctx, suite.newEntry("3.00"), 2)

	suite.ErrorIs(err, apperrors.ErrQueueFull)
}

func (suite *QueueRepositoryTestSuite) TestListEntries_FIFOOrder() {
	a, b, c := suite.enqueue("1.00"), suite.enqueue("2.00"), suite.enqueue("3.00")

	entries, err := suite.repo.ListEntries(suite.ctx, domain.QueuePending, 0)
	suite.Require().NoError(err)
	suite.Require().Len(entries, 3)
	suite.Equal([]string{a.EntryID, b.EntryID, c.EntryID},
		[]string{entries[0].EntryID, entries[1].EntryID, entries[2].EntryID})
	suite.Less(entries[0].Sequence, entries[1].Sequence)

	head, err := suite.repo.ListEntries(suite.ctx, domain.QueuePending, 1)
	suite.Require().NoError(err)
	suite.Require().Len(head, 1)
	suite.Equal(a.EntryID, head[0].EntryID)
}

func (suite *QueueRepositoryTestSuite) TestLifecycle_DeferThenFail() {
	entry := suite.enqueue("30.00")

	suite.Require().NoError(suite.repo.MarkProcessing(suite.ctx, entry.EntryID, suite.now))
	next := suite.now.Add(4 * time.Second)
	suite.Require().NoError(suite.repo.MarkDeferred(suite.ctx, entry.EntryID, "connection refused", next))

	deferred, err := suite.repo.FindEntry(suite.ctx, entry.EntryID)
	suite.Require().NoError(err)
	suite.Equal(domain.QueuePending, deferred.Status)
	suite.Equal(1, deferred.Attempts)
	suite.Equal("connection refused", deferred.LastError)
	suite.Require().NotNil(deferred.NextAttemptAt)
	suite.True(next.Equal(*deferred.NextAttemptAt))
	suite.False(deferred.DueAt(suite.now))

	suite.Require().NoError(suite.repo.MarkProcessing(suite.ctx, entry.EntryID, next))
	conflict := &domain.ReplayConflict{
		ExpectedBalance: deferred.Payload.ExpectedBalance,
		CurrentBalance:  decimal.RequireFromString("20.00"),
		Required:        decimal.RequireFromString("30.00"),
		Shortfall:       decimal.RequireFromString("10.00"),
	}
	suite.Require().NoError(suite.repo.MarkFailed(suite.ctx, entry.EntryID, domain.FailureConflict, "short by 10.00", conflict))

	failed, err := suite.repo.FindEntry(suite.ctx, entry.EntryID)
	suite.Require().NoError(err)
	suite.Equal(domain.QueueFailed, failed.Status)
	suite.Equal(domain.FailureConflict, failed.FailureKind)
	suite.Equal(2, failed.Attempts)
	suite.Nil(failed.NextAttemptAt)
	suite.Require().NotNil(failed.Conflict)
	suite.True(failed.Conflict.Shortfall.Equal(decimal.RequireFromString("10.00")))
	suite.True(failed.Conflict.Discrepancy().Equal(decimal.RequireFromString("30.00")))
}

func (suite *QueueRepositoryTestSuite) TestResetEntry_OnlyFromFailed() {
	entry := suite.enqueue("30.00")

	err := suite.repo.ResetEntry(suite.ctx, entry.EntryID)
	suite.ErrorIs(err, apperrors.ErrValidation)

	suite.Require().NoError(suite.repo.MarkProcessing(suite.ctx, entry.EntryID, suite.now))
	suite.Require().NoError(suite.repo.MarkFailed(suite.ctx, entry.EntryID, domain.FailureExhausted, "timeout", nil))
	suite.Require().NoError(suite.repo.ResetEntry(suite.ctx, entry.EntryID))

	reset, err := suite.repo.FindEntry(suite.ctx, entry.EntryID)
	suite.Require().NoError(err)
	suite.Equal(domain.QueuePending, reset.Status)
	suite.Zero(reset.Attempts)
	suite.Empty(reset.FailureKind)
	suite.Empty(reset.LastError)
}

func (suite *QueueRepositoryTestSuite) TestMarkProcessing_WrongStateAndMissing() {
	entry := suite.enqueue("30.00")
	suite.Require().NoError(suite.repo.MarkProcessing(suite.ctx, entry.EntryID, suite.now))

	err := suite.repo.MarkProcessing(suite.ctx, entry.EntryID, suite.now)
	suite.ErrorIs(err, apperrors.ErrValidation)

	err = suite.repo.MarkProcessing(suite.ctx, uuid.NewString(), suite.now)
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *QueueRepositoryTestSuite) TestRecoverInFlight() {
	a, b := suite.enqueue("1.00"), suite.enqueue("2.00")
	suite.Require().NoError(suite.repo.MarkProcessing(suite.ctx, a.EntryID, suite.now))

	n, err := suite.repo.RecoverInFlight(suite.ctx)

	suite.Require().NoError(err)
	suite.Equal(1, n)
	counts, err := suite.repo.CountEntries(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(2, counts[domain.QueuePending])
	suite.Zero(counts[domain.QueueProcessing])

	head, err := suite.repo.ListEntries(suite.ctx, domain.QueuePending, 1)
	suite.Require().NoError(err)
	suite.Equal(a.EntryID, head[0].EntryID)
	suite.NotEqual(b.EntryID, head[0].EntryID)
}

func (suite *QueueRepositoryTestSuite) TestRemoveEntry() {
	entry := suite.enqueue("30.00")

	suite.Require().NoError(suite.repo.RemoveEntry(suite.ctx, entry.EntryID))
	suite.ErrorIs(suite.repo.RemoveEntry(suite.ctx, entry.EntryID), apperrors.ErrNotFound)

	_, err := suite.repo.FindEntry(suite.ctx, entry.EntryID)
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *QueueRepositoryTestSuite) TestStorePersistsAcrossReopen() {
	path := suite.T().TempDir() + "/queue.db"
	db, err := OpenQueueStore(path)
	suite.Require().NoError(err)
	entry, err := NewQueueRepository(db).Enqueue(suite.ctx, suite.newEntry("30.00"), 0)
	suite.Require().NoError(err)
	suite.Require().NoError(db.Close())

	reopened, err := OpenQueueStore(path)
	suite.Require().NoError(err)
	defer reopened.Close()
	found, err := NewQueueRepository(reopened).FindEntry(suite.ctx, entry.EntryID)
	suite.Require().NoError(err)
	suite.Equal(entry.Sequence, found.Sequence)
}

func TestQueueRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(QueueRepositoryTestSuite))
}

func setupQueueMock(t *testing.T) (*QueueRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewQueueRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func TestQueueRepository_DatabaseErrorsAreRetryable(t *testing.T) {
	repo, mock, close := setupQueueMock(t)
	defer close()
	ctx := context.Background()

	mock.ExpectQuery(`SELECT .* FROM offline_queue`).WillReturnError(errors.New("disk I/O error"))
	_, err := repo.ListEntries(ctx, domain.QueuePending, 1)
	require.Error(t, err)
	require.True(t, apperrors.IsRetryable(err))

	mock.ExpectExec(`UPDATE offline_queue`).WillReturnError(errors.New("database is locked"))
	_, err = repo.RecoverInFlight(ctx)
	require.True(t, apperrors.IsRetryable(err))

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))
	_, err = repo.Enqueue(ctx, domain.QueueEntry{EntryID: uuid.NewString(), CreatedAt: time.Now()}, 10)
	require.True(t, apperrors.IsRetryable(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueRepository_CorruptPayloadIsReported(t *testing.T) {
	repo, mock, close := setupQueueMock(t)
	defer close()

	rows := sqlmock.NewRows([]string{"seq", "entry_id", "operation_type", "payload", "attempts", "last_attempt",
		"next_attempt_at", "status", "failure_kind", "last_error", "conflict", "created_at"}).
		AddRow(1, "e-1", "deduct_fare", "{not json", 0, nil, nil, "pending", "", "", nil, "2026-03-02T06:45:00Z")
	mock.ExpectQuery(`SELECT .* FROM offline_queue WHERE entry_id = \?`).WithArgs("e-1").WillReturnRows(rows)

	_, err := repo.FindEntry(context.Background(), "e-1")

	require.Error(t, err)
	require.Contains(t, err.Error(), "decode payload")
	require.NoError(t, mock.ExpectationsWereMet())
}
