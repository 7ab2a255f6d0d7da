package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/handlers"
)

func (s *HandlerTestSuite) TestAckTransaction() {
	s.sync.On("MarkSynced", mock.Anything, "txn-1").Return(nil).Once()

	w := s.do(http.MethodPost, "/api/v1/sync/transactions/txn-1/ack", domain.RoleConductor, nil)

	s.Equal(http.StatusNoContent, w.Code)
	s.sync.AssertExpectations(s.T())
}

func (s *HandlerTestSuite) TestAckTransaction_FailedEntryRejected() {
	s.sync.On("MarkSynced", mock.Anything, "txn-2").
		Return(apperrors.NewValidationError("syncStatus", "cannot move from failed to synced")).Once()

	w := s.do(http.MethodPost, "/api/v1/sync/transactions/txn-2/ack", domain.RoleConductor, nil)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("syncStatus", s.decodeError(w).Field)
}

func (s *HandlerTestSuite) TestRetryTransaction_AdminOnly() {
	w := s.do(http.MethodPost, "/api/v1/sync/transactions/txn-3/retry", domain.RoleConductor, nil)
	s.Equal(http.StatusForbidden, w.Code)

	s.sync.On("MarkPending", mock.Anything, "txn-3").Return(nil).Once()
	w = s.do(http.MethodPost, "/api/v1/sync/transactions/txn-3/retry", domain.RoleAdmin, nil)
	s.Equal(http.StatusNoContent, w.Code)
}

func (s *HandlerTestSuite) TestVerifyPassenger_Clean() {
	s.verifier.On("VerifyPassenger", mock.Anything, testPassenger).Return(nil, nil).Once()

	w := s.do(http.MethodGet, "/api/v1/ledger/verify/"+testPassenger, domain.RoleAdmin, nil)

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"drift": null}`, w.Body.String())
}

func (s *HandlerTestSuite) TestVerifyAll_ReportsDrift() {
	s.verifier.On("VerifyAll", mock.Anything).Return(&domain.VerificationReport{
		CheckedAt:         time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
		PassengersChecked: 2,
		Drifts: []domain.BalanceDrift{{
			PassengerID:     testPassenger,
			SnapshotBalance: decimal.NewFromInt(80),
			LedgerBalance:   decimal.NewFromInt(70),
		}},
	}, nil).Once()

	w := s.do(http.MethodPost, "/api/v1/ledger/verify", domain.RoleAdmin, nil)

	s.Equal(http.StatusOK, w.Code)
	var report domain.VerificationReport
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &report))
	s.Equal(2, report.PassengersChecked)
	s.Require().Len(report.Drifts, 1)
	s.Equal(testPassenger, report.Drifts[0].PassengerID)
}

func (s *HandlerTestSuite) TestVerifyAll_ConductorForbidden() {
	w := s.do(http.MethodPost, "/api/v1/ledger/verify", domain.RoleConductor, nil)

	s.Equal(http.StatusForbidden, w.Code)
}

func (s *HandlerTestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, w.Code)

	r := gin.New()
	handlers.RegisterRoutes(r, s.cfg, &portssvc.ServiceContainer{}, nil, failingPinger{})
	w = httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	s.Equal(http.StatusServiceUnavailable, w.Code)
}
