package handlers_test

import (
	"net/http"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
)

func (s *HandlerTestSuite) TestConductorReports_OwnDataOnly() {
	w := s.do(http.MethodGet, "/api/v1/conductors/conductor-8/reports/daily?date=2026-03-04", domain.RoleConductor, nil)

	s.Equal(http.StatusForbidden, w.Code)
	s.reporting.AssertNotCalled(s.T(), "GetDailySummary", mock.Anything, mock.Anything, mock.Anything)
}

func (s *HandlerTestSuite) TestDailySummary() {
	day := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	s.reporting.On("GetDailySummary", mock.Anything, testConductor, day).
		Return(&domain.DailySummary{ConductorID: testConductor, Date: day, Hourly: make([]domain.HourlyBucket, 24)}, nil).Once()

	w := s.do(http.MethodGet, "/api/v1/conductors/"+testConductor+"/reports/daily?date=2026-03-04", domain.RoleConductor, nil)

	s.Equal(http.StatusOK, w.Code, w.Body.String())
	s.reporting.AssertExpectations(s.T())
}

func (s *HandlerTestSuite) TestDailySummary_BadDate() {
	w := s.do(http.MethodGet, "/api/v1/conductors/"+testConductor+"/reports/daily?date=04-03-2026", domain.RoleConductor, nil)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("date", s.decodeError(w).Field)
}

func (s *HandlerTestSuite) TestRangeSummary_AdminAndInvalidRange() {
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.reporting.On("GetDateRangeSummary", mock.Anything, testConductor, start, end).
		Return(nil, apperrors.NewValidationError("endDate", "must not be before startDate")).Once()

	w := s.do(http.MethodGet, "/api/v1/conductors/"+testConductor+"/reports/range?startDate=2026-03-10&endDate=2026-03-01", domain.RoleAdmin, nil)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("endDate", s.decodeError(w).Field)
}

func (s *HandlerTestSuite) TestRangeSummary_MissingDates() {
	w := s.do(http.MethodGet, "/api/v1/conductors/"+testConductor+"/reports/range?startDate=2026-03-10", domain.RoleConductor, nil)

	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerTestSuite) TestMonthlySummary() {
	s.reporting.On("GetMonthlySummary", mock.Anything, testConductor, 2028, time.February).
		Return(&domain.DateRangeSummary{ConductorID: testConductor}, nil).Once()

	w := s.do(http.MethodGet, "/api/v1/conductors/"+testConductor+"/reports/monthly?year=2028&month=2", domain.RoleConductor, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/conductors/"+testConductor+"/reports/monthly?year=2028&month=13", domain.RoleConductor, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.reporting.AssertExpectations(s.T())
}

func (s *HandlerTestSuite) TestConductorTransactions() {
	s.passenger.On("GetTransactionsByConductor", mock.Anything, testConductor, 20).
		Return([]domain.Transaction{{TransactionID: "t-1", ConductorID: testConductor, TransactionType: domain.TransactionBoarding}}, nil).Once()

	w := s.do(http.MethodGet, "/api/v1/conductors/"+testConductor+"/transactions?limit=20", domain.RoleConductor, nil)

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"t-1"`)
}
