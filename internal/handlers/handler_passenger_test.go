package handlers_test

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	"github.com/SscSPs/fare_collection_app/internal/dto"
)

func (s *HandlerTestSuite) TestDeductFare_UsesRouteBaseFareWhenOmitted() {
	s.reference.On("GetRoute", mock.Anything, testRoute).
		Return(&domain.Route{RouteID: testRoute, BaseFare: decimal.RequireFromString("30.00"), IsActive: true}, nil).Once()
	s.balance.On("DeductFare", mock.Anything, "", testPassenger, "30", testConductor, testRoute).
		Return(mutationResult("70", domain.TransactionBoarding), nil).Once()

	w := s.do(http.MethodPost, "/api/v1/passengers/"+testPassenger+"/fares", domain.RoleConductor,
		map[string]any{"routeId": testRoute})

	s.Equal(http.StatusOK, w.Code, w.Body.String())
	var body dto.MutationResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.True(body.Passenger.CurrentBalance.Equal(decimal.NewFromInt(70)))
	s.Equal("boarding", body.Transaction.TransactionType)
	s.False(body.Replayed)
	s.reference.AssertExpectations(s.T())
	s.balance.AssertExpectations(s.T())
}

func (s *HandlerTestSuite) TestDeductFare_ZeroFareUsesRouteBaseFare() {
	s.reference.On("GetRoute", mock.Anything, testRoute).
		Return(&domain.Route{RouteID: testRoute, BaseFare: decimal.RequireFromString("45"), IsActive: true}, nil).Once()
	s.balance.On("DeductFare", mock.Anything, "", testPassenger, "45", testConductor, testRoute).
		Return(mutationResult("55", domain.TransactionBoarding), nil).Once()

	w := s.do(http.MethodPost, "/api/v1/passengers/"+testPassenger+"/fares", domain.RoleConductor,
		map[string]any{"routeId": testRoute, "fareAmount": "0"})

	s.Equal(http.StatusOK, w.Code, w.Body.String())
	s.balance.AssertExpectations(s.T())
}

func (s *HandlerTestSuite) TestDeductFare_ExplicitFareSkipsRouteLookup() {
	s.balance.On("DeductFare", mock.Anything, "3f9a2c1e-6b0d-4e8f-a1b2-c3d4e5f60718", testPassenger, "12.5", testConductor, testRoute).
		Return(mutationResult("87.50", domain.TransactionBoarding), nil).Once()

	w := s.do(http.MethodPost, "/api/v1/passengers/"+testPassenger+"/fares", domain.RoleConductor, map[string]any{
		"operationId": "3f9a2c1e-6b0d-4e8f-a1b2-c3d4e5f60718",
		"routeId":     testRoute,
		"fareAmount":  "12.50",
	})

	s.Equal(http.StatusOK, w.Code, w.Body.String())
	s.reference.AssertNotCalled(s.T(), "GetRoute", mock.Anything, mock.Anything)
}

func (s *HandlerTestSuite) TestDeductFare_InsufficientBalance() {
	s.balance.On("DeductFare", mock.Anything, "", testPassenger, "30", testConductor, testRoute).
		Return(nil, &apperrors.InsufficientBalanceError{
			PassengerID: testPassenger,
			Balance:     decimal.NewFromInt(20),
			Required:    decimal.NewFromInt(30),
		}).Once()

	w := s.do(http.MethodPost, "/api/v1/passengers/"+testPassenger+"/fares", domain.RoleConductor,
		map[string]any{"routeId": testRoute, "fareAmount": "30"})

	s.Equal(http.StatusUnprocessableEntity, w.Code)
	body := s.decodeError(w)
	s.Equal(dto.CodeInsufficientBalance, body.Code)
	s.Require().NotNil(body.Shortfall)
	s.True(body.Shortfall.Equal(decimal.NewFromInt(10)))
	s.True(body.Balance.Equal(decimal.NewFromInt(20)))
}

func (s *HandlerTestSuite) TestDeductFare_StorageFailureIs503() {
	s.balance.On("DeductFare", mock.Anything, mock.Anything, testPassenger, "30", testConductor, testRoute).
		Return(nil, apperrors.NewStorageError("begin transaction", assertErr("connection reset"))).Once()

	w := s.do(http.MethodPost, "/api/v1/passengers/"+testPassenger+"/fares", domain.RoleConductor,
		map[string]any{"routeId": testRoute, "fareAmount": "30"})

	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Equal(dto.CodeStorageFailure, s.decodeError(w).Code)
}

func (s *HandlerTestSuite) TestDeductFare_RequiresToken() {
	w := s.do(http.MethodPost, "/api/v1/passengers/"+testPassenger+"/fares", "", map[string]any{"routeId": testRoute})

	s.Equal(http.StatusUnauthorized, w.Code)
	s.balance.AssertNotCalled(s.T(), "DeductFare")
}

func (s *HandlerTestSuite) TestAddBalance_RejectsSubCentAmount() {
	w := s.do(http.MethodPost, "/api/v1/passengers/"+testPassenger+"/topups", domain.RoleConductor,
		map[string]any{"amount": "10.005"})

	s.Equal(http.StatusBadRequest, w.Code)
	body := s.decodeError(w)
	s.Equal(dto.CodeValidation, body.Code)
	s.Equal("amount", body.Field)
}

func (s *HandlerTestSuite) TestAddBalance_Success() {
	s.balance.On("AddBalance", mock.Anything, "", testPassenger, "50", testConductor, "", "cash").
		Return(mutationResult("150", domain.TransactionTopup), nil).Once()

	w := s.do(http.MethodPost, "/api/v1/passengers/"+testPassenger+"/topups", domain.RoleConductor,
		map[string]any{"amount": "50.00", "notes": "cash"})

	s.Equal(http.StatusOK, w.Code, w.Body.String())
	s.balance.AssertExpectations(s.T())
}

func (s *HandlerTestSuite) TestAdjustBalance_AdminOnly() {
	req := map[string]any{"targetBalance": "0", "reason": "card lost"}

	w := s.do(http.MethodPost, "/api/v1/passengers/"+testPassenger+"/adjustments", domain.RoleConductor, req)
	s.Equal(http.StatusForbidden, w.Code)

	s.balance.On("AdjustBalance", mock.Anything, "", testPassenger, "0", "admin-1", "", "card lost").
		Return(mutationResult("0", domain.TransactionAdjustment), nil).Once()

	w = s.do(http.MethodPost, "/api/v1/passengers/"+testPassenger+"/adjustments", domain.RoleAdmin, req)
	s.Equal(http.StatusOK, w.Code, w.Body.String())
	s.balance.AssertExpectations(s.T())
}

func (s *HandlerTestSuite) TestTransferRoute_ReportsAuditWarning() {
	res := mutationResult("40", domain.TransactionTransfer)
	res.Transaction = nil
	res.AuditWarning = assertErr("audit insert failed")
	s.balance.On("TransferRoute", mock.Anything, "", testPassenger, "route-99", testConductor).Return(res, nil).Once()

	w := s.do(http.MethodPost, "/api/v1/passengers/"+testPassenger+"/transfers", domain.RoleConductor,
		map[string]any{"newRouteId": "route-99"})

	s.Equal(http.StatusOK, w.Code)
	var body dto.MutationResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("audit insert failed", body.AuditWarning)
	s.Nil(body.Transaction)
}

func (s *HandlerTestSuite) TestFindByLegacyID() {
	legacy := "CARD-0042"
	s.passenger.On("FindPassengerByLegacyID", mock.Anything, legacy).
		Return(&domain.Passenger{PassengerID: testPassenger, LegacyID: &legacy, IsActive: true}, nil).Once()

	w := s.do(http.MethodGet, "/api/v1/passengers?legacyId="+legacy, domain.RoleConductor, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/passengers", domain.RoleConductor, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("legacyId", s.decodeError(w).Field)
}

func (s *HandlerTestSuite) TestGetPassenger_NotFound() {
	s.passenger.On("GetPassenger", mock.Anything, "missing").Return(nil, apperrors.ErrNotFound).Once()

	w := s.do(http.MethodGet, "/api/v1/passengers/missing", domain.RoleConductor, nil)

	s.Equal(http.StatusNotFound, w.Code)
	s.Equal(dto.CodeNotFound, s.decodeError(w).Code)
}

func (s *HandlerTestSuite) TestRegisterPassenger() {
	s.passenger.On("RegisterPassenger", mock.Anything, mock.MatchedBy(func(req dto.RegisterPassengerRequest) bool {
		return req.FullName == "Amina Otieno" && req.OpeningBalance.Equal(decimal.NewFromInt(100))
	})).Return(&domain.Passenger{PassengerID: testPassenger, FullName: "Amina Otieno", CurrentBalance: decimal.NewFromInt(100), IsActive: true}, nil).Once()

	body := map[string]any{"fullName": "Amina Otieno", "openingBalance": "100"}

	w := s.do(http.MethodPost, "/api/v1/passengers", domain.RoleConductor, body)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/passengers", domain.RoleAdmin, body)
	s.Equal(http.StatusCreated, w.Code, w.Body.String())
	s.passenger.AssertExpectations(s.T())
}

func (s *HandlerTestSuite) TestDeactivatePassenger() {
	s.passenger.On("DeactivatePassenger", mock.Anything, testPassenger).Return(nil).Once()

	w := s.do(http.MethodPost, "/api/v1/passengers/"+testPassenger+"/deactivate", domain.RoleAdmin, nil)

	s.Equal(http.StatusNoContent, w.Code)
}

func (s *HandlerTestSuite) TestApplyOperation_DefaultsConductorToCaller() {
	s.balance.On("Apply", mock.Anything, mock.MatchedBy(func(op domain.Operation) bool {
		return op.ConductorID == testConductor && op.IsOffline && op.Type == domain.OpDeductFare
	})).Return(mutationResult("70", domain.TransactionBoarding), nil).Once()

	w := s.do(http.MethodPost, "/api/v1/operations", domain.RoleConductor, domain.Operation{
		OperationID: "9b1d7a52-1f0e-4c55-8a3b-2d6e7f8a9b0c",
		Type:        domain.OpDeductFare,
		PassengerID: testPassenger,
		RouteID:     testRoute,
		Amount:      decimal.NewFromInt(30),
		IsOffline:   true,
	})

	s.Equal(http.StatusOK, w.Code, w.Body.String())
	s.balance.AssertExpectations(s.T())
}

func (s *HandlerTestSuite) TestApplyOperation_CannotActForAnotherConductor() {
	w := s.do(http.MethodPost, "/api/v1/operations", domain.RoleConductor, domain.Operation{
		OperationID: "9b1d7a52-1f0e-4c55-8a3b-2d6e7f8a9b0c",
		Type:        domain.OpAddBalance,
		PassengerID: testPassenger,
		ConductorID: "conductor-8",
		Amount:      decimal.NewFromInt(30),
	})

	s.Equal(http.StatusForbidden, w.Code)
	s.balance.AssertNotCalled(s.T(), "Apply", mock.Anything, mock.Anything)
}

func (s *HandlerTestSuite) TestApplyOperation_AdjustmentNeedsAdmin() {
	w := s.do(http.MethodPost, "/api/v1/operations", domain.RoleConductor, domain.Operation{
		OperationID:   "9b1d7a52-1f0e-4c55-8a3b-2d6e7f8a9b0c",
		Type:          domain.OpAdjustBalance,
		PassengerID:   testPassenger,
		TargetBalance: decimal.NewFromInt(5),
		Notes:         "recount",
	})

	s.Equal(http.StatusForbidden, w.Code)
}

func (s *HandlerTestSuite) TestApplyOperation_ReusedOperationIDIsConflict() {
	s.balance.On("Apply", mock.Anything, mock.Anything).Return(nil, apperrors.ErrDuplicate).Once()

	w := s.do(http.MethodPost, "/api/v1/operations", domain.RoleConductor, domain.Operation{
		OperationID: "9b1d7a52-1f0e-4c55-8a3b-2d6e7f8a9b0c",
		Type:        domain.OpAddBalance,
		PassengerID: testPassenger,
		Amount:      decimal.NewFromInt(30),
	})

	s.Equal(http.StatusConflict, w.Code)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
