package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/dto"
	"github.com/SscSPs/fare_collection_app/internal/middleware"
)

// passengerHandler handles passenger registration, lookup and balance changes.
type passengerHandler struct {
	passengerService portssvc.PassengerSvcFacade
	balanceService   portssvc.BalanceMutatorSvc
	referenceService portssvc.ReferenceSvc
}

func newPassengerHandler(ps portssvc.PassengerSvcFacade, bs portssvc.BalanceMutatorSvc, rs portssvc.ReferenceSvc) *passengerHandler {
	return &passengerHandler{
		passengerService: ps,
		balanceService:   bs,
		referenceService: rs,
	}
}

// registerPassengerRoutes registers routes related to passengers and their balances
func registerPassengerRoutes(rg *gin.RouterGroup, ps portssvc.PassengerSvcFacade, bs portssvc.BalanceMutatorSvc, rs portssvc.ReferenceSvc) {
	h := newPassengerHandler(ps, bs, rs)
	adminOnly := middleware.RequireRole(domain.RoleAdmin)

	passengers := rg.Group("/passengers")
	{
		passengers.POST("", adminOnly, h.registerPassenger)
		passengers.GET("", h.findByLegacyID)
		passengers.GET("/:passengerID", h.getPassenger)
		passengers.GET("/:passengerID/transactions", h.listTransactions)
		passengers.POST("/:passengerID/deactivate", adminOnly, h.deactivatePassenger)
		passengers.POST("/:passengerID/restore", adminOnly, h.restorePassenger)

		passengers.POST("/:passengerID/fares", h.deductFare)
		passengers.POST("/:passengerID/topups", h.addBalance)
		passengers.POST("/:passengerID/adjustments", adminOnly, h.adjustBalance)
		passengers.POST("/:passengerID/transfers", h.transferRoute)
	}
}

// registerPassenger godoc
// @Summary Register a passenger
// @Description Creates a passenger with an opening balance. Admin only.
// @Tags passengers
// @Accept json
// @Produce json
// @Param passenger body dto.RegisterPassengerRequest true "Passenger details"
// @Success 201 {object} dto.PassengerResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 409 {object} dto.ErrorResponse "Legacy ID already registered"
// @Failure 503 {object} dto.ErrorResponse "Storage unavailable"
// @Security BearerAuth
// @Router /passengers [post]
func (h *passengerHandler) registerPassenger(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	var req dto.RegisterPassengerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, logger, err)
		return
	}

	passenger, err := h.passengerService.RegisterPassenger(c.Request.Context(), req)
	if err != nil {
		respondWithError(c, logger, err, "Failed to register passenger")
		return
	}

	logger.Info("Passenger registered", slog.String("passenger_id", passenger.PassengerID))
	c.JSON(http.StatusCreated, dto.ToPassengerResponse(passenger))
}

// findByLegacyID godoc
// @Summary Find a passenger by legacy ID
// @Tags passengers
// @Produce json
// @Param legacyId query string true "Identifier from the previous card system"
// @Success 200 {object} dto.PassengerResponse
// @Failure 400 {object} dto.ErrorResponse "Missing legacyId"
// @Failure 404 {object} dto.ErrorResponse "Passenger not found"
// @Security BearerAuth
// @Router /passengers [get]
func (h *passengerHandler) findByLegacyID(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	legacyID := c.Query("legacyId")
	if legacyID == "" {
		respondWithError(c, logger, apperrors.NewValidationError("legacyId", "query parameter is required"), "Failed to find passenger")
		return
	}

	passenger, err := h.passengerService.FindPassengerByLegacyID(c.Request.Context(), legacyID)
	if err != nil {
		respondWithError(c, logger, err, "Failed to find passenger")
		return
	}
	c.JSON(http.StatusOK, dto.ToPassengerResponse(passenger))
}

// getPassenger godoc
// @Summary Get a passenger
// @Tags passengers
// @Produce json
// @Param passengerID path string true "Passenger ID"
// @Success 200 {object} dto.PassengerResponse
// @Failure 404 {object} dto.ErrorResponse "Passenger not found"
// @Security BearerAuth
// @Router /passengers/{passengerID} [get]
func (h *passengerHandler) getPassenger(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	passenger, err := h.passengerService.GetPassenger(c.Request.Context(), c.Param("passengerID"))
	if err != nil {
		respondWithError(c, logger, err, "Failed to get passenger")
		return
	}
	c.JSON(http.StatusOK, dto.ToPassengerResponse(passenger))
}

// listTransactions godoc
// @Summary List a passenger's ledger entries
// @Description Newest first.
// @Tags passengers
// @Produce json
// @Param passengerID path string true "Passenger ID"
// @Param limit query int false "Maximum entries (default 50)"
// @Success 200 {array} dto.TransactionResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid limit"
// @Security BearerAuth
// @Router /passengers/{passengerID}/transactions [get]
func (h *passengerHandler) listTransactions(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	var q dto.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithBindError(c, logger, err)
		return
	}

	txns, err := h.passengerService.GetTransactionsByPassenger(c.Request.Context(), c.Param("passengerID"), q.Limit)
	if err != nil {
		respondWithError(c, logger, err, "Failed to list transactions")
		return
	}
	c.JSON(http.StatusOK, dto.ToTransactionResponses(txns))
}

// deactivatePassenger godoc
// @Summary Deactivate a passenger
// @Description Soft deletes the passenger. The ledger is kept. Admin only.
// @Tags passengers
// @Param passengerID path string true "Passenger ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse "Passenger not found"
// @Security BearerAuth
// @Router /passengers/{passengerID}/deactivate [post]
func (h *passengerHandler) deactivatePassenger(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	if err := h.passengerService.DeactivatePassenger(c.Request.Context(), c.Param("passengerID")); err != nil {
		respondWithError(c, logger, err, "Failed to deactivate passenger")
		return
	}
	c.Status(http.StatusNoContent)
}

// restorePassenger godoc
// @Summary Restore a deactivated passenger
// @Tags passengers
// @Param passengerID path string true "Passenger ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse "Passenger not found"
// @Security BearerAuth
// @Router /passengers/{passengerID}/restore [post]
func (h *passengerHandler) restorePassenger(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	if err := h.passengerService.RestorePassenger(c.Request.Context(), c.Param("passengerID")); err != nil {
		respondWithError(c, logger, err, "Failed to restore passenger")
		return
	}
	c.Status(http.StatusNoContent)
}

// deductFare godoc
// @Summary Charge a boarding fare
// @Description Deducts the fare from the passenger's balance. Without fareAmount the route's base fare is charged.
// @Tags balances
// @Accept json
// @Produce json
// @Param passengerID path string true "Passenger ID"
// @Param fare body dto.DeductFareRequest true "Boarding details"
// @Success 200 {object} dto.MutationResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 404 {object} dto.ErrorResponse "Passenger not found"
// @Failure 409 {object} dto.ErrorResponse "Operation ID reused for a different passenger"
// @Failure 422 {object} dto.ErrorResponse "Insufficient balance"
// @Failure 503 {object} dto.ErrorResponse "Storage unavailable, nothing applied"
// @Security BearerAuth
// @Router /passengers/{passengerID}/fares [post]
func (h *passengerHandler) deductFare(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	caller, ok := middleware.GetCallerFromContext(c)
	if !ok {
		respondWithError(c, logger, apperrors.ErrUnauthorized, "Failed to deduct fare")
		return
	}

	var req dto.DeductFareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, logger, err)
		return
	}

	ctx := c.Request.Context()
	var fare decimal.Decimal
	if req.FareAmount != nil && req.FareAmount.IsPositive() {
		fare = *req.FareAmount
	} else {
		route, err := h.referenceService.GetRoute(ctx, req.RouteID)
		if err != nil {
			respondWithError(c, logger, err, "Failed to resolve route fare")
			return
		}
		fare = route.BaseFare
	}

	res, err := h.balanceService.DeductFare(ctx, req.OperationID, c.Param("passengerID"), fare, caller.ConductorID, req.RouteID)
	if err != nil {
		respondWithError(c, logger, err, "Failed to deduct fare")
		return
	}
	c.JSON(http.StatusOK, dto.ToMutationResponse(res))
}

// addBalance godoc
// @Summary Top up a balance
// @Tags balances
// @Accept json
// @Produce json
// @Param passengerID path string true "Passenger ID"
// @Param topup body dto.AddBalanceRequest true "Top-up details"
// @Success 200 {object} dto.MutationResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 404 {object} dto.ErrorResponse "Passenger not found"
// @Failure 503 {object} dto.ErrorResponse "Storage unavailable, nothing applied"
// @Security BearerAuth
// @Router /passengers/{passengerID}/topups [post]
func (h *passengerHandler) addBalance(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	caller, ok := middleware.GetCallerFromContext(c)
	if !ok {
		respondWithError(c, logger, apperrors.ErrUnauthorized, "Failed to add balance")
		return
	}

	var req dto.AddBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, logger, err)
		return
	}

	res, err := h.balanceService.AddBalance(c.Request.Context(), req.OperationID, c.Param("passengerID"), req.Amount, caller.ConductorID, req.RouteID, req.Notes)
	if err != nil {
		respondWithError(c, logger, err, "Failed to add balance")
		return
	}
	c.JSON(http.StatusOK, dto.ToMutationResponse(res))
}

// adjustBalance godoc
// @Summary Set a balance explicitly
// @Description Records an adjustment entry for the difference. A reason is mandatory. Admin only.
// @Tags balances
// @Accept json
// @Produce json
// @Param passengerID path string true "Passenger ID"
// @Param adjustment body dto.AdjustBalanceRequest true "Adjustment details"
// @Success 200 {object} dto.MutationResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Passenger not found"
// @Failure 503 {object} dto.ErrorResponse "Storage unavailable, nothing applied"
// @Security BearerAuth
// @Router /passengers/{passengerID}/adjustments [post]
func (h *passengerHandler) adjustBalance(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	caller, _ := middleware.GetCallerFromContext(c)

	var req dto.AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, logger, err)
		return
	}

	res, err := h.balanceService.AdjustBalance(c.Request.Context(), req.OperationID, c.Param("passengerID"), req.TargetBalance, caller.ConductorID, req.RouteID, req.Reason)
	if err != nil {
		respondWithError(c, logger, err, "Failed to adjust balance")
		return
	}
	c.JSON(http.StatusOK, dto.ToMutationResponse(res))
}

// transferRoute godoc
// @Summary Move a passenger to another route
// @Description The route change is authoritative; a failed audit entry is reported in auditWarning.
// @Tags balances
// @Accept json
// @Produce json
// @Param passengerID path string true "Passenger ID"
// @Param transfer body dto.TransferRouteRequest true "Transfer details"
// @Success 200 {object} dto.MutationResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 404 {object} dto.ErrorResponse "Passenger not found"
// @Failure 503 {object} dto.ErrorResponse "Storage unavailable, nothing applied"
// @Security BearerAuth
// @Router /passengers/{passengerID}/transfers [post]
func (h *passengerHandler) transferRoute(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	caller, ok := middleware.GetCallerFromContext(c)
	if !ok {
		respondWithError(c, logger, apperrors.ErrUnauthorized, "Failed to transfer passenger")
		return
	}

	var req dto.TransferRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, logger, err)
		return
	}

	res, err := h.balanceService.TransferRoute(c.Request.Context(), req.OperationID, c.Param("passengerID"), req.NewRouteID, caller.ConductorID)
	if err != nil {
		respondWithError(c, logger, err, "Failed to transfer passenger")
		return
	}
	if res.AuditWarning != nil {
		logger.Warn("Transfer applied without audit entry", slog.String("passenger_id", res.Passenger.PassengerID))
	}
	c.JSON(http.StatusOK, dto.ToMutationResponse(res))
}
