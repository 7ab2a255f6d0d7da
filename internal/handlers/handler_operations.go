package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/dto"
	"github.com/SscSPs/fare_collection_app/internal/middleware"
)

// operationHandler accepts serialized operations, which is how conductor agents replay their queues.
type operationHandler struct {
	balanceService portssvc.BalanceMutatorSvc
}

func newOperationHandler(bs portssvc.BalanceMutatorSvc) *operationHandler {
	return &operationHandler{balanceService: bs}
}

func registerOperationRoutes(rg *gin.RouterGroup, bs portssvc.BalanceMutatorSvc) {
	h := newOperationHandler(bs)
	rg.POST("/operations", h.applyOperation)
}

// applyOperation godoc
// @Summary Apply a serialized operation
// @Description Executes any balance operation. Replaying an applied operationId returns the original result with replayed=true.
// @Tags operations
// @Accept json
// @Produce json
// @Param operation body domain.Operation true "Operation"
// @Success 200 {object} dto.MutationResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid operation"
// @Failure 403 {object} dto.ErrorResponse "Caller may not act for this conductor"
// @Failure 409 {object} dto.ErrorResponse "Operation ID reused for a different passenger"
// @Failure 422 {object} dto.ErrorResponse "Insufficient balance"
// @Failure 503 {object} dto.ErrorResponse "Storage unavailable, nothing applied"
// @Security BearerAuth
// @Router /operations [post]
func (h *operationHandler) applyOperation(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	caller, ok := middleware.GetCallerFromContext(c)
	if !ok {
		respondWithError(c, logger, apperrors.ErrUnauthorized, "Failed to apply operation")
		return
	}

	var op domain.Operation
	if err := c.ShouldBindJSON(&op); err != nil {
		respondWithBindError(c, logger, err)
		return
	}

	if op.ConductorID == "" {
		op.ConductorID = caller.ConductorID
	}
	if !caller.CanActAs(op.ConductorID) {
		logger.Warn("Caller attempted to act for another conductor", slog.String("target_conductor_id", op.ConductorID))
		respondWithError(c, logger, apperrors.ErrForbidden, "Failed to apply operation")
		return
	}
	if op.Type == domain.OpAdjustBalance && !caller.IsAdmin() {
		respondWithError(c, logger, apperrors.ErrForbidden, "Failed to apply operation")
		return
	}

	res, err := h.balanceService.Apply(c.Request.Context(), op)
	if err != nil {
		respondWithError(c, logger, err, "Failed to apply operation")
		return
	}

	logger.Info("Operation applied",
		slog.String("operation_id", op.OperationID),
		slog.String("operation_type", string(op.Type)),
		slog.Bool("is_offline", op.IsOffline),
		slog.Bool("replayed", res.Replayed))
	c.JSON(http.StatusOK, dto.ToMutationResponse(res))
}
