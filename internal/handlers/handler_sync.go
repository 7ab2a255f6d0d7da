package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/middleware"
)

// syncHandler exposes sync status transitions and ledger verification.
type syncHandler struct {
	syncService     portssvc.SyncStatusSvc
	verifierService portssvc.LedgerVerifierSvc
}

func newSyncHandler(ss portssvc.SyncStatusSvc, vs portssvc.LedgerVerifierSvc) *syncHandler {
	return &syncHandler{
		syncService:     ss,
		verifierService: vs,
	}
}

func registerSyncRoutes(rg *gin.RouterGroup, ss portssvc.SyncStatusSvc, vs portssvc.LedgerVerifierSvc) {
	h := newSyncHandler(ss, vs)
	adminOnly := middleware.RequireRole(domain.RoleAdmin)

	syncGroup := rg.Group("/sync/transactions/:transactionID")
	{
		syncGroup.POST("/ack", h.markSynced)
		syncGroup.POST("/fail", adminOnly, h.markFailed)
		syncGroup.POST("/retry", adminOnly, h.markPending)
	}

	verify := rg.Group("/ledger/verify", adminOnly)
	{
		verify.POST("", h.verifyAll)
		verify.GET("/:passengerID", h.verifyPassenger)
	}
}

// markSynced godoc
// @Summary Acknowledge an offline entry
// @Description Moves a pending offline ledger entry to synced. Acknowledging a synced entry again succeeds.
// @Tags sync
// @Param transactionID path string true "Transaction ID"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse "Entry is failed"
// @Failure 404 {object} dto.ErrorResponse "Transaction not found"
// @Security BearerAuth
// @Router /sync/transactions/{transactionID}/ack [post]
func (h *syncHandler) markSynced(c *gin.Context) {
	h.transition(c, h.syncService.MarkSynced, "Failed to mark transaction synced")
}

// markFailed godoc
// @Summary Mark an offline entry failed
// @Tags sync
// @Param transactionID path string true "Transaction ID"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse "Entry is not pending"
// @Failure 404 {object} dto.ErrorResponse "Transaction not found"
// @Security BearerAuth
// @Router /sync/transactions/{transactionID}/fail [post]
func (h *syncHandler) markFailed(c *gin.Context) {
	h.transition(c, h.syncService.MarkFailed, "Failed to mark transaction failed")
}

// markPending godoc
// @Summary Return a failed offline entry to pending
// @Tags sync
// @Param transactionID path string true "Transaction ID"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse "Entry is not failed"
// @Failure 404 {object} dto.ErrorResponse "Transaction not found"
// @Security BearerAuth
// @Router /sync/transactions/{transactionID}/retry [post]
func (h *syncHandler) markPending(c *gin.Context) {
	h.transition(c, h.syncService.MarkPending, "Failed to return transaction to pending")
}

func (h *syncHandler) transition(c *gin.Context, fn func(context.Context, string) error, failureMsg string) {
	logger := middleware.GetLoggerFromContext(c)
	transactionID := c.Param("transactionID")

	if err := fn(c.Request.Context(), transactionID); err != nil {
		respondWithError(c, logger, err, failureMsg)
		return
	}
	logger.Info("Sync status updated", slog.String("transaction_id", transactionID), slog.String("path", c.FullPath()))
	c.Status(http.StatusNoContent)
}

// verifyAll godoc
// @Summary Verify every passenger's balance against the ledger
// @Description Reports drift without repairing it. Admin only.
// @Tags ledger
// @Produce json
// @Success 200 {object} domain.VerificationReport
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 503 {object} dto.ErrorResponse "Storage unavailable"
// @Security BearerAuth
// @Router /ledger/verify [post]
func (h *syncHandler) verifyAll(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	report, err := h.verifierService.VerifyAll(c.Request.Context())
	if err != nil {
		respondWithError(c, logger, err, "Failed to verify ledger")
		return
	}
	c.JSON(http.StatusOK, report)
}

// verifyPassenger godoc
// @Summary Verify one passenger's balance against the ledger
// @Description Returns {"drift": null} when the snapshot agrees with the ledger.
// @Tags ledger
// @Produce json
// @Param passengerID path string true "Passenger ID"
// @Success 200 {object} map[string]domain.BalanceDrift
// @Failure 404 {object} dto.ErrorResponse "Passenger not found"
// @Security BearerAuth
// @Router /ledger/verify/{passengerID} [get]
func (h *syncHandler) verifyPassenger(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	drift, err := h.verifierService.VerifyPassenger(c.Request.Context(), c.Param("passengerID"))
	if err != nil {
		respondWithError(c, logger, err, "Failed to verify passenger")
		return
	}
	c.JSON(http.StatusOK, gin.H{"drift": drift})
}
