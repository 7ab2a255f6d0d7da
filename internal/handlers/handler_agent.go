package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/dto"
	"github.com/SscSPs/fare_collection_app/internal/middleware"
	"github.com/SscSPs/fare_collection_app/internal/platform/config"
)

// agentHandler is the conductor device's local API. It executes operations online
// when the ledger is reachable and queues them otherwise.
type agentHandler struct {
	conductorID string
	executor    portssvc.OperationExecutor
	queue       portssvc.OfflineQueueSvc
	reconciler  portssvc.ReconcilerSvc
}

// RegisterAgentRoutes sets up the conductor agent's routes.
func RegisterAgentRoutes(r *gin.Engine, cfg *config.AgentConfig, agent *portssvc.AgentContainer) {
	RegisterValidators()

	h := &agentHandler{
		conductorID: cfg.ConductorID,
		executor:    agent.Executor,
		queue:       agent.Queue,
		reconciler:  agent.Reconciler,
	}

	r.GET("/health", healthHandler(nil))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/", middleware.MetricsMiddleware())
	{
		api.POST("/ops", h.executeOperation)
		api.POST("/sync", h.syncNow)

		queue := api.Group("/queue")
		queue.GET("", h.listQueue)
		queue.GET("/depth", h.queueDepth)
		queue.GET("/:entryID", h.getEntry)
		queue.POST("/:entryID/retry", h.retryEntry)
		queue.DELETE("/:entryID", h.discardEntry)
	}
}

// executeOperation godoc
// @Summary Execute an operation on the device
// @Description Applies the operation against the ledger, or queues it when the ledger is unreachable.
// @Tags agent
// @Accept json
// @Produce json
// @Param operation body dto.ExecuteOperationRequest true "Operation"
// @Success 200 {object} dto.ExecuteOperationResponse "Applied"
// @Success 202 {object} dto.ExecuteOperationResponse "Queued for replay"
// @Failure 400 {object} dto.ErrorResponse "Invalid operation"
// @Failure 422 {object} dto.ErrorResponse "Insufficient balance"
// @Failure 429 {object} dto.ErrorResponse "Offline queue full"
// @Router /ops [post]
func (h *agentHandler) executeOperation(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	if h.conductorID == "" {
		respondWithError(c, logger, apperrors.NewValidationError("conductorId", "agent has no conductor configured"), "Failed to execute operation")
		return
	}

	var req dto.ExecuteOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, logger, err)
		return
	}

	outcome, err := h.executor.Execute(c.Request.Context(), req.ToOperation(h.conductorID))
	if err != nil {
		respondWithError(c, logger, err, "Failed to execute operation")
		return
	}

	if outcome.Queued != nil {
		logger.Info("Operation queued for replay", slog.String("entry_id", outcome.Queued.EntryID))
		c.JSON(http.StatusAccepted, dto.ExecuteOperationResponse{Status: "queued", Queued: outcome.Queued})
		return
	}
	res := dto.ToMutationResponse(outcome.Result)
	c.JSON(http.StatusOK, dto.ExecuteOperationResponse{Status: "applied", Result: &res})
}

// syncNow godoc
// @Summary Run a reconciliation cycle now
// @Description Returns the cycle report. A cycle already in progress makes this one report skipped.
// @Tags agent
// @Produce json
// @Success 200 {object} domain.SyncReport
// @Router /sync [post]
func (h *agentHandler) syncNow(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	report, err := h.reconciler.SyncOnce(c.Request.Context())
	if err != nil {
		respondWithError(c, logger, err, "Failed to run sync cycle")
		return
	}
	c.JSON(http.StatusOK, report)
}

// listQueue godoc
// @Summary List queued operations
// @Description Oldest first. Filter by status to see failed entries awaiting an operator.
// @Tags agent
// @Produce json
// @Param status query string false "pending, processing or failed"
// @Param limit query int false "Maximum entries"
// @Success 200 {array} domain.QueueEntry
// @Router /queue [get]
func (h *agentHandler) listQueue(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	var q dto.QueueStatusQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithBindError(c, logger, err)
		return
	}

	entries, err := h.queue.ListEntries(c.Request.Context(), domain.QueueStatus(q.Status), q.Limit)
	if err != nil {
		respondWithError(c, logger, err, "Failed to list queue")
		return
	}
	c.JSON(http.StatusOK, entries)
}

// queueDepth godoc
// @Summary Count queued operations by status
// @Tags agent
// @Produce json
// @Success 200 {object} map[string]int
// @Router /queue/depth [get]
func (h *agentHandler) queueDepth(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	depth, err := h.queue.Depth(c.Request.Context())
	if err != nil {
		respondWithError(c, logger, err, "Failed to count queue")
		return
	}
	c.JSON(http.StatusOK, depth)
}

// getEntry godoc
// @Summary Get a queued operation
// @Tags agent
// @Produce json
// @Param entryID path string true "Entry ID"
// @Success 200 {object} domain.QueueEntry
// @Failure 404 {object} dto.ErrorResponse "Entry not found"
// @Router /queue/{entryID} [get]
func (h *agentHandler) getEntry(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	entry, err := h.queue.GetEntry(c.Request.Context(), c.Param("entryID"))
	if err != nil {
		respondWithError(c, logger, err, "Failed to get queue entry")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// retryEntry godoc
// @Summary Retry a failed operation
// @Description Returns the entry to pending with its attempt count reset and triggers a sync.
// @Tags agent
// @Param entryID path string true "Entry ID"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse "Entry is not failed"
// @Failure 404 {object} dto.ErrorResponse "Entry not found"
// @Router /queue/{entryID}/retry [post]
func (h *agentHandler) retryEntry(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	if err := h.queue.RetryEntry(c.Request.Context(), c.Param("entryID")); err != nil {
		respondWithError(c, logger, err, "Failed to retry queue entry")
		return
	}
	h.reconciler.Trigger()
	c.Status(http.StatusNoContent)
}

// discardEntry godoc
// @Summary Discard a failed operation
// @Tags agent
// @Param entryID path string true "Entry ID"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse "Entry is not failed"
// @Failure 404 {object} dto.ErrorResponse "Entry not found"
// @Router /queue/{entryID} [delete]
func (h *agentHandler) discardEntry(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	entryID := c.Param("entryID")
	if err := h.queue.DiscardEntry(c.Request.Context(), entryID); err != nil {
		respondWithError(c, logger, err, "Failed to discard queue entry")
		return
	}
	logger.Warn("Queued operation discarded by operator", slog.String("entry_id", entryID))
	c.Status(http.StatusNoContent)
}
