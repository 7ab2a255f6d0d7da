package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/dto"
	"github.com/SscSPs/fare_collection_app/internal/middleware"
)

// conductorHandler serves a conductor's own ledger entries and collection reports.
type conductorHandler struct {
	passengerService portssvc.PassengerReaderSvc
	reportingService portssvc.ReportingService
}

func newConductorHandler(ps portssvc.PassengerReaderSvc, rs portssvc.ReportingService) *conductorHandler {
	return &conductorHandler{
		passengerService: ps,
		reportingService: rs,
	}
}

// registerConductorRoutes registers routes scoped to one conductor
func registerConductorRoutes(rg *gin.RouterGroup, ps portssvc.PassengerReaderSvc, rs portssvc.ReportingService) {
	h := newConductorHandler(ps, rs)

	conductors := rg.Group("/conductors/:conductorID", h.requireSelfOrAdmin)
	{
		conductors.GET("/transactions", h.listTransactions)

		reports := conductors.Group("/reports")
		reports.GET("/daily", h.getDailySummary)
		reports.GET("/range", h.getRangeSummary)
		reports.GET("/weekly", h.getWeeklySummary)
		reports.GET("/monthly", h.getMonthlySummary)
	}
}

// requireSelfOrAdmin lets conductors read only their own data.
func (h *conductorHandler) requireSelfOrAdmin(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	caller, ok := middleware.GetCallerFromContext(c)
	if !ok {
		respondWithError(c, logger, apperrors.ErrUnauthorized, "Authentication required")
		c.Abort()
		return
	}
	if !caller.CanActAs(c.Param("conductorID")) {
		respondWithError(c, logger, apperrors.ErrForbidden, "Cannot read another conductor's data")
		c.Abort()
		return
	}
	c.Next()
}

// listTransactions godoc
// @Summary List a conductor's ledger entries
// @Description Newest first.
// @Tags conductors
// @Produce json
// @Param conductorID path string true "Conductor ID"
// @Param limit query int false "Maximum entries (default 50)"
// @Success 200 {array} dto.TransactionResponse
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Security BearerAuth
// @Router /conductors/{conductorID}/transactions [get]
func (h *conductorHandler) listTransactions(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	var q dto.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithBindError(c, logger, err)
		return
	}

	txns, err := h.passengerService.GetTransactionsByConductor(c.Request.Context(), c.Param("conductorID"), q.Limit)
	if err != nil {
		respondWithError(c, logger, err, "Failed to list transactions")
		return
	}
	c.JSON(http.StatusOK, dto.ToTransactionResponses(txns))
}

// getDailySummary godoc
// @Summary Daily collection summary
// @Description Totals for one day with 24 hourly buckets, in the server's report timezone.
// @Tags reports
// @Produce json
// @Param conductorID path string true "Conductor ID"
// @Param date query string false "Day (YYYY-MM-DD)" default(today)
// @Success 200 {object} domain.DailySummary
// @Failure 400 {object} dto.ErrorResponse "Invalid date"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Security BearerAuth
// @Router /conductors/{conductorID}/reports/daily [get]
func (h *conductorHandler) getDailySummary(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	date, ok := parseDateQuery(c, logger, "date")
	if !ok {
		return
	}

	summary, err := h.reportingService.GetDailySummary(c.Request.Context(), c.Param("conductorID"), date)
	if err != nil {
		respondWithError(c, logger, err, "Failed to generate daily summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// getRangeSummary godoc
// @Summary Date range collection summary
// @Description One row per day of the inclusive range, days without activity included.
// @Tags reports
// @Produce json
// @Param conductorID path string true "Conductor ID"
// @Param startDate query string true "First day (YYYY-MM-DD)"
// @Param endDate query string true "Last day (YYYY-MM-DD)"
// @Success 200 {object} domain.DateRangeSummary
// @Failure 400 {object} dto.ErrorResponse "Invalid range"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Security BearerAuth
// @Router /conductors/{conductorID}/reports/range [get]
func (h *conductorHandler) getRangeSummary(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	var q dto.DateRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithBindError(c, logger, err)
		return
	}
	// Format already checked by the binding tags
	start, _ := time.Parse(time.DateOnly, q.StartDate)
	end, _ := time.Parse(time.DateOnly, q.EndDate)

	summary, err := h.reportingService.GetDateRangeSummary(c.Request.Context(), c.Param("conductorID"), start, end)
	if err != nil {
		respondWithError(c, logger, err, "Failed to generate range summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// getWeeklySummary godoc
// @Summary Weekly collection summary
// @Description Monday to Sunday week containing the given day.
// @Tags reports
// @Produce json
// @Param conductorID path string true "Conductor ID"
// @Param date query string false "Any day of the week (YYYY-MM-DD)" default(today)
// @Success 200 {object} domain.DateRangeSummary
// @Failure 400 {object} dto.ErrorResponse "Invalid date"
// @Security BearerAuth
// @Router /conductors/{conductorID}/reports/weekly [get]
func (h *conductorHandler) getWeeklySummary(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	date, ok := parseDateQuery(c, logger, "date")
	if !ok {
		return
	}

	summary, err := h.reportingService.GetWeeklySummary(c.Request.Context(), c.Param("conductorID"), date)
	if err != nil {
		respondWithError(c, logger, err, "Failed to generate weekly summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// getMonthlySummary godoc
// @Summary Monthly collection summary
// @Tags reports
// @Produce json
// @Param conductorID path string true "Conductor ID"
// @Param year query int true "Year"
// @Param month query int true "Month (1-12)"
// @Success 200 {object} domain.DateRangeSummary
// @Failure 400 {object} dto.ErrorResponse "Invalid month"
// @Security BearerAuth
// @Router /conductors/{conductorID}/reports/monthly [get]
func (h *conductorHandler) getMonthlySummary(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	var q dto.MonthQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithBindError(c, logger, err)
		return
	}

	summary, err := h.reportingService.GetMonthlySummary(c.Request.Context(), c.Param("conductorID"), q.Year, time.Month(q.Month))
	if err != nil {
		respondWithError(c, logger, err, "Failed to generate monthly summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// parseDateQuery reads an optional YYYY-MM-DD query parameter, defaulting to today.
// It writes the error response itself and reports false on failure.
func parseDateQuery(c *gin.Context, logger *slog.Logger, name string) (time.Time, bool) {
	raw := c.DefaultQuery(name, time.Now().Format(time.DateOnly))
	date, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		respondWithError(c, logger, apperrors.NewValidationError(name, "must be formatted YYYY-MM-DD"), "Invalid date")
		return time.Time{}, false
	}
	return date, true
}
