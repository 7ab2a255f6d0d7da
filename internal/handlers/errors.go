package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/dto"
)

// respondWithError maps a service error onto the HTTP status and body clients rely on.
// Storage failures are always 503 so callers know the operation was not applied.
func respondWithError(c *gin.Context, logger *slog.Logger, err error, failureMsg string) {
	var (
		vErr         *apperrors.ValidationError
		insufficient *apperrors.InsufficientBalanceError
	)

	switch {
	case errors.As(err, &insufficient):
		logger.Info("Rejected for insufficient balance", slog.String("error", err.Error()))
		shortfall := insufficient.Shortfall()
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error:     err.Error(),
			Code:      dto.CodeInsufficientBalance,
			Balance:   &insufficient.Balance,
			Required:  &insufficient.Required,
			Shortfall: &shortfall,
		})
	case errors.As(err, &vErr):
		logger.Warn("Validation error", slog.String("field", vErr.Field), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeValidation, Field: vErr.Field})
	case errors.Is(err, apperrors.ErrValidation):
		logger.Warn("Validation error", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeValidation})
	case errors.Is(err, apperrors.ErrNotFound):
		logger.Warn("Resource not found", slog.String("error", err.Error()))
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeNotFound})
	case errors.Is(err, apperrors.ErrDuplicate):
		logger.Warn("Duplicate resource", slog.String("error", err.Error()))
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeDuplicate})
	case errors.Is(err, apperrors.ErrForbidden):
		logger.Warn("Forbidden", slog.String("error", err.Error()))
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeForbidden})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeUnauthorized})
	case errors.Is(err, apperrors.ErrQueueFull):
		logger.Warn("Offline queue full", slog.String("error", err.Error()))
		c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeQueueFull})
	case apperrors.IsRetryable(err):
		logger.Error(failureMsg, slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error: failureMsg + ": storage unavailable, not applied; retry with the same operation id",
			Code:  dto.CodeStorageFailure,
		})
	default:
		logger.Error(failureMsg, slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: failureMsg, Code: dto.CodeInternal})
	}
}

// respondWithBindError reports a request that failed binding or tag validation.
func respondWithBindError(c *gin.Context, logger *slog.Logger, err error) {
	logger.Warn("Failed to bind request", slog.String("error", err.Error()))
	resp := dto.ErrorResponse{Error: "Invalid request format: " + err.Error(), Code: dto.CodeValidation}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		resp.Field = lowerFirst(fieldErrs[0].Field())
	}
	c.JSON(http.StatusBadRequest, resp)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
