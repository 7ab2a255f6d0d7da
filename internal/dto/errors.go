package dto

import "github.com/shopspring/decimal"

// Error codes returned in ErrorResponse.Code.
const (
	CodeValidation          = "validation_error"
	CodeInsufficientBalance = "insufficient_balance"
	CodeNotFound            = "not_found"
	CodeDuplicate           = "duplicate"
	CodeUnauthorized        = "unauthorized"
	CodeForbidden           = "forbidden"
	CodeStorageFailure      = "storage_failure"
	CodeQueueFull           = "queue_full"
	CodeRateLimited         = "rate_limited"
	CodeInternal            = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string           `json:"error"`
	Code      string           `json:"code"`
	Field     string           `json:"field,omitempty"`
	Balance   *decimal.Decimal `json:"balance,omitempty"`
	Required  *decimal.Decimal `json:"required,omitempty"`
	Shortfall *decimal.Decimal `json:"shortfall,omitempty"`
}
