package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrUnauthorized indicates a missing or invalid caller identity.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden indicates the caller is known but not allowed to perform the action.
var ErrForbidden = errors.New("forbidden")

// ErrInsufficientBalance indicates a fare larger than the passenger's current balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrConflictOnReplay indicates a queued operation that can no longer be applied
// against the authoritative ledger.
var ErrConflictOnReplay = errors.New("conflict on replay")

// ErrStorageFailure indicates a transient failure of the ledger store or the path to it.
// Operations failing with it were not applied and are safe to retry with the same id.
var ErrStorageFailure = errors.New("storage failure")

// ErrQueueFull indicates the offline queue reached its configured length.
var ErrQueueFull = errors.New("offline queue is full")

// ValidationError names the offending field of a rejected input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InsufficientBalanceError carries the balance and fare that caused a rejected deduction.
type InsufficientBalanceError struct {
	PassengerID string
	Balance     decimal.Decimal
	Required    decimal.Decimal
}

// Shortfall is the amount the passenger is missing.
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Balance)
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: passenger %s has %s, fare is %s (short by %s)",
		ErrInsufficientBalance, e.PassengerID,
		e.Balance.StringFixed(2), e.Required.StringFixed(2), e.Shortfall().StringFixed(2))
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// ConflictError describes why a queued operation was rejected during replay.
// ExpectedBalance is the balance the recording device believed the passenger had, if known.
type ConflictError struct {
	EntryID         string
	PassengerID     string
	ExpectedBalance *decimal.Decimal
	CurrentBalance  *decimal.Decimal
	Cause           error
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%s: entry %s for passenger %s", ErrConflictOnReplay, e.EntryID, e.PassengerID)
	if e.ExpectedBalance != nil {
		msg += fmt.Sprintf(", queued expected balance %s", e.ExpectedBalance.StringFixed(2))
	}
	if e.CurrentBalance != nil {
		msg += fmt.Sprintf(", current balance %s", e.CurrentBalance.StringFixed(2))
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflictOnReplay
}

func (e *ConflictError) Unwrap() error {
	return e.Cause
}

// AppError is an infrastructure error with an HTTP-ish status code.
// Any AppError with a 5xx code is treated as a storage failure.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) Is(target error) bool {
	return target == ErrStorageFailure && e.Code >= http.StatusInternalServerError
}

// NewAppError creates a new AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewStorageError wraps an infrastructure error as a retryable storage failure.
func NewStorageError(message string, err error) error {
	return NewAppError(http.StatusServiceUnavailable, message, err)
}

// IsRetryable reports whether an operation failing with err may be retried unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}
