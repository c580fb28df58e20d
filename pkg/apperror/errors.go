package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Ledger Business Rules (LED) ----

func ErrInsufficientFunds() *AppError {
	return New("LED_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidArgument(message string) *AppError {
	return New("LED_002", message, http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("LED_003", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidState(message string) *AppError {
	return New("LED_004", message, http.StatusConflict)
}

func ErrNonZeroBalance() *AppError {
	return New("LED_005", "Wallet balance must be zero before deactivation", http.StatusConflict)
}

func ErrForbidden() *AppError {
	return New("LED_006", "Requester is not allowed to act on this transaction", http.StatusForbidden)
}

// ---- Payment Intents (INT) ----

func ErrIntentMalformed(err error) *AppError {
	return Wrap("INT_001", "Payment intent token is malformed", http.StatusBadRequest, err)
}

func ErrIntentExpired() *AppError {
	return New("INT_002", "Payment intent has expired", http.StatusGone)
}

// ---- External Collaborators (EXT) ----

func ErrRateUnavailable(err error) *AppError {
	return Wrap("EXT_001", "Exchange rate is currently unavailable", http.StatusServiceUnavailable, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// ErrStoreUnavailable signals a durability-layer failure. Callers may retry
// with the same idempotency key.
func ErrStoreUnavailable(err error) *AppError {
	return Wrap("SYS_002", "Ledger store unavailable", http.StatusServiceUnavailable, err)
}

func ErrCustodyFailure(err error) *AppError {
	return Wrap("SYS_003", "Key custody service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LED_002-style validation error.
func Validation(message string) *AppError {
	return New("LED_002", message, http.StatusBadRequest)
}
