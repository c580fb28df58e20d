package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("LED_001", "Insufficient funds", http.StatusPaymentRequired),
			expected: "[LED_001] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_002", "Store unavailable", http.StatusServiceUnavailable, fmt.Errorf("connection refused")),
			expected: "[SYS_002] Store unavailable: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("LED_002", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestLedgerErrors(t *testing.T) {
	tests := []struct {
		name       string
		appErr     *AppError
		code       string
		httpStatus int
	}{
		{"insufficient funds", ErrInsufficientFunds(), "LED_001", http.StatusPaymentRequired},
		{"invalid argument", ErrInvalidArgument("amount must be positive"), "LED_002", http.StatusBadRequest},
		{"not found", ErrNotFound("wallet"), "LED_003", http.StatusNotFound},
		{"invalid state", ErrInvalidState("transaction already completed"), "LED_004", http.StatusConflict},
		{"non-zero balance", ErrNonZeroBalance(), "LED_005", http.StatusConflict},
		{"forbidden", ErrForbidden(), "LED_006", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.appErr.Code)
			assert.Equal(t, tt.httpStatus, tt.appErr.HTTPStatus)
		})
	}
}

func TestIntentErrors(t *testing.T) {
	malformed := ErrIntentMalformed(fmt.Errorf("bad segment"))
	assert.Equal(t, "INT_001", malformed.Code)
	assert.Equal(t, http.StatusBadRequest, malformed.HTTPStatus)
	assert.ErrorContains(t, malformed, "bad segment")

	expired := ErrIntentExpired()
	assert.Equal(t, "INT_002", expired.Code)
	assert.Equal(t, http.StatusGone, expired.HTTPStatus)
}

func TestCollaboratorAndSystemErrors(t *testing.T) {
	rate := ErrRateUnavailable(fmt.Errorf("timeout"))
	assert.Equal(t, "EXT_001", rate.Code)
	assert.Equal(t, http.StatusServiceUnavailable, rate.HTTPStatus)

	store := ErrStoreUnavailable(fmt.Errorf("pool closed"))
	assert.Equal(t, "SYS_002", store.Code)
	assert.Equal(t, http.StatusServiceUnavailable, store.HTTPStatus)

	internal := InternalError(fmt.Errorf("boom"))
	assert.Equal(t, "SYS_001", internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
}

func TestNotFound_MessageIncludesEntity(t *testing.T) {
	err := ErrNotFound("transaction")
	assert.Contains(t, err.Message, "transaction")
}
