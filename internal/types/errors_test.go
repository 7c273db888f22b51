package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationInvalidTier, http.StatusBadRequest},
		{ErrCodeValidationInvalidAmount, http.StatusBadRequest},
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationInvalidMethod, http.StatusBadRequest},
		{ErrCodeNotFoundSubscription, http.StatusNotFound},
		{ErrCodeInsufficientBalance, http.StatusPaymentRequired},
		{ErrCodePaymentDeclined, http.StatusPaymentRequired},
		{ErrCodeConflictConcurrent, http.StatusConflict},
		{ErrCodeInternalStore, http.StatusInternalServerError},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrCodeStoreUnavailable, http.StatusServiceUnavailable},
		{ErrCodeUpstreamPayment, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusBadGateway},
		{ErrorCode("something_unrecognized"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	inner := errors.New("row lock timeout")
	appErr := NewAppError(ErrCodeInternalStore, "failed to persist subscription", inner)

	assert.Equal(t, "internal_store_error: failed to persist subscription", appErr.Error())
	assert.ErrorIs(t, appErr, inner)
}

func TestAppError_ErrorsAsThroughWrapping(t *testing.T) {
	appErr := NewAppError(ErrCodeInsufficientBalance, "not enough tokens", nil)
	wrapped := fmt.Errorf("consume failed: %w", appErr)

	var got *AppError
	require.ErrorAs(t, wrapped, &got)
	assert.Equal(t, ErrCodeInsufficientBalance, got.Code)
	assert.Equal(t, http.StatusPaymentRequired, got.HTTPStatus())
}

func TestAppError_WithDetailsDoesNotMutateOriginal(t *testing.T) {
	orig := NewAppErrorWithDetails(ErrCodeInsufficientBalance, "not enough tokens", nil,
		map[string]any{"available": 3})

	enriched := orig.WithDetails(map[string]any{"requested": 5})

	assert.Equal(t, map[string]any{"available": 3}, orig.Details)
	assert.Equal(t, map[string]any{"available": 3, "requested": 5}, enriched.Details)
	assert.Equal(t, orig.Code, enriched.Code)
}
