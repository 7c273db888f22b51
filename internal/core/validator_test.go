package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captionflow/internal/types"
)

type upgradeDTO struct {
	Tier          string `json:"tier" validate:"required,oneof=basic premium"`
	PaymentMethod string `json:"payment_method" validate:"required"`
}

func TestValidateStruct_Valid(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.ValidateStruct(upgradeDTO{Tier: "premium", PaymentMethod: "pm_card_visa"}))
}

func TestValidateStruct_MissingRequiredField(t *testing.T) {
	v := NewValidator()
	err := v.ValidateStruct(upgradeDTO{Tier: "premium"})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
	assert.Equal(t, "PaymentMethod", appErr.Details["field"])
	assert.Equal(t, "required", appErr.Details["rule"])
}

func TestValidateStruct_OneOfViolation(t *testing.T) {
	v := NewValidator()
	err := v.ValidateStruct(upgradeDTO{Tier: "enterprise", PaymentMethod: "pm_card_visa"})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Tier", appErr.Details["field"])
	assert.Equal(t, "oneof", appErr.Details["rule"])
}
