package core

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"captionflow/internal/types"
)

// Validator wraps go-playground/validator so handlers share one configured
// instance and get AppError-shaped validation failures.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// ValidateStruct validates a request DTO against its struct tags. The first
// failing field is reported; clients fix one problem at a time anyway.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			fmt.Sprintf("field %q failed validation rule %q", fe.Field(), fe.Tag()),
			nil,
			map[string]any{"field": fe.Field(), "rule": fe.Tag()},
		)
	}
	return types.NewAppError(types.ErrCodeValidationMissingField, "request validation failed", err)
}
