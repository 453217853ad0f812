// Package validator wraps go-playground/validator behind the error taxonomy
// used across the module. Request structs declare constraints through
// `validate` tags and services call ValidateRequest before touching state.
package validator

import (
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// NewValidator builds the shared validator instance. Call once at startup
// before any request validation runs.
func NewValidator() *validator.Validate {
	validate = validator.New()
	return validate
}

func GetValidator() *validator.Validate {
	return validate
}

// ValidateRequest runs the struct tag constraints on req and converts any
// failure into a validation error carrying the offending fields as
// reportable details.
func ValidateRequest(req interface{}) error {
	if validate == nil {
		return ierr.NewError("validator not initialized").
			WithHint("Call NewValidator during startup").
			Mark(ierr.ErrSystem)
	}

	if err := validate.Struct(req); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, fieldErr := range validateErrs {
				details[fieldErr.Field()] = fieldErr.Error()
			}
		}
		return ierr.WithError(err).
			WithHint("One or more request fields are invalid").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}
