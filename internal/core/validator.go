package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"sprinklerops/internal/types"
)

// Validator wraps go-playground/validator and translates its failures into
// the application error taxonomy so handlers never leak validator internals.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator with JSON tag names reported in errors,
// so a failing field matches what the client actually sent.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct validates a request payload struct against its `validate`
// tags. On failure it returns a 400-class AppError whose details map each
// offending field to the rule it broke.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		// Programming error (non-struct passed in), not client input.
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"validation invoked on a non-struct value", err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"unexpected validation failure", err)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = describeRule(fe)
	}

	return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidField,
		"request validation failed", nil, details)
}

// describeRule renders one field failure as a short human-readable reason.
func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "failed rule: " + fe.Tag()
	}
}
