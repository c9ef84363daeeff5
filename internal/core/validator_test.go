package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprinklerops/internal/types"
)

type createClientPayload struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=40"`
}

func TestValidateStructPasses(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct(createClientPayload{
		Name:  "Greenway HOA",
		Email: "board@greenway.test",
	})
	assert.NoError(t, err)
}

func TestValidateStructReportsFieldsByJSONName(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct(createClientPayload{
		Name:  "",
		Email: "not-an-email",
	})
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidField, appErr.Code)
	assert.Equal(t, "is required", appErr.Details["name"])
	assert.Equal(t, "must be a valid email address", appErr.Details["email"])
	assert.NotContains(t, appErr.Details, "phone")
}

func TestValidateStructOneOf(t *testing.T) {
	v := NewValidator(testLogger())

	payload := struct {
		Status string `json:"status" validate:"required,oneof=draft sent approved declined"`
	}{Status: "bogus"}

	err := v.ValidateStruct(payload)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "must be one of: draft sent approved declined", appErr.Details["status"])
}

func TestValidateStructNonStruct(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct("not a struct")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalUnexpected, appErr.Code)
}
