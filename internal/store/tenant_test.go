package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprinklerops/internal/types"
)

func TestValidateCompanyID(t *testing.T) {
	tests := []struct {
		name      string
		companyID int64
		wantErr   bool
	}{
		{"positive", 1, false},
		{"large", 1 << 40, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"very negative", -999999, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCompanyID(tt.companyID)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, types.ErrCodeValidationCompanyID, appErr.Code)
			assert.Equal(t, tt.companyID, appErr.Details["company_id"])
		})
	}
}

func TestSetTenantSQLUsesParameterBinding(t *testing.T) {
	// The scope statement is a fixed string with a placeholder. No caller
	// input can ever reach its text, only its parameter slot.
	assert.Contains(t, setTenantSQL, "$1")
	assert.Contains(t, setTenantSQL, tenantSettingName)
	assert.Contains(t, setTenantSQL, ", true)")
	assert.NotContains(t, setTenantSQL, "%")
}

func TestTenantSettingValueIsDecimal(t *testing.T) {
	// Scope values are typed int64 all the way down, so hostile strings
	// ("1; DROP TABLE clients--" and friends) cannot be represented; the
	// rendered parameter is always a plain decimal.
	for _, id := range []int64{1, 42, 1 << 40} {
		v := tenantSettingValue(id)
		assert.NotEmpty(t, v)
		assert.Equal(t, "", strings.Trim(v, "0123456789"))
	}
	assert.Equal(t, "42", tenantSettingValue(42))
}
