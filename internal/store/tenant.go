package store

import (
	"strconv"

	"sprinklerops/internal/types"
)

// tenantSettingName is the PostgreSQL session variable the row-level
// security policies key on. Policies compare each row's company_id against
// current_setting('app.current_company_id')::bigint.
const tenantSettingName = "app.current_company_id"

// setTenantSQL applies the tenant scope to the current transaction.
//
// Two properties are load-bearing here:
//
//  1. The value is bound as a driver parameter, never interpolated into the
//     SQL text, so an attacker-influenced company id cannot inject SQL.
//  2. The third argument to set_config is true ("is_local"), confining the
//     setting to the current transaction exactly like SET LOCAL. A pooled
//     connection returned after COMMIT carries no residue of this tenant,
//     which is what prevents cross-tenant leakage on connection reuse.
const setTenantSQL = "SELECT set_config('" + tenantSettingName + "', $1, true)"

// validateCompanyID is the hard gate in front of any tenant scoping: the
// company id must be a positive integer before it is allowed anywhere near
// a statement, even as a bound parameter.
func validateCompanyID(companyID int64) error {
	if companyID <= 0 {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationCompanyID,
			"company id must be a positive integer",
			nil,
			map[string]any{"company_id": companyID},
		)
	}
	return nil
}

// tenantSettingValue renders a validated company id as the set_config
// parameter value. Callers must have passed validateCompanyID first.
func tenantSettingValue(companyID int64) string {
	return strconv.FormatInt(companyID, 10)
}
