package auth0

import "fmt"

// CheckPermission verifies that claims grant the required permission.
// A missing permissions attribute is reported separately from a denial since
// it usually means RBAC is not enabled for the API on the issuer side.
func CheckPermission(claims *Claims, required string) error {
	if claims == nil || !claims.HasPermissionsClaim() {
		return newAuthError(KindPermissionsClaimMissing, nil)
	}
	if !claims.HasPermission(required) {
		return newAuthError(KindPermissionDenied, fmt.Errorf("required permission %q", required))
	}
	return nil
}
