// Package auth0 gates HTTP handlers on permissions carried in Auth0-issued
// access tokens.
//
// A request passes through four stages, stopping at the first failure:
//
//	extract  - TokenFromRequest reads "Authorization: Bearer <token>"
//	verify   - Verifier checks the signature against the issuer's JWKS
//	           (KeyResolver) and validates exp, aud and iss
//	enforce  - CheckPermission looks the route's permission up in the
//	           token's "permissions" claim
//	invoke   - the caller runs the protected handler with the Claims
//
// Every failure is an *AuthError carrying an ErrorKind, an HTTP status and a
// client-safe description.
package auth0
