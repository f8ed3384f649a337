package auth0

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind identifies the stage and reason an authorization attempt failed
type ErrorKind string

const (
	KindAuthHeaderMissing       ErrorKind = "AuthHeaderMissing"
	KindAuthHeaderMalformed     ErrorKind = "AuthHeaderMalformed"
	KindTokenMalformed          ErrorKind = "TokenMalformed"
	KindKeySetUnavailable       ErrorKind = "KeySetUnavailable"
	KindKeySetMalformed         ErrorKind = "KeySetMalformed"
	KindKeyNotFound             ErrorKind = "KeyNotFound"
	KindKeyMalformed            ErrorKind = "KeyMalformed"
	KindSignatureInvalid        ErrorKind = "SignatureInvalid"
	KindTokenExpired            ErrorKind = "TokenExpired"
	KindAudienceInvalid         ErrorKind = "AudienceInvalid"
	KindIssuerInvalid           ErrorKind = "IssuerInvalid"
	KindPermissionsClaimMissing ErrorKind = "PermissionsClaimMissing"
	KindPermissionDenied        ErrorKind = "PermissionDenied"
)

// Kinds lists every error kind in pipeline order
var Kinds = []ErrorKind{
	KindAuthHeaderMissing,
	KindAuthHeaderMalformed,
	KindTokenMalformed,
	KindKeySetUnavailable,
	KindKeySetMalformed,
	KindKeyNotFound,
	KindKeyMalformed,
	KindSignatureInvalid,
	KindTokenExpired,
	KindAudienceInvalid,
	KindIssuerInvalid,
	KindPermissionsClaimMissing,
	KindPermissionDenied,
}

type kindInfo struct {
	code        string
	description string
}

var kindTable = map[ErrorKind]kindInfo{
	KindAuthHeaderMissing:       {"authorization_header_missing", "Authorization header is expected."},
	KindAuthHeaderMalformed:     {"invalid_header", "Authorization header must be in the format Bearer <token>."},
	KindTokenMalformed:          {"invalid_header", "Unable to parse authentication token."},
	KindKeySetUnavailable:       {"jwks_unavailable", "Unable to fetch signing keys."},
	KindKeySetMalformed:         {"jwks_malformed", "Signing keys could not be parsed."},
	KindKeyNotFound:             {"invalid_header", "Unable to find the appropriate key."},
	KindKeyMalformed:            {"invalid_header", "Signing key is missing required fields."},
	KindSignatureInvalid:        {"invalid_signature", "Token signature is invalid."},
	KindTokenExpired:            {"token_expired", "Token expired."},
	KindAudienceInvalid:         {"invalid_claims", "Incorrect claims. Please, check the audience."},
	KindIssuerInvalid:           {"invalid_claims", "Incorrect claims. Please, check the issuer."},
	KindPermissionsClaimMissing: {"invalid_claims", "Permissions not included in JWT."},
	KindPermissionDenied:        {"unauthorized", "Permission not found."},
}

// Code returns the machine-readable code for the kind
func (k ErrorKind) Code() string {
	return kindTable[k].code
}

// IsPermissionStage reports whether the kind is raised by the permission enforcer
func (k ErrorKind) IsPermissionStage() bool {
	return k == KindPermissionsClaimMissing || k == KindPermissionDenied
}

// AuthError is a denial raised anywhere in the authorization pipeline.
// Description is safe to show to clients; Err carries the internal cause.
type AuthError struct {
	Kind        ErrorKind
	Status      int
	Description string
	Err         error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// Unwrap implements errors.Unwrap
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches any AuthError of the same kind
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Code returns the machine-readable code for the error kind
func (e *AuthError) Code() string {
	return e.Kind.Code()
}

func newAuthError(kind ErrorKind, err error) *AuthError {
	return &AuthError{
		Kind:        kind,
		Status:      http.StatusUnauthorized,
		Description: kindTable[kind].description,
		Err:         err,
	}
}

func newAuthErrorf(kind ErrorKind, description string, err error) *AuthError {
	e := newAuthError(kind, err)
	e.Description = description
	return e
}

// Sentinels for errors.Is comparisons
var (
	ErrAuthHeaderMissing       = newAuthError(KindAuthHeaderMissing, nil)
	ErrAuthHeaderMalformed     = newAuthError(KindAuthHeaderMalformed, nil)
	ErrTokenMalformed          = newAuthError(KindTokenMalformed, nil)
	ErrKeySetUnavailable       = newAuthError(KindKeySetUnavailable, nil)
	ErrKeySetMalformed         = newAuthError(KindKeySetMalformed, nil)
	ErrKeyNotFound             = newAuthError(KindKeyNotFound, nil)
	ErrKeyMalformed            = newAuthError(KindKeyMalformed, nil)
	ErrSignatureInvalid        = newAuthError(KindSignatureInvalid, nil)
	ErrTokenExpired            = newAuthError(KindTokenExpired, nil)
	ErrAudienceInvalid         = newAuthError(KindAudienceInvalid, nil)
	ErrIssuerInvalid           = newAuthError(KindIssuerInvalid, nil)
	ErrPermissionsClaimMissing = newAuthError(KindPermissionsClaimMissing, nil)
	ErrPermissionDenied        = newAuthError(KindPermissionDenied, nil)
)

// AsAuthError extracts an AuthError from an error chain
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// KindOf returns the kind of an AuthError, or empty string for other errors
func KindOf(err error) ErrorKind {
	if authErr, ok := AsAuthError(err); ok {
		return authErr.Kind
	}
	return ""
}
