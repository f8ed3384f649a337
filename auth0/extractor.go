package auth0

import (
	"net/http"
	"strings"
)

// AuthorizationHeader is the only request header the gate reads
const AuthorizationHeader = "Authorization"

const bearerScheme = "bearer"

// TokenFromRequest extracts the bearer token from the request's Authorization header
func TokenFromRequest(r *http.Request) (string, error) {
	values := r.Header.Values(AuthorizationHeader)
	if len(values) == 0 {
		return ParseAuthorizationHeader("", false)
	}
	return ParseAuthorizationHeader(values[0], true)
}

// ParseAuthorizationHeader parses a raw Authorization header value into a bearer token.
// present distinguishes an absent header from an empty one.
func ParseAuthorizationHeader(value string, present bool) (string, error) {
	if !present {
		return "", newAuthError(KindAuthHeaderMissing, nil)
	}

	parts := strings.Split(value, " ")
	if len(parts) != 2 {
		return "", newAuthErrorf(KindAuthHeaderMalformed,
			"Authorization header must be bearer token.", nil)
	}
	if strings.ToLower(parts[0]) != bearerScheme {
		return "", newAuthErrorf(KindAuthHeaderMalformed,
			`Authorization header must start with "Bearer".`, nil)
	}
	if parts[1] == "" {
		return "", newAuthErrorf(KindAuthHeaderMalformed, "Token not found.", nil)
	}

	return parts[1], nil
}
