package middleware

import (
	"net/http"

	"github.com/upb/coffee-shop/backend/auth0"
	"github.com/upb/coffee-shop/backend/utils"
	"go.uber.org/zap"
)

// Authorizer decides whether a request carries a token granting permission
type Authorizer interface {
	// Authorize returns verified claims or an *auth0.AuthError
	Authorize(r *http.Request, permission string) (*auth0.Claims, error)
}

// AuthorizedHandlerFunc is a handler that runs only after authorization
// succeeded and receives the verified claims
type AuthorizedHandlerFunc func(w http.ResponseWriter, r *http.Request, claims *auth0.Claims)

// AuthMiddleware adapts an Authorizer to HTTP handlers
type AuthMiddleware struct {
	authorizer Authorizer
	logger     *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authorizer Authorizer, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authorizer: authorizer,
		logger:     logger,
	}
}

// RequiresAuth wraps next so that it only runs when the request's bearer token
// grants permission. Denials are written as
// {"success": false, "error": <status>, "message": <description>}.
func (m *AuthMiddleware) RequiresAuth(permission string, next AuthorizedHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		claims, err := m.authorizer.Authorize(r, permission)
		if err != nil {
			authErr, ok := auth0.AsAuthError(err)
			if !ok {
				m.logger.Error("authorization failed with untyped error",
					zap.String("request_id", requestID),
					zap.String("permission", permission),
					zap.Error(err))
				_ = utils.WriteUnauthorized(w, "")
				return
			}

			m.logger.Warn("authorization denied",
				zap.String("request_id", requestID),
				zap.String("permission", permission),
				zap.String("kind", string(authErr.Kind)),
				zap.String("code", authErr.Code()),
				zap.Error(authErr.Err))
			_ = utils.WriteError(w, authErr.Status, authErr.Description, nil)
			return
		}

		m.logger.Debug("authorization granted",
			zap.String("request_id", requestID),
			zap.String("permission", permission),
			zap.String("sub", claims.Subject()))

		next(w, r.WithContext(WithClaims(ctx, claims)), claims)
	}
}
