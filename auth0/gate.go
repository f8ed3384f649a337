package auth0

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Outcome is the result of one authorization decision.
// Exactly one of Claims and Err is set.
type Outcome struct {
	Claims *Claims
	Err    *AuthError
}

// Authorized reports whether the outcome grants access
func (o Outcome) Authorized() bool {
	return o.Err == nil && o.Claims != nil
}

// Gate composes extraction, verification and permission enforcement
type Gate struct {
	resolver               KeyResolver
	verifier               *Verifier
	metrics                *Metrics
	logger                 *zap.Logger
	permissionDeniedStatus int
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithMetrics records every decision in m
func WithMetrics(m *Metrics) GateOption {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithPermissionDeniedStatus overrides the HTTP status of permission-stage
// denials. The default is 401 like every other denial.
func WithPermissionDeniedStatus(status int) GateOption {
	return func(g *Gate) {
		if status != 0 {
			g.permissionDeniedStatus = status
		}
	}
}

// NewGate creates a new authorization gate
func NewGate(resolver KeyResolver, verifier *Verifier, logger *zap.Logger, opts ...GateOption) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{
		resolver:               resolver,
		verifier:               verifier,
		logger:                 logger,
		permissionDeniedStatus: http.StatusUnauthorized,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize runs the pipeline for r and returns the verified claims when the
// token grants permission. Every failure is an *AuthError.
func (g *Gate) Authorize(r *http.Request, permission string) (*Claims, error) {
	outcome := g.Decide(r, permission)
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	return outcome.Claims, nil
}

// Decide runs extract, verify and enforce, stopping at the first failure
func (g *Gate) Decide(r *http.Request, permission string) Outcome {
	claims, authErr := g.run(r.Context(), r, permission)
	if authErr != nil {
		if authErr.Kind.IsPermissionStage() && authErr.Status != g.permissionDeniedStatus {
			copied := *authErr
			copied.Status = g.permissionDeniedStatus
			authErr = &copied
		}
		g.metrics.observeDecision(permission, authErr.Kind)
		return Outcome{Err: authErr}
	}

	g.metrics.observeDecision(permission, "")
	return Outcome{Claims: claims}
}

func (g *Gate) run(ctx context.Context, r *http.Request, permission string) (*Claims, *AuthError) {
	token, err := TokenFromRequest(r)
	if err != nil {
		return nil, toAuthError(err, KindAuthHeaderMalformed)
	}

	claims, err := g.verify(ctx, token)
	if err != nil {
		return nil, toAuthError(err, KindTokenMalformed)
	}

	if err := CheckPermission(claims, permission); err != nil {
		return nil, toAuthError(err, KindPermissionDenied)
	}

	return claims, nil
}

// verify resolves the key set and verifies token against it. When the kid is
// unknown and the resolver may be serving a cached set, one fresh set is
// fetched before reporting KeyNotFound.
func (g *Gate) verify(ctx context.Context, token string) (*Claims, error) {
	keys, err := g.resolver.KeySet(ctx)
	if err != nil {
		return nil, toAuthError(err, KindKeySetUnavailable)
	}

	claims, err := g.verifier.Verify(token, keys)
	if KindOf(err) != KindKeyNotFound {
		return claims, err
	}

	refresher, ok := g.resolver.(Refresher)
	if !ok {
		return nil, err
	}

	g.logger.Debug("kid not in cached key set, refreshing")
	fresh, ferr := refresher.Refresh(ctx)
	if ferr != nil {
		return nil, toAuthError(ferr, KindKeySetUnavailable)
	}
	return g.verifier.Verify(token, fresh)
}

func toAuthError(err error, fallback ErrorKind) *AuthError {
	if authErr, ok := AsAuthError(err); ok {
		return authErr
	}
	return newAuthError(fallback, err)
}
