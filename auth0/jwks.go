package auth0

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const maxJWKSBodySize = 1 << 20

// KeyResolver returns the issuer's current signing key set
type KeyResolver interface {
	KeySet(ctx context.Context) (*KeySet, error)
}

// Refresher is implemented by resolvers that can serve a stale key set.
// Refresh must bypass any cached state.
type Refresher interface {
	Refresh(ctx context.Context) (*KeySet, error)
}

// KeySet is an ordered collection of public key records
type KeySet struct {
	Keys []KeyRecord
}

// KeyRecord is a single entry of a JSON Web Key Set
type KeyRecord struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg,omitempty"`
	Use string `json:"use,omitempty"`

	raw json.RawMessage
}

type jwksDocument struct {
	Keys []json.RawMessage `json:"keys"`
}

// IssuerURL returns the iss claim a tenant domain signs tokens with
func IssuerURL(domain string) string {
	return fmt.Sprintf("https://%s/", bareDomain(domain))
}

// JWKSURL returns the well-known key set location for an issuer domain
func JWKSURL(domain string) string {
	return fmt.Sprintf("https://%s/.well-known/jwks.json", bareDomain(domain))
}

func bareDomain(domain string) string {
	return strings.TrimSuffix(strings.TrimPrefix(domain, "https://"), "/")
}

// ParseKeySet parses a JWKS document. Individual key material is not
// validated here; that happens when a record is selected for verification.
func ParseKeySet(data []byte) (*KeySet, error) {
	var doc jwksDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, newAuthError(KindKeySetMalformed, fmt.Errorf("failed to decode JWKS: %w", err))
	}
	if doc.Keys == nil {
		return nil, newAuthError(KindKeySetMalformed, errors.New("JWKS has no keys array"))
	}

	set := &KeySet{Keys: make([]KeyRecord, 0, len(doc.Keys))}
	for i, raw := range doc.Keys {
		var rec KeyRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, newAuthError(KindKeySetMalformed, fmt.Errorf("key %d: %w", i, err))
		}
		if rec.Kid == "" || rec.Kty == "" {
			return nil, newAuthError(KindKeySetMalformed, fmt.Errorf("key %d: kid and kty are required", i))
		}
		rec.raw = raw
		set.Keys = append(set.Keys, rec)
	}

	return set, nil
}

// Lookup finds the record whose kid matches exactly
func (s *KeySet) Lookup(kid string) (*KeyRecord, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Keys {
		if s.Keys[i].Kid == kid {
			return &s.Keys[i], true
		}
	}
	return nil, false
}

var requiredKeyFields = map[string][]string{
	"RSA": {"n", "e"},
	"EC":  {"crv", "x", "y"},
	"OKP": {"crv", "x"},
}

// PublicKey reconstructs the verification key from the record's material
func (k *KeyRecord) PublicKey() (interface{}, error) {
	required, ok := requiredKeyFields[k.Kty]
	if !ok {
		return nil, newAuthError(KindKeyMalformed, fmt.Errorf("unsupported key type %q", k.Kty))
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(k.raw, &fields); err != nil {
		return nil, newAuthError(KindKeyMalformed, err)
	}
	for _, name := range required {
		if v, ok := fields[name].(string); !ok || v == "" {
			return nil, newAuthError(KindKeyMalformed, fmt.Errorf("%s key %q is missing %q", k.Kty, k.Kid, name))
		}
	}

	key, err := jwk.ParseKey(k.raw)
	if err != nil {
		return nil, newAuthError(KindKeyMalformed, fmt.Errorf("failed to parse key %q: %w", k.Kid, err))
	}
	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil, newAuthError(KindKeyMalformed, err)
	}
	var raw interface{}
	if err := pub.Raw(&raw); err != nil {
		return nil, newAuthError(KindKeyMalformed, err)
	}

	return raw, nil
}

// ResolverConfig holds configuration for HTTPKeyResolver
type ResolverConfig struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
	Metrics    *Metrics
}

// HTTPKeyResolver fetches the key set from the issuer on every call
type HTTPKeyResolver struct {
	url        string
	httpClient *http.Client
	maxRetries uint64
	breaker    *gobreaker.CircuitBreaker
	metrics    *Metrics
	logger     *zap.Logger
}

// NewHTTPKeyResolver creates a resolver for the given JWKS URL
func NewHTTPKeyResolver(cfg ResolverConfig, logger *zap.Logger) *HTTPKeyResolver {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	r := &HTTPKeyResolver{
		url:        cfg.URL,
		httpClient: client,
		maxRetries: uint64(cfg.MaxRetries),
		metrics:    cfg.Metrics,
		logger:     logger,
	}

	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "jwks",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a malformed document means the issuer answered; an abandoned
		// request says nothing about the issuer
		IsSuccessful: func(err error) bool {
			var aborted *callerAbortedError
			return err == nil || KindOf(err) == KindKeySetMalformed || errors.As(err, &aborted)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("jwks circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return r
}

// URL returns the JWKS URL
func (r *HTTPKeyResolver) URL() string {
	return r.url
}

// KeySet fetches and parses the issuer's key set
func (r *HTTPKeyResolver) KeySet(ctx context.Context) (*KeySet, error) {
	if err := ctx.Err(); err != nil {
		return nil, newAuthError(KindKeySetUnavailable, err)
	}

	start := time.Now()

	result, err := r.breaker.Execute(func() (interface{}, error) {
		set, err := r.fetchWithRetry(ctx)
		if err != nil && ctx.Err() != nil {
			return nil, &callerAbortedError{err: err}
		}
		return set, err
	})
	if err != nil {
		r.metrics.observeJWKSFetch(false, time.Since(start))
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, newAuthError(KindKeySetUnavailable, err)
		}
		if authErr, ok := AsAuthError(err); ok {
			return nil, authErr
		}
		return nil, newAuthError(KindKeySetUnavailable, err)
	}

	set := result.(*KeySet)
	r.metrics.observeJWKSFetch(true, time.Since(start))
	r.logger.Debug("jwks fetched",
		zap.String("url", r.url),
		zap.Int("key_count", len(set.Keys)))

	return set, nil
}

// callerAbortedError marks a fetch cut short by the caller's context
type callerAbortedError struct {
	err error
}

func (e *callerAbortedError) Error() string {
	return e.err.Error()
}

func (e *callerAbortedError) Unwrap() error {
	return e.err
}

func (r *HTTPKeyResolver) fetchWithRetry(ctx context.Context) (*KeySet, error) {
	var set *KeySet
	attempt := 0

	op := func() error {
		attempt++
		s, err := r.fetch(ctx)
		if err != nil {
			r.logger.Debug("jwks fetch attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		set = s
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = time.Second

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, r.maxRetries), ctx)); err != nil {
		return nil, err
	}
	return set, nil
}

func (r *HTTPKeyResolver) fetch(ctx context.Context) (*KeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(newAuthError(KindKeySetUnavailable, fmt.Errorf("failed to create request: %w", err)))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(newAuthError(KindKeySetUnavailable, err))
		}
		return nil, newAuthError(KindKeySetUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		authErr := newAuthError(KindKeySetUnavailable, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, authErr
		}
		return nil, backoff.Permanent(authErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBodySize))
	if err != nil {
		return nil, newAuthError(KindKeySetUnavailable, fmt.Errorf("failed to read JWKS response: %w", err))
	}

	set, err := ParseKeySet(body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	return set, nil
}

// CachingKeyResolver serves a key set for up to ttl before refetching.
// Stale kids are handled by the gate calling Refresh.
type CachingKeyResolver struct {
	next   KeyResolver
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu        sync.RWMutex
	set       *KeySet
	fetchedAt time.Time
}

// NewCachingKeyResolver wraps next with a TTL cache
func NewCachingKeyResolver(next KeyResolver, ttl time.Duration, logger *zap.Logger) *CachingKeyResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingKeyResolver{
		next:   next,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// KeySet returns the cached key set, fetching when empty or expired
func (c *CachingKeyResolver) KeySet(ctx context.Context) (*KeySet, error) {
	c.mu.RLock()
	set, fetchedAt := c.set, c.fetchedAt
	c.mu.RUnlock()

	if set != nil && c.now().Sub(fetchedAt) < c.ttl {
		return set, nil
	}
	return c.Refresh(ctx)
}

// Refresh fetches a fresh key set and replaces the cached one
func (c *CachingKeyResolver) Refresh(ctx context.Context) (*KeySet, error) {
	set, err := c.next.KeySet(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.set = set
	c.fetchedAt = c.now()
	c.mu.Unlock()

	c.logger.Debug("jwks cache refreshed", zap.Int("key_count", len(set.Keys)))
	return set, nil
}
