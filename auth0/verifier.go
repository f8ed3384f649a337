package auth0

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAlgorithm is the signing algorithm Auth0 uses for API access tokens
const DefaultAlgorithm = "RS256"

var asymmetricAlgorithms = map[string]bool{
	"RS256": true, "RS384": true, "RS512": true,
	"PS256": true, "PS384": true, "PS512": true,
	"ES256": true, "ES384": true, "ES512": true,
	"EdDSA": true,
}

// VerifierConfig holds the expectations a token is validated against
type VerifierConfig struct {
	Issuer     string
	Audience   string
	Algorithms []string
	Leeway     time.Duration
	Now        func() time.Time
}

// Verifier checks token signatures against a key set and validates standard claims
type Verifier struct {
	issuer     string
	audience   string
	algorithms []string
	leeway     time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Typ string `json:"typ,omitempty"`
}

// NewVerifier creates a Verifier. Only asymmetric algorithms are accepted.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("audience is required")
	}
	if len(cfg.Algorithms) == 0 {
		cfg.Algorithms = []string{DefaultAlgorithm}
	}
	for _, alg := range cfg.Algorithms {
		if !asymmetricAlgorithms[alg] {
			return nil, fmt.Errorf("unsupported algorithm %q: only asymmetric algorithms are allowed", alg)
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Verifier{
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		algorithms: cfg.Algorithms,
		leeway:     cfg.Leeway,
		now:        cfg.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods(cfg.Algorithms),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Issuer returns the expected issuer
func (v *Verifier) Issuer() string {
	return v.issuer
}

// Audience returns the expected audience
func (v *Verifier) Audience() string {
	return v.audience
}

// Verify validates raw against keys and returns its claims.
// The result depends only on the inputs and the clock, so callers must not retry it.
func (v *Verifier) Verify(raw string, keys *KeySet) (*Claims, error) {
	header, err := v.decodeHeader(raw)
	if err != nil {
		return nil, err
	}

	record, ok := keys.Lookup(header.Kid)
	if !ok {
		return nil, newAuthError(KindKeyNotFound, fmt.Errorf("no key with kid %q", header.Kid))
	}

	publicKey, err := record.PublicKey()
	if err != nil {
		return nil, err
	}

	if !v.allowed(header.Alg) {
		return nil, newAuthError(KindSignatureInvalid, fmt.Errorf("algorithm %q is not allowed", header.Alg))
	}
	if record.Alg != "" && record.Alg != header.Alg {
		return nil, newAuthError(KindSignatureInvalid,
			fmt.Errorf("token algorithm %q does not match key algorithm %q", header.Alg, record.Alg))
	}

	token, err := v.parser.ParseWithClaims(raw, jwt.MapClaims{}, func(*jwt.Token) (interface{}, error) {
		return publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, newAuthError(KindTokenMalformed, err)
		}
		return nil, newAuthError(KindSignatureInvalid, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, newAuthError(KindTokenMalformed, errors.New("unexpected claims type"))
	}

	if err := v.validateStandardClaims(mapClaims); err != nil {
		return nil, err
	}

	claims, err := newClaims(mapClaims)
	if err != nil {
		return nil, newAuthError(KindTokenMalformed, err)
	}
	return claims, nil
}

func (v *Verifier) decodeHeader(raw string) (*tokenHeader, error) {
	segments := strings.Split(raw, ".")
	if len(segments) != 3 {
		return nil, newAuthError(KindTokenMalformed, fmt.Errorf("token has %d segments, expected 3", len(segments)))
	}

	data, err := v.parser.DecodeSegment(segments[0])
	if err != nil {
		return nil, newAuthError(KindTokenMalformed, fmt.Errorf("failed to decode header: %w", err))
	}

	var header tokenHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, newAuthError(KindTokenMalformed, fmt.Errorf("failed to parse header: %w", err))
	}
	if header.Alg == "" {
		return nil, newAuthError(KindTokenMalformed, errors.New("alg header not found"))
	}
	if header.Kid == "" {
		return nil, newAuthError(KindTokenMalformed, errors.New("kid header not found"))
	}

	return &header, nil
}

func (v *Verifier) allowed(alg string) bool {
	for _, a := range v.algorithms {
		if a == alg {
			return true
		}
	}
	return false
}

// validateStandardClaims checks exp, aud and iss in that order
func (v *Verifier) validateStandardClaims(claims jwt.MapClaims) error {
	now := v.now()

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return newAuthError(KindTokenMalformed, err)
	}
	if exp == nil {
		return newAuthError(KindTokenExpired, errors.New("exp claim is missing"))
	}
	if !now.Before(exp.Time.Add(v.leeway)) {
		return newAuthError(KindTokenExpired, fmt.Errorf("expired at %s", exp.Time.UTC().Format(time.RFC3339)))
	}

	aud, err := claims.GetAudience()
	if err != nil {
		return newAuthError(KindAudienceInvalid, err)
	}
	if !containsAudience(aud, v.audience) {
		return newAuthError(KindAudienceInvalid, fmt.Errorf("audience %v does not contain %q", []string(aud), v.audience))
	}

	iss, err := claims.GetIssuer()
	if err != nil {
		return newAuthError(KindIssuerInvalid, err)
	}
	if iss != v.issuer {
		return newAuthError(KindIssuerInvalid, fmt.Errorf("expected %s, got %s", v.issuer, iss))
	}

	return nil
}

func containsAudience(audiences jwt.ClaimStrings, expected string) bool {
	for _, aud := range audiences {
		if aud == expected {
			return true
		}
	}
	return false
}
