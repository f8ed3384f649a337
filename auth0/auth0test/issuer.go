// Package auth0test provides an in-process token issuer for tests: an
// httptest server publishing a JWKS and helpers to sign tokens with its keys.
package auth0test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"
)

const (
	// DefaultKid is the key ID of the key every Issuer starts with
	DefaultKid = "test-kid-123"

	// DefaultIssuerURL is the iss claim written into tokens
	DefaultIssuerURL = "https://coffee-shop-test.us.auth0.com/"

	// DefaultAudience is the aud claim written into tokens
	DefaultAudience = "http://127.0.0.1:5000/"

	// JWKSPath is where the key set is served
	JWKSPath = "/.well-known/jwks.json"
)

// Issuer is a fake authorization server
type Issuer struct {
	Server *httptest.Server

	mu       sync.Mutex
	keys     map[string]*rsa.PrivateKey
	order    []string
	status   int
	body     []byte
	requests int
}

// NewIssuer starts an issuer with one RSA key under DefaultKid.
// The server is closed when the test finishes.
func NewIssuer(t testing.TB) *Issuer {
	t.Helper()

	i := &Issuer{
		keys:   make(map[string]*rsa.PrivateKey),
		status: http.StatusOK,
	}
	i.AddKey(t, DefaultKid)

	i.Server = httptest.NewServer(http.HandlerFunc(i.serveJWKS))
	t.Cleanup(i.Server.Close)

	return i
}

// JWKSURL returns the URL of the served key set
func (i *Issuer) JWKSURL() string {
	return i.Server.URL + JWKSPath
}

// AddKey generates a 2048-bit RSA key and publishes it under kid
func (i *Issuer) AddKey(t testing.TB, kid string) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	i.mu.Lock()
	defer i.mu.Unlock()
	if _, exists := i.keys[kid]; !exists {
		i.order = append(i.order, kid)
	}
	i.keys[kid] = key
	return key
}

// RemoveKey stops publishing kid; tokens signed with it can still be minted
func (i *Issuer) RemoveKey(kid string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx, k := range i.order {
		if k == kid {
			i.order = append(i.order[:idx], i.order[idx+1:]...)
			break
		}
	}
}

// SetStatus makes the JWKS endpoint answer with code
func (i *Issuer) SetStatus(code int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status = code
}

// SetBody replaces the JWKS document with raw bytes; nil restores the real set
func (i *Issuer) SetBody(raw []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.body = raw
}

// Requests returns how many times the JWKS endpoint was hit
func (i *Issuer) Requests() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.requests
}

func (i *Issuer) serveJWKS(w http.ResponseWriter, r *http.Request) {
	i.mu.Lock()
	i.requests++
	status, body := i.status, i.body
	var published []*rsa.PrivateKey
	var kids []string
	for _, kid := range i.order {
		published = append(published, i.keys[kid])
		kids = append(kids, kid)
	}
	i.mu.Unlock()

	if r.URL.Path != JWKSPath {
		http.NotFound(w, r)
		return
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if body != nil {
		_, _ = w.Write(body)
		return
	}

	set := jwk.NewSet()
	for idx, key := range published {
		pub, err := jwk.FromRaw(key.Public())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = pub.Set(jwk.KeyIDKey, kids[idx])
		_ = pub.Set(jwk.AlgorithmKey, "RS256")
		_ = pub.Set(jwk.KeyUsageKey, "sig")
		_ = set.AddKey(pub)
	}
	_ = json.NewEncoder(w).Encode(set)
}

// Claims returns a valid claim set granting permissions
func (i *Issuer) Claims(permissions ...string) jwt.MapClaims {
	now := time.Now()
	perms := make([]interface{}, 0, len(permissions))
	for _, p := range permissions {
		perms = append(perms, p)
	}
	return jwt.MapClaims{
		"iss":         DefaultIssuerURL,
		"sub":         "auth0|barista-1",
		"aud":         []interface{}{DefaultAudience, DefaultIssuerURL + "userinfo"},
		"iat":         now.Unix(),
		"exp":         now.Add(time.Hour).Unix(),
		"permissions": perms,
	}
}

// Token signs a valid token under DefaultKid granting permissions
func (i *Issuer) Token(t testing.TB, permissions ...string) string {
	t.Helper()
	return i.Sign(t, DefaultKid, i.Claims(permissions...))
}

// Sign signs claims with RS256 using the key registered under kid
func (i *Issuer) Sign(t testing.TB, kid string, claims jwt.MapClaims) string {
	t.Helper()

	i.mu.Lock()
	key, ok := i.keys[kid]
	i.mu.Unlock()
	require.True(t, ok, "no key registered under kid %q", kid)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

// BearerHeader formats token as an Authorization header value
func BearerHeader(token string) string {
	return "Bearer " + token
}
