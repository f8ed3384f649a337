package auth0

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/coffee-shop/backend/auth0/auth0test"
)

func newTestVerifier(t *testing.T, mutate ...func(*VerifierConfig)) *Verifier {
	t.Helper()
	cfg := VerifierConfig{
		Issuer:   auth0test.DefaultIssuerURL,
		Audience: auth0test.DefaultAudience,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	v, err := NewVerifier(cfg)
	require.NoError(t, err)
	return v
}

func fetchKeySet(t *testing.T, issuer *auth0test.Issuer) *KeySet {
	t.Helper()
	set, err := NewHTTPKeyResolver(ResolverConfig{URL: issuer.JWKSURL()}, nil).KeySet(context.Background())
	require.NoError(t, err)
	return set
}

func TestNewVerifier(t *testing.T) {
	tests := []struct {
		name    string
		cfg     VerifierConfig
		wantErr string
	}{
		{
			name:    "missing issuer",
			cfg:     VerifierConfig{Audience: "api"},
			wantErr: "issuer is required",
		},
		{
			name:    "missing audience",
			cfg:     VerifierConfig{Issuer: "https://x/"},
			wantErr: "audience is required",
		},
		{
			name:    "symmetric algorithm",
			cfg:     VerifierConfig{Issuer: "https://x/", Audience: "api", Algorithms: []string{"HS256"}},
			wantErr: "only asymmetric algorithms",
		},
		{
			name:    "none algorithm",
			cfg:     VerifierConfig{Issuer: "https://x/", Audience: "api", Algorithms: []string{"none"}},
			wantErr: "only asymmetric algorithms",
		},
		{
			name: "defaults to RS256",
			cfg:  VerifierConfig{Issuer: "https://x/", Audience: "api"},
		},
		{
			name: "several asymmetric algorithms",
			cfg:  VerifierConfig{Issuer: "https://x/", Audience: "api", Algorithms: []string{"RS256", "ES256", "EdDSA"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVerifier(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Issuer, v.Issuer())
			assert.Equal(t, tt.cfg.Audience, v.Audience())
		})
	}
}

func TestVerifier_Verify(t *testing.T) {
	issuer := auth0test.NewIssuer(t)
	issuer.AddKey(t, "rotated-out")
	issuer.RemoveKey("rotated-out")
	keys := fetchKeySet(t, issuer)
	verifier := newTestVerifier(t)

	t.Run("valid token", func(t *testing.T) {
		claims, err := verifier.Verify(issuer.Token(t, "post:drinks", "get:drinks-detail"), keys)

		require.NoError(t, err)
		assert.Equal(t, "auth0|barista-1", claims.Subject())
		assert.Equal(t, auth0test.DefaultIssuerURL, claims.Issuer())
		assert.Equal(t, []string{"get:drinks-detail", "post:drinks"}, claims.Permissions())
	})

	t.Run("audience as single string", func(t *testing.T) {
		c := issuer.Claims("post:drinks")
		c["aud"] = auth0test.DefaultAudience

		_, err := verifier.Verify(issuer.Sign(t, auth0test.DefaultKid, c), keys)

		assert.NoError(t, err)
	})

	t.Run("kid not in key set", func(t *testing.T) {
		token := issuer.Sign(t, "rotated-out", issuer.Claims("post:drinks"))

		_, err := verifier.Verify(token, keys)

		assert.True(t, errors.Is(err, ErrKeyNotFound), "got %v", err)
	})

	t.Run("kid not in key set wins over bad claims", func(t *testing.T) {
		c := issuer.Claims()
		c["exp"] = time.Now().Add(-time.Hour).Unix()
		c["aud"] = "someone-else"
		token := issuer.Sign(t, "rotated-out", c)

		_, err := verifier.Verify(token, keys)

		assert.Equal(t, KindKeyNotFound, KindOf(err))
	})

	t.Run("expired", func(t *testing.T) {
		c := issuer.Claims("post:drinks")
		c["exp"] = time.Now().Add(-time.Minute).Unix()

		_, err := verifier.Verify(issuer.Sign(t, auth0test.DefaultKid, c), keys)

		assert.True(t, errors.Is(err, ErrTokenExpired), "got %v", err)
	})

	t.Run("missing exp is treated as expired", func(t *testing.T) {
		c := issuer.Claims("post:drinks")
		delete(c, "exp")

		_, err := verifier.Verify(issuer.Sign(t, auth0test.DefaultKid, c), keys)

		assert.Equal(t, KindTokenExpired, KindOf(err))
	})

	t.Run("expiry checked before audience", func(t *testing.T) {
		c := issuer.Claims("post:drinks")
		c["exp"] = time.Now().Add(-time.Minute).Unix()
		c["aud"] = "someone-else"

		_, err := verifier.Verify(issuer.Sign(t, auth0test.DefaultKid, c), keys)

		assert.Equal(t, KindTokenExpired, KindOf(err))
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := issuer.Claims("post:drinks")
		c["aud"] = []interface{}{"https://other-api/"}

		_, err := verifier.Verify(issuer.Sign(t, auth0test.DefaultKid, c), keys)

		assert.True(t, errors.Is(err, ErrAudienceInvalid), "got %v", err)
	})

	t.Run("missing audience", func(t *testing.T) {
		c := issuer.Claims("post:drinks")
		delete(c, "aud")

		_, err := verifier.Verify(issuer.Sign(t, auth0test.DefaultKid, c), keys)

		assert.Equal(t, KindAudienceInvalid, KindOf(err))
	})

	t.Run("audience checked before issuer", func(t *testing.T) {
		c := issuer.Claims("post:drinks")
		c["aud"] = "someone-else"
		c["iss"] = "https://evil.example.com/"

		_, err := verifier.Verify(issuer.Sign(t, auth0test.DefaultKid, c), keys)

		assert.Equal(t, KindAudienceInvalid, KindOf(err))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		c := issuer.Claims("post:drinks")
		c["iss"] = "https://evil.example.com/"

		_, err := verifier.Verify(issuer.Sign(t, auth0test.DefaultKid, c), keys)

		assert.True(t, errors.Is(err, ErrIssuerInvalid), "got %v", err)
	})

	t.Run("issuer without trailing slash", func(t *testing.T) {
		c := issuer.Claims("post:drinks")
		c["iss"] = strings.TrimSuffix(auth0test.DefaultIssuerURL, "/")

		_, err := verifier.Verify(issuer.Sign(t, auth0test.DefaultKid, c), keys)

		assert.Equal(t, KindIssuerInvalid, KindOf(err))
	})

	t.Run("signed by another key with the same kid", func(t *testing.T) {
		impostor := auth0test.NewIssuer(t)

		_, err := verifier.Verify(impostor.Token(t, "post:drinks"), keys)

		assert.True(t, errors.Is(err, ErrSignatureInvalid), "got %v", err)
	})

	t.Run("tampered payload", func(t *testing.T) {
		token := issuer.Token(t, "get:drinks-detail")
		forged := issuer.Token(t, "delete:drinks", "patch:drinks")
		parts := strings.Split(token, ".")
		parts[1] = strings.Split(forged, ".")[1]
		// keep the original signature
		tampered := strings.Join(parts, ".")

		_, err := verifier.Verify(tampered, keys)

		assert.Equal(t, KindSignatureInvalid, KindOf(err))
	})

	t.Run("symmetric algorithm rejected", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, issuer.Claims("post:drinks"))
		tok.Header["kid"] = auth0test.DefaultKid
		signed, err := tok.SignedString([]byte("shared-secret"))
		require.NoError(t, err)

		_, err = verifier.Verify(signed, keys)

		assert.Equal(t, KindSignatureInvalid, KindOf(err))
	})

	t.Run("algorithm must match key record", func(t *testing.T) {
		priv := issuer.AddKey(t, "rs384-kid")
		set := fetchKeySet(t, issuer)
		issuer.RemoveKey("rs384-kid")

		tok := jwt.NewWithClaims(jwt.SigningMethodRS384, issuer.Claims("post:drinks"))
		tok.Header["kid"] = "rs384-kid"
		signed, err := tok.SignedString(priv)
		require.NoError(t, err)

		lenient := newTestVerifier(t, func(c *VerifierConfig) { c.Algorithms = []string{"RS256", "RS384"} })
		_, err = lenient.Verify(signed, set)

		assert.Equal(t, KindSignatureInvalid, KindOf(err))
	})

	t.Run("malformed permissions claim", func(t *testing.T) {
		c := issuer.Claims()
		c["permissions"] = "post:drinks"

		_, err := verifier.Verify(issuer.Sign(t, auth0test.DefaultKid, c), keys)

		assert.Equal(t, KindTokenMalformed, KindOf(err))
	})

	t.Run("missing permissions claim still verifies", func(t *testing.T) {
		c := issuer.Claims()
		delete(c, "permissions")

		claims, err := verifier.Verify(issuer.Sign(t, auth0test.DefaultKid, c), keys)

		require.NoError(t, err)
		assert.False(t, claims.HasPermissionsClaim())
	})

	t.Run("malformed key material", func(t *testing.T) {
		broken, err := ParseKeySet([]byte(`{"keys":[{"kid":"` + auth0test.DefaultKid + `","kty":"RSA","e":"AQAB"}]}`))
		require.NoError(t, err)

		_, err = verifier.Verify(issuer.Token(t, "post:drinks"), broken)

		assert.True(t, errors.Is(err, ErrKeyMalformed), "got %v", err)
	})

	t.Run("empty key set", func(t *testing.T) {
		_, err := verifier.Verify(issuer.Token(t, "post:drinks"), &KeySet{})

		assert.Equal(t, KindKeyNotFound, KindOf(err))
	})

	t.Run("same input same outcome", func(t *testing.T) {
		token := issuer.Token(t, "post:drinks")

		first, err1 := verifier.Verify(token, keys)
		second, err2 := verifier.Verify(token, keys)

		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, first.Map(), second.Map())
	})
}

func TestVerifier_MalformedTokens(t *testing.T) {
	issuer := auth0test.NewIssuer(t)
	keys := fetchKeySet(t, issuer)
	verifier := newTestVerifier(t)

	noKid := jwt.NewWithClaims(jwt.SigningMethodRS256, issuer.Claims("post:drinks"))
	priv := issuer.AddKey(t, "unused")
	noKidToken, err := noKid.SignedString(priv)
	require.NoError(t, err)

	tests := map[string]string{
		"single segment":      "abc",
		"two segments":        "abc.def",
		"four segments":       "a.b.c.d",
		"header not base64":   "!!!.e30.sig",
		"header not json":     "bm90LWpzb24.e30.sig",
		"header without alg":  "eyJraWQiOiJ0ZXN0LWtpZC0xMjMifQ.e30.sig",
		"header without kid":  noKidToken,
		"empty string":        "",
		"valid header no sig": strings.Join(strings.Split(issuer.Token(t), ".")[:2], "."),
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.Verify(token, keys)

			assert.Equal(t, KindTokenMalformed, KindOf(err), "got %v", err)
		})
	}
}

func TestVerifier_Clock(t *testing.T) {
	issuer := auth0test.NewIssuer(t)
	keys := fetchKeySet(t, issuer)
	now := time.Now()

	c := issuer.Claims("post:drinks")
	c["exp"] = now.Add(-10 * time.Second).Unix()
	token := issuer.Sign(t, auth0test.DefaultKid, c)

	t.Run("leeway accepts recently expired", func(t *testing.T) {
		v := newTestVerifier(t, func(c *VerifierConfig) {
			c.Leeway = 30 * time.Second
			c.Now = func() time.Time { return now }
		})

		_, err := v.Verify(token, keys)

		assert.NoError(t, err)
	})

	t.Run("no leeway rejects", func(t *testing.T) {
		v := newTestVerifier(t, func(c *VerifierConfig) {
			c.Now = func() time.Time { return now }
		})

		_, err := v.Verify(token, keys)

		assert.Equal(t, KindTokenExpired, KindOf(err))
	})

	t.Run("exactly at expiry is expired", func(t *testing.T) {
		exp := time.Unix(now.Unix(), 0)
		c := issuer.Claims("post:drinks")
		c["exp"] = exp.Unix()
		v := newTestVerifier(t, func(c *VerifierConfig) {
			c.Now = func() time.Time { return exp }
		})

		_, err := v.Verify(issuer.Sign(t, auth0test.DefaultKid, c), keys)

		assert.Equal(t, KindTokenExpired, KindOf(err))
	})
}

func TestVerifier_ECKeys(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	pub, err := jwk.FromRaw(&priv.PublicKey)
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.KeyIDKey, "ec-kid"))
	require.NoError(t, pub.Set(jwk.AlgorithmKey, "ES256"))
	data, err := json.Marshal(map[string]interface{}{"keys": []interface{}{pub}})
	require.NoError(t, err)
	keys, err := ParseKeySet(data)
	require.NoError(t, err)

	issuer := auth0test.NewIssuer(t)
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, issuer.Claims("get:drinks-detail"))
	tok.Header["kid"] = "ec-kid"
	signed, err := tok.SignedString(priv)
	require.NoError(t, err)

	t.Run("allowed", func(t *testing.T) {
		v := newTestVerifier(t, func(c *VerifierConfig) { c.Algorithms = []string{"RS256", "ES256"} })

		claims, err := v.Verify(signed, keys)

		require.NoError(t, err)
		assert.True(t, claims.HasPermission("get:drinks-detail"))
	})

	t.Run("not in allowed algorithms", func(t *testing.T) {
		v := newTestVerifier(t)

		_, err := v.Verify(signed, keys)

		assert.Equal(t, KindSignatureInvalid, KindOf(err))
	})
}
