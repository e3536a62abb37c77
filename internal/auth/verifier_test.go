package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stationplan/internal/config"
)

func b64(v any) string {
	b, _ := json.Marshal(v)
	return base64.RawURLEncoding.EncodeToString(b)
}

func hs256(secret string, claims map[string]any) string {
	in := b64(map[string]string{"alg": "HS256", "typ": "JWT"}) + "." + b64(claims)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(in))
	return in + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func TestDevMode(t *testing.T) {
	v := NewVerifier(config.AuthConfig{Mode: "dev", TenantClaim: "tenant", RoleClaim: "role"})
	p, err := v.Verify("acme:Planner")
	require.NoError(t, err)
	assert.Equal(t, Principal{Tenant: "acme", Role: RolePlanner}, p)

	p, err = v.Verify("acme:driver")
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, p.Role)

	_, err = v.Verify("no-role")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestHMACMode(t *testing.T) {
	v := NewVerifier(config.AuthConfig{Mode: "hmac", HMACSecret: "k", TenantClaim: "tenant", RoleClaim: "role"})
	tok := hs256("k", map[string]any{"tenant": "acme", "role": "admin"})
	p, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, Principal{Tenant: "acme", Role: RoleAdmin}, p)

	_, err = v.Verify(hs256("wrong", map[string]any{"tenant": "acme"}))
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = v.Verify(hs256("k", map[string]any{"role": "admin"}))
	assert.Error(t, err)

	expired := hs256("k", map[string]any{"tenant": "acme", "exp": float64(time.Now().Add(-time.Minute).Unix())})
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrExpired)

	_, err = v.Verify("a.b")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestJWKSMode(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	in := b64(map[string]string{"alg": "RS256", "kid": "k1"}) + "." + b64(map[string]any{"tenant": "acme", "role": "viewer"})
	h := sha256.Sum256([]byte(in))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, h[:])
	require.NoError(t, err)
	tok := in + "." + base64.RawURLEncoding.EncodeToString(sig)

	v := NewVerifier(config.AuthConfig{Mode: "jwks", JWKSURL: srv.URL, TenantClaim: "tenant", RoleClaim: "role"})
	p, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, Principal{Tenant: "acme", Role: RoleViewer}, p)

	bad := b64(map[string]string{"alg": "RS256", "kid": "missing"}) + "." + b64(map[string]any{"tenant": "acme"}) + "." + base64.RawURLEncoding.EncodeToString(sig)
	_, err = v.Verify(bad)
	assert.Error(t, err)
}
