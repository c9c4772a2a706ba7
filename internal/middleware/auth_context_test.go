package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"odontolegal/internal/ports/auth"
)

func stubVerifier(claims auth.Claims) auth.VerifierFunc {
	return func(ctx context.Context, token string) (auth.Claims, error) {
		if token != "good" {
			return auth.Claims{}, errors.New("bad token")
		}
		return claims, nil
	}
}

func captureClaims(t *testing.T, mw func(http.Handler) http.Handler, req *http.Request) (auth.Claims, bool) {
	t.Helper()
	var got auth.Claims
	var ok bool
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = GetClaims(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)
	return got, ok
}

func TestAuthContext_DevHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Debug-User-ID", "u-1")
	req.Header.Set("X-Debug-User-Name", "Dr. Costa")
	req.Header.Set("X-Debug-User-Role", "perito")

	c, ok := captureClaims(t, AuthContext(nil), req)
	assert.True(t, ok)
	assert.Equal(t, auth.Claims{UserID: "u-1", Name: "Dr. Costa", Role: auth.RoleExpert}, c)
}

func TestAuthContext_BearerToken(t *testing.T) {
	v := stubVerifier(auth.Claims{UserID: "u-9", Role: auth.RoleAdmin})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	c, ok := captureClaims(t, AuthContext(v), req)
	assert.True(t, ok)
	assert.Equal(t, "u-9", c.UserID)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	_, ok = captureClaims(t, AuthContext(v), req)
	assert.False(t, ok)

	// con verifier configurado los headers de debug se ignoran
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Debug-User-ID", "u-1")
	_, ok = captureClaims(t, AuthContext(v), req)
	assert.False(t, ok)
}
