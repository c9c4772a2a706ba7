package jwtauth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odontolegal/internal/ports/auth"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier(Config{Secret: "s3cret", Issuer: "odontolegal"})

	tok, err := v.Issue(auth.Claims{UserID: "u1", Name: "Dra. Pérez", Role: auth.RoleExpert}, time.Hour)
	require.NoError(t, err)

	c, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "Dra. Pérez", c.Name)
	assert.Equal(t, auth.RoleExpert, c.Role)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier(Config{Secret: "s3cret", Issuer: "odontolegal"})
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		_, err := v.Verify(ctx, "  ")
		assert.ErrorIs(t, err, ErrTokenEmpty)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewVerifier(Config{Secret: "otro", Issuer: "odontolegal"})
		tok, err := other.Issue(auth.Claims{UserID: "u1"}, time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(ctx, tok)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewVerifier(Config{Secret: "s3cret", Issuer: "otro"})
		tok, err := other.Issue(auth.Claims{UserID: "u1"}, time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(ctx, tok)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewVerifier(Config{Secret: "s3cret", Issuer: "odontolegal"})
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		tok, err := past.Issue(auth.Claims{UserID: "u1"}, time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(ctx, tok)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("alg none", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u1"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = v.Verify(ctx, tok)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("missing subject", func(t *testing.T) {
		tok, err := v.Issue(auth.Claims{}, time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(ctx, tok)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := NewVerifier(Config{}).Verify(ctx, "x")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}
