package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"odontolegal/internal/ports/auth"
)

var (
	ErrNotConfigured = errors.New("jwt verifier not configured")
	ErrTokenEmpty    = errors.New("token is empty")
	ErrTokenInvalid  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token has expired")
)

// tokenClaims es el payload esperado: sub = id de usuario.
type tokenClaims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Config struct {
	Secret string
	Issuer string // opcional; si viene se exige

	// Leeway tolera desfasajes de reloj en exp/nbf.
	Leeway time.Duration
}

// Verifier implementa auth.AuthVerifier con tokens HS256.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

func NewVerifier(cfg Config) *Verifier {
	return &Verifier{
		secret: []byte(strings.TrimSpace(cfg.Secret)),
		issuer: strings.TrimSpace(cfg.Issuer),
		leeway: cfg.Leeway,
		now:    time.Now,
	}
}

func (v *Verifier) IsConfigured() bool {
	return v != nil && len(v.secret) > 0
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if !v.IsConfigured() {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var tc tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return auth.Claims{}, ErrTokenExpired
		}
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return auth.Claims{}, ErrTokenInvalid
	}

	userID := strings.TrimSpace(tc.Subject)
	if userID == "" {
		return auth.Claims{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return auth.Claims{
		UserID: userID,
		Name:   strings.TrimSpace(tc.Name),
		Email:  strings.TrimSpace(tc.Email),
		Role:   auth.ParseRole(tc.Role),
	}, nil
}

// Issue firma un token para las claims dadas. Lo usan tests y tooling local;
// en producción los tokens los emite el proveedor de identidad.
func (v *Verifier) Issue(c auth.Claims, ttl time.Duration) (string, error) {
	if !v.IsConfigured() {
		return "", ErrNotConfigured
	}
	now := v.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Name:  c.Name,
		Email: c.Email,
		Role:  string(c.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	return tok.SignedString(v.secret)
}
