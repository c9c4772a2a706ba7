package auth

import "context"

// AuthVerifier valida el bearer token de un request y devuelve la identidad.
// La implementación de producción es adapters/auth/jwtauth (HS256).
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// VerifierFunc adapta una función a AuthVerifier.
type VerifierFunc func(ctx context.Context, token string) (Claims, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (Claims, error) {
	return f(ctx, token)
}
