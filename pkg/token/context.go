package token

import "context"

// principalKey is a private type for the principal context key.
type principalKey struct{}

// SetPrincipal stores verified access-token claims in the context as the
// authenticated principal for the request.
func SetPrincipal(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, principalKey{}, claims)
}

// PrincipalFromContext retrieves the authenticated principal.
// Returns nil if the request carries no verified access token.
func PrincipalFromContext(ctx context.Context) *Claims {
	if v, ok := ctx.Value(principalKey{}).(*Claims); ok {
		return v
	}
	return nil
}
