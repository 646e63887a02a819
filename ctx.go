package identity

import "context"

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSession stores verified session claims in ctx
func WithSession(ctx context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(ctx, sessionCtxKey, claims)
}

// SessionFromContext returns the claims stored by WithSession
func SessionFromContext(ctx context.Context) (*TokenClaims, bool) {
	claims, ok := ctx.Value(sessionCtxKey).(*TokenClaims)
	return claims, ok && claims != nil
}

// ContextWithSessionToken verifies token with SessionFromToken and stores
// the claims in ctx
func (s *Service) ContextWithSessionToken(ctx context.Context, token string) (context.Context, error) {
	claims, err := s.SessionFromToken(token)
	if err != nil {
		return ctx, err
	}
	return WithSession(ctx, claims), nil
}
