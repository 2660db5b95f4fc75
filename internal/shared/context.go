package shared

import "context"

// Principal identifies the user an authenticated request acts for.
type Principal struct {
	UserID  int64
	Email   string
	IsStaff bool
}

type principalContextKey struct{}

// ContextWithPrincipal stores the authenticated principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok && p.UserID > 0
}

// UserIDFromContext returns the authenticated user id or zero.
func UserIDFromContext(ctx context.Context) int64 {
	p, _ := PrincipalFromContext(ctx)
	return p.UserID
}
