package auth

import "context"

type identityContextKey struct{}

// ContextWithIdentity attaches a verified identity to the context. This is
// transport plumbing only: core operations always take the identity as an
// explicit argument.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	if id == nil {
		return ctx
	}
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the verified identity placed by the
// authentication middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || id == nil {
		return nil, false
	}
	return id, true
}
