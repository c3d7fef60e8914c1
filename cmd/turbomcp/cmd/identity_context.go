package cmd

import (
	"context"

	"github.com/turbomcp/turbomcp/internal/domain/auth"
)

type resolvedIdentityContextKey struct{}

// withResolvedIdentity stashes an already-validated identity in ctx for
// httptransport.WithIdentityResolver to pick up at session creation.
func withResolvedIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, resolvedIdentityContextKey{}, identity)
}

// resolvedIdentityFromContext implements the httptransport identity
// resolver hook.
func resolvedIdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(resolvedIdentityContextKey{}).(*auth.Identity)
	return identity, ok
}
