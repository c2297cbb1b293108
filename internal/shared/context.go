package shared

import (
	"context"

	"github.com/keystone-id/keystone/internal/token"
)

type identityContextKey struct{}

type identityRecorderKey struct{}

// identityRecorder lets middleware installed before the auth guard observe
// the identity the guard attaches further down the chain.
type identityRecorder struct {
	identity *token.Identity
}

// ContextWithIdentity stores the authenticated identity in context and, when
// a recorder is present, makes it visible to upstream middleware.
func ContextWithIdentity(ctx context.Context, identity token.Identity) context.Context {
	if rec, ok := ctx.Value(identityRecorderKey{}).(*identityRecorder); ok {
		rec.identity = &identity
	}
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the authenticated identity from context.
func IdentityFromContext(ctx context.Context) (token.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(token.Identity)
	return identity, ok
}

// ContextWithIdentityRecorder installs a recorder for the request logger.
func ContextWithIdentityRecorder(ctx context.Context) context.Context {
	return context.WithValue(ctx, identityRecorderKey{}, &identityRecorder{})
}

// RecordedIdentity returns the identity attached downstream, if any.
func RecordedIdentity(ctx context.Context) (token.Identity, bool) {
	rec, ok := ctx.Value(identityRecorderKey{}).(*identityRecorder)
	if !ok || rec.identity == nil {
		return token.Identity{}, false
	}
	return *rec.identity, true
}
