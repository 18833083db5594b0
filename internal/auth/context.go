// ABOUTME: Identity context for tracking the authenticated user through handlers
// ABOUTME: Provides WithIdentity/FromContext for propagating identity via context

package auth

import (
	"context"
)

// Identity holds the authenticated user extracted from a request.
// A nil *Identity in handlers means the request is a guest request.
type Identity struct {
	UserID   int64
	Username string
	IsAdmin  bool
}

// identityKey is the key type for storing Identity in context.Context.
type identityKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, ident)
}

// FromContext retrieves the Identity from the context, returning nil for
// guest requests or contexts that never passed through the middleware.
func FromContext(ctx context.Context) *Identity {
	val := ctx.Value(identityKey{})
	if val == nil {
		return nil
	}
	ident, ok := val.(*Identity)
	if !ok {
		return nil
	}
	return ident
}
