// Package auth provides session authentication for tablekv.
//
// # Sessions
//
// A successful login issues an opaque random token (64 hex characters from
// crypto/rand) with a fixed lifetime. Sessions are persisted via
// store.SessionStore and never refreshed or revoked; they simply lapse.
// SessionManager.Resolve distinguishes unknown tokens
// (store.ErrSessionNotFound) from lapsed ones (store.ErrSessionExpired);
// both wrap ErrSessionInvalid.
//
// # Identity propagation
//
// SessionMiddleware reads the "sid" cookie. Three outcomes:
//
//   - no cookie: the request proceeds as guest (nil Identity in context)
//   - valid cookie: the request proceeds with the user's Identity attached
//   - invalid or expired cookie: 401, never a silent downgrade to guest
//
// Handlers retrieve the caller with FromContext; RequireUser gates
// endpoints that must not be reachable by guests.
//
// # Passwords
//
// Passwords are hashed with bcrypt. The login path performs a dummy
// comparison for unknown usernames so response timing does not reveal
// whether an account exists.
package auth
