// ABOUTME: HTTP middleware resolving the sid session cookie to an identity
// ABOUTME: Missing cookie means guest; a present but bad cookie is rejected

package auth

import (
	"errors"
	"net/http"
)

// SessionCookieName is the name of the session cookie.
const SessionCookieName = "sid"

// SessionMiddleware resolves the session cookie and attaches the Identity to
// the request context. A request without the cookie passes through as guest
// (nil Identity). A request carrying an unknown or expired token is rejected
// with 401: a bad token is never downgraded to guest access.
func SessionMiddleware(sessions *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r) // Continue as guest
				return
			}

			ident, err := sessions.Resolve(r.Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, ErrSessionInvalid) {
					http.Error(w, `{"error":"invalid or expired session"}`, http.StatusUnauthorized)
					return
				}
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
		})
	}
}

// RequireUser wraps a handler to require an authenticated, non-guest caller.
// Must be used after SessionMiddleware.
func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
