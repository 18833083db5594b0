// ABOUTME: Tests for session middleware and identity context plumbing
// ABOUTME: Covers guest pass-through, bad-cookie rejection, and RequireUser

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablekv/tablekv/internal/store"
)

func TestSessionMiddleware_NoCookieIsGuest(t *testing.T) {
	m, _ := setupSessionManager(t, time.Hour)

	var seen *Identity
	called := false
	handler := SessionMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		seen = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/kv/notes/k", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Nil(t, seen, "no cookie should mean guest, not an error")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionMiddleware_ValidCookie(t *testing.T) {
	m, s := setupSessionManager(t, time.Hour)
	user := createSessionTestUser(t, s, "alice", true)

	session, err := m.Create(context.Background(), user.ID)
	require.NoError(t, err)

	var seen *Identity
	handler := SessionMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/kv/notes/k", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session.SID})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.NotNil(t, seen)
	assert.Equal(t, user.ID, seen.UserID)
	assert.Equal(t, "alice", seen.Username)
	assert.True(t, seen.IsAdmin)
}

func TestSessionMiddleware_BadCookieRejected(t *testing.T) {
	m, _ := setupSessionManager(t, time.Hour)

	called := false
	handler := SessionMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	// An invalid token must not fall back to guest access
	req := httptest.NewRequest(http.MethodGet, "/kv/notes/k", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "bogus"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionMiddleware_ExpiredCookieRejected(t *testing.T) {
	m, s := setupSessionManager(t, time.Hour)
	user := createSessionTestUser(t, s, "alice", false)

	past := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
	require.NoError(t, s.CreateSession(context.Background(), &store.Session{
		SID:       "stale",
		UserID:    user.ID,
		CreatedAt: past.Add(-time.Hour),
		ExpiresAt: past,
	}))

	handler := SessionMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/kv/notes/k", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireUser(t *testing.T) {
	called := false
	handler := RequireUser(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	// Guest: rejected
	req := httptest.NewRequest(http.MethodPost, "/create_kv", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Authenticated: passes
	ident := &Identity{UserID: 1, Username: "alice"}
	req = httptest.NewRequest(http.MethodPost, "/create_kv", nil)
	req = req.WithContext(WithIdentity(req.Context(), ident))
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.True(t, called)
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	ident := &Identity{UserID: 7, Username: "bob", IsAdmin: false}
	ctx = WithIdentity(ctx, ident)
	got := FromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, "bob", got.Username)
}
