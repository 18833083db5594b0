// ABOUTME: Tests for session issuance and resolution
// ABOUTME: Covers token shape, expiry handling, and deleted-user sessions

package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablekv/tablekv/internal/store"
)

func setupSessionManager(t *testing.T, duration time.Duration) (*SessionManager, *store.SQLiteStore) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return NewSessionManager(s, s, duration), s
}

func createSessionTestUser(t *testing.T, s *store.SQLiteStore, username string, admin bool) *store.User {
	t.Helper()
	user := &store.User{
		Username:     username,
		PasswordHash: "$2a$10$hash",
		IsAdmin:      admin,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func TestSessionManager_CreateAndResolve(t *testing.T) {
	m, s := setupSessionManager(t, time.Hour)
	ctx := context.Background()

	user := createSessionTestUser(t, s, "alice", true)

	session, err := m.Create(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, session.SID, 64, "32 random bytes hex encoded")
	assert.Equal(t, user.ID, session.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, 5*time.Second)

	ident, err := m.Resolve(ctx, session.SID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, ident.UserID)
	assert.Equal(t, "alice", ident.Username)
	assert.True(t, ident.IsAdmin)
}

func TestSessionManager_TokensAreUnique(t *testing.T) {
	m, s := setupSessionManager(t, time.Hour)
	ctx := context.Background()

	user := createSessionTestUser(t, s, "alice", false)

	s1, err := m.Create(ctx, user.ID)
	require.NoError(t, err)
	s2, err := m.Create(ctx, user.ID)
	require.NoError(t, err)

	// Concurrent sessions for one user are allowed and independent
	assert.NotEqual(t, s1.SID, s2.SID)

	_, err = m.Resolve(ctx, s1.SID)
	assert.NoError(t, err)
	_, err = m.Resolve(ctx, s2.SID)
	assert.NoError(t, err)
}

func TestSessionManager_ResolveUnknown(t *testing.T) {
	m, _ := setupSessionManager(t, time.Hour)

	_, err := m.Resolve(context.Background(), "deadbeef")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestSessionManager_ResolveExpired(t *testing.T) {
	m, s := setupSessionManager(t, time.Hour)
	ctx := context.Background()

	user := createSessionTestUser(t, s, "alice", false)

	past := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
	require.NoError(t, s.CreateSession(ctx, &store.Session{
		SID:       "expiredtoken",
		UserID:    user.ID,
		CreatedAt: past.Add(-time.Hour),
		ExpiresAt: past,
	}))

	_, err := m.Resolve(ctx, "expiredtoken")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.ErrorIs(t, err, store.ErrSessionExpired)
}

func TestSessionManager_ResolveDeletedUser(t *testing.T) {
	m, s := setupSessionManager(t, time.Hour)
	ctx := context.Background()

	user := createSessionTestUser(t, s, "alice", false)
	session, err := m.Create(ctx, user.ID)
	require.NoError(t, err)

	// Deleting the user cascades to the session row, so the token resolves
	// like any other unknown token afterwards
	require.NoError(t, s.DeleteUser(ctx, user.ID))

	_, err = m.Resolve(ctx, session.SID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestSessionManager_CreateVacuumsExpired(t *testing.T) {
	m, s := setupSessionManager(t, time.Hour)
	ctx := context.Background()

	user := createSessionTestUser(t, s, "alice", false)

	past := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
	require.NoError(t, s.CreateSession(ctx, &store.Session{
		SID:       "stale",
		UserID:    user.ID,
		CreatedAt: past.Add(-time.Hour),
		ExpiresAt: past,
	}))

	_, err := m.Create(ctx, user.ID)
	require.NoError(t, err)

	_, err = s.GetSession(ctx, "stale")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestSessionManager_DefaultDuration(t *testing.T) {
	m, _ := setupSessionManager(t, 0)
	assert.Equal(t, DefaultSessionDuration, m.Duration())
}
