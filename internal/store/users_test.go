// ABOUTME: Tests for user store operations
// ABOUTME: Covers CRUD, uniqueness, and admin flag updates

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStore_CreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := &User{
		Username:     "alice",
		PasswordHash: "$2a$10$hash",
		IsAdmin:      false,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	err := store.CreateUser(ctx, user)
	require.NoError(t, err)
	assert.NotZero(t, user.ID, "CreateUser should populate the ID")

	got, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "$2a$10$hash", got.PasswordHash)
	assert.False(t, got.IsAdmin)
	assert.Equal(t, user.CreatedAt, got.CreatedAt)
}

func TestUserStore_GetByUsername(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "bob", true)

	got, err := store.GetUserByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.True(t, got.IsAdmin)

	_, err = store.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserStore_DuplicateUsername(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestUser(t, store, "alice", false)

	dup := &User{
		Username:     "alice",
		PasswordHash: "$2a$10$other",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	err := store.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestUserStore_SetAdmin(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "carol", false)

	require.NoError(t, store.SetAdmin(ctx, user.ID, true))
	got, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	require.NoError(t, store.SetAdmin(ctx, user.ID, false))
	got, err = store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAdmin)

	err = store.SetAdmin(ctx, 99999, true)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "dave", false)

	require.NoError(t, store.DeleteUser(ctx, user.ID))

	_, err := store.GetUser(ctx, user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = store.DeleteUser(ctx, user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserStore_Delete_CascadesGrantsAndSessions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "erin", false)

	tbl := &Table{Name: "notes", CreatedBy: user.ID, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, store.CreateTable(ctx, tbl))
	require.NoError(t, store.UpsertPermission(ctx, &Permission{
		UserID: user.ID, TableName: "notes", CanRead: true, CanWrite: true,
	}))
	require.NoError(t, store.CreateSession(ctx, &Session{
		SID:       "sid-erin",
		UserID:    user.ID,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}))

	require.NoError(t, store.DeleteUser(ctx, user.ID))

	_, err := store.GetPermission(ctx, user.ID, "notes")
	assert.ErrorIs(t, err, ErrPermissionNotFound)

	_, err = store.GetSession(ctx, "sid-erin")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUserStore_List(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	createTestUser(t, store, "alice", true)
	createTestUser(t, store, "bob", false)

	users, err = store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	names := []string{users[0].Username, users[1].Username}
	assert.ElementsMatch(t, []string{"alice", "bob"}, names)
}
