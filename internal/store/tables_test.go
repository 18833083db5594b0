// ABOUTME: Tests for table registry and key-value operations
// ABOUTME: Covers creation, duplicate detection, and item CRUD semantics

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestTable(t *testing.T, s *SQLiteStore, name string, guestRead, guestWrite bool) *Table {
	t.Helper()
	owner := createTestUser(t, s, "owner-"+name, false)
	tbl := &Table{
		Name:            name,
		AllowGuestRead:  guestRead,
		AllowGuestWrite: guestWrite,
		CreatedBy:       owner.ID,
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.CreateTable(context.Background(), tbl))
	return tbl
}

func TestTableStore_CreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tbl := createTestTable(t, store, "notes", true, false)

	got, err := store.GetTable(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, "notes", got.Name)
	assert.True(t, got.AllowGuestRead)
	assert.False(t, got.AllowGuestWrite)
	assert.Equal(t, tbl.CreatedBy, got.CreatedBy)
}

func TestTableStore_CreateDuplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestTable(t, store, "notes", false, false)

	dup := &Table{Name: "notes", CreatedBy: 1, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	err := store.CreateTable(ctx, dup)
	assert.ErrorIs(t, err, ErrTableExists)
}

func TestTableStore_CreateGrantsCreatorAndAudits(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tbl := createTestTable(t, store, "notes", false, false)

	perm, err := store.GetPermission(ctx, tbl.CreatedBy, "notes")
	require.NoError(t, err)
	assert.True(t, perm.CanRead)
	assert.True(t, perm.CanWrite)

	entries, err := store.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, AuditCreateTable, entries[0].Action)
	assert.Equal(t, "owner-notes", entries[0].Actor)
	assert.Equal(t, "notes", entries[0].Target)
}

func TestTableStore_CreateRejectsCaseVariant(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// SQLite folds identifier case, so a case variant would share the
	// original's backing table if registration let it through.
	createTestTable(t, store, "secret", false, false)
	require.NoError(t, store.PutValue(ctx, "secret", "k", "private-data"))

	mallory := createTestUser(t, store, "mallory", false)
	err := store.CreateTable(ctx, &Table{
		Name:            "Secret",
		AllowGuestRead:  true,
		AllowGuestWrite: true,
		CreatedBy:       mallory.ID,
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	})
	assert.ErrorIs(t, err, ErrTableExists)

	// The variant never became a readable alias of the original
	_, _, err = store.GetValue(ctx, "Secret", "k")
	assert.ErrorIs(t, err, ErrTableNotFound)

	// The failed creation left no partial side effects
	_, err = store.GetTable(ctx, "Secret")
	assert.ErrorIs(t, err, ErrTableNotFound)
	_, err = store.GetPermission(ctx, mallory.ID, "Secret")
	assert.ErrorIs(t, err, ErrPermissionNotFound)
}

func TestTableStore_ConcurrentCreateOneWins(t *testing.T) {
	store := setupTestStore(t)

	owner := createTestUser(t, store, "owner", false)

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.CreateTable(context.Background(), &Table{
				Name:      "shared",
				CreatedBy: owner.ID,
				CreatedAt: time.Now().UTC().Truncate(time.Second),
			})
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrTableExists):
			lost++
		default:
			t.Fatalf("unexpected create error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, workers-1, lost)
}

func TestTableStore_CreateInvalidName(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "1bad", "drop;table", "users"} {
		err := store.CreateTable(ctx, &Table{Name: name, CreatedBy: 1, CreatedAt: time.Now()})
		assert.ErrorIs(t, err, ErrInvalidIdentifier, "name %q", name)
	}
}

func TestTableStore_GetMissing(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetTable(context.Background(), "nothing")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestTableStore_List(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tables, err := store.ListTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)

	createTestTable(t, store, "notes", false, false)
	createTestTable(t, store, "archive", true, true)

	tables, err = store.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "archive", tables[0].Name)
	assert.Equal(t, "notes", tables[1].Name)
}

func TestKV_PutGetDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestTable(t, store, "notes", false, false)

	require.NoError(t, store.PutValue(ctx, "notes", "k1", "v1"))

	value, exists, err := store.GetValue(ctx, "notes", "k1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "v1", value)

	// Overwrite
	require.NoError(t, store.PutValue(ctx, "notes", "k1", "v2"))
	value, exists, err = store.GetValue(ctx, "notes", "k1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "v2", value)

	require.NoError(t, store.DeleteValue(ctx, "notes", "k1"))
	_, exists, err = store.GetValue(ctx, "notes", "k1")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting an absent key is a no-op
	require.NoError(t, store.DeleteValue(ctx, "notes", "k1"))
}

func TestKV_GetMissingKey(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestTable(t, store, "notes", false, false)

	value, exists, err := store.GetValue(ctx, "notes", "absent")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, value)
}

func TestKV_UnknownTable(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, _, err := store.GetValue(ctx, "ghost", "k")
	assert.ErrorIs(t, err, ErrTableNotFound)

	err = store.PutValue(ctx, "ghost", "k", "v")
	assert.ErrorIs(t, err, ErrTableNotFound)

	err = store.DeleteValue(ctx, "ghost", "k")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestKV_HostileKeysAndValues(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestTable(t, store, "notes", false, false)

	// Keys and values are bound parameters, never identifier text
	key := `k'; DROP TABLE "kv_notes"; --`
	value := `v" OR 1=1`

	require.NoError(t, store.PutValue(ctx, "notes", key, value))

	got, exists, err := store.GetValue(ctx, "notes", key)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, value, got)

	// Table still intact
	require.NoError(t, store.PutValue(ctx, "notes", "other", "x"))
}

func TestKV_ConcurrentPutSerializes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestTable(t, store, "notes", false, false)

	const workers = 8
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.PutValue(context.Background(), "notes", "k", fmt.Sprintf("v%d", i)))
		}()
	}
	wg.Wait()

	// Writes serialize: the key holds exactly one of the submitted values
	value, exists, err := store.GetValue(ctx, "notes", "k")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Regexp(t, `^v[0-7]$`, value)
}

func TestKV_TablesAreIsolated(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestTable(t, store, "left", false, false)
	createTestTable(t, store, "right", false, false)

	require.NoError(t, store.PutValue(ctx, "left", "k", "left-value"))
	require.NoError(t, store.PutValue(ctx, "right", "k", "right-value"))

	value, _, err := store.GetValue(ctx, "left", "k")
	require.NoError(t, err)
	assert.Equal(t, "left-value", value)

	value, _, err = store.GetValue(ctx, "right", "k")
	require.NoError(t, err)
	assert.Equal(t, "right-value", value)
}
