package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "temp"), filepath.Join(root, "sessions"))
	require.NoError(t, store.EnsureRootDirs())
	return store
}

func TestNewID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id, err := NewID()
		require.NoError(t, err)
		assert.Len(t, id, IDLength)
		assert.NoError(t, ValidateID(id))
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		shouldErr bool
	}{
		{"valid id", "abc123XYZ", false},
		{"empty id", "", true},
		{"dot", ".", true},
		{"path traversal", "../etc", true},
		{"forward slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"null byte", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.shouldErr {
				assert.ErrorIs(t, err, ErrInvalidID)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStore_EnsureRootDirs(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "temp"), filepath.Join(root, "sessions"))

	require.NoError(t, store.EnsureRootDirs())
	assert.DirExists(t, store.PendingRoot())
	assert.DirExists(t, store.PersistedRoot())

	// Existing directories are fine
	assert.NoError(t, store.EnsureRootDirs())
}

func TestStore_EnsureRootDirs_Failure(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	store := NewStore(filepath.Join(blocker, "temp"), filepath.Join(root, "sessions"))
	err := store.EnsureRootDirs()

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "init", storeErr.Op)
}

func TestStore_CreatePending(t *testing.T) {
	store := setupTestStore(t)

	path, err := store.CreatePending("abc")
	require.NoError(t, err)
	assert.Equal(t, store.PendingPath("abc"), path)
	assert.DirExists(t, path)
	assert.True(t, store.IsPending("abc"))
	assert.False(t, store.IsPersisted("abc"))

	t.Run("existing id fails", func(t *testing.T) {
		_, err := store.CreatePending("abc")
		var storeErr *StoreError
		require.True(t, errors.As(err, &storeErr))
		assert.Equal(t, "create", storeErr.Op)
		assert.Equal(t, "abc", storeErr.ID)
	})

	t.Run("invalid id fails", func(t *testing.T) {
		_, err := store.CreatePending("../x")
		assert.ErrorIs(t, err, ErrInvalidID)
	})
}

func TestStore_Promote(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CreatePending("abc")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(store.PendingPath("abc"), "keys"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(store.PendingPath("abc"), "keys", "k1"), []byte("key"), 0600))

	promoted, err := store.Promote(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, promoted)

	assert.NoDirExists(t, store.PendingPath("abc"))
	assert.DirExists(t, store.PersistedPath("abc"))
	data, err := os.ReadFile(filepath.Join(store.PersistedPath("abc"), "keys", "k1"))
	require.NoError(t, err)
	assert.Equal(t, "key", string(data))
}

func TestStore_PromoteTwiceIsSameAsOnce(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CreatePending("abc")
	require.NoError(t, err)

	first, err := store.Promote(ctx, "abc")
	require.NoError(t, err)
	second, err := store.Promote(ctx, "abc")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.NoDirExists(t, store.PendingPath("abc"))

	persisted, err := store.ListPersisted()
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "abc", persisted[0].ID)
}

func TestStore_PromoteUnknownIsNoop(t *testing.T) {
	store := setupTestStore(t)

	promoted, err := store.Promote(context.Background(), "missing")
	assert.NoError(t, err)
	assert.False(t, promoted)
	assert.NoDirExists(t, store.PersistedPath("missing"))
}

// Concurrent promotion of the same id is not guarded by the store. This test
// only pins down that the persisted copy ends up present; it makes no claim
// about the errors either caller sees.
func TestStore_ConcurrentPromoteSameIDIsUnguarded(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.CreatePending("race")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.PendingPath("race"), "creds.json"), []byte("{}"), 0600))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Promote(context.Background(), "race")
		}()
	}
	wg.Wait()

	assert.DirExists(t, store.PersistedPath("race"))
}

func TestStore_DeletePending(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.CreatePending("abc")
	require.NoError(t, err)

	require.NoError(t, store.DeletePending("abc"))
	assert.NoDirExists(t, store.PendingPath("abc"))

	// Deleting again is not an error
	assert.NoError(t, store.DeletePending("abc"))
	assert.ErrorIs(t, store.DeletePending(""), ErrInvalidID)
}

func TestStore_List(t *testing.T) {
	store := setupTestStore(t)

	for _, id := range []string{"a1", "b2", "c3"} {
		_, err := store.CreatePending(id)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(store.PendingRoot(), "stray.txt"), []byte("x"), 0600))
	_, err := store.Promote(context.Background(), "b2")
	require.NoError(t, err)

	pending, err := store.ListPending()
	require.NoError(t, err)
	ids := make([]string, 0, len(pending))
	for _, info := range pending {
		assert.Equal(t, AreaPending, info.Area)
		ids = append(ids, info.ID)
	}
	assert.ElementsMatch(t, []string{"a1", "c3"}, ids)

	persisted, err := store.ListPersisted()
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, AreaPersisted, persisted[0].Area)
}

func TestStore_ListMissingRoot(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "nope"), filepath.Join(root, "nada"))

	pending, err := store.ListPending()
	assert.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStore_ConcurrentCreateIsIndependent(t *testing.T) {
	store := setupTestStore(t)

	ids := make([]string, 2)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := NewID()
			require.NoError(t, err)
			_, err = store.CreatePending(id)
			require.NoError(t, err)
			require.NoError(t, store.Credentials(id).WriteFile("owner", []byte(id)))
			ids[i] = id
		}(i)
	}
	wg.Wait()

	require.NotEqual(t, ids[0], ids[1])
	for _, id := range ids {
		data, err := store.Credentials(id).ReadFile("owner")
		require.NoError(t, err)
		assert.Equal(t, id, string(data))
	}
}
