package session

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentials_RoundTripAcrossPromotion(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.CreatePending("abc")
	require.NoError(t, err)

	creds := store.Credentials("abc")
	assert.Equal(t, "abc", creds.ID())
	assert.Equal(t, store.PendingPath("abc"), creds.Dir())

	payload := []byte{0x00, 0x01, 0xfe, 0xff, 'k', 'e', 'y', '\n'}
	require.NoError(t, creds.WriteFile("creds.bin", payload))

	_, err = store.Promote(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, store.PersistedPath("abc"), creds.Dir())
	got, err := os.ReadFile(filepath.Join(store.PersistedPath("abc"), "creds.bin"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))

	viaHook, err := creds.ReadFile("creds.bin")
	require.NoError(t, err)
	assert.Equal(t, payload, viaHook)
}

func TestCredentials_WriteAfterPromotionLandsInPersisted(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.CreatePending("abc")
	require.NoError(t, err)
	_, err = store.Promote(context.Background(), "abc")
	require.NoError(t, err)

	require.NoError(t, store.Credentials("abc").WriteFile("device.json", []byte(`{}`)))
	assert.FileExists(t, filepath.Join(store.PersistedPath("abc"), "device.json"))
	assert.NoDirExists(t, store.PendingPath("abc"))
}

func TestCredentials_RejectsUnsafeNames(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.CreatePending("abc")
	require.NoError(t, err)
	creds := store.Credentials("abc")

	for _, name := range []string{"", ".", "..", "../escape", "dir/file"} {
		assert.Error(t, creds.WriteFile(name, []byte("x")), name)
	}
}

func TestCredentials_WriteLeavesNoTempFile(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.CreatePending("abc")
	require.NoError(t, err)

	require.NoError(t, store.Credentials("abc").WriteFile("creds.json", []byte("{}")))

	entries, err := os.ReadDir(store.PendingPath("abc"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "creds.json", entries[0].Name())
}
