package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	keyring.MockInit()

	dir := t.TempDir()
	sqliteStore, err := NewSQLite(filepath.Join(dir, "state.sqlite"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{
		"memory":  NewMemory(),
		"file":    NewFile(filepath.Join(dir, "nested", "state.json")),
		"sqlite":  sqliteStore,
		"keyring": NewKeyring("petshop-test", "test"),
	}
}

func TestStore_Contract(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(KeyToken)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Set(KeyToken, "T1"))
			value, err := store.Get(KeyToken)
			require.NoError(t, err)
			assert.Equal(t, "T1", value)

			require.NoError(t, store.Set(KeyToken, "T2"))
			value, err = store.Get(KeyToken)
			require.NoError(t, err)
			assert.Equal(t, "T2", value)

			require.NoError(t, store.Set(KeyUser, `{"id":7}`))

			require.NoError(t, store.Remove(KeyToken))
			_, err = store.Get(KeyToken)
			assert.ErrorIs(t, err, ErrNotFound)

			// Other keys are independent
			value, err = store.Get(KeyUser)
			require.NoError(t, err)
			assert.Equal(t, `{"id":7}`, value)

			// Removing a missing key is not an error
			assert.NoError(t, store.Remove(KeyToken))
			assert.NoError(t, store.Remove(KeyCSRFToken))
		})
	}
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.json")

	first := NewFile(path)
	require.NoError(t, first.Set(KeyCSRFToken, "X"))

	second := NewFile(path)
	value, err := second.Get(KeyCSRFToken)
	require.NoError(t, err)
	assert.Equal(t, "X", value)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFile(path).Get(KeyToken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFile_CorruptFileIsReplacedOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token":"T1","user":`), 0600))
	store := NewFile(path)

	require.NoError(t, store.Remove(KeyToken))

	_, err := store.Get(KeyToken)
	assert.ErrorIs(t, err, ErrNotFound)

	moved, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, `{"token":"T1","user":`, string(moved))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	require.NoError(t, store.Set(KeyToken, "T2"))
	value, err := store.Get(KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "T2", value)
}

func TestSQLite_ProfilesAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.sqlite")

	prod, err := NewSQLite(path, "prod")
	require.NoError(t, err)
	defer prod.Close()

	staging, err := NewSQLite(path, "staging")
	require.NoError(t, err)
	defer staging.Close()

	require.NoError(t, prod.Set(KeyToken, "prod-token"))

	_, err = staging.Get(KeyToken)
	assert.ErrorIs(t, err, ErrNotFound)

	value, err := prod.Get(KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "prod-token", value)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(Options{Kind: KindFile, Dir: dir, Profile: "staging"})
	require.NoError(t, err)
	fileStore, ok := store.(*File)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "staging.json"), fileStore.Path())

	store, err = Open(Options{Kind: "MEMORY"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, store)

	for _, profile := range []string{"../x", "a/b", ".hidden", "prod prod"} {
		_, err = Open(Options{Kind: KindFile, Dir: dir, Profile: profile})
		assert.ErrorContains(t, err, "invalid profile name", profile)
	}

	store, err = Open(Options{Kind: KindFile, Dir: dir, Profile: "eu-west_1.prod"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "eu-west_1.prod.json"), store.(*File).Path())

	_, err = Open(Options{Kind: "floppy"})
	assert.EqualError(t, err, `unknown storage kind "floppy" (expected file, sqlite, keyring or memory)`)
}
