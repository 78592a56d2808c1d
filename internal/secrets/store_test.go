package secrets

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semmy-space/monthend/internal/crypto"
	"github.com/semmy-space/monthend/internal/vault"
)

func testBlob(t *testing.T, password string) string {
	t.Helper()
	b := &vault.Bundle{TestSecret: vault.NewSecret("it works")}
	encoded, err := vault.EncryptString(b, []byte(password), vault.WithScryptParams(crypto.MinScryptParams))
	require.NoError(t, err)
	return encoded
}

func TestFileStore_CRUD(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(BlobKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(BlobKey, "value-1"))
	require.NoError(t, store.Set("other", "value-2"))

	v, err := store.Get(BlobKey)
	require.NoError(t, err)
	assert.Equal(t, "value-1", v)

	keys, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{BlobKey, "other"}, keys)

	require.NoError(t, store.Delete("other"))
	assert.ErrorIs(t, store.Delete("other"), ErrNotFound)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.Contains(t, store.Describe(), store.Path())
}

func TestFileStore_ConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Separate instances contend on the lock file like separate processes.
			store, err := NewFileStore(dir)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, store.Set(string(rune('a'+i)), "v"))
		}(i)
	}
	wg.Wait()

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	keys, err := store.List()
	require.NoError(t, err)
	assert.Len(t, keys, 8)
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blob.json"), []byte("{not json"), 0600))

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	_, err = store.Get(BlobKey)
	assert.Error(t, err)
}

func TestEnvStore(t *testing.T) {
	env := map[string]string{}
	store := &EnvStore{lookup: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}

	_, err := store.Get(BlobKey)
	assert.ErrorIs(t, err, ErrNotFound)
	keys, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, keys)

	env[EnvVar] = "blob"
	v, err := store.Get(BlobKey)
	require.NoError(t, err)
	assert.Equal(t, "blob", v)

	assert.ErrorIs(t, store.Set(BlobKey, "x"), ErrReadOnly)
	assert.ErrorIs(t, store.Delete(BlobKey), ErrReadOnly)
}

func TestKeyringStore(t *testing.T) {
	store := NewKeyringStore(keyring.NewArrayKeyring(nil))

	_, err := store.Get(BlobKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(BlobKey, "blob"))
	v, err := store.Get(BlobKey)
	require.NoError(t, err)
	assert.Equal(t, "blob", v)

	require.NoError(t, store.Delete(BlobKey))
	_, err = store.Get(BlobKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveAndLoadBlob(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = LoadBlob(store)
	assert.ErrorIs(t, err, vault.ErrNoBlob)

	assert.ErrorIs(t, SaveBlob(store, "garbage!"), vault.ErrCorruptBlob)

	encoded := testBlob(t, "pw-12345")
	require.NoError(t, SaveBlob(store, `"`+encoded+`"`+"\n"))
	got, err := LoadBlob(store)
	require.NoError(t, err)
	assert.Equal(t, encoded, got)

	require.NoError(t, ClearBlob(store))
	require.NoError(t, ClearBlob(store))
	_, err = LoadBlob(store)
	assert.ErrorIs(t, err, vault.ErrNoBlob)
}

func TestBlobSourceFeedsSession(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, SaveBlob(store, testBlob(t, "pw-12345")))

	s := vault.NewSession(BlobSource(store))
	require.NoError(t, s.Unlock(context.Background(), []byte("pw-12345")))

	v, err := s.GetSecret(vault.TestSecret)
	require.NoError(t, err)
	text, _ := v.Text()
	assert.Equal(t, "it works", text.Reveal())
}

func TestNewStore_Backends(t *testing.T) {
	t.Setenv(EnvVar, "")

	s, err := NewStore("env")
	require.NoError(t, err)
	assert.IsType(t, &EnvStore{}, s)

	_, err = NewStore("s3")
	assert.Error(t, err)

	t.Setenv(EnvVar, "from-env")
	s, err = NewStore("auto")
	require.NoError(t, err)
	assert.IsType(t, &EnvStore{}, s)
}
