package secrets

import (
	"errors"
	"strings"

	"github.com/semmy-space/monthend/internal/vault"
)

// Store is the interface for at-rest storage. Only already-encrypted values
// ever go in; plaintext credentials never touch a Store.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	List() ([]string, error)
	// Describe says where values live, for `store where`.
	Describe() string
}

// ErrNotFound is returned when a key is not found in the store
var ErrNotFound = errors.New("key not found")

// ErrReadOnly is returned by stores that cannot be written from the CLI
var ErrReadOnly = errors.New("store is read-only")

const (
	// ServiceName is the service identifier for keyring storage
	ServiceName = "monthend"

	// BlobKey is the key the encrypted blob is stored under.
	BlobKey = "encrypted_secrets"
)

// LoadBlob reads the encrypted blob. A missing value is vault.ErrNoBlob.
func LoadBlob(s Store) (string, error) {
	encoded, err := s.Get(BlobKey)
	if errors.Is(err, ErrNotFound) || (err == nil && strings.TrimSpace(encoded) == "") {
		return "", vault.ErrNoBlob
	}
	return encoded, err
}

// SaveBlob checks that encoded parses as a blob, then stores it.
func SaveBlob(s Store, encoded string) error {
	blob, err := vault.ParseBlob(encoded)
	if err != nil {
		return err
	}
	normalized, err := blob.Encode()
	if err != nil {
		return err
	}
	return s.Set(BlobKey, normalized)
}

// ClearBlob removes the stored blob. Clearing an empty store is not an error.
func ClearBlob(s Store) error {
	if err := s.Delete(BlobKey); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// BlobSource adapts a Store for vault sessions. The blob is re-read on every
// unlock so a rotated blob is picked up without a restart.
func BlobSource(s Store) vault.BlobSource {
	return vault.BlobSourceFunc(func() (string, error) {
		return LoadBlob(s)
	})
}
