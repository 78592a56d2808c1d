package secrets

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"
	"github.com/adrg/xdg"
)

// KeyringStore keeps the blob in the OS credential store (Keychain, Secret
// Service, KWallet, Windows Credential Manager). Where none of those exist
// keyring falls back to its own file backend under the XDG data dir.
type KeyringStore struct {
	ring keyring.Keyring
}

func keyringConfig() keyring.Config {
	return keyring.Config{
		ServiceName:              ServiceName,
		KeychainTrustApplication: true,
		KeychainSynchronizable:   false,
		FileDir:                  filepath.Join(xdg.DataHome, ServiceName, "keyring"),
		FilePasswordFunc:         keyring.TerminalPrompt,
	}
}

// OpenKeyringStore opens the platform keyring.
func OpenKeyringStore() (*KeyringStore, error) {
	ring, err := keyring.Open(keyringConfig())
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func keyringErr(op string, err error) error {
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("keyring %s: %w", op, err)
}

func (s *KeyringStore) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		return "", keyringErr("get", err)
	}
	return string(item.Data), nil
}

func (s *KeyringStore) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       ServiceName + " " + key,
		Description: "encrypted month-end credentials",
	})
	if err != nil {
		return keyringErr("set", err)
	}
	return nil
}

func (s *KeyringStore) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil {
		return keyringErr("delete", err)
	}
	return nil
}

func (s *KeyringStore) List() ([]string, error) {
	keys, err := s.ring.Keys()
	if err != nil {
		return nil, keyringErr("list", err)
	}
	return keys, nil
}

func (s *KeyringStore) Describe() string {
	return "OS keyring, service " + ServiceName
}
