package secrets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
)

// FileStore implements the Store interface with a JSON file. It is the fallback
// for environments where the OS keyring is unavailable (WSL, headless, Docker).
// Values are stored as given: the blob is already encrypted, so no second layer
// is added here.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore creates a file-backed store in dir. An empty dir means
// $XDG_DATA_HOME/monthend.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = filepath.Join(xdg.DataHome, ServiceName)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	path := filepath.Join(dir, "blob.json")
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// readStore parses the store file. Returns an empty map if the file doesn't exist.
// Callers hold the lock.
func (s *FileStore) readStore() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	store := make(map[string]string)
	if len(data) == 0 {
		return store, nil
	}
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", s.path, err)
	}
	return store, nil
}

// writeStore replaces the file atomically. Callers hold the write lock.
func (s *FileStore) writeStore(store map[string]string) error {
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".blob-*.json")
	if err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

func (s *FileStore) read() (map[string]string, error) {
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock store file: %w", err)
	}
	defer s.lock.Unlock()
	return s.readStore()
}

// update runs fn on the current contents under the write lock and saves the
// result.
func (s *FileStore) update(fn func(map[string]string) error) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock store file: %w", err)
	}
	defer s.lock.Unlock()

	store, err := s.readStore()
	if err != nil {
		return err
	}
	if err := fn(store); err != nil {
		return err
	}
	return s.writeStore(store)
}

func (s *FileStore) Get(key string) (string, error) {
	store, err := s.read()
	if err != nil {
		return "", err
	}

	value, ok := store[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *FileStore) Set(key, value string) error {
	return s.update(func(store map[string]string) error {
		store[key] = value
		return nil
	})
}

func (s *FileStore) Delete(key string) error {
	return s.update(func(store map[string]string) error {
		if _, ok := store[key]; !ok {
			return ErrNotFound
		}
		delete(store, key)
		return nil
	})
}

func (s *FileStore) List() ([]string, error) {
	store, err := s.read()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(store))
	for k := range store {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) Describe() string {
	return "file " + s.path
}
