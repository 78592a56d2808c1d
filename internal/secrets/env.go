package secrets

import "os"

// EnvVar supplies the blob in environments where nothing can be written, such as
// a container started with the value injected.
const EnvVar = "MONTHEND_ENCRYPTED_SECRETS"

// EnvStore is a read-only Store over EnvVar.
type EnvStore struct {
	lookup func(string) (string, bool)
}

// NewEnvStore reads from the process environment.
func NewEnvStore() *EnvStore {
	return &EnvStore{lookup: os.LookupEnv}
}

func (s *EnvStore) Get(key string) (string, error) {
	if key != BlobKey {
		return "", ErrNotFound
	}
	v, ok := s.lookup(EnvVar)
	if !ok || v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *EnvStore) Set(string, string) error { return ErrReadOnly }

func (s *EnvStore) Delete(string) error { return ErrReadOnly }

func (s *EnvStore) List() ([]string, error) {
	if _, err := s.Get(BlobKey); err != nil {
		return nil, nil
	}
	return []string{BlobKey}, nil
}

func (s *EnvStore) Describe() string {
	return "environment variable " + EnvVar + " (read-only)"
}
