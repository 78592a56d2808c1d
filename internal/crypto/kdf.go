package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/scrypt"
)

const (
	KeyLen  = 32 // 256-bit
	SaltLen = 16

	// AlgScrypt is the only KDF identifier written into blobs today.
	AlgScrypt = "scrypt"
)

// ErrWeakParameters is returned when derivation is requested with cost settings
// below MinScryptParams.
var ErrWeakParameters = errors.New("key derivation parameters below minimum")

// ErrParamsOutOfRange is returned for parameters that are malformed or exceed the
// ceiling a stored blob is allowed to demand.
var ErrParamsOutOfRange = errors.New("key derivation parameters out of range")

// ErrDerivationFailure is returned when the underlying scrypt computation fails.
var ErrDerivationFailure = errors.New("key derivation failed")

// ScryptParams are the cost parameters stored alongside every blob.
type ScryptParams struct {
	N int `json:"n"` // CPU/memory cost, power of two
	R int `json:"r"` // block size
	P int `json:"p"` // parallelization
}

var (
	// MinScryptParams is the floor below which derivation is refused (OWASP
	// interactive-login guidance).
	MinScryptParams = ScryptParams{N: 1 << 14, R: 8, P: 1}

	// DefaultScryptParams is used for newly encrypted blobs.
	DefaultScryptParams = ScryptParams{N: 1 << 15, R: 8, P: 1}

	maxScryptParams = ScryptParams{N: 1 << 20, R: 32, P: 16}
)

const maxScryptMemory = 1 << 30 // 1 GiB

// Validate checks that the parameters are well formed, at or above the minimum,
// and below the hard ceiling.
func (p ScryptParams) Validate() error {
	if p.N <= 1 || p.N&(p.N-1) != 0 || p.R <= 0 || p.P <= 0 {
		return ErrParamsOutOfRange
	}
	if p.N > maxScryptParams.N || p.R > maxScryptParams.R || p.P > maxScryptParams.P {
		return ErrParamsOutOfRange
	}
	if 128*p.N*p.R > maxScryptMemory {
		return ErrParamsOutOfRange
	}
	if p.N < MinScryptParams.N || p.R < MinScryptParams.R || p.P < MinScryptParams.P {
		return ErrWeakParameters
	}
	return nil
}

// DeriveKey derives a KeyLen-byte key from password and salt with scrypt.
// The caller owns the returned key and must wipe it.
func DeriveKey(password, salt []byte, params ScryptParams) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(salt) < SaltLen {
		return nil, ErrWeakParameters
	}

	key, err := scrypt.Key(password, salt, params.N, params.R, params.P, KeyLen)
	if err != nil {
		// scrypt's own message is not surfaced
		return nil, ErrDerivationFailure
	}
	return key, nil
}

// GenerateSalt returns SaltLen bytes of cryptographically secure random data.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}
