package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher identifiers as written into blobs.
const (
	CipherXChaCha20Poly1305 = "xchacha20poly1305"
	CipherAES256GCM         = "aes-256-gcm"

	DefaultCipher = CipherXChaCha20Poly1305

	TagLen = 16
)

// ErrAuthentication is returned by Open when the tag does not verify.
var ErrAuthentication = errors.New("message authentication failed")

// ErrUnknownCipher is returned for cipher identifiers this build does not know.
var ErrUnknownCipher = errors.New("unknown cipher")

// Ciphers returns the supported cipher identifiers.
func Ciphers() []string {
	return []string{CipherXChaCha20Poly1305, CipherAES256GCM}
}

// NewAEAD builds the AEAD for the given cipher id and 256-bit key.
func NewAEAD(id string, key []byte) (cipher.AEAD, error) {
	switch id {
	case CipherXChaCha20Poly1305:
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("creating xchacha20poly1305: %w", err)
		}
		return aead, nil
	case CipherAES256GCM:
		if len(key) != KeyLen {
			return nil, fmt.Errorf("creating cipher: key must be %d bytes", KeyLen)
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("creating cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("creating GCM: %w", err)
		}
		return aead, nil
	default:
		return nil, ErrUnknownCipher
	}
}

// NonceSize returns the nonce length for a cipher id, or 0 if unknown.
func NonceSize(id string) int {
	switch id {
	case CipherXChaCha20Poly1305:
		return chacha20poly1305.NonceSizeX
	case CipherAES256GCM:
		return 12 // 96-bit nonce for GCM
	default:
		return 0
	}
}

// GenerateNonce returns a fresh random nonce sized for the cipher.
func GenerateNonce(id string) ([]byte, error) {
	size := NonceSize(id)
	if size == 0 {
		return nil, ErrUnknownCipher
	}
	nonce := make([]byte, size)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return nonce, nil
}

// Seal encrypts plaintext and returns the ciphertext and the detached tag.
func Seal(id string, key, nonce, plaintext, aad []byte) (ciphertext, tag []byte, err error) {
	aead, err := NewAEAD(id, key)
	if err != nil {
		return nil, nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, nil, fmt.Errorf("nonce must be %d bytes", aead.NonceSize())
	}

	sealed := aead.Seal(nil, nonce, plaintext, aad)
	split := len(sealed) - aead.Overhead()
	return sealed[:split], sealed[split:], nil
}

// Open verifies the tag and decrypts. Any failure after the AEAD is built is
// reported as ErrAuthentication.
func Open(id string, key, nonce, ciphertext, tag, aad []byte) ([]byte, error) {
	aead, err := NewAEAD(id, key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() || len(tag) != aead.Overhead() {
		return nil, ErrAuthentication
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}
