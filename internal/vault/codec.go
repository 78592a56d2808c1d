package vault

import (
	"errors"

	"github.com/awnumar/memguard"

	"github.com/semmy-space/monthend/internal/crypto"
)

type encryptOptions struct {
	params crypto.ScryptParams
	cipher string
}

// EncryptOption customises Encrypt.
type EncryptOption func(*encryptOptions)

// WithScryptParams overrides DefaultScryptParams for newly written blobs.
func WithScryptParams(p crypto.ScryptParams) EncryptOption {
	return func(o *encryptOptions) { o.params = p }
}

// WithCipher selects the AEAD written into the blob.
func WithCipher(id string) EncryptOption {
	return func(o *encryptOptions) {
		if id != "" {
			o.cipher = id
		}
	}
}

// Encrypt seals the bundle under a key derived from password. Every call uses a
// fresh salt and nonce. The password is read, never retained or modified.
func Encrypt(b *Bundle, password []byte, opts ...EncryptOption) (*EncryptedBlob, error) {
	if len(password) == 0 {
		return nil, ErrPasswordRequired
	}
	o := encryptOptions{params: crypto.DefaultScryptParams, cipher: crypto.DefaultCipher}
	for _, opt := range opts {
		opt(&o)
	}
	if crypto.NonceSize(o.cipher) == 0 {
		return nil, ErrUnknownCipher
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, ErrDerivationFailure
	}
	nonce, err := crypto.GenerateNonce(o.cipher)
	if err != nil {
		return nil, err
	}

	key, err := deriveLocked(password, salt, o.params)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	plaintext, err := encodeBundle(b)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(plaintext)

	blob := &EncryptedBlob{
		Version: BlobVersion,
		KDF:     KDFParams{Alg: crypto.AlgScrypt, ScryptParams: o.params},
		Cipher:  o.cipher,
		Salt:    salt,
		Nonce:   nonce,
	}
	aad, err := blob.associatedData()
	if err != nil {
		return nil, err
	}
	blob.Ciphertext, blob.Tag, err = crypto.Seal(o.cipher, key.Bytes(), nonce, plaintext, aad)
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Decrypt recovers the bundle. A tag mismatch (wrong password or any edit to
// the blob) is ErrInvalidPassword; authenticated plaintext that is not a bundle
// is ErrCorruptBlob. The caller owns the returned bundle and must Wipe it.
func Decrypt(blob *EncryptedBlob, password []byte) (*Bundle, error) {
	if len(password) == 0 {
		return nil, ErrPasswordRequired
	}
	if blob == nil {
		return nil, ErrNoBlob
	}
	if err := blob.validate(); err != nil {
		return nil, err
	}

	key, err := deriveLocked(password, blob.Salt, blob.KDF.ScryptParams)
	if err != nil {
		if errors.Is(err, ErrParamsOutOfRange) {
			return nil, ErrCorruptBlob
		}
		return nil, err
	}
	defer key.Destroy()

	aad, err := blob.associatedData()
	if err != nil {
		return nil, ErrCorruptBlob
	}
	plaintext, err := crypto.Open(blob.Cipher, key.Bytes(), blob.Nonce, blob.Ciphertext, blob.Tag, aad)
	if err != nil {
		if errors.Is(err, crypto.ErrAuthentication) {
			return nil, ErrInvalidPassword
		}
		return nil, ErrCorruptBlob
	}
	defer memguard.WipeBytes(plaintext)

	bundle, err := decodeBundle(plaintext)
	if err != nil {
		return nil, ErrCorruptBlob
	}
	return bundle, nil
}

// EncryptString is Encrypt followed by Encode.
func EncryptString(b *Bundle, password []byte, opts ...EncryptOption) (string, error) {
	blob, err := Encrypt(b, password, opts...)
	if err != nil {
		return "", err
	}
	return blob.Encode()
}

// DecryptString is ParseBlob followed by Decrypt.
func DecryptString(encoded string, password []byte) (*Bundle, error) {
	if len(password) == 0 {
		return nil, ErrPasswordRequired
	}
	blob, err := ParseBlob(encoded)
	if err != nil {
		return nil, err
	}
	return Decrypt(blob, password)
}

// Rekey re-encrypts the blob under newPassword with a fresh salt and nonce.
func Rekey(encoded string, oldPassword, newPassword []byte, opts ...EncryptOption) (string, error) {
	if len(newPassword) == 0 {
		return "", ErrPasswordRequired
	}
	bundle, err := DecryptString(encoded, oldPassword)
	if err != nil {
		return "", err
	}
	defer bundle.Wipe()
	return EncryptString(bundle, newPassword, opts...)
}

// deriveLocked moves the derived key into a locked, guarded buffer. The caller
// must Destroy it.
func deriveLocked(password, salt []byte, params crypto.ScryptParams) (*memguard.LockedBuffer, error) {
	raw, err := crypto.DeriveKey(password, salt, params)
	if err != nil {
		return nil, err
	}
	// NewBufferFromBytes wipes raw.
	return memguard.NewBufferFromBytes(raw), nil
}
