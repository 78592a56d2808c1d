package vault

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/semmy-space/monthend/internal/crypto"
)

// BlobVersion is the at-rest format version written by this build.
const BlobVersion = 1

// KDFParams names the derivation algorithm and its cost parameters.
type KDFParams struct {
	Alg string `json:"alg"`
	crypto.ScryptParams
}

// EncryptedBlob is the only persisted form of a Bundle. It is self-describing so
// that older blobs stay readable after the default cost parameters change.
type EncryptedBlob struct {
	Version    int       `json:"v"`
	KDF        KDFParams `json:"kdf"`
	Cipher     string    `json:"cipher"`
	Salt       []byte    `json:"salt"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ct"`
	Tag        []byte    `json:"tag"`
}

// Encode returns the text form: base64 over the JSON document.
func (b *EncryptedBlob) Encode() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ParseBlob decodes and structurally validates the text form. Any failure is
// ErrCorruptBlob. Surrounding whitespace and one pair of double quotes (as left
// by copying a TOML or env value) are tolerated.
func ParseBlob(encoded string) (*EncryptedBlob, error) {
	encoded = strings.TrimSpace(encoded)
	if len(encoded) >= 2 && encoded[0] == '"' && encoded[len(encoded)-1] == '"' {
		encoded = encoded[1 : len(encoded)-1]
	}
	if encoded == "" {
		return nil, ErrNoBlob
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrCorruptBlob
	}

	var blob EncryptedBlob
	if err := strictUnmarshal(data, &blob); err != nil {
		return nil, ErrCorruptBlob
	}
	if err := blob.validate(); err != nil {
		return nil, err
	}
	return &blob, nil
}

func (b *EncryptedBlob) validate() error {
	if b.Version != BlobVersion || b.KDF.Alg != crypto.AlgScrypt {
		return ErrCorruptBlob
	}
	// Weak-but-well-formed parameters parse fine; derivation refuses them later.
	if err := b.KDF.ScryptParams.Validate(); errors.Is(err, crypto.ErrParamsOutOfRange) {
		return ErrCorruptBlob
	}
	nonceSize := crypto.NonceSize(b.Cipher)
	switch {
	case nonceSize == 0,
		len(b.Nonce) != nonceSize,
		len(b.Salt) < crypto.SaltLen,
		len(b.Tag) != crypto.TagLen,
		len(b.Ciphertext) == 0:
		return ErrCorruptBlob
	}
	return nil
}

// associatedData binds every header field to the ciphertext.
func (b *EncryptedBlob) associatedData() ([]byte, error) {
	return json.Marshal(struct {
		Version int       `json:"v"`
		KDF     KDFParams `json:"kdf"`
		Cipher  string    `json:"cipher"`
		Salt    []byte    `json:"salt"`
		Nonce   []byte    `json:"nonce"`
	}{b.Version, b.KDF, b.Cipher, b.Salt, b.Nonce})
}

// BlobInfo is the non-secret description of a blob.
type BlobInfo struct {
	Version         int    `json:"version"`
	Cipher          string `json:"cipher"`
	KDF             string `json:"kdf"`
	N               int    `json:"n"`
	R               int    `json:"r"`
	P               int    `json:"p"`
	SaltBytes       int    `json:"salt_bytes"`
	CiphertextBytes int    `json:"ciphertext_bytes"`
}

// Info describes the blob without decrypting it.
func (b *EncryptedBlob) Info() BlobInfo {
	return BlobInfo{
		Version:         b.Version,
		Cipher:          b.Cipher,
		KDF:             b.KDF.Alg,
		N:               b.KDF.N,
		R:               b.KDF.R,
		P:               b.KDF.P,
		SaltBytes:       len(b.Salt),
		CiphertextBytes: len(b.Ciphertext),
	}
}
