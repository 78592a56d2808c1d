package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSalt = []byte("saltsaltsaltsalt")

func TestDeriveKey_Deterministic(t *testing.T) {
	k1, err := DeriveKey([]byte("hunter22"), testSalt, MinScryptParams)
	require.NoError(t, err)
	k2, err := DeriveKey([]byte("hunter22"), testSalt, MinScryptParams)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, KeyLen)
}

func TestDeriveKey_DifferentInputs(t *testing.T) {
	base, err := DeriveKey([]byte("password1"), testSalt, MinScryptParams)
	require.NoError(t, err)

	otherPassword, err := DeriveKey([]byte("password2"), testSalt, MinScryptParams)
	require.NoError(t, err)
	assert.NotEqual(t, base, otherPassword)

	otherSalt, err := DeriveKey([]byte("password1"), []byte("another-salt-val"), MinScryptParams)
	require.NoError(t, err)
	assert.NotEqual(t, base, otherSalt)

	otherParams, err := DeriveKey([]byte("password1"), testSalt, ScryptParams{N: 1 << 14, R: 8, P: 2})
	require.NoError(t, err)
	assert.NotEqual(t, base, otherParams)
}

func TestDeriveKey_WeakParameters(t *testing.T) {
	tests := []struct {
		name   string
		params ScryptParams
	}{
		{name: "low N", params: ScryptParams{N: 1 << 10, R: 8, P: 1}},
		{name: "low r", params: ScryptParams{N: 1 << 14, R: 4, P: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveKey([]byte("pw"), testSalt, tt.params)
			assert.ErrorIs(t, err, ErrWeakParameters)
		})
	}

	t.Run("short salt", func(t *testing.T) {
		_, err := DeriveKey([]byte("pw"), []byte("short"), MinScryptParams)
		assert.ErrorIs(t, err, ErrWeakParameters)
	})
}

func TestScryptParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		params ScryptParams
		want   error
	}{
		{name: "default", params: DefaultScryptParams, want: nil},
		{name: "minimum", params: MinScryptParams, want: nil},
		{name: "N not power of two", params: ScryptParams{N: 20000, R: 8, P: 1}, want: ErrParamsOutOfRange},
		{name: "N zero", params: ScryptParams{N: 0, R: 8, P: 1}, want: ErrParamsOutOfRange},
		{name: "r zero", params: ScryptParams{N: 1 << 14, R: 0, P: 1}, want: ErrParamsOutOfRange},
		{name: "N above ceiling", params: ScryptParams{N: 1 << 22, R: 8, P: 1}, want: ErrParamsOutOfRange},
		{name: "memory above ceiling", params: ScryptParams{N: 1 << 20, R: 16, P: 1}, want: ErrParamsOutOfRange},
		{name: "p above ceiling", params: ScryptParams{N: 1 << 14, R: 8, P: 64}, want: ErrParamsOutOfRange},
		{name: "weak", params: ScryptParams{N: 1 << 12, R: 8, P: 1}, want: ErrWeakParameters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGenerateSalt(t *testing.T) {
	s1, err := GenerateSalt()
	require.NoError(t, err)
	s2, err := GenerateSalt()
	require.NoError(t, err)

	assert.Len(t, s1, SaltLen)
	assert.False(t, bytes.Equal(s1, s2), "two salts should differ")
}

func testKey() []byte {
	key := make([]byte, KeyLen)
	copy(key, "test-key-32-bytes-long-padding!!")
	return key
}

func TestSealOpen_Roundtrip(t *testing.T) {
	for _, id := range Ciphers() {
		t.Run(id, func(t *testing.T) {
			nonce, err := GenerateNonce(id)
			require.NoError(t, err)
			assert.Len(t, nonce, NonceSize(id))

			ct, tag, err := Seal(id, testKey(), nonce, []byte("hello, vault"), []byte("aad"))
			require.NoError(t, err)
			assert.Len(t, tag, TagLen)

			pt, err := Open(id, testKey(), nonce, ct, tag, []byte("aad"))
			require.NoError(t, err)
			assert.Equal(t, []byte("hello, vault"), pt)
		})
	}
}

func TestOpen_Tampering(t *testing.T) {
	for _, id := range Ciphers() {
		t.Run(id, func(t *testing.T) {
			nonce, err := GenerateNonce(id)
			require.NoError(t, err)
			ct, tag, err := Seal(id, testKey(), nonce, []byte("secret"), []byte("hdr"))
			require.NoError(t, err)

			badCT := append([]byte(nil), ct...)
			badCT[0] ^= 0x01
			_, err = Open(id, testKey(), nonce, badCT, tag, []byte("hdr"))
			assert.ErrorIs(t, err, ErrAuthentication)

			badTag := append([]byte(nil), tag...)
			badTag[len(badTag)-1] ^= 0xff
			_, err = Open(id, testKey(), nonce, ct, badTag, []byte("hdr"))
			assert.ErrorIs(t, err, ErrAuthentication)

			_, err = Open(id, testKey(), nonce, ct, tag, []byte("other"))
			assert.ErrorIs(t, err, ErrAuthentication)

			wrongKey := testKey()
			wrongKey[0] ^= 0xff
			_, err = Open(id, wrongKey, nonce, ct, tag, []byte("hdr"))
			assert.ErrorIs(t, err, ErrAuthentication)

			_, err = Open(id, testKey(), nonce, ct, tag[:4], []byte("hdr"))
			assert.ErrorIs(t, err, ErrAuthentication)
		})
	}
}

func TestSeal_DifferentNonces(t *testing.T) {
	n1, _ := GenerateNonce(DefaultCipher)
	n2, _ := GenerateNonce(DefaultCipher)
	require.False(t, bytes.Equal(n1, n2))

	c1, _, err := Seal(DefaultCipher, testKey(), n1, []byte("same content"), nil)
	require.NoError(t, err)
	c2, _, err := Seal(DefaultCipher, testKey(), n2, []byte("same content"), nil)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(c1, c2))
}

func TestUnknownCipher(t *testing.T) {
	_, err := NewAEAD("rot13", testKey())
	assert.ErrorIs(t, err, ErrUnknownCipher)
	assert.Equal(t, 0, NonceSize("rot13"))
	_, err = GenerateNonce("rot13")
	assert.ErrorIs(t, err, ErrUnknownCipher)
}
