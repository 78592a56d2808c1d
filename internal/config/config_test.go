package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semmy-space/monthend/internal/crypto"
)

func tempConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "monthend", "config.json5"))
	require.NoError(t, err)
	return cfg
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg := tempConfig(t)
	assert.Equal(t, "auto", cfg.Backend())
	assert.Equal(t, crypto.DefaultCipher, cfg.CipherID())
	assert.Equal(t, DefaultIdleTimeout, cfg.IdleTimeoutDuration())
	assert.Equal(t, DefaultAbsoluteTimeout, cfg.AbsoluteTimeoutDuration())
	assert.Equal(t, DefaultUnlockTimeout, cfg.UnlockTimeoutDuration())
	assert.Equal(t, DefaultListenAddr, cfg.Listen())

	name, env, err := cfg.QBOEnvironment()
	require.NoError(t, err)
	assert.Equal(t, "sandbox", name)
	assert.Equal(t, Environments["sandbox"], env)

	p, err := cfg.ScryptParams()
	require.NoError(t, err)
	assert.Equal(t, crypto.DefaultScryptParams, p)
}

func TestLoadJSON5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
  // month-end settings
  blob_backend: "file",
  scrypt_n: 65536,
  idle_timeout: "5m",
  qbo_environment: "production",
}`), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Backend())
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeoutDuration())

	p, err := cfg.ScryptParams()
	require.NoError(t, err)
	assert.Equal(t, 65536, p.N)
	assert.Equal(t, 8, p.R)

	name, _, err := cfg.QBOEnvironment()
	require.NoError(t, err)
	assert.Equal(t, "production", name)
}

func TestSetGetUnset(t *testing.T) {
	cfg := tempConfig(t)

	require.NoError(t, cfg.Set("idle_timeout", "10m"))
	require.NoError(t, cfg.Set("scrypt_n", "65536"))
	require.NoError(t, cfg.Set("cipher", "aes-256-gcm"))

	v, err := cfg.Get("scrypt_n")
	require.NoError(t, err)
	assert.Equal(t, "65536", v)

	// Persisted with owner-only permissions.
	info, err := os.Stat(cfg.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := LoadFrom(cfg.Path())
	require.NoError(t, err)
	assert.Equal(t, "aes-256-gcm", reloaded.CipherID())
	assert.Equal(t, 10*time.Minute, reloaded.IdleTimeoutDuration())

	require.NoError(t, reloaded.Unset("scrypt_n"))
	v, err = reloaded.Get("scrypt_n")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestSetValidation(t *testing.T) {
	cfg := tempConfig(t)

	cases := map[string]string{
		"blob_backend":    "s3",
		"cipher":          "des",
		"idle_timeout":    "soon",
		"unlock_timeout":  "-1s",
		"qbo_environment": "staging",
		"scrypt_n":        "lots",
		"scrypt_p":        "0",
		"default_output":  "yaml",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			err := cfg.Set(key, value)
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}

	err := cfg.Set("region", "us")
	assert.ErrorContains(t, err, "unknown config key")
}

func TestCredentialKeysRefused(t *testing.T) {
	cfg := tempConfig(t)
	for _, key := range []string{"qbo_client_secret", "client_id", "password", "access_token"} {
		assert.ErrorIs(t, cfg.Set(key, "x"), ErrCredentialKey, key)
	}
	_, err := os.Stat(cfg.Path())
	assert.True(t, os.IsNotExist(err), "nothing written")
}

func TestScryptParamsOutOfRange(t *testing.T) {
	cfg := tempConfig(t)
	cfg.ScryptN = 1 << 22
	_, err := cfg.ScryptParams()
	assert.ErrorIs(t, err, crypto.ErrParamsOutOfRange)

	cfg.ScryptN = 1024
	_, err = cfg.ScryptParams()
	assert.ErrorIs(t, err, crypto.ErrWeakParameters)
}

func TestKeysAndAll(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "blob_backend")
	assert.Contains(t, keys, "qbo_redirect_url")
	assert.NotContains(t, keys, "path")

	cfg := tempConfig(t)
	cfg.ListenAddr = "127.0.0.1:9000"
	all := cfg.All()
	assert.Len(t, all, len(keys))
	assert.Equal(t, "127.0.0.1:9000", all["listen_addr"])
}
