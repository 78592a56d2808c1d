package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/yosuke-furukawa/json5/encoding/json5"

	"github.com/semmy-space/monthend/internal/crypto"
)

// Defaults applied when a key is unset.
const (
	DefaultBlobBackend     = "auto"
	DefaultIdleTimeout     = 15 * time.Minute
	DefaultAbsoluteTimeout = 8 * time.Hour
	DefaultUnlockTimeout   = 30 * time.Second
	DefaultListenAddr      = "127.0.0.1:8237"
	DefaultRedirectURL     = "http://localhost:8237/callback"
)

// ErrCredentialKey is returned when someone tries to put a credential into the
// plaintext config file.
var ErrCredentialKey = errors.New("credentials cannot be stored in the config file; use 'monthend blob encrypt'")

// Config holds the CLI configuration. It never holds secrets.
type Config struct {
	BlobBackend     string `json:"blob_backend,omitempty"`
	Cipher          string `json:"cipher,omitempty"`
	ScryptN         int    `json:"scrypt_n,omitempty"`
	ScryptR         int    `json:"scrypt_r,omitempty"`
	ScryptP         int    `json:"scrypt_p,omitempty"`
	IdleTimeout     string `json:"idle_timeout,omitempty"`
	AbsoluteTimeout string `json:"absolute_timeout,omitempty"`
	UnlockTimeout   string `json:"unlock_timeout,omitempty"`
	ListenAddr      string `json:"listen_addr,omitempty"`
	QBOEnv          string `json:"qbo_environment,omitempty"`
	QBORedirectURL  string `json:"qbo_redirect_url,omitempty"`
	DefaultOutput   string `json:"default_output,omitempty"`

	path string
}

// Load reads config from XDG path, returns defaults if file doesn't exist
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path. A missing file yields an empty config that
// saves back to path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{path: path}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.path = path

	return &cfg, nil
}

// Path returns the file this config loads from and saves to
func (c *Config) Path() string {
	if c.path == "" {
		return ConfigPath()
	}
	return c.path
}

// Save writes the config to its path
func (c *Config) Save() error {
	path := c.Path()

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to JSON (not JSON5 for writing - JSON is valid JSON5)
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Keys returns every config key in declaration order
func Keys() []string {
	t := reflect.TypeOf(Config{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if key := jsonKey(t.Field(i)); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func jsonKey(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func (c *Config) field(key string) (reflect.Value, error) {
	if looksLikeCredential(key) {
		return reflect.Value{}, ErrCredentialKey
	}
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		if jsonKey(t.Field(i)) == key {
			return v.Field(i), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("unknown config key: %s", key)
}

// Get retrieves a config value by key name. Unset ints read as empty.
func (c *Config) Get(key string) (string, error) {
	f, err := c.field(key)
	if err != nil {
		return "", err
	}
	if f.Kind() == reflect.Int && f.Int() == 0 {
		return "", nil
	}
	return fmt.Sprintf("%v", f.Interface()), nil
}

// Set validates and sets a config value by key name, then saves
func (c *Config) Set(key, value string) error {
	f, err := c.field(key)
	if err != nil {
		return err
	}
	if check, ok := validators[key]; ok {
		if err := check(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}

	switch f.Kind() {
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid value for %s: must be a positive integer", key)
		}
		f.SetInt(int64(n))
	default:
		f.SetString(value)
	}
	return c.Save()
}

// Unset sets a config value to its zero value and saves
func (c *Config) Unset(key string) error {
	f, err := c.field(key)
	if err != nil {
		return err
	}
	f.Set(reflect.Zero(f.Type()))
	return c.Save()
}

// All returns every key with its current value
func (c *Config) All() map[string]string {
	out := make(map[string]string)
	for _, key := range Keys() {
		out[key], _ = c.Get(key)
	}
	return out
}

var validators = map[string]func(string) error{
	"blob_backend":     oneOf("auto", "keyring", "file", "env"),
	"cipher":           oneOf(crypto.Ciphers()...),
	"idle_timeout":     duration,
	"absolute_timeout": duration,
	"unlock_timeout":   duration,
	"qbo_environment":  oneOf(ValidEnvironments()...),
	"default_output":   oneOf("json", "plain", "rich"),
}

func oneOf(allowed ...string) func(string) error {
	return func(v string) error {
		if slices.Contains(allowed, v) {
			return nil
		}
		return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
}

func duration(v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return errors.New("must be a duration such as 15m or 8h")
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func looksLikeCredential(key string) bool {
	k := strings.ToLower(key)
	for _, word := range []string{"secret", "password", "token", "client_id", "private_key", "service_account"} {
		if strings.Contains(k, word) {
			return true
		}
	}
	return false
}

// ScryptParams returns the cost parameters for new blobs, filling unset values
// from the defaults.
func (c *Config) ScryptParams() (crypto.ScryptParams, error) {
	p := crypto.DefaultScryptParams
	if c.ScryptN > 0 {
		p.N = c.ScryptN
	}
	if c.ScryptR > 0 {
		p.R = c.ScryptR
	}
	if c.ScryptP > 0 {
		p.P = c.ScryptP
	}
	if err := p.Validate(); err != nil {
		return crypto.ScryptParams{}, fmt.Errorf("scrypt settings: %w", err)
	}
	return p, nil
}

// CipherID returns the configured cipher or the default.
func (c *Config) CipherID() string {
	if c.Cipher == "" {
		return crypto.DefaultCipher
	}
	return c.Cipher
}

// Backend returns the configured blob backend or "auto".
func (c *Config) Backend() string {
	if c.BlobBackend == "" {
		return DefaultBlobBackend
	}
	return c.BlobBackend
}

func parseDuration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (c *Config) IdleTimeoutDuration() time.Duration {
	return parseDuration(c.IdleTimeout, DefaultIdleTimeout)
}

func (c *Config) AbsoluteTimeoutDuration() time.Duration {
	return parseDuration(c.AbsoluteTimeout, DefaultAbsoluteTimeout)
}

func (c *Config) UnlockTimeoutDuration() time.Duration {
	return parseDuration(c.UnlockTimeout, DefaultUnlockTimeout)
}

// Listen returns the HTTP listen address for serve.
func (c *Config) Listen() string {
	if c.ListenAddr == "" {
		return DefaultListenAddr
	}
	return c.ListenAddr
}

// QBOEnvironment returns the configured QuickBooks environment
func (c *Config) QBOEnvironment() (string, Environment, error) {
	name := c.QBOEnv
	if name == "" {
		name = DefaultEnvironment
	}
	env, err := GetEnvironment(name)
	return name, env, err
}

// RedirectURL returns the OAuth redirect URL registered with Intuit.
func (c *Config) RedirectURL() string {
	if c.QBORedirectURL == "" {
		return DefaultRedirectURL
	}
	return c.QBORedirectURL
}
