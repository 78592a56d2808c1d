package secrets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
)

// Backend names accepted by NewStore and the --backend flag.
const (
	BackendAuto    = "auto"
	BackendKeyring = "keyring"
	BackendFile    = "file"
	BackendEnv     = "env"
)

// host describes the machine for backend selection.
type host struct {
	goos        string
	getenv      func(string) string
	procVersion func() ([]byte, error)
}

func currentHost() host {
	return host{
		goos:        runtime.GOOS,
		getenv:      os.Getenv,
		procVersion: func() ([]byte, error) { return os.ReadFile("/proc/version") },
	}
}

func (h host) wsl() bool {
	if h.goos != "linux" {
		return false
	}
	data, err := h.procVersion()
	if err != nil {
		return false
	}
	v := strings.ToLower(string(data))
	return strings.Contains(v, "microsoft") || strings.Contains(v, "wsl")
}

// headless is only meaningful on Linux; macOS and Windows always have a
// session keyring.
func (h host) headless() bool {
	return h.goos == "linux" && h.getenv("DISPLAY") == "" && h.getenv("WAYLAND_DISPLAY") == ""
}

// keyringReason says why the OS keyring should be skipped, or "" to use it.
func (h host) keyringReason() string {
	switch {
	case h.wsl():
		return "WSL detected"
	case h.headless():
		return "no display server"
	}
	return ""
}

// notice prints a fallback message once per machine. A marker file in the
// data dir remembers that it was shown; MONTHEND_QUIET silences it.
type notice struct {
	out    io.Writer
	marker string
	quiet  bool
}

func defaultNotice() notice {
	q := os.Getenv("MONTHEND_QUIET")
	return notice{
		out:    os.Stderr,
		marker: filepath.Join(xdg.DataHome, ServiceName, ".file-store-notice"),
		quiet:  q == "1" || q == "true",
	}
}

func (n notice) show(msg string) {
	if n.quiet {
		return
	}
	if _, err := os.Stat(n.marker); err == nil {
		return
	}
	fmt.Fprintln(n.out, msg)
	_ = os.WriteFile(n.marker, []byte("1"), 0o600)
}

// NewStore opens the blob store for backend: auto, keyring, file, or env.
//
// auto uses MONTHEND_ENCRYPTED_SECRETS when it is set, the file store on WSL
// and headless Linux, and otherwise the OS keyring with the file store as
// fallback.
func NewStore(backend string) (Store, error) {
	return newStore(backend, currentHost(), defaultNotice())
}

func newStore(backend string, h host, n notice) (Store, error) {
	switch backend {
	case BackendEnv:
		return NewEnvStore(), nil
	case BackendKeyring:
		return OpenKeyringStore()
	case BackendFile:
		return NewFileStore("")
	case "", BackendAuto:
	default:
		return nil, fmt.Errorf("unknown blob backend %q", backend)
	}

	if h.getenv(EnvVar) != "" {
		return NewEnvStore(), nil
	}

	if reason := h.keyringReason(); reason != "" {
		return fileFallback(n, reason)
	}
	ks, err := OpenKeyringStore()
	if err != nil {
		return fileFallback(n, "keyring unavailable: "+err.Error())
	}
	return ks, nil
}

func fileFallback(n notice, reason string) (Store, error) {
	fs, err := NewFileStore("")
	if err != nil {
		return nil, err
	}
	n.show(fmt.Sprintf("%s, storing the encrypted blob in %s", reason, fs.Path()))
	return fs, nil
}
