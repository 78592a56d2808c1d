// Package browser opens authorization pages in the user's browser.
package browser

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// ErrUnsupported is returned when no known opener exists on this platform.
// Callers fall back to printing the URL.
var ErrUnsupported = errors.New("no browser opener available")

// candidates lists opener commands in preference order. wslview comes first on
// Linux so WSL hands the URL to the Windows browser.
func candidates(goos string) [][]string {
	switch goos {
	case "darwin":
		return [][]string{{"open"}}
	case "linux", "freebsd", "openbsd":
		return [][]string{{"wslview"}, {"xdg-open"}}
	case "windows":
		return [][]string{{"rundll32", "url.dll,FileProtocolHandler"}}
	}
	return nil
}

// command builds the opener for rawURL, using lookPath to find the first
// installed candidate.
func command(goos, rawURL string, lookPath func(string) (string, error)) (*exec.Cmd, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	// Anything else could be a local file or a custom handler.
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("refusing to open %q URL", u.Scheme)
	}

	for _, c := range candidates(goos) {
		path, err := lookPath(c[0])
		if err != nil {
			continue
		}
		args := append(append([]string{}, c[1:]...), u.String())
		return exec.Command(path, args...), nil
	}
	return nil, ErrUnsupported
}

// Open opens rawURL in the default browser without waiting for it.
func Open(rawURL string) error {
	cmd, err := command(runtime.GOOS, rawURL, exec.LookPath)
	if err != nil {
		return err
	}
	return cmd.Start()
}
