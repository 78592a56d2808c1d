package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "monthend"

// ConfigDir returns the XDG-compliant config directory
// Typically ~/.config/monthend/ on Linux
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// ConfigPath returns the full path to the config file
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json5")
}

// DataDir returns the XDG-compliant data directory
// Typically ~/.local/share/monthend/ on Linux (file-backed blob store)
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}
