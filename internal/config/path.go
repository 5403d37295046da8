// Package config loads the settings files and path conventions used by carbon.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName names the configuration directory under the user config root.
const AppName = "carbon"

// ExpandPath expands a leading ~ and $VAR references in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}

// Dir returns $HOME/.config/carbon, or ./.carbon when no home is available.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".carbon"
	}
	return filepath.Join(home, ".config", AppName)
}

// DefaultDatabasePath is the ledger location when database.path is unset.
func DefaultDatabasePath() string {
	return filepath.Join(Dir(), "ledger.db")
}
