package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spacefiler/spacefiler/internal/constants"
)

// ConfigDirectory returns the per-user directory holding config and state.
//
// Locations:
//   - Windows: %APPDATA%\spacefiler
//   - Unix: ~/.config/spacefiler
func ConfigDirectory() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), constants.AppName)
		}
		if runtime.GOOS == "windows" {
			return filepath.Join(homeDir, "AppData", "Roaming", constants.AppName)
		}
		return filepath.Join(homeDir, ".config", constants.AppName)
	}
	return filepath.Join(configDir, constants.AppName)
}

// DefaultConfigPath returns the default INI config location.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDirectory(), "config")
}
