package config

import (
	"os"
	"path/filepath"
)

const appName = "fitts"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}

// XDGStateHome returns the XDG state home or a default fallback.
func XDGStateHome() string {
	return xdgDir("XDG_STATE_HOME", ".local", "state")
}

func xdgDir(env string, fallback ...string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

// DefaultDataDir returns the directory holding per-session trial files.
func DefaultDataDir() string {
	return filepath.Join(XDGDataHome(), appName, "data")
}

// DefaultResultsDir returns the directory for analysis exports.
func DefaultResultsDir() string {
	return filepath.Join(XDGDataHome(), appName, "results")
}

// DefaultExportPath returns the default workbook path.
func DefaultExportPath() string {
	return filepath.Join(DefaultResultsDir(), "fitts_law_analysis.xlsx")
}

// DefaultDBPath returns the default path for the SQLite database.
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), appName, "fitts.db")
}

// DefaultLogPath returns the default rotated log file path.
func DefaultLogPath() string {
	return filepath.Join(XDGStateHome(), appName, "fitts.log")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appName, "config.toml")
}
