package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// GetRiptideDir returns the directory holding settings, logs and the
// provisioned daemon. RIPTIDE_HOME overrides the platform default.
func GetRiptideDir() string {
	if dir := os.Getenv("RIPTIDE_HOME"); dir != "" {
		return dir
	}

	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "riptide")
		}
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "riptide")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "riptide")
	}
	return filepath.Join(home, ".config", "riptide")
}

// GetLogsDir returns the directory for debug log files
func GetLogsDir() string {
	return filepath.Join(GetRiptideDir(), "logs")
}

// GetRuntimeDir holds lock files for the running service.
func GetRuntimeDir() string {
	return filepath.Join(GetRiptideDir(), "run")
}

// EnsureDirs creates the riptide directory tree.
func EnsureDirs() error {
	for _, dir := range []string{GetRiptideDir(), GetLogsDir(), GetRuntimeDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
