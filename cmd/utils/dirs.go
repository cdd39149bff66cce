package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DataDirEnv overrides the data directory.
const DataDirEnv = "WEBCHAT_DATA_DIR"

// OverrideCwd is set from the global --cwd flag.
var OverrideCwd string

// GetEffectiveCWD returns the directory searched for webchat.* and .env:
// --cwd when given, made absolute, otherwise the process working directory.
func GetEffectiveCWD() string {
	if dir := strings.TrimSpace(OverrideCwd); dir != "" {
		return absPath(expandHome(dir))
	}
	wd, _ := os.Getwd()
	if wd == "" {
		return "."
	}
	return wd
}

// GetDataDir returns the directory holding persisted chat state:
// $WEBCHAT_DATA_DIR, or ~/.webchat.
func GetDataDir() (string, error) {
	if dataDir := strings.TrimSpace(os.Getenv(DataDirEnv)); dataDir != "" {
		return absPath(expandHome(dataDir)), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".webchat"), nil
}

// EnsureDir creates dir (and parents) with user-only permissions.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

// expandHome replaces a leading ~ with the home directory.
func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func absPath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "."
	}
	return abs
}
