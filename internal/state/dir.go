package state

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"drover/internal/config"
)

// Well-known file names inside a project state directory.
const (
	StateFileName  = "state.json"
	PIDFileName    = "manager.pid"
	LockFileName   = "manager.lock"
	ManagerLogName = "manager.log"
	GraceFileName  = "stop.grace"
)

// ProjectID derives the stable identifier for a project root: the first
// twelve hex characters of the SHA-256 of the canonical absolute path.
// The same directory yields the same identifier regardless of how its
// path was spelled on the command line.
func ProjectID(root string) string {
	sum := sha256.Sum256([]byte(canonicalRoot(root)))
	return hex.EncodeToString(sum[:6])
}

// Dir returns the state directory for a project root, creating nothing.
func Dir(root string) (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "drover", ProjectID(root)), nil
}

// LogsDir returns the directory holding per-process log files.
func LogsDir(dir string) string {
	return filepath.Join(dir, "logs")
}

// ProcessLogPaths returns the default stdout and stderr log paths for a
// named process.
func ProcessLogPaths(dir, name string) (stdout, stderr string) {
	logsDir := LogsDir(dir)
	return filepath.Join(logsDir, name+".out.log"), filepath.Join(logsDir, name+".err.log")
}

func StatePath(dir string) string {
	return filepath.Join(dir, StateFileName)
}

func PIDPath(dir string) string {
	return filepath.Join(dir, PIDFileName)
}

func LockPath(dir string) string {
	return filepath.Join(dir, LockFileName)
}

func ManagerLogPath(dir string) string {
	return filepath.Join(dir, ManagerLogName)
}

func GracePath(dir string) string {
	return filepath.Join(dir, GraceFileName)
}

// canonicalRoot matches the config loader's root resolution so the
// state directory stays stable whether or not a config file is still
// present. A root that no longer exists falls back to its absolute
// path.
func canonicalRoot(root string) string {
	if resolved, err := config.CanonicalRoot(root); err == nil {
		return resolved
	}
	if abs, err := filepath.Abs(root); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(root)
}
