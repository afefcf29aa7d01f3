package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
)

const socketName = "widgethost.sock"

// Dir returns the per-user runtime directory for the host socket. Priority:
// 1) XDG_RUNTIME_DIR (if set)
// 2) /run/user/<uid> (if present)
// 3) <tmp>/widgethost-runtime-<uid> (created)
func Dir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir, nil
	}

	uid := os.Getuid()
	if uid >= 0 {
		runUserDir := fmt.Sprintf("/run/user/%d", uid)
		if info, err := os.Stat(runUserDir); err == nil && info.IsDir() {
			return runUserDir, nil
		}
	} else {
		// no uids on Windows
		uid = 0
	}

	tmpDir := filepath.Join(os.TempDir(), fmt.Sprintf("widgethost-runtime-%d", uid))
	if err := os.MkdirAll(tmpDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return tmpDir, nil
}

// SocketPath returns the host IPC socket path
func SocketPath() (string, error) {
	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, socketName), nil
}

// Resolve returns override when set, otherwise SocketPath()
func Resolve(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return SocketPath()
}
