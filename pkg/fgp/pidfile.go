package fgp

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// PIDFilePath returns the PID file companion of a socket path.
func PIDFilePath(socketPath string) string {
	return socketPath + ".pid"
}

// WritePID records a pid, one decimal number and a trailing newline.
// The detached daemon child calls this exactly once before serving.
func WritePID(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating pid file directory: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// ReadPID parses a PID file written by WritePID.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file %s: %w", path, err)
	}
	return pid, nil
}

// PIDMatches reports whether the process is alive and its command name
// contains name. Stop refuses to signal anything that fails this
// check, so a recycled pid never gets our SIGTERM.
func PIDMatches(pid int, name string) bool {
	out, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "comm=").Output()
	if err != nil {
		return false
	}
	return strings.Contains(strings.TrimSpace(string(out)), name)
}

// CleanupSocket removes the socket and its PID file, ignoring errors.
// Used after signalling a daemon that can no longer clean up itself.
func CleanupSocket(socketPath string) {
	_ = os.Remove(socketPath)
	_ = os.Remove(PIDFilePath(socketPath))
}
