package fgp

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// childMarkerEnv marks the respawned process so it knows to write the
// PID file and serve instead of detaching again.
const childMarkerEnv = "FGP_DAEMON_CHILD"

// IsDaemonChild reports whether this process is the detached child of
// a SpawnDetached call.
func IsDaemonChild() bool {
	return os.Getenv(childMarkerEnv) == "1"
}

// SpawnDetached re-executes the current binary with args in a new
// session, working directory /tmp, stdout and stderr appended to
// daemon.log next to the socket. It returns the child pid; the child
// is released and outlives the parent.
func SpawnDetached(socketPath string, args []string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolving executable: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return 0, fmt.Errorf("creating socket directory: %w", err)
	}
	logPath := filepath.Join(filepath.Dir(socketPath), "daemon.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", logPath, err)
	}
	defer logFile.Close()

	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), childMarkerEnv+"=1")
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Dir = "/tmp"
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting daemon process: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("releasing daemon process: %w", err)
	}
	return pid, nil
}
