// Package daemonctl stops a running cardplayd from another process.
package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cardplay/internal/ipc"
)

// ErrDaemonNotRunning is returned when no daemon answers on the socket.
var ErrDaemonNotRunning = errors.New("daemon is not running")

const pollInterval = 100 * time.Millisecond

// StopResult describes how the daemon went down.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Stop asks the daemon at socketPath to exit with SIGTERM and waits up to
// grace for its socket to go away. A daemon still answering after that is
// killed, and its pid file and socket are removed.
func Stop(socketPath, pidPath string, grace time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, fmt.Errorf("connect to daemon: %w", err)
	}
	resp, err := client.Status()
	_ = client.Close()
	pid := 0
	if err == nil && resp != nil {
		pid = resp.Status.PID
	}
	if pid <= 0 {
		if pid, err = readPID(pidPath); err != nil {
			return StopResult{}, err
		}
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	result := StopResult{PID: pid}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			cleanup(socketPath, pidPath)
			return result, nil
		}
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if WaitForShutdown(socketPath, grace) {
		return result, nil
	}

	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	cleanup(socketPath, pidPath)
	result.ForcedKill = true
	return result, nil
}

// WaitForShutdown polls until nothing listens on socketPath or timeout
// passes. It reports whether the daemon went away.
func WaitForShutdown(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		client, err := ipc.Dial(socketPath)
		if err != nil && isUnavailable(err) {
			return true
		}
		if err == nil {
			_ = client.Close()
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("daemon pid file %q holds no pid", path)
	}
	return pid, nil
}

func cleanup(socketPath, pidPath string) {
	_ = os.Remove(socketPath)
	_ = os.Remove(pidPath)
}

func isUnavailable(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED)
}
