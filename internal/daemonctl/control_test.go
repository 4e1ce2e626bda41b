package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"cardplay/internal/daemon"
	"cardplay/internal/daemonctl"
	"cardplay/internal/dispatch"
	"cardplay/internal/history"
	"cardplay/internal/ipc"
	"cardplay/internal/logging"
)

type pidController struct{ pid int }

func (c pidController) Status() daemon.Status {
	return daemon.Status{Running: true, PID: c.pid}
}

func (pidController) Inject(context.Context, string, string, bool) (*dispatch.Report, error) {
	return nil, nil
}

func (pidController) History(context.Context, int) ([]history.Record, error) {
	return nil, nil
}

// startChild runs a process that stands in for the daemon's pid.
func startChild(t *testing.T) *exec.Cmd {
	t.Helper()
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start child: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	return cmd
}

func serve(t *testing.T, socket string, ctrl ipc.Controller) *ipc.Server {
	t.Helper()
	srv, err := ipc.NewServer(context.Background(), socket, ctrl, logging.NewNop())
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	return srv
}

func TestStopWithoutDaemon(t *testing.T) {
	dir := t.TempDir()
	_, err := daemonctl.Stop(filepath.Join(dir, "cardplay.sock"), filepath.Join(dir, "cardplayd.pid"), time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStopSignalsDaemonAndWaits(t *testing.T) {
	dir := t.TempDir()
	socket := filepath.Join(dir, "cardplay.sock")
	child := startChild(t)
	srv := serve(t, socket, pidController{pid: child.Process.Pid})
	go func() {
		_ = child.Wait()
		srv.Close()
	}()

	result, err := daemonctl.Stop(socket, filepath.Join(dir, "cardplayd.pid"), 5*time.Second)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if result.PID != child.Process.Pid || result.ForcedKill {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestStopReadsPIDFile(t *testing.T) {
	dir := t.TempDir()
	socket := filepath.Join(dir, "cardplay.sock")
	pidPath := filepath.Join(dir, "cardplayd.pid")
	child := startChild(t)
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(child.Process.Pid)+"\n"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	srv := serve(t, socket, pidController{})
	go func() {
		_ = child.Wait()
		srv.Close()
	}()

	result, err := daemonctl.Stop(socket, pidPath, 5*time.Second)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if result.PID != child.Process.Pid {
		t.Fatalf("expected pid %d, got %+v", child.Process.Pid, result)
	}
}

func TestStopRefusesOwnProcess(t *testing.T) {
	dir := t.TempDir()
	socket := filepath.Join(dir, "cardplay.sock")
	srv := serve(t, socket, pidController{pid: os.Getpid()})
	t.Cleanup(srv.Close)

	if _, err := daemonctl.Stop(socket, filepath.Join(dir, "cardplayd.pid"), time.Second); err == nil {
		t.Fatal("expected refusal to signal the test process")
	}
}

func TestWaitForShutdownTimesOut(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "cardplay.sock")
	srv := serve(t, socket, pidController{pid: 1})
	t.Cleanup(srv.Close)

	if daemonctl.WaitForShutdown(socket, 200*time.Millisecond) {
		t.Fatal("expected daemon to still be listening")
	}
}
