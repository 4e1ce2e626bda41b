package reader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cardplay/internal/logging"
)

func TestWaitForDeviceReturnsWhenPresent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rfid-reader")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := WaitForDevice(ctx, path, logging.NewNop()); err != nil {
		t.Fatalf("WaitForDevice: %v", err)
	}
}

func TestWaitForDeviceNoticesLateDevice(t *testing.T) {
	previous := statInterval
	statInterval = 10 * time.Millisecond
	t.Cleanup(func() { statInterval = previous })

	path := filepath.Join(t.TempDir(), "rfid-reader")
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = os.WriteFile(path, nil, 0o644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := WaitForDevice(ctx, path, logging.NewNop()); err != nil {
		t.Fatalf("WaitForDevice: %v", err)
	}
}

func TestWaitForDeviceHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := WaitForDevice(ctx, filepath.Join(t.TempDir(), "never"), logging.NewNop())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}
