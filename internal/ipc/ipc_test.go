package ipc_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"cardplay/internal/catalog"
	"cardplay/internal/daemon"
	"cardplay/internal/dispatch"
	"cardplay/internal/history"
	"cardplay/internal/ipc"
	"cardplay/internal/logging"
)

type fakeController struct {
	mu        sync.Mutex
	injected  []string
	sources   []string
	waited    []bool
	limits    []int
	injectErr error
}

func (f *fakeController) Status() daemon.Status {
	return daemon.Status{Running: true, PID: 4242, DevicePath: "/dev/rfid-reader", ScansHandled: 3}
}

func (f *fakeController) Inject(_ context.Context, scanID, source string, wait bool) (*dispatch.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.injectErr != nil {
		return nil, f.injectErr
	}
	f.injected = append(f.injected, scanID)
	f.sources = append(f.sources, source)
	f.waited = append(f.waited, wait)
	if !wait {
		return nil, nil
	}
	return &dispatch.Report{
		ScanID:   scanID,
		Kind:     catalog.KindMusic,
		Title:    "Abbey Road",
		Outcome:  dispatch.OutcomePlayed,
		MediaID:  42,
		Calls:    []string{"ClearAudioPlaylist", "AddAlbumToPlaylist"},
		Duration: 250 * time.Millisecond,
	}, nil
}

func (f *fakeController) History(_ context.Context, limit int) ([]history.Record, error) {
	f.mu.Lock()
	f.limits = append(f.limits, limit)
	f.mu.Unlock()
	return []history.Record{{ID: 1, ScanID: "A1", Outcome: "played"}}, nil
}

func startServer(t *testing.T, ctrl ipc.Controller) *ipc.Client {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "cardplay.sock")
	srv, err := ipc.NewServer(context.Background(), socket, ctrl, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIPCStatus(t *testing.T) {
	client := startServer(t, &fakeController{})
	resp, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !resp.Status.Running || resp.Status.PID != 4242 || resp.Status.ScansHandled != 3 {
		t.Fatalf("unexpected status %+v", resp.Status)
	}
}

func TestIPCScan(t *testing.T) {
	ctrl := &fakeController{}
	client := startServer(t, ctrl)

	queued, err := client.Scan("B2", false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !queued.Queued || queued.ScanID != "B2" || queued.Outcome != "" {
		t.Fatalf("unexpected queued response %+v", queued)
	}

	played, err := client.Scan("A1", true)
	if err != nil {
		t.Fatalf("Scan wait: %v", err)
	}
	if played.Outcome != "played" || played.MediaID != 42 || played.Kind != "music" || played.DurationMillis != 250 {
		t.Fatalf("unexpected report %+v", played)
	}
	if !slices.Equal(played.Calls, []string{"ClearAudioPlaylist", "AddAlbumToPlaylist"}) {
		t.Fatalf("unexpected calls %v", played.Calls)
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if !slices.Equal(ctrl.injected, []string{"B2", "A1"}) || !slices.Equal(ctrl.waited, []bool{false, true}) {
		t.Fatalf("unexpected injections %v %v", ctrl.injected, ctrl.waited)
	}
	for _, source := range ctrl.sources {
		if source != daemon.SourceIPC {
			t.Fatalf("expected ipc source, got %q", source)
		}
	}
}

func TestIPCScanError(t *testing.T) {
	client := startServer(t, &fakeController{injectErr: errors.New("daemon is not running")})
	if _, err := client.Scan("A1", false); err == nil || !strings.Contains(err.Error(), "not running") {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestIPCHistoryDefaultsLimit(t *testing.T) {
	ctrl := &fakeController{}
	client := startServer(t, ctrl)
	resp, err := client.History(0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(resp.Scans) != 1 || resp.Scans[0].ScanID != "A1" {
		t.Fatalf("unexpected history %+v", resp.Scans)
	}
	if _, err := client.History(5); err != nil {
		t.Fatalf("History: %v", err)
	}
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if !slices.Equal(ctrl.limits, []int{20, 5}) {
		t.Fatalf("unexpected limits %v", ctrl.limits)
	}
}

func TestServerCloseRemovesSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "cardplay.sock")
	srv, err := ipc.NewServer(context.Background(), socket, &fakeController{}, logging.NewNop())
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	srv.Serve()
	srv.Close()
	if _, err := ipc.Dial(socket); err == nil {
		t.Fatal("expected dial to fail after Close")
	}
}
