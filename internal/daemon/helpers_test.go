package daemon

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cardplay/internal/config"
	"cardplay/internal/dispatch"
	"cardplay/internal/reader"
	"cardplay/internal/services"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Reader.Path = filepath.Join(base, "rfid")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

// fakeSource yields queued scans until it fails or is closed.
type fakeSource struct {
	events chan reader.ScanEvent
	fail   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		events: make(chan reader.ScanEvent, 8),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (s *fakeSource) Next() (reader.ScanEvent, error) {
	select {
	case event := <-s.events:
		return event, nil
	case err := <-s.fail:
		return reader.ScanEvent{}, err
	case <-s.closed:
		return reader.ScanEvent{}, io.EOF
	}
}

func (s *fakeSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSource) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type handledScan struct {
	id     string
	source string
}

// recordingDispatcher reports every scan it sees. Scan id "bad" fails.
type recordingDispatcher struct {
	handled chan handledScan
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{handled: make(chan handledScan, 16)}
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, event reader.ScanEvent) (dispatch.Report, error) {
	source, _ := services.SourceFromContext(ctx)
	r.handled <- handledScan{id: event.RawID, source: source}
	if event.RawID == "bad" {
		err := services.Wrap(services.ErrTransport, "kodi", "Playlist.Clear", "", errors.New("connection refused"))
		return dispatch.Report{ScanID: event.RawID, Outcome: dispatch.OutcomeFailed, Err: err}, err
	}
	return dispatch.Report{ScanID: event.RawID, Outcome: dispatch.OutcomePlayed, MediaID: 42}, nil
}

func (r *recordingDispatcher) next(t *testing.T) handledScan {
	t.Helper()
	select {
	case scan := <-r.handled:
		return scan
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
		return handledScan{}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// startDaemon runs d in the background and returns a stop func that cancels
// it and yields Run's error.
func startDaemon(t *testing.T, d *Daemon) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- d.Run(ctx) }()
	waitFor(t, "daemon start", func() bool { return d.Status().Running })
	var once sync.Once
	var runErr error
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case runErr = <-result:
			case <-time.After(2 * time.Second):
				runErr = errors.New("daemon did not stop")
			}
		})
		return runErr
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}
