package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"cardplay/internal/catalog"
	"cardplay/internal/config"
	"cardplay/internal/daemon"
	"cardplay/internal/dispatch"
	"cardplay/internal/history"
	"cardplay/internal/ipc"
	"cardplay/internal/logging"
	"cardplay/internal/reader"
	"cardplay/internal/services/kodi"
)

const (
	testAlbums = "rf_id,album,album_artist,kodi_db_id\nA1,Abbey Road,The Beatles,42\n"
	testShows  = "rf_id,show\nB1,Firefly\n"
)

// fakeKodi answers JSON-RPC calls from a fixed table and records methods.
type fakeKodi struct {
	mu      sync.Mutex
	methods []string
}

func (k *fakeKodi) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string `json:"id"`
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	k.mu.Lock()
	k.methods = append(k.methods, req.Method)
	k.mu.Unlock()

	var result any = "OK"
	switch req.Method {
	case "AudioLibrary.GetSongs":
		result = map[string]any{"songs": []any{map[string]any{"songid": 1}}}
	case "VideoLibrary.GetTVShows":
		result = map[string]any{"tvshows": []any{map[string]any{"tvshowid": 7, "label": "Firefly"}}}
	case "Player.GetActivePlayers":
		result = []any{map[string]any{"playerid": 0, "type": "audio"}}
	case "VideoLibrary.GetEpisodes":
		result = map[string]any{"episodes": []any{map[string]any{"episodeid": 70}}}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func (k *fakeKodi) called() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.methods)
}

type cliTestEnv struct {
	cfg        *config.Config
	kodi       *fakeKodi
	configPath string
	socketPath string
	daemon     *daemon.Daemon
}

// setupCLIConfig writes catalogs and a config file pointing at a fake Kodi.
func setupCLIConfig(t *testing.T, albums, shows string) *cliTestEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", base)

	stub := &fakeKodi{}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	writeFile(t, filepath.Join(base, "albums.csv"), albums)
	writeFile(t, filepath.Join(base, "tv.csv"), shows)

	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[kodi]
host = %q
port = %d

[reader]
path = %q

[albums]
db = "albums.csv"

[tv]
db = "tv.csv"

[paths]
state_dir = %q
log_dir = %q
`, u.Hostname(), port, filepath.Join(base, "rfid"), filepath.Join(base, "state"), filepath.Join(base, "logs"))
	writeFile(t, configPath, content)

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cliTestEnv{
		cfg:        cfg,
		kodi:       stub,
		configPath: configPath,
		socketPath: cfg.SocketPath(),
	}
}

// idleSource never produces a scan; it stands in for a connected reader.
type idleSource struct {
	closed chan struct{}
	once   sync.Once
}

func (s *idleSource) Next() (reader.ScanEvent, error) {
	<-s.closed
	return reader.ScanEvent{}, io.EOF
}

func (s *idleSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// setupCLITestEnv also runs a daemon with the real dispatcher and history
// behind an IPC server on the configured socket.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	env := setupCLIConfig(t, testAlbums, testShows)
	logger := logging.NewNop()

	store, err := history.OpenFromConfig(env.cfg)
	if err != nil {
		t.Fatalf("history.OpenFromConfig: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cat := catalog.Load(env.cfg.Albums.DB, env.cfg.TV.DB, logger)
	dispatcher := dispatch.New(cat, kodi.NewFromConfig(env.cfg, logger), logger)
	d, err := daemon.New(env.cfg, dispatcher, logger,
		daemon.WithHistory(store),
		daemon.WithSourceOpener(func(context.Context) (reader.Source, error) {
			return &idleSource{closed: make(chan struct{})}, nil
		}),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, env.socketPath, d, logger)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		srv.Close()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Errorf("daemon did not stop")
		}
	})
	waitFor(t, 2*time.Second, func() bool { return d.Status().DeviceConnected })
	env.daemon = d
	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
