package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cardplay/internal/history"
	"cardplay/internal/logging"
)

func newAPIDaemon(t *testing.T, token string) (*Daemon, http.Handler, *recordingDispatcher) {
	t.Helper()
	cfg := testConfig(t)
	cfg.API.Bind = "127.0.0.1:0"
	cfg.API.Token = token
	disp := newRecordingDispatcher()
	d, err := New(cfg, disp, logging.NewNop(),
		WithHistory(openHistory(t)),
		WithSourceOpener(staticOpener(newFakeSource())),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.apiSrv == nil {
		t.Fatal("expected api server for non-empty bind")
	}
	return d, d.apiSrv.routes(token), disp
}

func serve(handler http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestAPIServerDisabledWithoutBind(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg, newRecordingDispatcher(), logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.apiSrv != nil {
		t.Fatal("expected no api server when bind is empty")
	}
}

func TestAPIRequiresToken(t *testing.T) {
	_, handler, _ := newAPIDaemon(t, "secret")

	if w := serve(handler, http.MethodGet, "/api/status", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := serve(handler, http.MethodGet, "/api/status", "", "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	w := serve(handler, http.MethodGet, "/api/status", "", "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var status Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Running || !status.HistoryEnabled || status.KodiEndpoint != "http://localhost:8080/jsonrpc" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestAPIPreflightSkipsAuth(t *testing.T) {
	_, handler, _ := newAPIDaemon(t, "secret")
	req := httptest.NewRequest(http.MethodOptions, "/api/scans", nil)
	req.Header.Set("Origin", "http://example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Fatal("preflight should not require a token")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
}

func TestAPIHistory(t *testing.T) {
	d, handler, _ := newAPIDaemon(t, "")
	for _, id := range []string{"A1", "B2", "Z9"} {
		if _, err := d.history.Add(context.Background(), history.Record{ScanID: id, Outcome: "played"}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	w := serve(handler, http.MethodGet, "/api/history?limit=2", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(resp.Scans) != 2 {
		t.Fatalf("expected 2 scans, got %d", len(resp.Scans))
	}

	for _, bad := range []string{"0", "-3", "ten"} {
		if w := serve(handler, http.MethodGet, "/api/history?limit="+bad, "", ""); w.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected 400, got %d", bad, w.Code)
		}
	}
}

func TestAPIScanQueuesIntoLoop(t *testing.T) {
	d, handler, disp := newAPIDaemon(t, "")

	if w := serve(handler, http.MethodPost, "/api/scans", `{"id":"A1"}`, ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before the loop runs, got %d", w.Code)
	}

	startDaemon(t, d)
	w := serve(handler, http.MethodPost, "/api/scans", `{"id":"A1"}`, "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var accepted ScanAccepted
	if err := json.Unmarshal(w.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if accepted.ID != "A1" || !accepted.Queued {
		t.Fatalf("unexpected body %+v", accepted)
	}
	if got := disp.next(t); got.id != "A1" || got.source != SourceAPI {
		t.Fatalf("unexpected dispatch %+v", got)
	}

	for _, body := range []string{`{"id":""}`, `not json`} {
		if w := serve(handler, http.MethodPost, "/api/scans", body, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestAPIMethodNotAllowed(t *testing.T) {
	_, handler, _ := newAPIDaemon(t, "")
	if w := serve(handler, http.MethodDelete, "/api/status", "", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
	if w := serve(handler, http.MethodGet, "/api/nope", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
