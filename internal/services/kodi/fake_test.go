package kodi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cardplay/internal/logging"
)

type recordedCall struct {
	ID     string
	Method string
	Params map[string]any
}

// fakeKodi answers JSON-RPC posts from a per-method table of results.
type fakeKodi struct {
	t       *testing.T
	server  *httptest.Server
	mu      sync.Mutex
	calls   []recordedCall
	results map[string]any
	// fail maps a method to the JSON-RPC error it should return. failAfter
	// lets the first n calls of that method succeed.
	fail      map[string]*RemoteError
	failAfter map[string]int
	delay     map[string]time.Duration
	onRequest func(r *http.Request)
}

func newFakeKodi(t *testing.T) *fakeKodi {
	t.Helper()
	f := &fakeKodi{
		t:         t,
		results:   map[string]any{},
		fail:      map[string]*RemoteError{},
		failAfter: map[string]int{},
		delay:     map[string]time.Duration{},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeKodi) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	inspect := f.onRequest
	f.mu.Unlock()
	if inspect != nil {
		inspect(r)
	}

	var req struct {
		ID     string         `json:"id"`
		Method string         `json:"method"`
		Params map[string]any `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{ID: req.ID, Method: req.Method, Params: req.Params})
	seen := 0
	for _, call := range f.calls {
		if call.Method == req.Method {
			seen++
		}
	}
	result, ok := f.results[req.Method]
	remoteErr := f.fail[req.Method]
	after := f.failAfter[req.Method]
	delay := f.delay[req.Method]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	reply := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch {
	case remoteErr != nil && seen > after:
		reply["error"] = remoteErr
	case ok:
		reply["result"] = result
	default:
		reply["result"] = "OK"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reply)
}

func (f *fakeKodi) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		out = append(out, call.Method)
	}
	return out
}

func (f *fakeKodi) callsTo(method string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, call := range f.calls {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

func (f *fakeKodi) client(opts Options) *Client {
	c := NewClient(opts, logging.NewNop())
	c.endpoint = f.server.URL + "/jsonrpc"
	if c.timeout == 0 {
		c.timeout = 2 * time.Second
	}
	return c
}

func (f *fakeKodi) setResult(method string, result any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[method] = result
}
