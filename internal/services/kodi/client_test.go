package kodi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"cardplay/internal/logging"
	"cardplay/internal/services"
)

func newRawClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := NewClient(Options{Username: "kodi", Password: "secret", Timeout: timeout}, logging.NewNop())
	c.endpoint = server.URL + "/jsonrpc"
	return c
}

func TestSendUsesAuthAndPerCallIDs(t *testing.T) {
	fake := newFakeKodi(t)
	var mu sync.Mutex
	var authOK bool
	fake.mu.Lock()
	fake.onRequest = func(r *http.Request) {
		user, pass, ok := r.BasicAuth()
		mu.Lock()
		authOK = ok && user == "kodi" && pass == "secret"
		mu.Unlock()
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if r.Method != http.MethodPost || r.URL.Path != "/jsonrpc" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}
	fake.mu.Unlock()
	c := fake.client(Options{Username: "kodi", Password: "secret"})

	for range 2 {
		if err := c.Ping(context.Background()); err != nil {
			t.Fatalf("Ping: %v", err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if !authOK {
		t.Fatal("expected basic auth credentials")
	}
	calls := fake.callsTo("JSONRPC.Ping")
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].ID == calls[1].ID {
		t.Fatal("expected a fresh id per call")
	}
	if _, err := uuid.Parse(calls[0].ID); err != nil {
		t.Fatalf("expected uuid call id, got %q", calls[0].ID)
	}
}

func TestSendTimeoutIsExplicit(t *testing.T) {
	c := newRawClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}, 20*time.Millisecond)

	resp, err := c.Send(context.Background(), NewRequest("JSONRPC.Ping"), true)
	if resp != nil {
		t.Fatalf("expected no response, got %+v", resp)
	}
	if Outcome(err) != OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %v (%v)", Outcome(err), err)
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
}

func TestFireAndForgetTimeoutIsNotAnError(t *testing.T) {
	c := newRawClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}, 20*time.Millisecond)

	if err := c.ShowMusicPlaylist(context.Background()); err != nil {
		t.Fatalf("expected unacknowledged send to succeed, got %v", err)
	}
}

func TestSendFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		marker  error
	}{
		{
			name: "http status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			},
			marker: services.ErrTransport,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>not json</html>"))
			},
			marker: services.ErrDecode,
		},
		{
			name: "remote error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"x","error":{"code":-32601,"message":"Method not found."}}`))
			},
			marker: services.ErrRemote,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newRawClient(t, tc.handler, time.Second)
			_, err := c.Send(context.Background(), NewRequest("JSONRPC.Ping"), true)
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
			if Outcome(err) != OutcomeFailed {
				t.Fatalf("expected failed outcome, got %v", Outcome(err))
			}
		})
	}

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		endpoint := server.URL + "/jsonrpc"
		server.Close()
		c := NewClient(Options{Timeout: time.Second}, logging.NewNop())
		c.endpoint = endpoint
		_, err := c.Send(context.Background(), NewRequest("JSONRPC.Ping"), true)
		if !errors.Is(err, services.ErrTransport) {
			t.Fatalf("expected transport marker, got %v", err)
		}
	})
}

func TestRemoteErrorIsInspectable(t *testing.T) {
	c := newRawClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"x","error":{"code":-32602,"message":"Invalid params."}}`))
	}, time.Second)
	_, err := c.Send(context.Background(), NewRequest("Playlist.Add"), true)
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %T %v", err, err)
	}
	if remote.Code != -32602 {
		t.Fatalf("unexpected code %d", remote.Code)
	}
}

func TestSendWithoutWaitSkipsDecode(t *testing.T) {
	c := newRawClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("garbage"))
	}, time.Second)
	resp, err := c.Send(context.Background(), NewRequest("GUI.ActivateWindow"), false)
	if err != nil || resp != nil {
		t.Fatalf("expected nil response and error, got %+v %v", resp, err)
	}
}

func TestSendDecodesDeclaredCharset(t *testing.T) {
	c := newRawClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=ISO-8859-1")
		// "Beyoncé" with é encoded as latin-1 0xE9.
		_, _ = w.Write([]byte("{\"jsonrpc\":\"2.0\",\"id\":\"x\",\"result\":{\"artists\":[{\"artist\":\"Beyonc\xe9\",\"artistid\":3}]}}"))
	}, time.Second)

	matches, err := c.FindArtist(context.Background(), "beyoncé")
	if err != nil {
		t.Fatalf("FindArtist: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != 3 || matches[0].Label != "Beyoncé" {
		t.Fatalf("unexpected matches %+v", matches)
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeOK.String() != "ok" || OutcomeTimeout.String() != "timeout" || OutcomeFailed.String() != "failed" {
		t.Fatal("unexpected outcome labels")
	}
}
