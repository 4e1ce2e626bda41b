package kodi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/htmlindex"

	"cardplay/internal/config"
	"cardplay/internal/logging"
	"cardplay/internal/services"
)

const component = "kodi"

// HTTPDoer describes the HTTP client used to reach Kodi.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	Protocol string
	Host     string
	Port     int
	Subpath  string
	Username string
	Password string
	// Timeout bounds each call. Zero leaves only the caller's context.
	Timeout time.Duration
	// PlaylistLimit caps how many songs one album queues. Zero means no cap.
	PlaylistLimit int
	HTTPClient    HTTPDoer
	// Shuffle permutes n items through swap. Defaults to math/rand/v2.
	Shuffle func(n int, swap func(i, j int))
}

// Client issues JSON-RPC calls against one Kodi instance.
type Client struct {
	endpoint      string
	username      string
	password      string
	timeout       time.Duration
	playlistLimit int
	http          HTTPDoer
	shuffle       func(n int, swap func(i, j int))
	logger        *slog.Logger
}

// NewClient constructs a client for the configured endpoint.
func NewClient(opts Options, logger *slog.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	shuffle := opts.Shuffle
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	protocol := opts.Protocol
	if protocol == "" {
		protocol = "http"
	}
	return &Client{
		endpoint:      Endpoint(protocol, opts.Host, opts.Port, opts.Subpath),
		username:      opts.Username,
		password:      opts.Password,
		timeout:       opts.Timeout,
		playlistLimit: opts.PlaylistLimit,
		http:          httpClient,
		shuffle:       shuffle,
		logger:        logging.NewComponentLogger(logger, component),
	}
}

// NewFromConfig builds a client from the [kodi] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	return NewClient(Options{
		Protocol:      cfg.Kodi.Protocol,
		Host:          cfg.Kodi.Host,
		Port:          cfg.Kodi.Port,
		Subpath:       cfg.Kodi.Subpath,
		Username:      cfg.Kodi.Username,
		Password:      cfg.Kodi.Password,
		Timeout:       cfg.KodiTimeout(),
		PlaylistLimit: cfg.Kodi.PlaylistLimit,
	}, logger)
}

// Endpoint returns the normalized JSON-RPC URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Response is a decoded JSON-RPC reply.
type Response struct {
	ID     any             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RemoteError    `json:"error"`
}

// RemoteError is the error object Kodi returns for a rejected call.
type RemoteError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("kodi error %d: %s", e.Code, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return services.ErrRemote
}

// CallOutcome tags how a remote call ended.
type CallOutcome int

const (
	OutcomeOK CallOutcome = iota
	OutcomeTimeout
	OutcomeFailed
)

func (o CallOutcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "failed"
	}
}

// Outcome classifies the error returned by Send.
func Outcome(err error) CallOutcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, services.ErrTimeout):
		return OutcomeTimeout
	default:
		return OutcomeFailed
	}
}

// Send posts req and, when wait is true, decodes the reply. With wait false
// the body is drained unread and the returned response is nil.
func (c *Client) Send(ctx context.Context, req Request, wait bool) (*Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	body, err := req.Encode()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, component, req.Method, "encode request", err)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, component, req.Method, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.username, c.password)

	logger := logging.WithContext(ctx, c.logger)
	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, services.Wrap(services.ErrTimeout, component, req.Method, "no reply within timeout", err)
		}
		return nil, services.Wrap(services.ErrTransport, component, req.Method, "post request", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, services.Wrap(services.ErrTimeout, component, req.Method, "reply body timed out", err)
		}
		return nil, services.Wrap(services.ErrTransport, component, req.Method, "read reply", err)
	}
	logger.Debug("kodi call",
		logging.String("method", req.Method),
		logging.String("call_id", req.ID),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
	)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrTransport, component, req.Method,
			fmt.Sprintf("http status %d", resp.StatusCode), nil)
	}
	if !wait {
		return nil, nil
	}

	decoded, err := decodeResponse(payload, resp.Header.Get("Content-Type"))
	if err != nil {
		logging.ErrorWithContext(logger, "kodi reply decode failed", "kodi_decode_failed",
			logging.String("method", req.Method),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the endpoint is a Kodi JSON-RPC server"),
		)
		return nil, services.Wrap(services.ErrDecode, component, req.Method, "decode reply", err)
	}
	if decoded.Error != nil {
		return decoded, fmt.Errorf("%s: %w", req.Method, decoded.Error)
	}
	return decoded, nil
}

// notify sends a call whose reply carries nothing the caller needs. A timeout
// means the call went out without acknowledgement and is not an error.
func (c *Client) notify(ctx context.Context, req Request) error {
	_, err := c.Send(ctx, req, false)
	if Outcome(err) == OutcomeTimeout {
		logging.WithContext(ctx, c.logger).Debug("kodi call sent without acknowledgement",
			logging.String("method", req.Method),
			logging.Error(err),
		)
		return nil
	}
	return err
}

// call sends req and decodes its result object. A reply without a result
// yields an empty map.
func (c *Client) call(ctx context.Context, req Request) (map[string]any, error) {
	resp, err := c.Send(ctx, req, true)
	if err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return map[string]any{}, nil
	}
	var result map[string]any
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		// Some methods answer with a bare string such as "OK".
		return map[string]any{}, nil
	}
	return result, nil
}

func decodeResponse(payload []byte, contentType string) (*Response, error) {
	body, err := toUTF8(payload, contentType)
	if err != nil {
		return nil, err
	}
	var decoded Response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

// toUTF8 transcodes the body when the server names a charset other than
// UTF-8. A missing charset is taken as UTF-8.
func toUTF8(payload []byte, contentType string) ([]byte, error) {
	if contentType == "" {
		return payload, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return payload, nil
	}
	charset := strings.ToLower(strings.TrimSpace(params["charset"]))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return payload, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Bytes(payload)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func decodeResult(resp *Response, target any) error {
	if resp == nil || len(resp.Result) == 0 {
		return fmt.Errorf("empty result")
	}
	return json.Unmarshal(resp.Result, target)
}
