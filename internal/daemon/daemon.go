package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"cardplay/internal/config"
	"cardplay/internal/dispatch"
	"cardplay/internal/history"
	"cardplay/internal/logging"
	"cardplay/internal/reader"
	"cardplay/internal/services"
	"cardplay/internal/services/kodi"
)

// Scan sources recorded in logs and history.
const (
	SourceDevice = "device"
	SourceIPC    = "ipc"
	SourceAPI    = "api"
)

// injectQueueSize bounds scans waiting behind the one being dispatched.
const injectQueueSize = 16

// reconnectDelay spaces out attempts to re-open a device that udev reported.
var reconnectDelay = time.Second

var (
	// ErrNotRunning is returned when a scan is injected while the loop is down.
	ErrNotRunning = errors.New("daemon is not running")
	// ErrQueueFull is returned when too many injected scans are pending.
	ErrQueueFull = errors.New("scan queue is full")
)

// Dispatcher handles one scan at a time.
type Dispatcher interface {
	Dispatch(ctx context.Context, event reader.ScanEvent) (dispatch.Report, error)
}

// HistoryStore persists handled scans.
type HistoryStore interface {
	Add(ctx context.Context, rec history.Record) (history.Record, error)
	List(ctx context.Context, limit int) ([]history.Record, error)
}

// SourceOpener acquires the scan device.
type SourceOpener func(ctx context.Context) (reader.Source, error)

// DeviceWaiter blocks until the device at path exists.
type DeviceWaiter func(ctx context.Context, path string, logger *slog.Logger) error

// Option customizes a Daemon.
type Option func(*Daemon)

// WithHistory records every dispatch in store.
func WithHistory(store HistoryStore) Option {
	return func(d *Daemon) { d.history = store }
}

// WithSourceOpener replaces the evdev device opener.
func WithSourceOpener(open SourceOpener) Option {
	return func(d *Daemon) {
		if open != nil {
			d.open = open
		}
	}
}

// WithDeviceWaiter replaces the udev wait used while reconnecting.
func WithDeviceWaiter(wait DeviceWaiter) Option {
	return func(d *Daemon) {
		if wait != nil {
			d.wait = wait
		}
	}
}

// WithLogPath records the active log file for status reporting.
func WithLogPath(path string) Option {
	return func(d *Daemon) { d.logPath = path }
}

// Daemon runs the scan loop and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	dispatcher Dispatcher
	history    HistoryStore
	open       SourceOpener
	wait       DeviceWaiter
	logPath    string

	lockPath string
	lock     *flock.Flock
	locked   bool

	injected chan injectedScan
	running  atomic.Bool
	apiSrv   *apiServer

	mu        sync.Mutex
	startedAt time.Time
	connected bool
	handled   int64
	failed    int64
	last      *history.Record
}

type injectedScan struct {
	ctx    context.Context
	event  reader.ScanEvent
	source string
	reply  chan dispatch.Report
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool            `json:"running"`
	PID             int             `json:"pid"`
	StartedAt       time.Time       `json:"started_at,omitzero"`
	DevicePath      string          `json:"device_path"`
	DeviceConnected bool            `json:"device_connected"`
	KodiEndpoint    string          `json:"kodi_endpoint"`
	ScansHandled    int64           `json:"scans_handled"`
	ScansFailed     int64           `json:"scans_failed"`
	LastScan        *history.Record `json:"last_scan,omitempty"`
	HistoryEnabled  bool            `json:"history_enabled"`
	LockPath        string          `json:"lock_path"`
	LogPath         string          `json:"log_path,omitempty"`
}

// New constructs a daemon around a dispatcher.
func New(cfg *config.Config, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || dispatcher == nil {
		return nil, errors.New("daemon requires config and dispatcher")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
		wait:       reader.WaitForDevice,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		injected:   make(chan injectedScan, injectQueueSize),
	}
	d.open = func(context.Context) (reader.Source, error) {
		return reader.Open(cfg.Reader.Path, cfg.Reader.Grab, d.logger)
	}
	for _, opt := range opts {
		opt(d)
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiSrv = srv
	return d, nil
}

// Run acquires the lock and processes scans until ctx is canceled or the
// device fails without reconnect enabled. Cancellation is a clean shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Lock(); err != nil {
		return err
	}
	defer d.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := d.apiSrv.start(ctx); err != nil {
		return err
	}
	defer d.apiSrv.stop()

	d.mu.Lock()
	d.startedAt = time.Now()
	d.mu.Unlock()
	d.running.Store(true)
	defer d.running.Store(false)
	d.logger.Info("cardplay daemon started",
		logging.String("lock", d.lockPath),
		logging.String("device", d.cfg.Reader.Path),
		logging.Bool("reconnect", d.cfg.Reader.Reconnect),
	)

	err := d.loop(ctx)
	if ctx.Err() != nil {
		d.logger.Info("cardplay daemon stopped")
		return nil
	}
	return err
}

// Lock acquires the single-instance lock. Callers that start sockets or other
// shared resources before Run take it first; Run reuses a held lock.
func (d *Daemon) Lock() error {
	if d.locked {
		return nil
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another cardplayd instance is already running")
	}
	d.locked = true
	return nil
}

// Unlock releases the single-instance lock if held.
func (d *Daemon) Unlock() {
	if !d.locked {
		return
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.locked = false
}

func (d *Daemon) loop(ctx context.Context) error {
	for {
		source, err := d.open(ctx)
		if err != nil {
			if !d.cfg.Reader.Reconnect {
				return fmt.Errorf("open scan device: %w", err)
			}
			logging.WarnWithContext(d.logger, "scan device unavailable", "device_unavailable",
				logging.String("device", d.cfg.Reader.Path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "only injected scans are handled until the device returns"),
				logging.String(logging.FieldErrorHint, "plug the reader in or check permissions on the device node"),
			)
			if err := d.awaitDevice(ctx); err != nil {
				return err
			}
			continue
		}

		err = d.serve(ctx, source)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.cfg.Reader.Reconnect {
			return err
		}
		logging.WarnWithContext(d.logger, "scan device lost", "device_lost",
			logging.String("device", d.cfg.Reader.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "card scans are ignored until the device returns"),
			logging.String(logging.FieldErrorHint, "check the reader cable"),
		)
		if err := d.awaitDevice(ctx); err != nil {
			return err
		}
	}
}

// serve dispatches scans from source until it fails. The device grab is
// released on every return path.
func (d *Daemon) serve(ctx context.Context, source reader.Source) error {
	defer func() {
		if err := source.Close(); err != nil {
			d.logger.Warn("scan device close failed", logging.Error(err))
		}
		d.setConnected(false)
	}()
	d.setConnected(true)
	d.logger.Info("scan device ready", logging.String("device", d.cfg.Reader.Path))

	done := make(chan struct{})
	defer close(done)
	scans := make(chan reader.ScanEvent)
	readErr := make(chan error, 1)
	go func() {
		for {
			event, err := source.Next()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case scans <- event:
			case <-done:
				return
			}
		}
	}()
	return d.pump(ctx, scans, readErr)
}

// awaitDevice blocks until udev reports the device, handling injected scans
// meanwhile.
func (d *Daemon) awaitDevice(ctx context.Context) error {
	ready := make(chan error, 1)
	go func() {
		err := d.wait(ctx, d.cfg.Reader.Path, d.logger)
		if err == nil {
			select {
			case <-time.After(reconnectDelay):
			case <-ctx.Done():
				err = ctx.Err()
			}
		}
		ready <- err
	}()
	return d.pump(ctx, nil, ready)
}

// pump runs scans one at a time until stop yields a value or ctx ends.
// A nil error from stop ends the pump without error.
func (d *Daemon) pump(ctx context.Context, scans <-chan reader.ScanEvent, stop <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-stop:
			return err
		case event := <-scans:
			d.handle(ctx, event, SourceDevice)
		case scan := <-d.injected:
			if scan.ctx != nil && scan.ctx.Err() != nil {
				// The caller stopped waiting before the scan was reached.
				continue
			}
			report := d.handle(ctx, scan.event, scan.source)
			if scan.reply != nil {
				scan.reply <- report
			}
		}
	}
}

func (d *Daemon) handle(ctx context.Context, event reader.ScanEvent, source string) dispatch.Report {
	ctx = services.WithSource(ctx, source)
	report, err := d.dispatcher.Dispatch(ctx, event)
	if err != nil && report.Err == nil {
		report.Err = err
	}
	rec := recordFromReport(report, source)

	if d.history != nil {
		if _, err := d.history.Add(ctx, rec); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, d.logger), "scan history write failed", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this scan is missing from cardplay history"),
				logging.String(logging.FieldErrorHint, "check disk space and permissions on the state directory"),
			)
		}
	}

	d.mu.Lock()
	d.handled++
	if report.Err != nil {
		d.failed++
	}
	d.last = &rec
	d.mu.Unlock()
	return report
}

// Inject queues a scan from a non-device source. With wait set it blocks
// until the scan is dispatched and returns its report.
func (d *Daemon) Inject(ctx context.Context, scanID, source string, wait bool) (*dispatch.Report, error) {
	scanID = strings.TrimSpace(scanID)
	if scanID == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "inject scan", "scan id is required", nil)
	}
	if !d.running.Load() {
		return nil, ErrNotRunning
	}
	scan := injectedScan{event: reader.ScanEvent{RawID: scanID}, source: source}
	if wait {
		// Only a waiting caller can abandon its scan.
		scan.ctx = ctx
		scan.reply = make(chan dispatch.Report, 1)
	}
	select {
	case d.injected <- scan:
	default:
		return nil, ErrQueueFull
	}
	d.logger.Info("scan injected",
		logging.String(logging.FieldScanID, scanID),
		logging.String(logging.FieldSource, source),
	)
	if !wait {
		return nil, nil
	}
	select {
	case report := <-scan.reply:
		return &report, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// History returns the most recent handled scans, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Record, error) {
	if d.history == nil {
		return nil, nil
	}
	return d.history.List(ctx, limit)
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	status := Status{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		DevicePath:      d.cfg.Reader.Path,
		DeviceConnected: d.connected,
		KodiEndpoint:    kodi.Endpoint(d.cfg.Kodi.Protocol, d.cfg.Kodi.Host, d.cfg.Kodi.Port, d.cfg.Kodi.Subpath),
		ScansHandled:    d.handled,
		ScansFailed:     d.failed,
		HistoryEnabled:  d.history != nil,
		LockPath:        d.lockPath,
		LogPath:         d.logPath,
	}
	if status.Running {
		status.StartedAt = d.startedAt
	}
	if d.last != nil {
		last := *d.last
		status.LastScan = &last
	}
	return status
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

func (d *Daemon) setConnected(connected bool) {
	d.mu.Lock()
	d.connected = connected
	d.mu.Unlock()
}

func recordFromReport(report dispatch.Report, source string) history.Record {
	rec := history.Record{
		ScanID:        report.ScanID,
		CorrelationID: report.CorrelationID,
		Source:        source,
		Kind:          string(report.Kind),
		Title:         report.Title,
		Outcome:       string(report.Outcome),
		MediaID:       report.MediaID,
		Duration:      report.Duration,
		CreatedAt:     time.Now(),
	}
	if report.Err != nil {
		rec.Error = report.Err.Error()
		if rec.Outcome == "" {
			rec.Outcome = string(dispatch.OutcomeFailed)
		}
	}
	return rec
}
