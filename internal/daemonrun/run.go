package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cardplay/internal/catalog"
	"cardplay/internal/config"
	"cardplay/internal/daemon"
	"cardplay/internal/dispatch"
	"cardplay/internal/history"
	"cardplay/internal/ipc"
	"cardplay/internal/logging"
	"cardplay/internal/services/kodi"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel string
}

// Run starts the cardplay daemon and blocks until SIGINT/SIGTERM or a fatal
// scan device error.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	logger, logPath, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update cardplayd.log link: %v\n", err)
	}
	if removed := logging.CleanupOldLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath); removed > 0 {
		logger.Info("old daemon logs removed", logging.Int("removed", removed))
	}
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	cat := catalog.Load(cfg.Albums.DB, cfg.TV.DB, logger)
	client := kodi.NewFromConfig(cfg, logger)
	logStartupSnapshot(signalCtx, logger, cfg, cat, client)

	daemonOpts := []daemon.Option{daemon.WithLogPath(logPath)}
	if cfg.History.Enabled {
		store, err := history.OpenFromConfig(cfg)
		if err != nil {
			logger.Error("open history store", logging.Error(err))
			return err
		}
		defer store.Close()
		pruneHistory(signalCtx, logger, store, cfg.History.RetentionDays)
		daemonOpts = append(daemonOpts, daemon.WithHistory(store))
	}

	dispatcher := dispatch.New(cat, client, logger)
	d, err := daemon.New(cfg, dispatcher, logger, daemonOpts...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	// Take the lock before the socket so a second daemon cannot replace it.
	if err := d.Lock(); err != nil {
		return err
	}
	defer d.Unlock()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Run(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon stopped on error", "daemon_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the reader device path or enable reader.reconnect"),
		)
		return err
	}
	logger.Info("cardplay daemon shutting down")
	return nil
}

// logStartupSnapshot records what the daemon is about to work with. An
// unreachable Kodi is only a warning; every scan retries on its own.
func logStartupSnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config, cat *catalog.Catalog, client *kodi.Client) {
	logger.Info("startup snapshot",
		logging.String(logging.FieldEventType, "startup_snapshot"),
		logging.String("kodi_endpoint", client.Endpoint()),
		logging.Int("albums", len(cat.Music)),
		logging.Int("shows", len(cat.Video)),
		logging.Int("catalog_conflicts", len(cat.Conflicts())),
		logging.String("device", cfg.Reader.Path),
		logging.Bool("grab", cfg.Reader.Grab),
		logging.Bool("api_enabled", strings.TrimSpace(cfg.API.Bind) != ""),
		logging.Bool("history_enabled", cfg.History.Enabled),
	)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		logging.WarnWithContext(logger, "kodi not reachable at startup", "kodi_unreachable",
			logging.String("kodi_endpoint", client.Endpoint()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "scans fail until Kodi answers"),
			logging.String(logging.FieldErrorHint, "enable the Kodi web server and check kodi.host and credentials"),
		)
	}
}

func pruneHistory(ctx context.Context, logger *slog.Logger, store *history.Store, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	removed, err := store.Prune(ctx, time.Duration(retentionDays)*24*time.Hour)
	if err != nil {
		logger.Warn("history prune failed", logging.Error(err))
		return
	}
	if removed > 0 {
		logger.Info("old scan history removed", logging.Int64("removed", removed))
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, config.CurrentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
