package reader

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"cardplay/internal/logging"
)

// statInterval is how often WaitForDevice rechecks the path when netlink
// events are unavailable or do not name the device directly (udev symlinks).
var statInterval = 2 * time.Second

// WaitForDevice blocks until path exists or ctx ends. It wakes on input
// subsystem add events from udev and falls back to polling the path.
func WaitForDevice(ctx context.Context, path string, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "reader")
	if deviceExists(path) {
		return nil
	}

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	var monitorQuit chan struct{}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(logger, "netlink unavailable; polling for card reader", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open netlink sockets"),
			logging.String(logging.FieldImpact, "reader reconnect is detected by polling"),
		)
	} else {
		defer conn.Close()
		monitorQuit = conn.Monitor(queue, errs, inputAddMatcher())
		defer close(monitorQuit)
	}

	logger.Info("waiting for card reader",
		logging.String("path", path),
		logging.String(logging.FieldEventType, "reader_wait"),
	)
	ticker := time.NewTicker(statInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case uevent := <-queue:
			logger.Debug("input device added",
				logging.String("devname", uevent.Env["DEVNAME"]),
				logging.String("kobj", uevent.KObj),
			)
		case err := <-errs:
			logger.Debug("netlink monitor error", logging.Error(err))
			continue
		case <-ticker.C:
		}
		if deviceExists(path) {
			logger.Info("card reader present",
				logging.String("path", path),
				logging.String(logging.FieldEventType, "reader_present"),
			)
			return nil
		}
	}
}

// inputAddMatcher matches SUBSYSTEM=input, ACTION=add.
func inputAddMatcher() netlink.Matcher {
	action := "add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env:    map[string]string{"SUBSYSTEM": "input"},
	})
	return rules
}

func deviceExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
