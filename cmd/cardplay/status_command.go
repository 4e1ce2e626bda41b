package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"cardplay/internal/daemon"
	"cardplay/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			var status *daemon.Status
			err := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				status = &resp.Status
				return nil
			})
			if err != nil && !errors.Is(err, errDaemonOffline) {
				return err
			}
			if jsonOutput {
				if status == nil {
					return writeJSON(cmd, daemon.Status{})
				}
				return writeJSON(cmd, status)
			}

			fmt.Fprintln(stdout, renderSectionHeader("cardplay", colorize))
			if status == nil {
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusWarn, "not running", colorize))
			} else {
				for _, line := range statusLines(*status, colorize) {
					fmt.Fprintln(stdout, line)
				}
			}
			if cfg, err := ctx.ensureConfig(); err == nil {
				fmt.Fprintln(stdout, kodiStatusLine(cmd.Context(), cfg, colorize))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print status as JSON")
	return cmd
}

func statusLines(status daemon.Status, colorize bool) []string {
	lines := []string{
		renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d, up %s)", status.PID, uptime(status.StartedAt)), colorize),
	}
	if status.DeviceConnected {
		lines = append(lines, renderStatusLine("Reader", statusOK, status.DevicePath, colorize))
	} else {
		lines = append(lines, renderStatusLine("Reader", statusWarn, status.DevicePath+" (waiting for device)", colorize))
	}

	scansKind := statusInfo
	if status.ScansFailed > 0 {
		scansKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Scans", scansKind,
		strconv.FormatInt(status.ScansHandled, 10)+" handled, "+strconv.FormatInt(status.ScansFailed, 10)+" failed", colorize))
	if last := status.LastScan; last != nil {
		kind := statusOK
		detail := fmt.Sprintf("%s -> %s", last.ScanID, last.Outcome)
		if last.Title != "" {
			detail += " (" + last.Title + ")"
		}
		if last.Error != "" {
			kind = statusError
			detail += ": " + last.Error
		}
		lines = append(lines, renderStatusLine("Last scan", kind, detail, colorize))
	}
	lines = append(lines, renderStatusLine("History", statusInfo, yesNo(status.HistoryEnabled), colorize))
	if status.LogPath != "" {
		lines = append(lines, renderStatusLine("Log", statusInfo, status.LogPath, colorize))
	}
	return lines
}

func uptime(started time.Time) string {
	if started.IsZero() {
		return "unknown"
	}
	return time.Since(started).Truncate(time.Second).String()
}
