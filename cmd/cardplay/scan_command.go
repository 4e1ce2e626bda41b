package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cardplay/internal/catalog"
	"cardplay/internal/dispatch"
	"cardplay/internal/ipc"
	"cardplay/internal/logging"
	"cardplay/internal/reader"
	"cardplay/internal/services/kodi"
)

// errScanFailed signals a dispatch error after the report was printed.
var errScanFailed = errors.New("scan failed")

func newScanCommand(ctx *commandContext) *cobra.Command {
	var local bool
	var noWait bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scan <card-id>",
		Short: "Play a card as if it had been scanned",
		Long: "Play a card as if it had been scanned.\n\n" +
			"The card is handed to the running daemon by default. With --local the\n" +
			"catalog is loaded and Kodi is driven directly from this process.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("card id must not be empty")
			}

			var resp *ipc.ScanResponse
			var err error
			if local {
				resp, err = scanLocally(cmd, ctx, id)
			} else {
				err = ctx.withClient(func(client *ipc.Client) error {
					var callErr error
					resp, callErr = client.Scan(id, !noWait)
					return callErr
				})
			}
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := writeJSON(cmd, resp); err != nil {
					return err
				}
			} else {
				renderScan(cmd.OutOrStdout(), resp, shouldColorize(cmd.OutOrStdout()))
			}
			if resp.Error != "" {
				return errScanFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Dispatch from this process instead of the daemon")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return once the daemon has queued the scan")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func scanLocally(cmd *cobra.Command, ctx *commandContext, id string) (*ipc.ScanResponse, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cat := catalog.Load(cfg.Albums.DB, cfg.TV.DB, logger)
	dispatcher := dispatch.New(cat, kodi.NewFromConfig(cfg, logger), logger)

	report, _ := dispatcher.Dispatch(cmd.Context(), reader.ScanEvent{RawID: id})
	resp := ipc.ScanResponseFromReport(report)
	return &resp, nil
}

func renderScan(out io.Writer, resp *ipc.ScanResponse, colorize bool) {
	if resp == nil {
		return
	}
	if resp.Outcome == "" {
		fmt.Fprintln(out, renderStatusLine("Card "+resp.ScanID, statusInfo, "queued", colorize))
		return
	}

	kind := statusOK
	switch {
	case resp.Error != "":
		kind = statusError
	case resp.Outcome != string(dispatch.OutcomePlayed):
		kind = statusWarn
	}
	message := resp.Outcome
	if resp.Title != "" {
		message += ": " + resp.Title
	}
	fmt.Fprintln(out, renderStatusLine("Card "+resp.ScanID, kind, message, colorize))
	if resp.MediaID > 0 {
		fmt.Fprintln(out, renderStatusLine("Kodi id", statusInfo, fmt.Sprintf("%s %d", resp.Kind, resp.MediaID), colorize))
	}
	if len(resp.Calls) > 0 {
		fmt.Fprintln(out, renderStatusLine("Calls", statusInfo, strings.Join(resp.Calls, ", "), colorize))
	}
	if resp.DurationMillis > 0 {
		fmt.Fprintln(out, renderStatusLine("Took", statusInfo, (time.Duration(resp.DurationMillis)*time.Millisecond).String(), colorize))
	}
	if resp.Error != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, resp.Error, colorize))
	}
}
