package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"cardplay/internal/history"
	"cardplay/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently handled scans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			records, err := fetchHistory(cmd, ctx, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				if records == nil {
					records = []history.Record{}
				}
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No scans recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(historyHeaders, historyRows(records), 7))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of scans to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print scans as JSON")
	return cmd
}

// fetchHistory asks the daemon first and reads the database directly when
// no daemon is listening.
func fetchHistory(cmd *cobra.Command, ctx *commandContext, limit int) ([]history.Record, error) {
	var records []history.Record
	err := ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.History(limit)
		if err != nil {
			return err
		}
		records = resp.Scans
		return nil
	})
	if err == nil {
		return records, nil
	}
	if !errors.Is(err, errDaemonOffline) {
		return nil, err
	}

	cfg, cfgErr := ctx.ensureConfig()
	if cfgErr != nil {
		return nil, err
	}
	path := cfg.HistoryPath()
	if _, statErr := os.Stat(path); statErr != nil {
		return nil, err
	}
	store, openErr := history.Open(path)
	if openErr != nil {
		return nil, fmt.Errorf("open history: %w", openErr)
	}
	defer store.Close()
	return store.List(cmd.Context(), limit)
}

var historyHeaders = []string{"When", "Card", "Source", "Kind", "Title", "Outcome", "Kodi ID", "Error"}

func historyRows(records []history.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		mediaID := ""
		if rec.MediaID > 0 {
			mediaID = strconv.Itoa(rec.MediaID)
		}
		rows = append(rows, []string{
			rec.CreatedAt.Local().Format(time.DateTime),
			rec.ScanID,
			rec.Source,
			rec.Kind,
			rec.Title,
			rec.Outcome,
			mediaID,
			rec.Error,
		})
	}
	return rows
}
