package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cardplay/internal/catalog"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the card catalogs",
	}
	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	catalogCmd.AddCommand(newCatalogCheckCommand(ctx))
	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var kind string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter := catalog.Kind(strings.ToLower(strings.TrimSpace(kind)))
			switch filter {
			case "", catalog.KindMusic, catalog.KindVideo:
			default:
				return fmt.Errorf("--kind must be music or video, got %q", kind)
			}

			type row struct {
				Kind     catalog.Kind `json:"kind"`
				ScanID   string       `json:"rf_id"`
				Title    string       `json:"title"`
				Artist   string       `json:"album_artist,omitempty"`
				CachedID string       `json:"kodi_db_id,omitempty"`
				Shuffle  bool         `json:"shuffle,omitempty"`
			}
			var rows []row
			collect := func(k catalog.Kind, path string, load func(string) ([]catalog.Entry, error)) error {
				if filter != "" && filter != k {
					return nil
				}
				entries, err := load(path)
				if err != nil {
					return fmt.Errorf("%s catalog: %w", k, err)
				}
				for _, e := range entries {
					rows = append(rows, row{Kind: k, ScanID: e.ScanID, Title: e.Title, Artist: e.Secondary, CachedID: e.CachedID, Shuffle: e.Shuffle})
				}
				return nil
			}
			if err := collect(catalog.KindMusic, cfg.Albums.DB, catalog.LoadMusic); err != nil {
				return err
			}
			if err := collect(catalog.KindVideo, cfg.TV.DB, catalog.LoadVideo); err != nil {
				return err
			}

			if jsonOutput {
				if rows == nil {
					rows = []row{}
				}
				return writeJSON(cmd, rows)
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "Catalog is empty")
				return nil
			}
			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				table = append(table, []string{string(r.Kind), r.ScanID, r.Title, r.Artist, r.CachedID, yesNo(r.Shuffle)})
			}
			fmt.Fprintln(out, renderTable([]string{"Kind", "Card", "Title", "Artist", "Kodi ID", "Shuffle"}, table, 5))
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only list music or video entries")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print entries as JSON")
	return cmd
}

func newCatalogCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report catalog rows that will not play as written",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			failed := false

			cat := &catalog.Catalog{}
			music, err := catalog.LoadMusic(cfg.Albums.DB)
			if err != nil {
				failed = true
				fmt.Fprintln(out, renderStatusLine("Music catalog", statusError, err.Error(), colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Music catalog", statusOK, fmt.Sprintf("%d entries", len(music)), colorize))
			}
			cat.Music = music

			video, err := catalog.LoadVideo(cfg.TV.DB)
			if err != nil {
				failed = true
				fmt.Fprintln(out, renderStatusLine("Video catalog", statusError, err.Error(), colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Video catalog", statusOK, fmt.Sprintf("%d entries", len(video)), colorize))
			}
			cat.Video = video

			problems := cat.Check()
			if len(problems) > 0 {
				failed = true
				rows := make([][]string, 0, len(problems))
				for _, p := range problems {
					rows = append(rows, []string{string(p.Kind), p.ScanID, p.Detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Kind", "Card", "Problem"}, rows))
			}
			if failed {
				return errors.New("catalog check failed")
			}
			fmt.Fprintln(out, "Catalog OK")
			return nil
		},
	}
}
