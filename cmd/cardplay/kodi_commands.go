package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cardplay/internal/config"
	"cardplay/internal/logging"
	"cardplay/internal/services/kodi"
)

const kodiCheckTimeout = 5 * time.Second

func newKodiCommand(ctx *commandContext) *cobra.Command {
	kodiCmd := &cobra.Command{
		Use:   "kodi",
		Short: "Talk to Kodi directly",
	}
	kodiCmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Check that Kodi answers JSON-RPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := kodi.NewFromConfig(cfg, logging.NewNop())
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if err := pingKodi(cmd.Context(), client); err != nil {
				fmt.Fprintln(out, renderStatusLine("Kodi", statusError, client.Endpoint()+": "+err.Error(), colorize))
				return fmt.Errorf("kodi unreachable: %w", err)
			}
			fmt.Fprintln(out, renderStatusLine("Kodi", statusOK, client.Endpoint(), colorize))
			return nil
		},
	})
	kodiCmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop whatever Kodi is playing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := kodi.NewFromConfig(cfg, logging.NewNop())
			if err := client.PlayerStop(cmd.Context()); err != nil {
				return fmt.Errorf("stop playback: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Playback stopped")
			return nil
		},
	})
	return kodiCmd
}

func pingKodi(ctx context.Context, client *kodi.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, kodiCheckTimeout)
	defer cancel()
	return client.Ping(pingCtx)
}

// kodiStatusLine reports whether Kodi answers from this machine.
func kodiStatusLine(ctx context.Context, cfg *config.Config, colorize bool) string {
	client := kodi.NewFromConfig(cfg, logging.NewNop())
	if err := pingKodi(ctx, client); err != nil {
		return renderStatusLine("Kodi", statusError, client.Endpoint()+" unreachable: "+err.Error(), colorize)
	}
	return renderStatusLine("Kodi", statusOK, client.Endpoint(), colorize)
}
