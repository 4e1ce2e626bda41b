package kodi

import (
	"context"
	"slices"

	"cardplay/internal/logging"
	"cardplay/internal/services"
)

// GetEpisodesFromShow lists the episode ids of a TV show in library order.
func (c *Client) GetEpisodesFromShow(ctx context.Context, showID int) ([]int, error) {
	result, err := c.call(ctx, NewRequest("VideoLibrary.GetEpisodes", WithParams(map[string]any{"tvshowid": showID})))
	if err != nil {
		return nil, err
	}
	return ids(result, "episodes", "episodeid"), nil
}

// PlayEpisode starts an episode, optionally resuming from the saved position.
func (c *Client) PlayEpisode(ctx context.Context, episodeID int, resume bool) error {
	return c.notify(ctx, NewRequest("Player.Open", WithParams(map[string]any{
		"item":    map[string]any{"episodeid": episodeID},
		"options": map[string]any{"resume": resume},
	})))
}

// GetActivePlayerID returns the first active player of one of the given types
// (picture, audio, video when none are given).
func (c *Client) GetActivePlayerID(ctx context.Context, types ...string) (int, bool, error) {
	if len(types) == 0 {
		types = []string{"picture", "audio", "video"}
	}
	resp, err := c.Send(ctx, NewRequest("Player.GetActivePlayers"), true)
	if err != nil {
		return 0, false, err
	}
	var players []map[string]any
	if err := decodeResult(resp, &players); err != nil {
		return 0, false, services.Wrap(services.ErrDecode, component, "Player.GetActivePlayers", "unexpected result", err)
	}
	for _, player := range players {
		kind, _ := player["type"].(string)
		if !slices.Contains(types, kind) {
			continue
		}
		id, err := toID(player["playerid"])
		if err != nil {
			continue
		}
		return id, true, nil
	}
	return 0, false, nil
}

// PlayerStop stops the active player. It does nothing when nothing plays.
func (c *Client) PlayerStop(ctx context.Context) error {
	id, ok, err := c.GetActivePlayerID(ctx)
	if err != nil || !ok {
		return err
	}
	logging.WithContext(ctx, c.logger).Info("stopping player", logging.Int("player_id", id))
	_, err = c.Send(ctx, NewRequest("Player.Stop", WithParams(map[string]any{"playerid": id})), true)
	return err
}

// Ping checks that Kodi answers JSON-RPC with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Send(ctx, NewRequest("JSONRPC.Ping"), true)
	return err
}
