package kodi

import (
	"context"
	"fmt"

	"cardplay/internal/logging"
)

// MaxBatchSize is the most items Kodi accepts in one Playlist.Add call.
const MaxBatchSize = 2000

const (
	audioPlaylistID = 0
	videoPlaylistID = 1
)

// BatchReport summarizes a successful playlist submission.
type BatchReport struct {
	Requested int
	Submitted int
	Chunks    int
}

// BatchError reports the first chunk Kodi rejected. Chunks before it were
// queued and are not rolled back.
type BatchError struct {
	Chunk     int
	Submitted int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("playlist chunk %d failed after %d songs queued: %v", e.Chunk, e.Submitted, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// AddAlbumToPlaylist queues an album's songs in track order.
func (c *Client) AddAlbumToPlaylist(ctx context.Context, albumID int, shuffle bool) (BatchReport, error) {
	req := NewRequest("AudioLibrary.GetSongs",
		WithSort("ascending", "track"),
		WithFilters(Filter{"albumid": albumID}),
	)
	result, err := c.call(ctx, req)
	if err != nil {
		return BatchReport{}, err
	}
	return c.AddSongsToPlaylist(ctx, ids(result, "songs", "songid"), shuffle)
}

// AddSongsToPlaylist appends songIDs to the audio playlist. The ids are
// shuffled first when requested, then capped at the playlist limit and sent
// in chunks of MaxBatchSize. Submission stops at the first failed chunk.
func (c *Client) AddSongsToPlaylist(ctx context.Context, songIDs []int, shuffle bool) (BatchReport, error) {
	queue := append([]int(nil), songIDs...)
	if shuffle {
		c.shuffle(len(queue), func(i, j int) { queue[i], queue[j] = queue[j], queue[i] })
	}
	if c.playlistLimit > 0 && len(queue) > c.playlistLimit {
		queue = queue[:c.playlistLimit]
	}

	report := BatchReport{Requested: len(songIDs)}
	for start := 0; start < len(queue); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(queue))
		items := make([]map[string]int, 0, end-start)
		for _, id := range queue[start:end] {
			items = append(items, map[string]int{"songid": id})
		}
		req := NewRequest("Playlist.Add", WithParams(map[string]any{
			"playlistid": audioPlaylistID,
			"item":       items,
		}))
		if _, err := c.Send(ctx, req, true); err != nil {
			return report, &BatchError{Chunk: report.Chunks, Submitted: report.Submitted, Err: err}
		}
		report.Chunks++
		report.Submitted += end - start
	}

	logging.WithContext(ctx, c.logger).Info("songs queued",
		logging.Int("requested", report.Requested),
		logging.Int("submitted", report.Submitted),
		logging.Int("chunks", report.Chunks),
		logging.Bool("shuffle", shuffle),
	)
	return report, nil
}

func (c *Client) ClearAudioPlaylist(ctx context.Context) error {
	return c.clearPlaylist(ctx, audioPlaylistID)
}

func (c *Client) ClearVideoPlaylist(ctx context.Context) error {
	return c.clearPlaylist(ctx, videoPlaylistID)
}

func (c *Client) clearPlaylist(ctx context.Context, playlistID int) error {
	_, err := c.Send(ctx, NewRequest("Playlist.Clear", WithParams(map[string]any{"playlistid": playlistID})), true)
	return err
}

// StartAudioPlaylist starts the audio playlist, or the given file when file
// is non-empty.
func (c *Client) StartAudioPlaylist(ctx context.Context, file string) error {
	item := map[string]any{"playlistid": audioPlaylistID}
	if file != "" {
		item = map[string]any{"file": file}
	}
	return c.notify(ctx, NewRequest("Player.Open", WithParams(map[string]any{"item": item})))
}

// ShowMusicPlaylist brings the music playlist window to the front.
func (c *Client) ShowMusicPlaylist(ctx context.Context) error {
	return c.notify(ctx, NewRequest("GUI.ActivateWindow", WithParams(map[string]any{"window": "musicplaylist"})))
}
