package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"cardplay/internal/catalog"
	"cardplay/internal/logging"
	"cardplay/internal/reader"
	"cardplay/internal/services"
	"cardplay/internal/services/kodi"
)

// Remote is the subset of the Kodi client a dispatch drives.
type Remote interface {
	FindArtist(ctx context.Context, name string) ([]kodi.Match, error)
	FindAlbum(ctx context.Context, name string, artistID int) ([]kodi.Match, error)
	FindTVShow(ctx context.Context, name string) ([]kodi.Match, error)
	ClearAudioPlaylist(ctx context.Context) error
	AddAlbumToPlaylist(ctx context.Context, albumID int, shuffle bool) (kodi.BatchReport, error)
	StartAudioPlaylist(ctx context.Context, file string) error
	ShowMusicPlaylist(ctx context.Context) error
	GetEpisodesFromShow(ctx context.Context, showID int) ([]int, error)
	PlayEpisode(ctx context.Context, episodeID int, resume bool) error
}

// Catalog resolves a scanned id to a catalog entry.
type Catalog interface {
	Lookup(scanID string) (catalog.Entry, catalog.Kind, bool)
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithPicker replaces the episode picker. pick(n) must return a value in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(d *Dispatcher) {
		if pick != nil {
			d.pick = pick
		}
	}
}

// Dispatcher turns one scan into playback. It keeps no state between scans.
type Dispatcher struct {
	catalog Catalog
	remote  Remote
	pick    func(n int) int
	logger  *slog.Logger
}

// New constructs a dispatcher over a loaded catalog and a Kodi remote.
func New(cat Catalog, remote Remote, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		catalog: cat,
		remote:  remote,
		pick:    rand.IntN,
		logger:  logging.NewComponentLogger(logger, "dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// run tracks one scan through the state machine.
type run struct {
	ctx    context.Context
	logger *slog.Logger
	report *Report
}

func (r *run) enter(state State) {
	r.logger.Debug("dispatch state", logging.String("state", string(state)))
	r.report.State = state
}

func (r *run) record(call string) {
	r.report.Calls = append(r.report.Calls, call)
}

// Dispatch handles one scan. A scan that matches nothing, or whose labels do
// not resolve in the library, ends without error. Errors abort only this scan.
func (d *Dispatcher) Dispatch(ctx context.Context, event reader.ScanEvent) (Report, error) {
	started := time.Now()
	report := Report{
		ScanID:        event.RawID,
		Kind:          catalog.KindNone,
		State:         StateIdle,
		CorrelationID: uuid.NewString(),
	}
	ctx = services.WithScanID(ctx, event.RawID)
	ctx = services.WithRequestID(ctx, report.CorrelationID)
	r := &run{ctx: ctx, logger: logging.WithContext(ctx, d.logger), report: &report}

	r.enter(StateScanDetected)
	r.logger.Info("card scanned", logging.String(logging.FieldEventType, "scan_detected"))

	entry, kind, ok := d.catalog.Lookup(event.RawID)
	var err error
	switch {
	case !ok:
		r.enter(StateNoMatch)
		report.Outcome = OutcomeNoMatch
		r.logger.Info("no album or show for card", logging.String(logging.FieldEventType, "scan_no_match"))
	case kind == catalog.KindMusic:
		report.Kind, report.Title = kind, entry.Title
		r.enter(StateAlbumMatch)
		err = d.playAlbum(r, entry)
	default:
		report.Kind, report.Title = kind, entry.Title
		r.enter(StateShowMatch)
		err = d.playShow(r, entry)
	}

	report.Duration = time.Since(started)
	report.Err = err
	if err != nil && report.Outcome == "" {
		report.Outcome = OutcomeFailed
	}
	if err != nil {
		logging.ErrorWithContext(r.logger, "dispatch failed", "dispatch_failed",
			logging.String("outcome", string(report.Outcome)),
			logging.String("state", string(report.State)),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(err)),
		)
	} else {
		r.logger.Info("dispatch complete",
			logging.String("outcome", string(report.Outcome)),
			logging.String("kind", string(report.Kind)),
			logging.Duration("elapsed", report.Duration),
			logging.String(logging.FieldEventType, "dispatch_complete"),
		)
	}
	return report, err
}

func (d *Dispatcher) playAlbum(r *run, entry catalog.Entry) error {
	r.logger.Info("album matched",
		logging.String("album", entry.Title),
		logging.String("artist", entry.Secondary),
		logging.String("cached_id", entry.CachedID),
	)
	r.enter(StateResolving)
	albumID, ok, err := d.resolveAlbum(r, entry)
	if err != nil || !ok {
		return err
	}
	r.report.MediaID = albumID

	r.enter(StateDispatched)
	r.record("ClearAudioPlaylist")
	if err := d.remote.ClearAudioPlaylist(r.ctx); err != nil {
		return err
	}
	r.record("AddAlbumToPlaylist")
	batch, err := d.remote.AddAlbumToPlaylist(r.ctx, albumID, entry.Shuffle)
	if err != nil {
		return err
	}
	r.record("StartAudioPlaylist")
	if err := d.remote.StartAudioPlaylist(r.ctx, ""); err != nil {
		return err
	}
	r.record("ShowMusicPlaylist")
	if err := d.remote.ShowMusicPlaylist(r.ctx); err != nil {
		return err
	}
	if batch.Submitted == 0 {
		r.report.Outcome = OutcomeUnresolved
		logging.WarnWithContext(r.logger, "album has no songs in the library", "album_empty",
			logging.Int("album_id", albumID),
			logging.String(logging.FieldImpact, "the playlist started empty"),
			logging.String(logging.FieldErrorHint, "rescan the music library or fix kodi_db_id"),
		)
		return nil
	}
	r.report.Outcome = OutcomePlayed
	return nil
}

func (d *Dispatcher) resolveAlbum(r *run, entry catalog.Entry) (int, bool, error) {
	if entry.CachedID != "" {
		id, err := parseCachedID(r, entry.CachedID)
		return id, err == nil, err
	}

	r.record("FindArtist")
	artists, err := d.remote.FindArtist(r.ctx, entry.Secondary)
	if err != nil {
		return 0, false, err
	}
	if len(artists) == 0 {
		d.unresolved(r, "artist", entry.Secondary)
		return 0, false, nil
	}
	r.logger.Info("artist resolved", logging.String("artist", artists[0].Label), logging.Int("artist_id", artists[0].ID))

	r.record("FindAlbum")
	albums, err := d.remote.FindAlbum(r.ctx, entry.Title, artists[0].ID)
	if err != nil {
		return 0, false, err
	}
	if len(albums) == 0 {
		d.unresolved(r, "album", entry.Title)
		return 0, false, nil
	}
	return albums[0].ID, true, nil
}

func (d *Dispatcher) playShow(r *run, entry catalog.Entry) error {
	r.logger.Info("tv show matched",
		logging.String("show", entry.Title),
		logging.String("cached_id", entry.CachedID),
	)
	r.enter(StateResolving)

	var showID int
	if entry.CachedID != "" {
		id, err := parseCachedID(r, entry.CachedID)
		if err != nil {
			return err
		}
		showID = id
	} else {
		r.record("FindTVShow")
		shows, err := d.remote.FindTVShow(r.ctx, entry.Title)
		if err != nil {
			return err
		}
		if len(shows) == 0 {
			d.unresolved(r, "tvshow", entry.Title)
			return nil
		}
		showID = shows[0].ID
	}

	r.record("GetEpisodesFromShow")
	episodes, err := d.remote.GetEpisodesFromShow(r.ctx, showID)
	if err != nil {
		return err
	}
	if len(episodes) == 0 {
		d.unresolved(r, "episode", entry.Title)
		return nil
	}

	episodeID := episodes[d.pick(len(episodes))]
	r.report.MediaID = episodeID
	r.enter(StateDispatched)
	r.logger.Info("episode selected",
		logging.Int("show_id", showID),
		logging.Int("episode_id", episodeID),
		logging.Int("episodes", len(episodes)),
	)
	r.record("PlayEpisode")
	if err := d.remote.PlayEpisode(r.ctx, episodeID, false); err != nil {
		return err
	}
	r.report.Outcome = OutcomePlayed
	return nil
}

func (d *Dispatcher) unresolved(r *run, what, label string) {
	r.report.Outcome = OutcomeUnresolved
	logging.WarnWithContext(r.logger, "library has no match for card", "scan_unresolved",
		logging.String("lookup", what),
		logging.String("label", label),
		logging.String(logging.FieldImpact, "nothing played"),
		logging.String(logging.FieldErrorHint, "check the spelling in the catalog or set kodi_db_id"),
	)
}

// parseCachedID reads a kodi_db_id value. A bad value aborts the scan
// without falling back to a label lookup.
func parseCachedID(r *run, raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err == nil && id <= 0 {
		err = fmt.Errorf("id must be positive")
	}
	if err != nil {
		r.report.Outcome = OutcomeInvalidID
		return 0, services.Wrap(services.ErrValidation, "dispatch", "parse kodi_db_id", strconv.Quote(raw), err)
	}
	return id, nil
}

func hintFor(err error) string {
	switch services.Kind(err) {
	case "timeout":
		return "Kodi did not answer in time; raise kodi.timeout or check the host"
	case "transport":
		return "check that Kodi is running with the web server enabled"
	case "remote":
		return "Kodi rejected the call; check the Kodi log"
	case "decode":
		return "the endpoint did not return JSON-RPC; check kodi.subpath"
	case "validation":
		return "fix kodi_db_id in the catalog"
	default:
		return "check logs for details"
	}
}
