package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"cardplay/internal/logging"
	"cardplay/internal/services"
)

// Kind names the sub-catalog an entry came from.
type Kind string

const (
	KindNone  Kind = "none"
	KindMusic Kind = "music"
	KindVideo Kind = "video"
)

const (
	colScanID   = "rf_id"
	colAlbum    = "album"
	colArtist   = "album_artist"
	colShow     = "show"
	colCachedID = "kodi_db_id"
	colShuffle  = "shuffle"
)

var (
	musicColumns = []string{colScanID, colAlbum, colArtist}
	videoColumns = []string{colScanID, colShow}
)

// Entry maps one card to a playable title.
type Entry struct {
	ScanID string
	Title  string
	// Secondary is the album artist for music and empty for video.
	Secondary string
	// CachedID is the raw kodi_db_id column; empty when absent.
	CachedID string
	Shuffle  bool
}

// Catalog holds both sub-catalogs. It is read-only after Load.
type Catalog struct {
	Music []Entry
	Video []Entry
}

// Load reads both CSV files. A file that cannot be read or lacks required
// columns is logged and left empty; the other still loads.
func Load(musicPath, videoPath string, logger *slog.Logger) *Catalog {
	logger = logging.NewComponentLogger(logger, "catalog")
	cat := &Catalog{}

	music, err := LoadMusic(musicPath)
	if err != nil {
		logging.ErrorWithContext(logger, "music catalog unusable", "catalog_load_failed",
			logging.String("path", musicPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the CSV header: rf_id, album, album_artist"),
		)
	}
	cat.Music = music

	video, err := LoadVideo(videoPath)
	if err != nil {
		logging.ErrorWithContext(logger, "video catalog unusable", "catalog_load_failed",
			logging.String("path", videoPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the CSV header: rf_id, show"),
		)
	}
	cat.Video = video

	for _, id := range cat.Conflicts() {
		logging.WarnWithContext(logger, "card listed in both catalogs; music entry wins", "catalog_conflict",
			logging.String(logging.FieldScanID, id),
			logging.String(logging.FieldImpact, "video entry is never played"),
			logging.String(logging.FieldErrorHint, "remove the card from one of the CSV files"),
		)
	}
	logger.Info("catalog loaded",
		logging.Int("music_entries", len(cat.Music)),
		logging.Int("video_entries", len(cat.Video)),
	)
	return cat
}

// LoadMusic parses an album catalog.
func LoadMusic(path string) ([]Entry, error) {
	return loadFile(path, musicColumns, func(row map[string]string) Entry {
		return Entry{
			ScanID:    row[colScanID],
			Title:     row[colAlbum],
			Secondary: row[colArtist],
			CachedID:  row[colCachedID],
			Shuffle:   parseBool(row[colShuffle]),
		}
	})
}

// LoadVideo parses a TV show catalog.
func LoadVideo(path string) ([]Entry, error) {
	return loadFile(path, videoColumns, func(row map[string]string) Entry {
		return Entry{
			ScanID:   row[colScanID],
			Title:    row[colShow],
			CachedID: row[colCachedID],
		}
	})
}

func loadFile(path string, required []string, build func(map[string]string) Entry) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "open", path, err)
	}
	defer file.Close()
	return parse(file, required, build)
}

func parse(r io.Reader, required []string, build func(map[string]string) Entry) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, services.Wrap(services.ErrValidation, "catalog", "read header", "empty file", nil)
		}
		return nil, services.Wrap(services.ErrValidation, "catalog", "read header", "", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, services.Wrap(services.ErrValidation, "catalog", "read header",
			fmt.Sprintf("missing required columns %s", strings.Join(missing, ", ")), nil)
	}

	var entries []Entry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "catalog", "read row", "", err)
		}
		row := make(map[string]string, len(index))
		for name, i := range index {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}
		entry := build(row)
		if entry.ScanID == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

// Lookup finds the entry for scanID, music first. Within a sub-catalog the
// first matching row wins.
func (c *Catalog) Lookup(scanID string) (Entry, Kind, bool) {
	if c == nil {
		return Entry{}, KindNone, false
	}
	for _, entry := range c.Music {
		if entry.ScanID == scanID {
			return entry, KindMusic, true
		}
	}
	for _, entry := range c.Video {
		if entry.ScanID == scanID {
			return entry, KindVideo, true
		}
	}
	return Entry{}, KindNone, false
}

// Conflicts lists scan ids present in both sub-catalogs, in music order.
func (c *Catalog) Conflicts() []string {
	if c == nil {
		return nil
	}
	video := make(map[string]struct{}, len(c.Video))
	for _, entry := range c.Video {
		video[entry.ScanID] = struct{}{}
	}
	var out []string
	seen := map[string]struct{}{}
	for _, entry := range c.Music {
		if _, ok := video[entry.ScanID]; !ok {
			continue
		}
		if _, dup := seen[entry.ScanID]; dup {
			continue
		}
		seen[entry.ScanID] = struct{}{}
		out = append(out, entry.ScanID)
	}
	return out
}

// Problem is a catalog row that will not play as written.
type Problem struct {
	ScanID string
	Kind   Kind
	Detail string
}

// Check reports rows with unusable kodi_db_id values, ids repeated within a
// sub-catalog (only the first plays), and ids shadowed by the music catalog.
func (c *Catalog) Check() []Problem {
	if c == nil {
		return nil
	}
	var problems []Problem
	scan := func(kind Kind, entries []Entry) {
		seen := map[string]struct{}{}
		for _, entry := range entries {
			if _, dup := seen[entry.ScanID]; dup {
				problems = append(problems, Problem{ScanID: entry.ScanID, Kind: kind, Detail: "duplicate rf_id; only the first row plays"})
			}
			seen[entry.ScanID] = struct{}{}
			if raw := strings.TrimSpace(entry.CachedID); raw != "" {
				if id, err := strconv.Atoi(raw); err != nil || id <= 0 {
					problems = append(problems, Problem{ScanID: entry.ScanID, Kind: kind, Detail: fmt.Sprintf("kodi_db_id %q is not a positive integer", raw)})
				}
			}
		}
	}
	scan(KindMusic, c.Music)
	scan(KindVideo, c.Video)
	for _, id := range c.Conflicts() {
		problems = append(problems, Problem{ScanID: id, Kind: KindVideo, Detail: "also in the music catalog; the album plays"})
	}
	return problems
}
