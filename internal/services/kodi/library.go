package kodi

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"cardplay/internal/logging"
	"cardplay/internal/services"
)

// Match is a library item resolved from a human label.
type Match struct {
	ID    int
	Label string
}

type lookup struct {
	kind    string
	method  string
	listKey string
	idKey   string
	field   string
}

var (
	artistLookup = lookup{kind: "artist", method: "AudioLibrary.GetArtists", listKey: "artists", idKey: "artistid", field: "artist"}
	albumLookup  = lookup{kind: "album", method: "AudioLibrary.GetAlbums", listKey: "albums", idKey: "albumid", field: "label"}
	showLookup   = lookup{kind: "tvshow", method: "VideoLibrary.GetTVShows", listKey: "tvshows", idKey: "tvshowid", field: "label"}
)

// FindArtist resolves an artist name, including artists that only appear on
// individual songs.
func (c *Client) FindArtist(ctx context.Context, name string) ([]Match, error) {
	req := NewRequest(artistLookup.method, WithParams(map[string]any{"albumartistsonly": false}))
	return c.resolve(ctx, artistLookup, req, name)
}

// FindAlbum resolves an album title. A positive artistID restricts the search
// to that artist's albums.
func (c *Client) FindAlbum(ctx context.Context, name string, artistID int) ([]Match, error) {
	var opts []RequestOption
	if artistID > 0 {
		opts = append(opts, WithFilters(Filter{"artistid": artistID}))
	}
	return c.resolve(ctx, albumLookup, NewRequest(albumLookup.method, opts...), name)
}

// FindTVShow resolves a TV show title.
func (c *Client) FindTVShow(ctx context.Context, name string) ([]Match, error) {
	return c.resolve(ctx, showLookup, NewRequest(showLookup.method), name)
}

func (c *Client) resolve(ctx context.Context, l lookup, req Request, name string) ([]Match, error) {
	result, err := c.call(ctx, req)
	if err != nil {
		return nil, err
	}
	candidates := records(result, l.listKey)
	matches := MatchLabel(name, candidates, l.field, 1)
	logMatch(logging.WithContext(ctx, c.logger), l.kind, name, matches, l.field)

	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		id, err := toID(m[l.idKey])
		if err != nil {
			return nil, services.Wrap(services.ErrDecode, component, req.Method,
				fmt.Sprintf("%s has no usable %s", l.kind, l.idKey), err)
		}
		label, _ := m[l.field].(string)
		out = append(out, Match{ID: id, Label: label})
	}
	return out, nil
}

// records returns the list under key as candidate maps. Missing or malformed
// lists are empty.
func records(result map[string]any, key string) []map[string]any {
	raw, ok := result[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if record, ok := item.(map[string]any); ok {
			out = append(out, record)
		}
	}
	return out
}

// ids extracts integer identifiers under idKey, skipping records without one.
func ids(result map[string]any, listKey, idKey string) []int {
	recs := records(result, listKey)
	out := make([]int, 0, len(recs))
	for _, record := range recs {
		id, err := toID(record[idKey])
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

// toID coerces a JSON number (or numeric string) into an identifier.
func toID(value any) (int, error) {
	if value == nil {
		return 0, fmt.Errorf("missing identifier")
	}
	return cast.ToIntE(value)
}
