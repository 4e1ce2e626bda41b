package kodi

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNewRequestOnlyPlacesSuppliedParts(t *testing.T) {
	req := NewRequest("VideoLibrary.GetTVShows")
	if len(req.Params) != 0 {
		t.Fatalf("expected empty params, got %#v", req.Params)
	}
	data, err := req.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(data) != `{"jsonrpc":"2.0","method":"VideoLibrary.GetTVShows","id":"","params":{}}` {
		t.Fatalf("unexpected envelope %s", data)
	}
}

func TestNewRequestPlacement(t *testing.T) {
	req := NewRequest("AudioLibrary.GetSongs",
		WithParams(map[string]any{"albumartistsonly": false, "sort": "raw"}),
		WithSort("ascending", "track"),
		WithFilters(Filter{"albumid": 9}),
		WithProperties("title", "track"),
		WithLimits(0, 50),
		WithID("fixed"),
	)

	if req.ID != "fixed" || req.JSONRPC != "2.0" {
		t.Fatalf("unexpected envelope fields: %+v", req)
	}
	want := map[string]any{
		"albumartistsonly": false,
		"sort":             Sort{Order: "ascending", Method: "track"},
		"filter":           Filter{"albumid": 9},
		"properties":       []string{"title", "track"},
		"limits":           map[string]int{"start": 0, "end": 50},
	}
	if !reflect.DeepEqual(req.Params, want) {
		t.Fatalf("params mismatch:\n got %#v\nwant %#v", req.Params, want)
	}
}

func TestFilterWrapping(t *testing.T) {
	single := NewRequest("m", WithFilters(Filter{"a": 1}))
	if !reflect.DeepEqual(single.Params["filter"], Filter{"a": 1}) {
		t.Fatalf("single predicate should stay unwrapped, got %#v", single.Params["filter"])
	}

	pair := NewRequest("m", WithFilters(Filter{"a": 1}, Filter{"b": 2}))
	data, err := json.Marshal(pair.Params["filter"])
	if err != nil {
		t.Fatalf("marshal filter: %v", err)
	}
	if string(data) != `{"and":[{"a":1},{"b":2}]}` {
		t.Fatalf("unexpected combined filter %s", data)
	}

	either := NewRequest("m", WithFilterOp("or", Filter{"a": 1}, Filter{"b": 2}))
	if _, ok := either.Params["filter"].(Filter)["or"]; !ok {
		t.Fatalf("expected or combination, got %#v", either.Params["filter"])
	}

	unnamed := NewRequest("m", WithFilterOp("", Filter{"a": 1}, Filter{"b": 2}))
	if _, ok := unnamed.Params["filter"].(Filter)["and"]; !ok {
		t.Fatalf("empty op should combine with and, got %#v", unnamed.Params["filter"])
	}
}

func TestWithParamsDoesNotAliasCaller(t *testing.T) {
	raw := map[string]any{"playlistid": 0}
	req := NewRequest("Playlist.Clear", WithParams(raw))
	req.Params["playlistid"] = 1
	if raw["playlistid"] != 0 {
		t.Fatal("request params must not share the caller's map")
	}
}
