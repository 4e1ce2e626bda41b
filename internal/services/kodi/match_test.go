package kodi

import "testing"

func TestMatchLabelCaseInsensitiveExact(t *testing.T) {
	candidates := []map[string]any{
		{"label": "Abbey Road (Remastered)", "albumid": 1},
		{"label": "abbey road", "albumid": 2},
		{"label": "ABBEY ROAD", "albumid": 3},
	}

	got := MatchLabel("Abbey Road", candidates, "label", 0)
	if len(got) != 1 || got[0]["albumid"] != 2 {
		t.Fatalf("expected first exact match only, got %#v", got)
	}

	got = MatchLabel("Abbey Road", candidates, "label", 5)
	if len(got) != 2 || got[1]["albumid"] != 3 {
		t.Fatalf("expected both exact matches in order, got %#v", got)
	}
}

func TestMatchLabelMisses(t *testing.T) {
	candidates := []map[string]any{
		{"label": 42},
		{"title": "Firefly"},
		{"label": "Fire fly"},
	}
	if got := MatchLabel("Firefly", candidates, "label", 1); len(got) != 0 {
		t.Fatalf("expected no match, got %#v", got)
	}
	if got := MatchLabel("Firefly", nil, "label", 1); len(got) != 0 {
		t.Fatalf("expected no match on empty list, got %#v", got)
	}
}

func TestMatchLabelFoldsUnicode(t *testing.T) {
	candidates := []map[string]any{{"artist": "Die Straße"}}
	if got := MatchLabel("DIE STRASSE", candidates, "artist", 1); len(got) != 1 {
		t.Fatalf("expected case-folded match, got %#v", got)
	}
}
