package kodi

import (
	"log/slog"

	"golang.org/x/text/cases"

	"cardplay/internal/logging"
)

// MatchLabel returns up to limit candidates whose field equals target under
// Unicode case folding, in input order. A limit below 1 means 1. Candidates
// missing the field, or holding a non-string value there, never match.
func MatchLabel(target string, candidates []map[string]any, field string, limit int) []map[string]any {
	if limit < 1 {
		limit = 1
	}
	fold := cases.Fold()
	want := fold.String(target)

	var matches []map[string]any
	for _, candidate := range candidates {
		value, ok := candidate[field].(string)
		if !ok {
			continue
		}
		if fold.String(value) != want {
			continue
		}
		matches = append(matches, candidate)
		if len(matches) == limit {
			break
		}
	}
	return matches
}

func logMatch(logger *slog.Logger, kind, target string, matches []map[string]any, field string) {
	if len(matches) == 0 {
		logger.Info("no library match",
			logging.String("kind", kind),
			logging.String("target", target),
		)
		return
	}
	best, _ := matches[0][field].(string)
	logger.Info("library match",
		logging.String("kind", kind),
		logging.String("target", target),
		logging.String("best", best),
		logging.Int("matches", len(matches)),
	)
}
