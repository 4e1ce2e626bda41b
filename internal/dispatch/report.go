package dispatch

import (
	"time"

	"cardplay/internal/catalog"
)

// State is a step of the per-scan state machine.
type State string

const (
	StateIdle         State = "idle"
	StateScanDetected State = "scan_detected"
	StateAlbumMatch   State = "album_match"
	StateShowMatch    State = "show_match"
	StateNoMatch      State = "no_match"
	StateResolving    State = "resolving"
	StateDispatched   State = "dispatched"
)

// Outcome summarizes how a scan ended.
type Outcome string

const (
	OutcomePlayed     Outcome = "played"
	OutcomeNoMatch    Outcome = "no_match"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeInvalidID  Outcome = "invalid_id"
	OutcomeFailed     Outcome = "failed"
)

// Report describes one dispatch for logs and history.
type Report struct {
	ScanID        string
	CorrelationID string
	Kind          catalog.Kind
	Title         string
	// State is the last state reached before returning to idle.
	State   State
	Outcome Outcome
	// MediaID is the album or episode sent to Kodi, when one was.
	MediaID  int
	Calls    []string
	Duration time.Duration
	Err      error
}
