package ipc

import (
	"cardplay/internal/daemon"
	"cardplay/internal/dispatch"
	"cardplay/internal/history"
)

// ServiceName is the RPC service the daemon registers.
const ServiceName = "Cardplay"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse carries the daemon status snapshot.
type StatusResponse struct {
	Status daemon.Status `json:"status"`
}

// ScanRequest injects a card id as if it had been scanned. With Wait set the
// call returns after the scan is dispatched.
type ScanRequest struct {
	ID   string `json:"id"`
	Wait bool   `json:"wait"`
}

// ScanResponse describes an injected scan. Only Queued is set when the
// caller did not wait.
type ScanResponse struct {
	ScanID         string   `json:"scan_id"`
	Queued         bool     `json:"queued"`
	CorrelationID  string   `json:"correlation_id,omitempty"`
	Kind           string   `json:"kind,omitempty"`
	Title          string   `json:"title,omitempty"`
	Outcome        string   `json:"outcome,omitempty"`
	MediaID        int      `json:"media_id,omitempty"`
	Calls          []string `json:"calls,omitempty"`
	DurationMillis int64    `json:"duration_ms,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// HistoryRequest limits how many records come back. Zero means the server
// default.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse lists handled scans, newest first.
type HistoryResponse struct {
	Scans []history.Record `json:"scans"`
}

// ScanResponseFromReport converts a finished dispatch into the wire shape.
func ScanResponseFromReport(report dispatch.Report) ScanResponse {
	resp := ScanResponse{
		ScanID:         report.ScanID,
		Queued:         true,
		CorrelationID:  report.CorrelationID,
		Kind:           string(report.Kind),
		Title:          report.Title,
		Outcome:        string(report.Outcome),
		MediaID:        report.MediaID,
		Calls:          append([]string(nil), report.Calls...),
		DurationMillis: report.Duration.Milliseconds(),
	}
	if report.Err != nil {
		resp.Error = report.Err.Error()
	}
	return resp
}
