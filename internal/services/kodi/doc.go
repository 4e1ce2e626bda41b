// Package kodi talks to a Kodi media center over its JSON-RPC HTTP endpoint.
//
// Request builds call envelopes, Client sends them with basic auth and a
// per-call timeout, and the Find*, playlist, and player methods wrap the
// handful of library and playback calls a card scan needs. Errors carry the
// services markers so callers can tell a timeout from a failure via Outcome.
package kodi
