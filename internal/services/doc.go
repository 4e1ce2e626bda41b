// Package services defines shared utilities consumed by the dispatcher and the
// external integrations it drives.
//
// Key responsibilities:
//   - Context helpers that stamp scan identifiers, scan sources, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so timeouts, transport
//     failures, decode failures, and remote JSON-RPC errors stay distinguishable
//     all the way up to the scan history.
//
// Integrations with external processes live in subpackages (see services/kodi).
package services
