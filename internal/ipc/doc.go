// Package ipc exposes the daemon over JSON-RPC on a Unix domain socket and
// ships the matching client used by the cardplay CLI.
//
// The service is registered as "Cardplay" with Status, Scan, and History
// methods. Keep request and response types in types.go so the CLI and the
// daemon agree on the wire shape.
package ipc
