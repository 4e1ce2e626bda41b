// Package history keeps a SQLite log of handled scans.
//
// Each dispatch appends one row with its outcome so the CLI and HTTP API can
// answer "what did that card just do". Rows older than the configured
// retention are pruned by the daemon at startup. Schema changes bump
// schemaVersion; an older database must be deleted rather than migrated.
package history
