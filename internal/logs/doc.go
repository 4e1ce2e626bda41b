// Package logs reads the daemon log file for the CLI: the last lines of a
// run and, when following, whatever the daemon appends afterwards.
package logs
