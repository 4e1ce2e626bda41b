// Package main hosts the cardplay CLI.
//
// Commands talk to a running cardplayd over its IPC socket (status, scan,
// history, stop) or work directly on the configuration, catalogs, log files
// and Kodi (config, catalog, logs, kodi, scan --local). `cardplay run` starts
// the daemon in the foreground.
package main
