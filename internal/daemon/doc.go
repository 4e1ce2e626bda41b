// Package daemon runs the long-lived cardplayd process.
//
// A Daemon owns the scan loop: it acquires the reader device, decodes scans,
// and hands each one to the dispatcher in arrival order. Scans injected over
// IPC or the HTTP API join the same loop, so two scans never overlap. A
// flock-based lock file keeps a second daemon from grabbing the same reader.
//
// Device loss is fatal unless reader.reconnect is set, in which case the loop
// waits for udev to report the device again and carries on.
package daemon
