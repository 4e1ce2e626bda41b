package kodi

import (
	"fmt"
	"strings"
)

// NormalizeURL collapses repeated slashes and adds an http scheme when the
// first path segment does not already name one. An empty subpath in the
// endpoint template would otherwise leave "//" in the path.
func NormalizeURL(raw string) string {
	var segments []string
	for _, part := range strings.Split(raw, "/") {
		if part != "" {
			segments = append(segments, part)
		}
	}
	if len(segments) == 0 {
		return "http://"
	}
	scheme := "http:"
	if strings.Contains(segments[0], "http") {
		scheme = segments[0]
		segments = segments[1:]
	}
	return scheme + "//" + strings.Join(segments, "/")
}

// Endpoint builds the JSON-RPC URL for a Kodi instance.
func Endpoint(protocol, host string, port int, subpath string) string {
	return NormalizeURL(fmt.Sprintf("%s://%s:%d/%s/jsonrpc", protocol, host, port, subpath))
}
