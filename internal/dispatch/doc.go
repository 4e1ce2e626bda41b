// Package dispatch maps a scanned card to Kodi playback.
//
// A Dispatcher looks the card up in the catalog (music before video),
// resolves library ids from labels unless the catalog caches one, and then
// either queues and starts an album or plays a random episode of a show.
package dispatch
