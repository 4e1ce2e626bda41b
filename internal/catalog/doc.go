// Package catalog loads the card-to-media tables from CSV files.
//
// The music table needs rf_id, album and album_artist columns; the video
// table needs rf_id and show. Both accept an optional kodi_db_id holding a
// known library id, and music rows may set shuffle.
package catalog
