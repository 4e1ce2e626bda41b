// Package config loads, normalizes, and validates cardplay configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours the CARDPLAY_KODI_PASSWORD and CARDPLAY_API_TOKEN
// environment overrides. Validation failures wrap services.ErrConfiguration
// and are fatal at startup.
package config
