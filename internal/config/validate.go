package config

import (
	"errors"
	"fmt"
	"os"

	"cardplay/internal/services"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateKodi,
		c.validateReader,
		c.validateCatalogs,
		c.validateHistory,
		c.validateLogging,
	} {
		if err := check(); err != nil {
			return fmt.Errorf("%w: %w", services.ErrConfiguration, err)
		}
	}
	return nil
}

func (c *Config) validateKodi() error {
	if c.Kodi.Host == "" {
		return errors.New("kodi.host must be set")
	}
	if c.Kodi.Port < 1 || c.Kodi.Port > 65535 {
		return fmt.Errorf("kodi.port must be between 1 and 65535, got %d", c.Kodi.Port)
	}
	switch c.Kodi.Protocol {
	case "http", "https":
	default:
		return fmt.Errorf("kodi.protocol must be http or https, got %q", c.Kodi.Protocol)
	}
	if c.Kodi.Timeout <= MinTimeoutSeconds || c.Kodi.Timeout > MaxTimeoutSeconds {
		return fmt.Errorf("kodi.timeout must be greater than %g and at most %g seconds, got %g", MinTimeoutSeconds, MaxTimeoutSeconds, c.Kodi.Timeout)
	}
	if c.Kodi.PlaylistLimit < 1 || c.Kodi.PlaylistLimit > MaxPlaylistLimit {
		return fmt.Errorf("kodi.playlist_limit must be between 1 and %d, got %d", MaxPlaylistLimit, c.Kodi.PlaylistLimit)
	}
	return nil
}

func (c *Config) validateReader() error {
	if c.Reader.Path == "" {
		return errors.New("reader.path must be set")
	}
	return nil
}

func (c *Config) validateCatalogs() error {
	if err := requireFile("albums.db", c.Albums.DB); err != nil {
		return err
	}
	return requireFile("tv.db", c.TV.DB)
}

func requireFile(key, path string) error {
	if path == "" {
		return fmt.Errorf("%s must be set", key)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s %q: %w", key, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s %q is a directory", key, path)
	}
	return nil
}

func (c *Config) validateHistory() error {
	if c.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be 0 or greater")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be 0 or greater")
	}
	return nil
}
