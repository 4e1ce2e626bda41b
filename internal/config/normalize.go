package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeKodi()
	if err := c.normalizeCatalogs(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeKodi() {
	c.Kodi.Host = strings.TrimSpace(c.Kodi.Host)
	c.Kodi.Protocol = strings.ToLower(strings.TrimSpace(c.Kodi.Protocol))
	if c.Kodi.Protocol == "" {
		c.Kodi.Protocol = defaultKodiProtocol
	}
	c.Kodi.Subpath = strings.Trim(strings.TrimSpace(c.Kodi.Subpath), "/")
	if value, ok := os.LookupEnv(envKodiPassword); ok && value != "" {
		c.Kodi.Password = value
	}
}

func (c *Config) normalizeCatalogs() error {
	var err error
	if c.Albums.DB, err = c.resolveCatalogPath(c.Albums.DB); err != nil {
		return fmt.Errorf("albums.db: %w", err)
	}
	if c.TV.DB, err = c.resolveCatalogPath(c.TV.DB); err != nil {
		return fmt.Errorf("tv.db: %w", err)
	}
	return nil
}

func (c *Config) resolveCatalogPath(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if c.baseDir != "" && !strings.HasPrefix(value, "~") && !filepath.IsAbs(value) {
		value = filepath.Join(c.baseDir, value)
	}
	return expandPath(value)
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Reader.Path = strings.TrimSpace(c.Reader.Path)
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if value, ok := os.LookupEnv(envAPIToken); ok && strings.TrimSpace(value) != "" {
		c.API.Token = strings.TrimSpace(value)
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
