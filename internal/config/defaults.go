package config

const (
	defaultConfigPath    = "~/.config/cardplay/config.toml"
	defaultKodiHost      = "localhost"
	defaultKodiPort      = 8080
	defaultKodiUsername  = "kodi"
	defaultKodiPassword  = "kodi"
	defaultKodiProtocol  = "http"
	defaultKodiTimeout   = 2.0
	defaultPlaylistLimit = 2000
	defaultReaderPath    = "/dev/rfid-reader"
	defaultAlbumsDB      = "albums.csv"
	defaultTVDB          = "tv.csv"
	defaultStateDir      = "~/.local/share/cardplay"
	defaultLogDir        = "~/.local/share/cardplay/logs"
	defaultRetentionDays = 90
	defaultLogRetention  = 30
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"

	// MaxPlaylistLimit is the largest playlist_limit accepted, matching the
	// per-request item ceiling of the playlist API.
	MaxPlaylistLimit = 2000
	// MaxTimeoutSeconds bounds kodi.timeout.
	MaxTimeoutSeconds = 120.0
	// MinTimeoutSeconds is the exclusive lower bound of kodi.timeout.
	MinTimeoutSeconds = 0.001

	envKodiPassword = "CARDPLAY_KODI_PASSWORD"
	envAPIToken     = "CARDPLAY_API_TOKEN"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Kodi: Kodi{
			Host:          defaultKodiHost,
			Port:          defaultKodiPort,
			Username:      defaultKodiUsername,
			Password:      defaultKodiPassword,
			Protocol:      defaultKodiProtocol,
			Timeout:       defaultKodiTimeout,
			PlaylistLimit: defaultPlaylistLimit,
		},
		Reader: Reader{
			Path: defaultReaderPath,
			Grab: true,
		},
		Albums: CatalogFile{DB: defaultAlbumsDB},
		TV:     CatalogFile{DB: defaultTVDB},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		History: History{
			Enabled:       true,
			RetentionDays: defaultRetentionDays,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
	}
}
