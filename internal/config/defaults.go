package config

const (
	defaultConfigPath        = "~/.config/posterhelper/config.toml"
	defaultDataDir           = "~/.local/share/posterhelper"
	defaultBulkFile          = "bulk_import.txt"
	defaultPlexTimeout       = 30
	defaultPlexRPS           = 10.0
	defaultMinDelay          = 0.1
	defaultMaxDelay          = 0.5
	defaultInitialDelay      = 0.0
	defaultBatchDelay        = 2.0
	defaultPageWaitMin       = 0.0
	defaultPageWaitMax       = 0.5
	defaultScraperTimeout    = 30
	defaultWorkerCount       = 3
	defaultMatchThreshold    = 0.80
	defaultRetries           = 2
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogFile           = "debug.log"
	maxWorkerCount           = 32
	maxRetries               = 10
	defaultPlexTokenVariable = "PLEX_TOKEN"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Plex: Plex{
			RequestTimeout:    defaultPlexTimeout,
			RequestsPerSecond: defaultPlexRPS,
		},
		Libraries: Libraries{
			TV:     []string{"TV Shows", "Anime"},
			Movies: []string{"Movies"},
		},
		Scraper: Scraper{
			MinDelay:       defaultMinDelay,
			MaxDelay:       defaultMaxDelay,
			InitialDelay:   defaultInitialDelay,
			BatchDelay:     defaultBatchDelay,
			PageWaitMin:    defaultPageWaitMin,
			PageWaitMax:    defaultPageWaitMax,
			RequestTimeout: defaultScraperTimeout,
			Headless:       true,
		},
		Upload: Upload{
			Filters:        []string{"poster", "backdrop", "title_card"},
			WorkerCount:    defaultWorkerCount,
			MatchThreshold: defaultMatchThreshold,
			Retries:        defaultRetries,
		},
		Paths: Paths{
			DataDir:   defaultDataDir,
			BulkFiles: []string{defaultBulkFile},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			File:   defaultLogFile,
			Append: true,
		},
		TitleMappings: map[string]string{},
	}
}
