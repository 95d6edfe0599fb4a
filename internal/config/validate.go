package config

import (
	"fmt"
	"time"

	"posterhelper/internal/poster"
)

// Validate ensures the configuration is usable. Failures are reported as
// *poster.ConfigurationError.
func (c *Config) Validate() error {
	if err := c.validateLibraries(); err != nil {
		return err
	}
	if err := c.validateScraper(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validatePlex(); err != nil {
		return err
	}
	return nil
}

// RequirePlex reports a configuration error when the Plex connection settings
// needed for matching and uploading are missing.
func (c *Config) RequirePlex() error {
	if c.Plex.URL == "" {
		return &poster.ConfigurationError{Key: "plex.url", Reason: "must be set (e.g. http://localhost:32400)"}
	}
	if c.Plex.Token == "" {
		path, err := DefaultConfigPath()
		if err != nil {
			path = defaultConfigPath
		}
		return &poster.ConfigurationError{
			Key:    "plex.token",
			Reason: fmt.Sprintf("is required; set PLEX_TOKEN, run 'posterhelper auth link', or edit %s", path),
		}
	}
	return nil
}

func (c *Config) validateLibraries() error {
	if len(c.Libraries.TV) == 0 && len(c.Libraries.Movies) == 0 {
		return &poster.ConfigurationError{Key: "libraries", Reason: "must name at least one tv or movies library"}
	}
	return nil
}

func (c *Config) validateScraper() error {
	s := c.Scraper
	for key, value := range map[string]float64{
		"scraper.min_delay":     s.MinDelay,
		"scraper.max_delay":     s.MaxDelay,
		"scraper.initial_delay": s.InitialDelay,
		"scraper.batch_delay":   s.BatchDelay,
		"scraper.page_wait_min": s.PageWaitMin,
		"scraper.page_wait_max": s.PageWaitMax,
	} {
		if value < 0 {
			return &poster.ConfigurationError{Key: key, Reason: "must be >= 0"}
		}
	}
	if s.MinDelay > s.MaxDelay {
		return &poster.ConfigurationError{Key: "scraper.min_delay", Reason: "must not exceed scraper.max_delay"}
	}
	if s.PageWaitMin > s.PageWaitMax {
		return &poster.ConfigurationError{Key: "scraper.page_wait_min", Reason: "must not exceed scraper.page_wait_max"}
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.WorkerCount < 1 {
		return &poster.ConfigurationError{Key: "upload.worker_count", Reason: "must be >= 1"}
	}
	if c.Upload.WorkerCount > maxWorkerCount {
		return &poster.ConfigurationError{Key: "upload.worker_count", Reason: fmt.Sprintf("must be <= %d", maxWorkerCount)}
	}
	if c.Upload.Retries < 0 || c.Upload.Retries > maxRetries {
		return &poster.ConfigurationError{Key: "upload.retries", Reason: fmt.Sprintf("must be within [0, %d]", maxRetries)}
	}
	if c.Upload.MatchThreshold <= 0 || c.Upload.MatchThreshold > 1 {
		return &poster.ConfigurationError{Key: "upload.match_threshold", Reason: "must be within (0, 1]"}
	}
	if len(c.Upload.Filters) == 0 {
		return &poster.ConfigurationError{Key: "upload.filters", Reason: "must enable at least one of poster, backdrop, title_card"}
	}
	for _, name := range c.Upload.Filters {
		if _, err := poster.ParseArtworkType(name); err != nil {
			return &poster.ConfigurationError{Key: "upload.filters", Reason: err.Error()}
		}
	}
	return nil
}

func (c *Config) validatePlex() error {
	if c.Plex.RequestsPerSecond < 0 {
		return &poster.ConfigurationError{Key: "plex.requests_per_second", Reason: "must be >= 0 (0 disables the limit)"}
	}
	return nil
}

// Filters returns the enabled artwork types.
func (c *Config) Filters() poster.Filters {
	types := make([]poster.ArtworkType, 0, len(c.Upload.Filters))
	for _, name := range c.Upload.Filters {
		if t, err := poster.ParseArtworkType(name); err == nil {
			types = append(types, t)
		}
	}
	return poster.NewFilters(types...)
}

// Timeout returns the per-page load timeout.
func (s Scraper) Timeout() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// Seconds converts a configured seconds value into a duration.
func Seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second))
}
