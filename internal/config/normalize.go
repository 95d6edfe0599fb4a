package config

import (
	"fmt"
	"os"
	"strings"

	"posterhelper/internal/poster"
)

func (c *Config) normalize() error {
	c.normalizePlex()
	c.normalizeLibraries()
	if err := c.normalizeUpload(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeTitleMappings()
	return nil
}

func (c *Config) normalizePlex() {
	c.Plex.URL = strings.TrimRight(strings.TrimSpace(c.Plex.URL), "/")
	c.Plex.Token = strings.TrimSpace(c.Plex.Token)
	if c.Plex.Token == "" {
		if value, ok := os.LookupEnv(defaultPlexTokenVariable); ok {
			c.Plex.Token = strings.TrimSpace(value)
		}
	}
	if c.Plex.RequestTimeout <= 0 {
		c.Plex.RequestTimeout = defaultPlexTimeout
	}
}

func (c *Config) normalizeLibraries() {
	c.Libraries.TV = cleanList(c.Libraries.TV)
	c.Libraries.Movies = cleanList(c.Libraries.Movies)
}

func (c *Config) normalizeUpload() error {
	filters := make([]string, 0, len(c.Upload.Filters))
	seen := make(map[string]struct{}, len(c.Upload.Filters))
	for _, raw := range c.Upload.Filters {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		canonical := name
		if parsed, err := poster.ParseArtworkType(name); err == nil {
			canonical = string(parsed)
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		filters = append(filters, canonical)
	}
	c.Upload.Filters = filters
	if c.Scraper.RequestTimeout <= 0 {
		c.Scraper.RequestTimeout = defaultScraperTimeout
	}
	if strings.TrimSpace(c.Scraper.BrowserPath) != "" {
		var err error
		if c.Scraper.BrowserPath, err = expandPath(c.Scraper.BrowserPath); err != nil {
			return fmt.Errorf("scraper.browser_path: %w", err)
		}
	}
	if strings.TrimSpace(c.Upload.TempDir) != "" {
		var err error
		if c.Upload.TempDir, err = expandPath(c.Upload.TempDir); err != nil {
			return fmt.Errorf("upload.temp_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	c.Paths.BulkFiles = cleanList(c.Paths.BulkFiles)
	if len(c.Paths.BulkFiles) == 0 {
		c.Paths.BulkFiles = []string{defaultBulkFile}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)
}

func (c *Config) normalizeTitleMappings() {
	cleaned := make(map[string]string, len(c.TitleMappings))
	for source, target := range c.TitleMappings {
		source = strings.TrimSpace(source)
		target = strings.TrimSpace(target)
		if source == "" || target == "" {
			continue
		}
		cleaned[source] = target
	}
	c.TitleMappings = cleaned
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
