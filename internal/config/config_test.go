package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"posterhelper/internal/config"
	"posterhelper/internal/poster"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PLEX_TOKEN", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "posterhelper")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.MappingDBPath() != filepath.Join(wantData, "mappings.db") {
		t.Fatalf("unexpected mapping db path: %q", cfg.MappingDBPath())
	}
	if cfg.LogFilePath() != filepath.Join(wantData, "debug.log") {
		t.Fatalf("unexpected log file path: %q", cfg.LogFilePath())
	}
	if cfg.Upload.Retries != 2 {
		t.Fatalf("expected default retries 2, got %d", cfg.Upload.Retries)
	}
	if cfg.Upload.WorkerCount != 3 {
		t.Fatalf("expected default worker count 3, got %d", cfg.Upload.WorkerCount)
	}
	if cfg.Upload.MatchThreshold != 0.80 {
		t.Fatalf("expected default threshold 0.80, got %v", cfg.Upload.MatchThreshold)
	}
	if got := cfg.Libraries.TV; len(got) != 2 || got[0] != "TV Shows" || got[1] != "Anime" {
		t.Fatalf("unexpected tv libraries: %v", got)
	}
	filters := cfg.Filters()
	for _, kind := range []poster.ArtworkType{poster.ArtworkPoster, poster.ArtworkBackdrop, poster.ArtworkTitleCard} {
		if !filters.Allows(kind) {
			t.Fatalf("expected %s enabled by default", kind)
		}
	}
}

func TestLoadUsesEnvPlexToken(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PLEX_TOKEN", "  env-token ")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Plex.Token != "env-token" {
		t.Fatalf("expected env token, got %q", cfg.Plex.Token)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PLEX_TOKEN", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := map[string]any{
		"plex": map[string]any{
			"url":   "http://plex.local:32400/",
			"token": "file-token",
		},
		"libraries": map[string]any{
			"tv":     []string{" Shows ", "shows", ""},
			"movies": []string{"Films"},
		},
		"upload": map[string]any{
			"filters":      []string{"background", "poster", "Poster"},
			"worker_count": 5,
		},
		"paths": map[string]any{
			"data_dir": "~/ph-data",
		},
		"title_mappings": map[string]any{
			"The Office (US)": "The Office",
			"  ":              "ignored",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected existing config at %q, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Plex.URL != "http://plex.local:32400" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Plex.URL)
	}
	if cfg.Plex.Token != "file-token" {
		t.Fatalf("unexpected token %q", cfg.Plex.Token)
	}
	if got := cfg.Libraries.TV; len(got) != 1 || got[0] != "Shows" {
		t.Fatalf("expected deduplicated tv libraries, got %v", got)
	}
	if got := cfg.Upload.Filters; len(got) != 2 || got[0] != "backdrop" || got[1] != "poster" {
		t.Fatalf("expected canonical filters, got %v", got)
	}
	if cfg.Filters().Allows(poster.ArtworkTitleCard) {
		t.Fatal("expected title cards disabled")
	}
	if cfg.Upload.WorkerCount != 5 {
		t.Fatalf("expected worker count 5, got %d", cfg.Upload.WorkerCount)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "ph-data") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}
	if len(cfg.TitleMappings) != 1 || cfg.TitleMappings["The Office (US)"] != "The Office" {
		t.Fatalf("unexpected title mappings: %v", cfg.TitleMappings)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		key    string
	}{
		{"negative delay", func(c *config.Config) { c.Scraper.MinDelay = -1 }, "scraper.min_delay"},
		{"inverted delays", func(c *config.Config) { c.Scraper.MinDelay = 2; c.Scraper.MaxDelay = 1 }, "scraper.min_delay"},
		{"inverted page wait", func(c *config.Config) { c.Scraper.PageWaitMin = 3 }, "scraper.page_wait_min"},
		{"zero workers", func(c *config.Config) { c.Upload.WorkerCount = 0 }, "upload.worker_count"},
		{"too many workers", func(c *config.Config) { c.Upload.WorkerCount = 64 }, "upload.worker_count"},
		{"negative retries", func(c *config.Config) { c.Upload.Retries = -1 }, "upload.retries"},
		{"too many retries", func(c *config.Config) { c.Upload.Retries = 11 }, "upload.retries"},
		{"threshold above one", func(c *config.Config) { c.Upload.MatchThreshold = 1.5 }, "upload.match_threshold"},
		{"no filters", func(c *config.Config) { c.Upload.Filters = nil }, "upload.filters"},
		{"unknown filter", func(c *config.Config) { c.Upload.Filters = []string{"banner"} }, "upload.filters"},
		{"no libraries", func(c *config.Config) { c.Libraries = config.Libraries{} }, "libraries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *poster.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Key != tt.key {
				t.Fatalf("expected key %q, got %q", tt.key, cfgErr.Key)
			}
		})
	}
}

func TestRequirePlex(t *testing.T) {
	cfg := config.Default()
	err := cfg.RequirePlex()
	if !poster.IsConfiguration(err) {
		t.Fatalf("expected configuration error without url, got %v", err)
	}

	cfg.Plex.URL = "http://localhost:32400"
	err = cfg.RequirePlex()
	if err == nil || !strings.Contains(err.Error(), "plex.token") {
		t.Fatalf("expected token error, got %v", err)
	}

	cfg.Plex.Token = "abc"
	if err := cfg.RequirePlex(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PLEX_TOKEN", "")

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Plex.URL != "http://localhost:32400" {
		t.Fatalf("unexpected sample url %q", cfg.Plex.URL)
	}
}

func TestSeconds(t *testing.T) {
	if got := config.Seconds(0.5); got.Milliseconds() != 500 {
		t.Fatalf("expected 500ms, got %v", got)
	}
}

func TestScraperTimeoutAndBrowserDefaults(t *testing.T) {
	cfg := config.Default()
	if got := cfg.Scraper.Timeout(); got != 30*time.Second {
		t.Fatalf("expected 30s page timeout, got %v", got)
	}
	if !cfg.Scraper.Headless || cfg.Scraper.BrowserPath != "" {
		t.Fatalf("expected headless browser from PATH, got %+v", cfg.Scraper)
	}

	cfg.Scraper.RequestTimeout = 5
	if got := cfg.Scraper.Timeout(); got != 5*time.Second {
		t.Fatalf("expected 5s page timeout, got %v", got)
	}
}

func TestBulkFilePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(home, "data")
	cfg.Paths.BulkFiles = []string{"bulk_import.txt", "other.txt"}

	got, err := cfg.BulkFilePath("")
	if err != nil || got != filepath.Join(home, "data", "bulk_import.txt") {
		t.Fatalf("default bulk file = %q, %v", got, err)
	}
	if got, _ := cfg.BulkFilePath("other.txt"); got != filepath.Join(home, "data", "other.txt") {
		t.Fatalf("relative bulk file = %q", got)
	}
	if got, _ := cfg.BulkFilePath("~/lists/a.txt"); got != filepath.Join(home, "lists", "a.txt") {
		t.Fatalf("home bulk file = %q", got)
	}
	abs := filepath.Join(home, "abs.txt")
	if got, _ := cfg.BulkFilePath(abs); got != abs {
		t.Fatalf("absolute bulk file = %q", got)
	}

	cfg.Paths.BulkFiles = nil
	if _, err := cfg.BulkFilePath(""); err == nil {
		t.Fatal("expected error without configured bulk files")
	}
}
