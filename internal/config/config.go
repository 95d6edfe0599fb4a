package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Plex contains the media server connection settings.
type Plex struct {
	URL               string  `toml:"url"`
	Token             string  `toml:"token"`
	RequestTimeout    int     `toml:"request_timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Libraries names the Plex libraries records are matched against.
type Libraries struct {
	TV     []string `toml:"tv"`
	Movies []string `toml:"movies"`
}

// Scraper contains the pacing applied to source site page loads. All values
// are seconds.
type Scraper struct {
	MinDelay       float64 `toml:"min_delay"`
	MaxDelay       float64 `toml:"max_delay"`
	InitialDelay   float64 `toml:"initial_delay"`
	BatchDelay     float64 `toml:"batch_delay"`
	PageWaitMin    float64 `toml:"page_wait_min"`
	PageWaitMax    float64 `toml:"page_wait_max"`
	RequestTimeout int     `toml:"request_timeout"`
	BrowserPath    string  `toml:"browser_path"`
	Headless       bool    `toml:"headless"`
}

// Upload contains settings for artwork application.
type Upload struct {
	Filters        []string `toml:"filters"`
	WorkerCount    int      `toml:"worker_count"`
	MatchThreshold float64  `toml:"match_threshold"`
	TempDir        string   `toml:"temp_dir"`
	Retries        int      `toml:"retries"`
}

// Paths contains data locations.
type Paths struct {
	DataDir   string   `toml:"data_dir"`
	BulkFiles []string `toml:"bulk_files"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
	Append bool   `toml:"append"`
}

// Config encapsulates all configuration values for posterhelper.
//
// Configuration sections by subsystem:
//   - Plex: server URL, token and request pacing
//   - Libraries: TV and movie library names used for matching
//   - Scraper: delays applied around source site page loads
//   - Upload: enabled artwork filters, worker count and match threshold
//   - Paths: data directory and bulk import files
//   - Logging: log format, level and log file
//   - TitleMappings: source title to library title overrides
type Config struct {
	Plex          Plex              `toml:"plex"`
	Libraries     Libraries         `toml:"libraries"`
	Scraper       Scraper           `toml:"scraper"`
	Upload        Upload            `toml:"upload"`
	Paths         Paths             `toml:"paths"`
	Logging       Logging           `toml:"logging"`
	TitleMappings map[string]string `toml:"title_mappings"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("posterhelper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and temp directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Upload.TempDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MappingDBPath returns the SQLite database holding title mappings.
func (c *Config) MappingDBPath() string {
	return filepath.Join(c.Paths.DataDir, "mappings.db")
}

// LockPath returns the lock file guarding batch runs and resets.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "posterhelper.lock")
}

// AuthStatePath returns the file holding the linked Plex token.
func (c *Config) AuthStatePath() string {
	return filepath.Join(c.Paths.DataDir, "plex_auth.json")
}

// BulkFilePath resolves a bulk import file name. Relative names live under
// the data directory. An empty name selects the first configured bulk file.
func (c *Config) BulkFilePath(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		if len(c.Paths.BulkFiles) == 0 {
			return "", errors.New("no bulk files configured")
		}
		name = c.Paths.BulkFiles[0]
	}
	if strings.HasPrefix(name, "~") || filepath.IsAbs(name) {
		return expandPath(name)
	}
	return filepath.Join(c.Paths.DataDir, name), nil
}

// LogFilePath returns the absolute log file path, or "" when file logging is off.
func (c *Config) LogFilePath() string {
	file := strings.TrimSpace(c.Logging.File)
	if file == "" {
		return ""
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(c.Paths.DataDir, file)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
