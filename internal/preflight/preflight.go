package preflight

import (
	"context"
	"os"
	"strings"

	"posterhelper/internal/config"
	"posterhelper/internal/poster"
	"posterhelper/internal/services/plex"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// SectionLister lists the libraries of a media server.
type SectionLister interface {
	Sections(ctx context.Context) ([]plex.Section, error)
}

// RunAll executes every preflight check for the given config. Library checks
// are skipped when server is nil.
func RunAll(ctx context.Context, cfg *config.Config, server SectionLister) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("Data directory", cfg.Paths.DataDir)}

	tempDir := cfg.Upload.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	results = append(results, CheckDirectoryAccess("Temp directory", tempDir))

	if server != nil {
		results = append(results, CheckLibraries(ctx, server, cfg.Libraries)...)
	}
	return results
}

// Err folds failed results into a configuration error, or returns nil when
// every check passed.
func Err(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r.Name+": "+r.Detail)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &poster.ConfigurationError{Key: "preflight", Reason: "failed: " + strings.Join(failed, "; ")}
}
