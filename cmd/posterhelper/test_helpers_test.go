package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sectionsXML = `<MediaContainer size="2">
  <Directory key="1" type="movie" title="Movies"/>
  <Directory key="2" type="show" title="TV Shows"/>
</MediaContainer>`

type cliTestEnv struct {
	configPath string
	dataDir    string
	plex       *httptest.Server
}

// setupCLITestEnv writes a config pointing at a fake Plex server. routes maps
// "path?type=N" (or a bare path) to an XML payload.
func setupCLITestEnv(t *testing.T, routes map[string]string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("PLEX_TOKEN", "")

	if routes == nil {
		routes = map[string]string{}
	}
	if _, ok := routes["/library/sections"]; !ok {
		routes["/library/sections"] = sectionsXML
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if kind := r.URL.Query().Get("type"); kind != "" {
			key += "?type=" + kind
		}
		if payload, ok := routes[key]; ok {
			_, _ = io.WriteString(w, payload)
			return
		}
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = io.WriteString(w, `<MediaContainer size="0"/>`)
	}))
	t.Cleanup(srv.Close)

	dataDir := filepath.Join(base, "data")
	configPath := filepath.Join(homeDir, ".config", "posterhelper", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, srv.URL, dataDir)

	return &cliTestEnv{configPath: configPath, dataDir: dataDir, plex: srv}
}

func writeTestConfig(t *testing.T, path, plexURL, dataDir string) {
	t.Helper()
	content := fmt.Sprintf(`[plex]
url = %q
token = "test-token"

[libraries]
tv = ["TV Shows"]
movies = ["Movies"]

[scraper]
min_delay = 0.0
max_delay = 0.0
batch_delay = 0.0
page_wait_max = 0.0

[paths]
data_dir = %q

[logging]
level = "error"
file = ""
`, plexURL, dataDir)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
