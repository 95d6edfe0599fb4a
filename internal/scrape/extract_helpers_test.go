package scrape

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"posterhelper/internal/poster"
)

// stubLoader serves testdata fixtures by URL and records the load order.
type stubLoader struct {
	t     *testing.T
	pages map[string]string

	mu    sync.Mutex
	loads []string
}

func newStubLoader(t *testing.T, pages map[string]string) *stubLoader {
	t.Helper()
	return &stubLoader{t: t, pages: pages}
}

func (s *stubLoader) Load(_ context.Context, url string) (*Page, error) {
	s.mu.Lock()
	s.loads = append(s.loads, url)
	s.mu.Unlock()

	name, ok := s.pages[url]
	if !ok {
		return nil, &poster.FetchError{URL: url, StatusCode: 404}
	}
	body, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		s.t.Fatalf("read fixture %s: %v", name, err)
	}
	return &Page{URL: url, StatusCode: 200, Body: body}, nil
}

func (s *stubLoader) Loads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loads...)
}

func imageURLs(records []poster.Record) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.ImageURL)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func jsonUnmarshal(raw string, v any) error {
	return json.Unmarshal([]byte(raw), v)
}
