package testsupport

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// pngHeader is enough of a PNG for content sniffing to report image/png.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

// PNG returns small image bytes tagged with marker so tests can tell uploads
// apart.
func PNG(marker string) []byte {
	out := append([]byte(nil), pngHeader...)
	return append(out, marker...)
}

// WriteText writes content to path, creating parent directories.
func WriteText(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ImageServer serves PNG bytes for /assets/{id} and 404 for anything else.
// It counts requests per path.
type ImageServer struct {
	*httptest.Server

	mu    sync.Mutex
	hits  map[string]int
	fails map[string]int
}

// NewImageServer starts an ImageServer that is closed on test cleanup.
func NewImageServer(t testing.TB) *ImageServer {
	t.Helper()

	s := &ImageServer{hits: make(map[string]int), fails: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Fail makes requests for the asset id return status.
func (s *ImageServer) Fail(id string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails["/assets/"+id] = status
}

// Hits returns how often path was requested.
func (s *ImageServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// AssetURL returns the URL of the asset id.
func (s *ImageServer) AssetURL(id string) string {
	return s.URL + "/assets/" + id
}

func (s *ImageServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	status := s.fails[r.URL.Path]
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}
	id, ok := strings.CutPrefix(r.URL.Path, "/assets/")
	if !ok || id == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(PNG(id))
}
