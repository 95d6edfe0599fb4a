package plex_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"posterhelper/internal/poster"
	"posterhelper/internal/services/plex"
)

const sectionsXML = `<MediaContainer size="2">
  <Directory key="1" type="movie" title="Movies"/>
  <Directory key="2" type="show" title="TV Shows"/>
</MediaContainer>`

const showsXML = `<MediaContainer librarySectionID="2" librarySectionTitle="TV Shows">
  <Directory ratingKey="100" type="show" title="Severance" year="2022">
    <Label tag="Plex_poster_set_helper"/>
    <Label tag="Favourites"/>
  </Directory>
  <Directory ratingKey="101" type="show" title="Pluribus" year="2025"/>
</MediaContainer>`

const seasonsXML = `<MediaContainer librarySectionID="2">
  <Directory ratingKey="200" type="season" title="Season 1" index="1" parentTitle="Severance"/>
  <Directory key="/library/metadata/100/allLeaves" title="All episodes"/>
</MediaContainer>`

type recorded struct {
	method string
	path   string
	query  url.Values
	body   []byte
	token  string
}

type fakeServer struct {
	t        *testing.T
	mu       sync.Mutex
	requests []recorded
	routes   map[string]string
	status   int
}

func newFakeServer(t *testing.T, routes map[string]string) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{t: t, routes: routes}
	srv := httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(srv.Close)
	return fs, srv
}

func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{method: r.Method, path: r.URL.Path, query: r.URL.Query(), body: body, token: r.Header.Get("X-Plex-Token")})
	status := f.status
	f.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if payload, ok := f.routes[r.Method+" "+r.URL.Path]; ok {
		_, _ = io.WriteString(w, payload)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (f *fakeServer) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeServer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newClient(t *testing.T, baseURL string) *plex.Client {
	t.Helper()
	client, err := plex.NewClient(plex.Options{BaseURL: baseURL + "/", Token: "secret"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientRequiresURLAndToken(t *testing.T) {
	_, err := plex.NewClient(plex.Options{Token: "x"})
	if !poster.IsConfiguration(err) {
		t.Fatalf("expected configuration error for missing url, got %v", err)
	}
	_, err = plex.NewClient(plex.Options{BaseURL: "http://localhost:32400"})
	if !poster.IsConfiguration(err) {
		t.Fatalf("expected configuration error for missing token, got %v", err)
	}
}

func TestItemsDecodesLabelsAndCachesSections(t *testing.T) {
	fs, srv := newFakeServer(t, map[string]string{
		"GET /library/sections":       sectionsXML,
		"GET /library/sections/2/all": showsXML,
	})
	client := newClient(t, srv.URL)

	items, err := client.Items(context.Background(), "tv shows", poster.KindShow)
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	first := items[0]
	if first.Title != "Severance" || first.Year != 2022 || first.Kind != poster.KindShow {
		t.Fatalf("unexpected item %+v", first)
	}
	if first.SectionID != "2" || first.Library != "TV Shows" {
		t.Fatalf("unexpected section %q/%q", first.SectionID, first.Library)
	}
	if !first.HasLabel(poster.UmbrellaLabel) || len(first.Labels) != 2 {
		t.Fatalf("unexpected labels %v", first.Labels)
	}
	if got := fs.last().query.Get("type"); got != "2" {
		t.Fatalf("expected type=2, got %q", got)
	}
	if fs.last().token != "secret" {
		t.Fatalf("expected token header, got %q", fs.last().token)
	}

	before := fs.count()
	if _, err := client.Items(context.Background(), "TV Shows", poster.KindShow); err != nil {
		t.Fatalf("Items again: %v", err)
	}
	if fs.count() != before+1 {
		t.Fatalf("expected sections to be cached, saw %d requests", fs.count()-before)
	}
}

func TestItemsUnknownLibrary(t *testing.T) {
	_, srv := newFakeServer(t, map[string]string{"GET /library/sections": sectionsXML})
	client := newClient(t, srv.URL)
	_, err := client.Items(context.Background(), "Anime", poster.KindShow)
	if !errors.Is(err, plex.ErrLibraryNotFound) {
		t.Fatalf("expected ErrLibraryNotFound, got %v", err)
	}
}

func TestChildrenSkipsEntriesWithoutRatingKey(t *testing.T) {
	_, srv := newFakeServer(t, map[string]string{"GET /library/metadata/100/children": seasonsXML})
	client := newClient(t, srv.URL)
	show := poster.LibraryItem{RatingKey: "100", SectionID: "2", Library: "TV Shows", Title: "Severance", Kind: poster.KindShow}

	children, err := client.Children(context.Background(), show)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("expected one season, got %+v", children)
	}
	season := children[0]
	if season.Kind != poster.KindSeason || season.Index != 1 || season.ParentTitle != "Severance" || season.Library != "TV Shows" {
		t.Fatalf("unexpected season %+v", season)
	}
}

func TestUploadArtworkTargetsSlot(t *testing.T) {
	fs, srv := newFakeServer(t, nil)
	client := newClient(t, srv.URL)
	item := poster.LibraryItem{RatingKey: "55", SectionID: "1", Title: "Alien", Kind: poster.KindMovie}
	image := []byte("\x89PNG\r\n\x1a\nrest")

	if err := client.UploadArtwork(context.Background(), item, poster.ArtworkBackdrop, bytes.NewReader(image)); err != nil {
		t.Fatalf("UploadArtwork: %v", err)
	}
	got := fs.last()
	if got.method != http.MethodPost || got.path != "/library/metadata/55/arts" {
		t.Fatalf("unexpected request %s %s", got.method, got.path)
	}
	if string(got.body) != string(image) {
		t.Fatalf("expected raw image body")
	}

	if err := client.UploadArtwork(context.Background(), item, poster.ArtworkTitleCard, bytes.NewReader(image)); err != nil {
		t.Fatalf("UploadArtwork title card: %v", err)
	}
	if fs.last().path != "/library/metadata/55/posters" {
		t.Fatalf("expected title card in poster slot, got %s", fs.last().path)
	}
}

func TestAddLabelsKeepsExisting(t *testing.T) {
	fs, srv := newFakeServer(t, nil)
	client := newClient(t, srv.URL)
	item := poster.LibraryItem{RatingKey: "100", SectionID: "2", Title: "Severance", Kind: poster.KindShow, Labels: []string{"Favourites"}}

	if err := client.AddLabels(context.Background(), item, poster.UmbrellaLabel, poster.SourceLabel(poster.SourceMediUX)); err != nil {
		t.Fatalf("AddLabels: %v", err)
	}
	got := fs.last()
	if got.method != http.MethodPut || got.path != "/library/sections/2/all" {
		t.Fatalf("unexpected request %s %s", got.method, got.path)
	}
	want := map[string]string{
		"type":             "2",
		"id":               "100",
		"label[0].tag.tag": "Favourites",
		"label[1].tag.tag": "Plex_poster_set_helper",
		"label[2].tag.tag": "Plex_poster_set_helper_MediUX",
		"label.locked":     "1",
	}
	for key, value := range want {
		if got.query.Get(key) != value {
			t.Fatalf("expected %s=%q, got %q", key, value, got.query.Get(key))
		}
	}
}

func TestAddLabelsNoopWhenPresent(t *testing.T) {
	fs, srv := newFakeServer(t, nil)
	client := newClient(t, srv.URL)
	item := poster.LibraryItem{RatingKey: "1", SectionID: "1", Labels: []string{"plex_poster_set_helper"}}
	if err := client.AddLabels(context.Background(), item, poster.UmbrellaLabel); err != nil {
		t.Fatalf("AddLabels: %v", err)
	}
	if fs.count() != 0 {
		t.Fatalf("expected no request, got %d", fs.count())
	}
}

func TestRemoveLabels(t *testing.T) {
	fs, srv := newFakeServer(t, nil)
	client := newClient(t, srv.URL)
	item := poster.LibraryItem{RatingKey: "7", SectionID: "1", Kind: poster.KindMovie, Labels: []string{"Plex_poster_set_helper", "Plex_poster_set_helper_ThePosterDB", "Keep"}}

	if err := client.RemoveLabels(context.Background(), item, poster.ProvenanceLabels()...); err != nil {
		t.Fatalf("RemoveLabels: %v", err)
	}
	got := fs.last()
	if v := got.query.Get("label[].tag.tag-"); v != "Plex_poster_set_helper,Plex_poster_set_helper_ThePosterDB" {
		t.Fatalf("unexpected removal value %q", v)
	}
}

func TestRestoreDefaultSelectsAgentArtwork(t *testing.T) {
	fs, srv := newFakeServer(t, map[string]string{
		"GET /library/metadata/9/posters": `<MediaContainer>
  <Photo key="/library/metadata/9/file?url=upload%3A%2F%2Fposters%2Fabc" ratingKey="upload://posters/abc" selected="1" provider="local"/>
  <Photo key="https://metadata.provider.plex.tv/poster.jpg" ratingKey="metadata://posters/tmdb_1" provider="tmdb"/>
</MediaContainer>`,
	})
	client := newClient(t, srv.URL)
	item := poster.LibraryItem{RatingKey: "9", SectionID: "1", Kind: poster.KindMovie}

	restored, err := client.RestoreDefault(context.Background(), item, poster.ArtworkPoster)
	if err != nil {
		t.Fatalf("RestoreDefault: %v", err)
	}
	if !restored {
		t.Fatal("expected agent artwork to be selected")
	}
	got := fs.last()
	if got.method != http.MethodPut || got.path != "/library/metadata/9/poster" || got.query.Get("url") != "metadata://posters/tmdb_1" {
		t.Fatalf("unexpected request %s %s %v", got.method, got.path, got.query)
	}
}

func TestRestoreDefaultUnlocksWhenOnlyUploads(t *testing.T) {
	fs, srv := newFakeServer(t, map[string]string{
		"GET /library/metadata/9/arts": `<MediaContainer><Photo ratingKey="upload://art/abc"/></MediaContainer>`,
	})
	client := newClient(t, srv.URL)
	item := poster.LibraryItem{RatingKey: "9", SectionID: "3", Kind: poster.KindShow}

	restored, err := client.RestoreDefault(context.Background(), item, poster.ArtworkBackdrop)
	if err != nil {
		t.Fatalf("RestoreDefault: %v", err)
	}
	if restored {
		t.Fatal("expected unlock fallback")
	}
	got := fs.last()
	if got.path != "/library/sections/3/all" || got.query.Get("art.locked") != "0" || got.query.Get("type") != "2" {
		t.Fatalf("unexpected unlock request %s %v", got.path, got.query)
	}
}

func TestUnauthorized(t *testing.T) {
	fs, srv := newFakeServer(t, nil)
	fs.status = http.StatusUnauthorized
	client := newClient(t, srv.URL)
	_, err := client.Sections(context.Background())
	if !errors.Is(err, plex.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCircuitBreakerOpensOnServerErrors(t *testing.T) {
	fs, srv := newFakeServer(t, nil)
	fs.status = http.StatusServiceUnavailable
	client := newClient(t, srv.URL)
	item := poster.LibraryItem{RatingKey: "1", SectionID: "1", Title: "Alien"}

	for i := 0; i < 5; i++ {
		err := client.UploadArtwork(context.Background(), item, poster.ArtworkPoster, strings.NewReader("x"))
		var statusErr *plex.StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("attempt %d: expected 503 status error, got %v", i, err)
		}
	}
	err := client.UploadArtwork(context.Background(), item, poster.ArtworkPoster, strings.NewReader("x"))
	if !errors.Is(err, plex.ErrServerUnavailable) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if fs.count() != 5 {
		t.Fatalf("expected open breaker to short-circuit, server saw %d requests", fs.count())
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	fs, srv := newFakeServer(t, nil)
	fs.status = http.StatusBadRequest
	client := newClient(t, srv.URL)
	item := poster.LibraryItem{RatingKey: "1", SectionID: "1"}
	for i := 0; i < 8; i++ {
		err := client.UploadArtwork(context.Background(), item, poster.ArtworkPoster, strings.NewReader("x"))
		if errors.Is(err, plex.ErrServerUnavailable) {
			t.Fatalf("attempt %d: breaker opened on client errors", i)
		}
	}
}
