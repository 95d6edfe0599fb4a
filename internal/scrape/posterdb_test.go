package scrape

import (
	"context"
	"errors"
	"testing"

	"posterhelper/internal/poster"
)

func TestPosterDBSupports(t *testing.T) {
	p := NewPosterDB()
	cases := map[string]bool{
		"https://theposterdb.com/set/12345":         true,
		"https://www.theposterdb.com/set/12345":     true,
		"https://theposterdb.com/poster/999":        true,
		"https://theposterdb.com/user/Hogo":         true,
		"https://theposterdb.com/user/Hogo?page=2":  true,
		"https://theposterdb.com/":                  false,
		"https://theposterdb.com/search?term=alien": false,
		"https://mediux.pro/sets/4242":              false,
		"ftp://theposterdb.com/set/1":               false,
		"not a url":                                 false,
	}
	for raw, want := range cases {
		if got := p.Supports(raw); got != want {
			t.Errorf("Supports(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestPosterDBRecordTitles(t *testing.T) {
	tests := []struct {
		title     string
		hint      string
		wantTitle string
		wantYear  int
		wantKind  poster.MediaKind
		season    int
		hasSeason bool
	}{
		{"Alien (1979)", "Movie", "Alien", 1979, poster.KindMovie, 0, false},
		{"Severance (2022)", "Show", "Severance", 2022, poster.KindShow, 0, false},
		{"Severance (2022) - Season 2", "Show", "Severance", 2022, poster.KindSeason, 2, true},
		{"Severance (2022) - Specials", "Show", "Severance", 2022, poster.KindSeason, 0, true},
		{"Alien Collection", "Collection", "Alien Collection", 0, poster.KindCollection, 0, false},
		{"Alien Collection", "", "Alien Collection", 0, poster.KindCollection, 0, false},
		{"Blade Runner 2049 (2017)", "", "Blade Runner 2049", 2017, poster.KindMovie, 0, false},
	}
	for _, tt := range tests {
		rec := posterDBRecord(tt.title, tt.hint, "42")
		if rec.Title != tt.wantTitle || rec.Year != tt.wantYear || rec.Kind != tt.wantKind {
			t.Errorf("%q: got %q/%d/%s, want %q/%d/%s", tt.title, rec.Title, rec.Year, rec.Kind, tt.wantTitle, tt.wantYear, tt.wantKind)
		}
		if rec.Season != tt.season || rec.HasSeason != tt.hasSeason {
			t.Errorf("%q: season = %d/%v, want %d/%v", tt.title, rec.Season, rec.HasSeason, tt.season, tt.hasSeason)
		}
		if rec.ImageURL != "https://theposterdb.com/api/assets/42" {
			t.Errorf("%q: image url = %q", tt.title, rec.ImageURL)
		}
		if rec.Source != poster.SourcePosterDB || rec.Artwork != poster.ArtworkPoster {
			t.Errorf("%q: source/artwork = %s/%s", tt.title, rec.Source, rec.Artwork)
		}
	}
}

func TestPosterDBExtractSet(t *testing.T) {
	setURL := "https://theposterdb.com/set/98765"
	loader := newStubLoader(t, map[string]string{setURL: "posterdb_set.html"})

	records, err := NewPosterDB().Extract(context.Background(), loader, setURL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := []string{
		"https://theposterdb.com/api/assets/311001",
		"https://theposterdb.com/api/assets/311002",
		"https://theposterdb.com/api/assets/311003",
	}
	if got := imageURLs(records); !equalStrings(got, want) {
		t.Fatalf("image urls = %v, want %v", got, want)
	}
	if records[0].Kind != poster.KindShow || records[1].Season != 1 || !records[2].HasSeason || records[2].Season != 0 {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestPosterDBExtractPosterFollowsSetLink(t *testing.T) {
	posterURL := "https://theposterdb.com/poster/311002"
	loader := newStubLoader(t, map[string]string{
		posterURL:                           "posterdb_poster.html",
		"https://theposterdb.com/set/98765": "posterdb_set.html",
	})

	records, err := NewPosterDB().Extract(context.Background(), loader, posterURL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected the full set, got %d records", len(records))
	}
	if loads := loader.Loads(); len(loads) != 2 || loads[1] != "https://theposterdb.com/set/98765" {
		t.Fatalf("unexpected loads %v", loads)
	}
}

func TestPosterDBExtractUserWalksPages(t *testing.T) {
	loader := newStubLoader(t, map[string]string{
		"https://theposterdb.com/user/Hogo?section=uploads&page=1": "posterdb_user_1.html",
		"https://theposterdb.com/user/Hogo?section=uploads&page=2": "posterdb_user_2.html",
	})

	records, err := NewPosterDB().Extract(context.Background(), loader, "https://theposterdb.com/user/Hogo")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := []string{
		"https://theposterdb.com/api/assets/500",
		"https://theposterdb.com/api/assets/501",
		"https://theposterdb.com/api/assets/502",
	}
	if got := imageURLs(records); !equalStrings(got, want) {
		t.Fatalf("image urls = %v, want %v", got, want)
	}
	if records[1].Kind != poster.KindCollection {
		t.Fatalf("expected collection record, got %s", records[1].Kind)
	}
}

func TestPosterDBChallengePageIsFetchError(t *testing.T) {
	setURL := "https://theposterdb.com/set/1"
	loader := newStubLoader(t, map[string]string{setURL: "challenge.html"})

	_, err := NewPosterDB().Extract(context.Background(), loader, setURL)
	var fetchErr *poster.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if !poster.Retryable(err) {
		t.Fatal("challenge failures should be retryable")
	}
}

func TestPosterDBMalformedCellIsParseError(t *testing.T) {
	body := `<html><body><div class="row d-flex flex-wrap">
<div class="col-6 col-lg-2 p-1"><div class="overlay"></div><p class="p-0 mb-1 text-break">Alien (1979)</p></div>
</div></body></html>`
	page := &Page{URL: "https://theposterdb.com/set/2", StatusCode: 200, Body: []byte(body)}
	doc, err := page.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	_, err = parsePosterGrid(doc, page.URL)
	var parseErr *poster.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestPosterDBEmptySetYieldsNoRecords(t *testing.T) {
	page := &Page{URL: "https://theposterdb.com/set/3", Body: []byte(`<html><body><div class="row d-flex flex-wrap"></div></body></html>`)}
	doc, err := page.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	records, err := parsePosterGrid(doc, page.URL)
	if err != nil {
		t.Fatalf("parsePosterGrid: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestPosterDBWrongPageShapeIsParseError(t *testing.T) {
	tests := []struct {
		name string
		url  string
		file string
	}{
		{"foreign page", "https://theposterdb.com/set/9", "mediux_set.html"},
		{"poster page as set", "https://theposterdb.com/set/10", "posterdb_poster.html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newStubLoader(t, map[string]string{tt.url: tt.file})
			records, err := NewPosterDB().Extract(context.Background(), loader, tt.url)
			var parseErr *poster.ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got records=%d err=%v", len(records), err)
			}
			if poster.Kind(err) != "parse" {
				t.Fatalf("kind = %q", poster.Kind(err))
			}
		})
	}
}

func TestPosterDBMissingPageIsFetchError(t *testing.T) {
	loader := newStubLoader(t, nil)
	_, err := NewPosterDB().Extract(context.Background(), loader, "https://theposterdb.com/set/404")
	if poster.Kind(err) != "fetch" {
		t.Fatalf("expected fetch error, got %v", err)
	}
}
