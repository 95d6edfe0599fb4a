package scrape

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"posterhelper/internal/poster"
)

// Page is a loaded document.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Document parses the page body as HTML.
func (p *Page) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, &poster.ParseError{URL: p.URL, Reason: fmt.Sprintf("invalid html: %v", err)}
	}
	return doc, nil
}

// PageLoader loads a page by URL. Failures are *poster.FetchError.
type PageLoader interface {
	Load(ctx context.Context, url string) (*Page, error)
}

// Extractor produces records for the URLs of one source site.
type Extractor interface {
	Source() poster.Source
	// Supports reports whether the URL belongs to this source and has a
	// recognized shape (set, single item, or user page).
	Supports(rawURL string) bool
	// Extract returns every record reachable from rawURL, deduplicated by
	// image URL, in source order. A well-formed page without artwork yields
	// an empty slice.
	Extract(ctx context.Context, loader PageLoader, rawURL string) ([]poster.Record, error)
}
