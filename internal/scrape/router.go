package scrape

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"posterhelper/internal/poster"
)

// Router selects the extractor for a URL. It is immutable after construction
// and safe for concurrent use.
type Router struct {
	extractors []Extractor
}

// NewRouter registers extractors in priority order. Registering the same
// source twice is an error.
func NewRouter(extractors ...Extractor) (*Router, error) {
	seen := make(map[poster.Source]struct{}, len(extractors))
	registered := make([]Extractor, 0, len(extractors))
	for _, e := range extractors {
		if e == nil {
			return nil, errors.New("extractor must not be nil")
		}
		if _, ok := seen[e.Source()]; ok {
			return nil, fmt.Errorf("duplicate extractor for source %q", e.Source())
		}
		seen[e.Source()] = struct{}{}
		registered = append(registered, e)
	}
	return &Router{extractors: registered}, nil
}

// DefaultRouter registers the ThePosterDB and MediUX extractors.
func DefaultRouter() *Router {
	r, _ := NewRouter(NewPosterDB(), NewMediUX())
	return r
}

// Route returns the first extractor that supports rawURL.
func (r *Router) Route(rawURL string) (Extractor, error) {
	trimmed := strings.TrimSpace(rawURL)
	for _, e := range r.extractors {
		if e.Supports(trimmed) {
			return e, nil
		}
	}
	return nil, &poster.UnsupportedSourceError{URL: rawURL}
}

// Filters returns the artwork types the source can produce. Unknown sources
// produce nothing.
func (r *Router) Filters(source poster.Source) poster.Filters {
	switch source {
	case poster.SourcePosterDB:
		return poster.NewFilters(poster.ArtworkPoster)
	case poster.SourceMediUX:
		return poster.AllFilters()
	default:
		return poster.NewFilters()
	}
}

// hostPath parses rawURL and returns its lowercase host without "www." and
// its cleaned path segments.
func hostPath(rawURL string) (string, []string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", nil, false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	var segments []string
	for _, part := range strings.Split(u.Path, "/") {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return host, segments, true
}
