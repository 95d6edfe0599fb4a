package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"posterhelper/internal/config"
	"posterhelper/internal/logging"
	"posterhelper/internal/poster"
	"posterhelper/internal/textutil"
)

// DefaultThreshold is the minimum fuzzy score accepted as a match.
const DefaultThreshold = 0.80

// Catalog enumerates library contents.
type Catalog interface {
	Items(ctx context.Context, library string, kind poster.MediaKind) ([]poster.LibraryItem, error)
	Children(ctx context.Context, parent poster.LibraryItem) ([]poster.LibraryItem, error)
}

// MappingSource rewrites source titles to library titles.
type MappingSource interface {
	Lookup(title string) (string, bool)
}

// Options configures a Matcher.
type Options struct {
	MovieLibraries []string
	TVLibraries    []string
	Threshold      float64
	Mappings       MappingSource
	Logger         *slog.Logger
}

// OptionsFromConfig builds matcher options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config, mappings MappingSource, logger *slog.Logger) Options {
	return Options{
		MovieLibraries: cfg.Libraries.Movies,
		TVLibraries:    cfg.Libraries.TV,
		Threshold:      cfg.Upload.MatchThreshold,
		Mappings:       mappings,
		Logger:         logger,
	}
}

// Matcher resolves records against a Catalog. It is safe for concurrent use;
// listings are fetched once per library and kind and then reused.
type Matcher struct {
	catalog   Catalog
	movies    []string
	tv        []string
	threshold float64
	mappings  MappingSource
	logger    *slog.Logger

	items    *listingCache[listingKey]
	children *listingCache[string]
}

type listingKey struct {
	library string
	kind    poster.MediaKind
}

// New builds a Matcher over catalog.
func New(catalog Catalog, opts Options) *Matcher {
	threshold := opts.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Matcher{
		catalog:   catalog,
		movies:    append([]string(nil), opts.MovieLibraries...),
		tv:        append([]string(nil), opts.TVLibraries...),
		threshold: threshold,
		mappings:  opts.Mappings,
		logger:    logging.NewComponentLogger(opts.Logger, "matcher"),
		items:     newListingCache[listingKey](),
		children:  newListingCache[string](),
	}
}

// Match resolves rec to a library item. A record with no acceptable candidate
// yields a not_found result and a nil error; errors are returned only when the
// catalog cannot be read.
func (m *Matcher) Match(ctx context.Context, rec poster.Record) (poster.MatchResult, error) {
	title := strings.TrimSpace(rec.Title)
	mapped := false
	if m.mappings != nil {
		if target, ok := m.mappings.Lookup(title); ok && strings.TrimSpace(target) != "" {
			m.logger.Debug("title mapping applied",
				logging.String(logging.FieldTitle, title),
				logging.String("mapped_title", target),
			)
			title = strings.TrimSpace(target)
			mapped = true
		}
	}
	if title == "" {
		return poster.NotFound("", 0), nil
	}

	switch rec.Kind {
	case poster.KindShow:
		return m.resolve(ctx, title, rec.Year, poster.KindShow, m.tv, mapped)
	case poster.KindSeason, poster.KindEpisode:
		show, err := m.resolve(ctx, title, rec.Year, poster.KindShow, m.tv, mapped)
		if err != nil || !show.Found() {
			return show, err
		}
		return m.resolveChild(ctx, show, rec)
	case poster.KindCollection:
		return m.resolve(ctx, title, rec.Year, poster.KindCollection, m.movies, mapped)
	default:
		return m.resolve(ctx, title, rec.Year, poster.KindMovie, m.movies, mapped)
	}
}

// resolve runs the exact and fuzzy passes over every item of kind in the
// libraries, in library order and then server order.
func (m *Matcher) resolve(ctx context.Context, title string, year int, kind poster.MediaKind, libraries []string, mapped bool) (poster.MatchResult, error) {
	var candidates []poster.LibraryItem
	for _, library := range libraries {
		items, err := m.listItems(ctx, library, kind)
		if err != nil {
			return poster.MatchResult{}, fmt.Errorf("match %q: %w", title, err)
		}
		candidates = append(candidates, items...)
	}

	folded := textutil.FoldTitle(title)
	for i := range candidates {
		c := candidates[i]
		if folded == "" || textutil.FoldTitle(c.Title) != folded {
			continue
		}
		if !yearsAgree(year, c.Year) {
			continue
		}
		status := poster.MatchExact
		if mapped {
			status = poster.MatchOverride
		}
		return found(status, c, 1), nil
	}

	bestIdx := -1
	bestScore := 0.0
	for i, c := range candidates {
		score := Score(title, year, c.Title, c.Year)
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx < 0 {
		return poster.NotFound("", 0), nil
	}
	best := candidates[bestIdx]
	if bestScore >= m.threshold {
		m.logger.Debug("fuzzy match accepted",
			logging.String(logging.FieldTitle, title),
			logging.String("matched_title", best.Title),
			logging.Float64("confidence", bestScore),
		)
		return found(poster.MatchFuzzy, best, bestScore), nil
	}
	return poster.NotFound(best.Title, bestScore), nil
}

// resolveChild walks from a resolved show to the season, and for episode
// records to the episode, by number.
func (m *Matcher) resolveChild(ctx context.Context, show poster.MatchResult, rec poster.Record) (poster.MatchResult, error) {
	notFound := poster.NotFound(show.Item.Title, show.Confidence)
	notFound.Library = show.Library
	if !rec.HasSeason {
		return notFound, nil
	}

	seasons, err := m.listChildren(ctx, *show.Item)
	if err != nil {
		return poster.MatchResult{}, fmt.Errorf("match %q season %d: %w", show.Item.Title, rec.Season, err)
	}
	season, ok := childByIndex(seasons, poster.KindSeason, rec.Season)
	if !ok {
		return notFound, nil
	}
	if rec.Kind == poster.KindSeason {
		return withItem(show, season), nil
	}

	if !rec.HasEpisode {
		return notFound, nil
	}
	episodes, err := m.listChildren(ctx, season)
	if err != nil {
		return poster.MatchResult{}, fmt.Errorf("match %q S%02dE%02d: %w", show.Item.Title, rec.Season, rec.Episode, err)
	}
	episode, ok := childByIndex(episodes, poster.KindEpisode, rec.Episode)
	if !ok {
		return notFound, nil
	}
	return withItem(show, episode), nil
}

// Score is the fuzzy similarity of two titles, reduced when both years are
// known and differ: by 0.10 for one year and by 0.40 for more.
func Score(title string, year int, candidate string, candidateYear int) float64 {
	return textutil.Similarity(title, candidate) - yearPenalty(year, candidateYear)
}

func yearPenalty(a, b int) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return 0
	case diff == 1:
		return 0.10
	default:
		return 0.40
	}
}

func yearsAgree(a, b int) bool {
	return a <= 0 || b <= 0 || a == b
}

func childByIndex(items []poster.LibraryItem, kind poster.MediaKind, index int) (poster.LibraryItem, bool) {
	for _, item := range items {
		if item.Kind == kind && item.Index == index {
			return item, true
		}
	}
	return poster.LibraryItem{}, false
}

func found(status poster.MatchStatus, item poster.LibraryItem, confidence float64) poster.MatchResult {
	return poster.MatchResult{
		Status:       status,
		Item:         &item,
		Confidence:   confidence,
		MatchedTitle: item.Title,
		Library:      item.Library,
	}
}

func withItem(show poster.MatchResult, item poster.LibraryItem) poster.MatchResult {
	out := show
	out.Item = &item
	return out
}
