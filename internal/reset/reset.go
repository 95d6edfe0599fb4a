// Package reset reverts artwork installed by this tool. Items are recognized
// by their provenance labels; resetting selects the agent's default artwork
// again and removes the labels, so a second reset finds nothing to do.
package reset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"posterhelper/internal/config"
	"posterhelper/internal/logging"
	"posterhelper/internal/poster"
	"posterhelper/internal/textutil"
)

// Server is the subset of the Plex client the reset engine needs.
type Server interface {
	Items(ctx context.Context, library string, kind poster.MediaKind) ([]poster.LibraryItem, error)
	Children(ctx context.Context, parent poster.LibraryItem) ([]poster.LibraryItem, error)
	RestoreDefault(ctx context.Context, item poster.LibraryItem, artwork poster.ArtworkType) (bool, error)
	RemoveLabels(ctx context.Context, item poster.LibraryItem, labels ...string) error
}

// ItemError records a failure for one item or library listing.
type ItemError struct {
	Library string
	Title   string
	Err     error
}

func (e ItemError) Error() string {
	if e.Title == "" {
		return fmt.Sprintf("%s: %v", e.Library, e.Err)
	}
	return fmt.Sprintf("%s / %s: %v", e.Library, e.Title, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// Report summarizes a ResetAll run.
type Report struct {
	Scanned int
	Reset   int
	Errors  []ItemError
}

// Engine resets items in the configured libraries.
type Engine struct {
	server Server
	movies []string
	tv     []string
	logger *slog.Logger
}

// New builds an Engine over the configured libraries.
func New(server Server, libraries config.Libraries, logger *slog.Logger) *Engine {
	return &Engine{
		server: server,
		movies: append([]string(nil), libraries.Movies...),
		tv:     append([]string(nil), libraries.TV...),
		logger: logging.NewComponentLogger(logger, "reset"),
	}
}

// Reset restores item's default artwork and removes this tool's labels when
// the item carries any of them. The backdrop is restored too when the MediUX
// label is present, since only MediUX supplies backdrops. With recursive set,
// the seasons and episodes below a show (or the episodes below a season) are
// reset as well; untagged children are skipped. It returns how many items
// were reset.
func (e *Engine) Reset(ctx context.Context, item poster.LibraryItem, recursive bool) (int, error) {
	count, err := e.resetOne(ctx, item)
	if err != nil {
		return count, err
	}
	if !recursive || (item.Kind != poster.KindShow && item.Kind != poster.KindSeason) {
		return count, nil
	}

	children, err := e.server.Children(ctx, item)
	if err != nil {
		return count, fmt.Errorf("list children of %q: %w", item.Title, err)
	}
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		n, err := e.Reset(ctx, child, child.Kind == poster.KindSeason)
		count += n
		if err != nil {
			return count, err
		}
	}
	return count, nil
}

func (e *Engine) resetOne(ctx context.Context, item poster.LibraryItem) (int, error) {
	owned := poster.OwnedLabels(item)
	if len(owned) == 0 {
		return 0, nil
	}

	slots := []poster.ArtworkType{poster.ArtworkPoster}
	if item.HasLabel(poster.SourceLabel(poster.SourceMediUX)) {
		slots = append(slots, poster.ArtworkBackdrop)
	}
	for _, slot := range slots {
		selected, err := e.server.RestoreDefault(ctx, item, slot)
		if err != nil {
			return 0, fmt.Errorf("reset %q: %w", item.Title, err)
		}
		if !selected {
			e.logger.Debug("no agent artwork available; slot unlocked",
				logging.String(logging.FieldTitle, item.Title),
				logging.String("artwork", string(slot)),
			)
		}
	}
	if err := e.server.RemoveLabels(ctx, item, owned...); err != nil {
		return 0, fmt.Errorf("reset %q: %w", item.Title, err)
	}
	e.logger.Info("artwork reset",
		logging.String(logging.FieldTitle, describe(item)),
		logging.String("library", item.Library),
	)
	return 1, nil
}

// ResetAll resets every tagged item in every configured library. Per-item
// failures are collected and the run continues; only cancellation stops it.
func (e *Engine) ResetAll(ctx context.Context) (Report, error) {
	items, listErrs := e.Tagged(ctx)
	report := Report{Scanned: len(items), Errors: listErrs}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, err := e.resetOne(ctx, item)
		report.Reset += n
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return report, err
			}
			e.logger.Warn("reset failed",
				logging.String(logging.FieldTitle, describe(item)),
				logging.String("library", item.Library),
				logging.Error(err),
				logging.String(logging.FieldEventType, "reset_failed"),
				logging.String(logging.FieldErrorHint, "check the Plex server is reachable and the token can edit the library"),
			)
			report.Errors = append(report.Errors, ItemError{Library: item.Library, Title: describe(item), Err: err})
		}
	}
	return report, nil
}

// Tagged lists every item carrying the umbrella label: movies and collections
// in movie libraries, shows, seasons and episodes in TV libraries. Listing
// failures are returned per library and kind; the walk continues.
func (e *Engine) Tagged(ctx context.Context) ([]poster.LibraryItem, []ItemError) {
	var (
		tagged []poster.LibraryItem
		errs   []ItemError
	)
	walk := func(libraries []string, kinds ...poster.MediaKind) {
		for _, library := range libraries {
			for _, kind := range kinds {
				if ctx.Err() != nil {
					return
				}
				items, err := e.server.Items(ctx, library, kind)
				if err != nil {
					errs = append(errs, ItemError{Library: library, Err: fmt.Errorf("list %s items: %w", kind, err)})
					continue
				}
				for _, item := range items {
					if item.HasLabel(poster.UmbrellaLabel) {
						tagged = append(tagged, item)
					}
				}
			}
		}
	}
	walk(e.movies, poster.KindMovie, poster.KindCollection)
	walk(e.tv, poster.KindShow, poster.KindSeason, poster.KindEpisode)
	return tagged, errs
}

// Find returns the movies, shows and collections whose folded title equals
// title. When library is non-empty only that library is searched.
func (e *Engine) Find(ctx context.Context, title, library string) ([]poster.LibraryItem, error) {
	want := textutil.FoldTitle(title)
	if want == "" {
		return nil, errors.New("title must not be empty")
	}
	var found []poster.LibraryItem
	search := func(libraries []string, kinds ...poster.MediaKind) error {
		for _, lib := range libraries {
			if library != "" && !textutil.EqualTitles(lib, library) {
				continue
			}
			for _, kind := range kinds {
				items, err := e.server.Items(ctx, lib, kind)
				if err != nil {
					return fmt.Errorf("search %q: %w", lib, err)
				}
				for _, item := range items {
					if textutil.FoldTitle(item.Title) == want {
						found = append(found, item)
					}
				}
			}
		}
		return nil
	}
	if err := search(e.movies, poster.KindMovie, poster.KindCollection); err != nil {
		return nil, err
	}
	if err := search(e.tv, poster.KindShow); err != nil {
		return nil, err
	}
	return found, nil
}

func describe(item poster.LibraryItem) string {
	switch item.Kind {
	case poster.KindSeason:
		return fmt.Sprintf("%s Season %d", item.ParentTitle, item.Index)
	case poster.KindEpisode:
		return fmt.Sprintf("%s S%02dE%02d", item.ParentTitle, item.ParentIndex, item.Index)
	default:
		return item.Title
	}
}
