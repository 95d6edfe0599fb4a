package poster

import (
	"fmt"
	"strings"
)

// MediaKind classifies what a record or library item represents.
type MediaKind string

const (
	KindMovie      MediaKind = "movie"
	KindShow       MediaKind = "show"
	KindSeason     MediaKind = "season"
	KindEpisode    MediaKind = "episode"
	KindCollection MediaKind = "collection"
)

// IsTV reports whether the kind is matched against TV libraries.
func (k MediaKind) IsTV() bool {
	switch k {
	case KindShow, KindSeason, KindEpisode:
		return true
	default:
		return false
	}
}

// Source identifies the site a record was scraped from.
type Source string

const (
	SourcePosterDB Source = "posterdb"
	SourceMediUX   Source = "mediux"
)

// DisplayName returns the human readable site name.
func (s Source) DisplayName() string {
	switch s {
	case SourcePosterDB:
		return "ThePosterDB"
	case SourceMediUX:
		return "MediUX"
	default:
		return string(s)
	}
}

// ArtworkType selects the artwork slot a record targets.
type ArtworkType string

const (
	ArtworkPoster    ArtworkType = "poster"
	ArtworkBackdrop  ArtworkType = "backdrop"
	ArtworkTitleCard ArtworkType = "title_card"
)

// ParseArtworkType maps a configured filter name onto an ArtworkType. The
// older names used by existing configs (background, show_cover, season_cover)
// are accepted as aliases.
func ParseArtworkType(value string) (ArtworkType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "poster", "show_cover", "season_cover", "movie_poster", "collection_poster":
		return ArtworkPoster, nil
	case "backdrop", "background":
		return ArtworkBackdrop, nil
	case "title_card", "titlecard":
		return ArtworkTitleCard, nil
	default:
		return "", fmt.Errorf("unknown artwork type %q", value)
	}
}

// Record is one candidate artwork unit extracted from a source page.
type Record struct {
	Title      string
	Year       int
	Kind       MediaKind
	Season     int
	HasSeason  bool
	Episode    int
	HasEpisode bool
	ImageURL   string
	Source     Source
	Artwork    ArtworkType
}

// Label returns a short description used in logs and progress events.
func (r Record) Label() string {
	var b strings.Builder
	b.WriteString(r.Title)
	if r.Year > 0 {
		fmt.Fprintf(&b, " (%d)", r.Year)
	}
	switch {
	case r.HasSeason && r.HasEpisode:
		fmt.Fprintf(&b, " S%02dE%02d", r.Season, r.Episode)
	case r.HasSeason:
		if r.Season == 0 {
			b.WriteString(" Specials")
		} else {
			fmt.Fprintf(&b, " Season %d", r.Season)
		}
	}
	if r.Artwork != "" && r.Artwork != ArtworkPoster {
		b.WriteString(" [")
		b.WriteString(string(r.Artwork))
		b.WriteByte(']')
	}
	return b.String()
}

// Filters is the set of enabled artwork types. A nil Filters allows everything.
type Filters map[ArtworkType]bool

// NewFilters builds a filter set from the given types.
func NewFilters(types ...ArtworkType) Filters {
	f := make(Filters, len(types))
	for _, t := range types {
		f[t] = true
	}
	return f
}

// AllFilters enables every artwork type.
func AllFilters() Filters {
	return NewFilters(ArtworkPoster, ArtworkBackdrop, ArtworkTitleCard)
}

// Allows reports whether records of the artwork type should be kept.
func (f Filters) Allows(t ArtworkType) bool {
	if f == nil {
		return true
	}
	if t == "" {
		t = ArtworkPoster
	}
	return f[t]
}

// Intersect returns the artwork types both f and other allow. A nil side
// allows everything, so the result is the other side.
func (f Filters) Intersect(other Filters) Filters {
	switch {
	case f == nil:
		return other
	case other == nil:
		return f
	}
	out := make(Filters, len(f))
	for t, on := range f {
		if on && other[t] {
			out[t] = true
		}
	}
	return out
}

// FilterRecords returns the records whose artwork type is enabled, in order.
func FilterRecords(records []Record, filters Filters) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if filters.Allows(rec.Artwork) {
			out = append(out, rec)
		}
	}
	return out
}

// DedupeByImage drops records whose ImageURL was already seen, keeping the
// first occurrence.
func DedupeByImage(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		key := strings.TrimSpace(rec.ImageURL)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}
