package poster

import "strings"

// LibraryItem references an entry in the media server catalog.
type LibraryItem struct {
	RatingKey   string
	SectionID   string
	Library     string
	Title       string
	Year        int
	Kind        MediaKind
	Index       int // season or episode number
	ParentIndex int // season number for episodes
	ParentTitle string
	Labels      []string
}

// HasLabel reports whether the item carries the label (case-insensitive).
func (i LibraryItem) HasLabel(label string) bool {
	for _, l := range i.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// MatchStatus describes how a record was resolved against the library.
type MatchStatus string

const (
	MatchExact    MatchStatus = "exact"
	MatchOverride MatchStatus = "override"
	MatchFuzzy    MatchStatus = "fuzzy"
	MatchNotFound MatchStatus = "not_found"
)

// MatchResult is the outcome of resolving a Record against the library.
type MatchResult struct {
	Status       MatchStatus
	Item         *LibraryItem
	Confidence   float64
	MatchedTitle string
	Library      string
}

// Found reports whether the result references a library item.
func (m MatchResult) Found() bool {
	return m.Status != MatchNotFound && m.Status != "" && m.Item != nil
}

// NotFound builds a not_found result; title is the best candidate seen, if any.
func NotFound(title string, confidence float64) MatchResult {
	return MatchResult{Status: MatchNotFound, MatchedTitle: title, Confidence: confidence}
}
