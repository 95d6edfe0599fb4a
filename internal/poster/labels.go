package poster

import "strings"

// UmbrellaLabel marks every item whose artwork was supplied by this tool.
const UmbrellaLabel = "Plex_poster_set_helper"

// SourceLabel returns the source-specific provenance label.
func SourceLabel(source Source) string {
	return UmbrellaLabel + "_" + source.DisplayName()
}

// ProvenanceLabels lists every label this tool may write.
func ProvenanceLabels() []string {
	return []string{UmbrellaLabel, SourceLabel(SourcePosterDB), SourceLabel(SourceMediUX)}
}

// IsProvenanceLabel reports whether the label belongs to this tool.
func IsProvenanceLabel(label string) bool {
	for _, l := range ProvenanceLabels() {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// OwnedLabels returns the provenance labels present on the item.
func OwnedLabels(item LibraryItem) []string {
	var owned []string
	for _, l := range item.Labels {
		if IsProvenanceLabel(l) {
			owned = append(owned, l)
		}
	}
	return owned
}

// MissingLabels returns the labels from want that the item does not carry yet.
func MissingLabels(item LibraryItem, want ...string) []string {
	var missing []string
	for _, w := range want {
		if item.HasLabel(w) {
			continue
		}
		dup := false
		for _, m := range missing {
			if strings.EqualFold(m, w) {
				dup = true
				break
			}
		}
		if !dup {
			missing = append(missing, w)
		}
	}
	return missing
}
