// Package matcher resolves extracted records to items in the Plex movie and
// TV libraries.
//
// Resolution runs in a fixed order: title mappings rewrite the record title
// first, then an exact comparison of folded titles (and years when both sides
// carry one) is tried, then a Jaro-Winkler fuzzy pass accepts the best
// candidate at or above the configured threshold. Season and episode records
// resolve their show first and then walk the show's children by number.
//
// Library listings are cached per Matcher so a set of fifty records costs one
// listing per library.
package matcher
