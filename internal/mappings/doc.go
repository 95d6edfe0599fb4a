// Package mappings persists title mappings: source titles that must be
// rewritten to a specific library title before matching.
//
// Mappings live in a SQLite database under the data directory. The store
// keeps an in-memory copy for lookups so the matcher never touches the
// database on the hot path. Keys are folded titles, so lookups ignore case,
// accents and punctuation. Entries seeded from the [title_mappings] config
// table never overwrite mappings the user set from the CLI.
package mappings
