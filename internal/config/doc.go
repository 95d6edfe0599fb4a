// Package config loads, normalizes, and validates posterhelper configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the PLEX_TOKEN environment
// fallback. The Config type centralizes the Plex connection, library names,
// scraper pacing, upload filters and title mappings so every command sees the
// same sanitized values.
//
// Validation failures are returned as *poster.ConfigurationError so callers can
// stop before any processing starts.
package config
