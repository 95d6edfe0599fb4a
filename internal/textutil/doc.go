// Package textutil provides text processing utilities for title comparison and
// filename sanitization.
//
// The primary use cases are:
//   - Folding titles into a comparable form (case, diacritics, punctuation)
//   - Scoring the similarity of two titles with Jaro-Winkler
//   - Sanitizing filenames and path segments for safe filesystem use
//
// Folding lowercases text with Unicode case folding, strips combining marks,
// spells out ampersands and drops every character that is not a letter or digit.
package textutil
