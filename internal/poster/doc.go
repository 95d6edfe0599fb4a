// Package poster defines the records, match results, upload outcomes and error
// types shared by the scrape, match, apply and reset stages.
//
// Values in this package are plain data. A Record is produced once by an
// extractor and never mutated; a MatchResult and an UploadOutcome describe
// what happened to that record. The provenance labels written to Plex items
// live here too so the applier and the reset engine agree on them.
package poster
