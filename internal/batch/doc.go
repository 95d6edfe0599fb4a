// Package batch runs URL batches: each URL is routed to its site extractor,
// its records are matched against the Plex libraries and their artwork is
// applied, with a bounded pool of workers processing URLs concurrently.
//
// Every URL moves from pending to processing and then to exactly one of done,
// error or cancelled. Cancelling a job is cooperative: URLs that have not
// started are marked cancelled and URLs already processing run to
// completion. Cancelling the context passed to Run aborts in-flight work as
// well.
//
// Progress is published through an Observer whose methods are called from
// worker goroutines; implementations must be safe for concurrent use.
package batch
