// Package scrape turns ThePosterDB and MediUX URLs into poster records.
//
// A Router picks the Extractor for a URL. Extractors parse pages with goquery
// and only ever see pages through a PageLoader, which in production is a
// Fetcher driving one worker's Session, a headless Chrome instance controlled
// through chromedp. The Fetcher applies the configured jittered delays, the
// periodic batch backoff and the settle wait that lets client-side rendering
// and challenge scripts finish before the DOM is read, and rotates the
// browser identity per page.
package scrape
