package main

import (
	"fmt"
	"io"
	"sync"

	"posterhelper/internal/batch"
	"posterhelper/internal/poster"
)

// progressPrinter renders batch events as status lines. On a terminal the
// lines are colored and prefixed with a running url counter; otherwise they
// are plain so they stay readable in log captures.
type progressPrinter struct {
	out         io.Writer
	interactive bool
	total       int

	mu       sync.Mutex
	finished int
	counts   map[string]batch.Counts
}

func newProgressPrinter(out io.Writer, total int) *progressPrinter {
	return &progressPrinter{
		out:         out,
		interactive: shouldColorize(out),
		total:       total,
		counts:      make(map[string]batch.Counts),
	}
}

func (p *progressPrinter) OnURLState(result batch.URLResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if result.State.Terminal() {
		p.finished++
	}
	switch result.State {
	case batch.URLProcessing:
		p.line("url", statusInfo, result.URL)
	case batch.URLDone:
		c := p.counts[result.URL]
		p.line("url", statusOK, fmt.Sprintf("%s: %d records, %d applied, %d not found, %d failed, %d skipped",
			result.URL, result.Records, c.Applied, c.NotFound, c.Failed, c.Skipped))
	case batch.URLError:
		p.line("url", statusError, fmt.Sprintf("%s: %v", result.URL, result.Err))
	case batch.URLCancelled:
		p.line("url", statusWarn, result.URL+": cancelled")
	}
}

func (p *progressPrinter) OnRecord(url string, outcome poster.UploadOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.counts[url]
	switch {
	case outcome.Status == poster.UploadApplied:
		c.Applied++
		p.line(string(outcome.Record.Artwork), statusOK, fmt.Sprintf("%s -> %s (%s)",
			outcome.Record.Label(), outcome.Match.Library, outcome.Match.Status))
	case outcome.Status == poster.UploadFailed:
		c.Failed++
		p.line(string(outcome.Record.Artwork), statusError, fmt.Sprintf("%s: %s", outcome.Record.Label(), outcome.Reason()))
	case outcome.Match.Status == poster.MatchNotFound:
		c.NotFound++
		p.line(string(outcome.Record.Artwork), statusWarn, outcome.Record.Label()+": not found in library")
	default:
		c.Skipped++
	}
	p.counts[url] = c
}

func (p *progressPrinter) line(label string, kind statusKind, message string) {
	if p.interactive {
		message = fmt.Sprintf("[%d/%d] %s", p.finished, p.total, message)
	}
	fmt.Fprintln(p.out, renderStatusLine(label, kind, message, p.interactive))
}
