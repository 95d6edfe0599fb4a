package batch

import (
	"errors"
	"time"

	"posterhelper/internal/poster"
)

// ErrNotFound is the outcome error for records with no library match.
var ErrNotFound = errors.New("no matching library item")

// URLState is the lifecycle state of one URL in a job.
type URLState string

const (
	URLPending    URLState = "pending"
	URLProcessing URLState = "processing"
	URLDone       URLState = "done"
	URLError      URLState = "error"
	URLCancelled  URLState = "cancelled"
)

// Terminal reports whether no further transition can happen.
func (s URLState) Terminal() bool {
	switch s {
	case URLDone, URLError, URLCancelled:
		return true
	default:
		return false
	}
}

// JobState is the lifecycle state of a job.
type JobState string

const (
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobCancelled JobState = "cancelled"
)

// URLResult is the progress of one URL.
type URLResult struct {
	URL      string
	Source   poster.Source
	State    URLState
	Records  int
	Outcomes []poster.UploadOutcome
	Err      error
	Worker   int
	Started  time.Time
	Finished time.Time
}

// Counts tallies the outcomes recorded for this URL.
func (r URLResult) Counts() Counts {
	var c Counts
	for _, outcome := range r.Outcomes {
		c.add(outcome)
	}
	return c
}

// Counts tallies record outcomes.
type Counts struct {
	Applied  int
	Skipped  int
	Failed   int
	NotFound int
}

// Total returns the number of outcomes counted.
func (c Counts) Total() int {
	return c.Applied + c.Skipped + c.Failed + c.NotFound
}

func (c *Counts) add(outcome poster.UploadOutcome) {
	switch {
	case outcome.Status == poster.UploadApplied:
		c.Applied++
	case outcome.Status == poster.UploadFailed:
		c.Failed++
	case outcome.Match.Status == poster.MatchNotFound:
		c.NotFound++
	default:
		c.Skipped++
	}
}

// Stats aggregates outcomes across a job.
type Stats struct {
	Totals    Counts
	BySource  map[poster.Source]Counts
	ByLibrary map[string]Counts
	URLs      map[URLState]int
}

func newStats() Stats {
	return Stats{
		BySource:  make(map[poster.Source]Counts),
		ByLibrary: make(map[string]Counts),
		URLs:      make(map[URLState]int),
	}
}

func (s *Stats) add(outcome poster.UploadOutcome) {
	s.Totals.add(outcome)

	bySource := s.BySource[outcome.Record.Source]
	bySource.add(outcome)
	s.BySource[outcome.Record.Source] = bySource

	if library := outcome.Match.Library; library != "" {
		byLibrary := s.ByLibrary[library]
		byLibrary.add(outcome)
		s.ByLibrary[library] = byLibrary
	}
}

func (s Stats) clone() Stats {
	out := newStats()
	out.Totals = s.Totals
	for k, v := range s.BySource {
		out.BySource[k] = v
	}
	for k, v := range s.ByLibrary {
		out.ByLibrary[k] = v
	}
	for k, v := range s.URLs {
		out.URLs[k] = v
	}
	return out
}

// Summary is a point-in-time view of a job.
type Summary struct {
	JobID    string
	State    JobState
	Results  []URLResult
	Stats    Stats
	Started  time.Time
	Finished time.Time
}

// Duration returns how long the job ran, or has been running.
func (s Summary) Duration() time.Duration {
	if s.Finished.IsZero() {
		return time.Since(s.Started)
	}
	return s.Finished.Sub(s.Started)
}

// Observer receives progress events. Methods are called from worker
// goroutines and must be safe for concurrent use.
type Observer interface {
	OnURLState(result URLResult)
	OnRecord(url string, outcome poster.UploadOutcome)
}

type nopObserver struct{}

func (nopObserver) OnURLState(URLResult) {}
func (nopObserver) OnRecord(string, poster.UploadOutcome) {}
