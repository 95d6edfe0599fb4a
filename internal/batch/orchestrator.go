package batch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"posterhelper/internal/config"
	"posterhelper/internal/logging"
	"posterhelper/internal/poster"
	"posterhelper/internal/scrape"
)

// Matcher resolves records to library items.
type Matcher interface {
	Match(ctx context.Context, rec poster.Record) (poster.MatchResult, error)
}

// Applier installs artwork for a matched record.
type Applier interface {
	Apply(ctx context.Context, rec poster.Record, match poster.MatchResult) poster.UploadOutcome
}

// LoaderFactory opens a fresh page loader for one URL. The returned closer
// releases the loader's session.
type LoaderFactory func() (scrape.PageLoader, io.Closer)

// FetcherFactory returns a LoaderFactory building a paced Fetcher over a new
// browser Session for every URL. Closing the Session stops its browser.
func FetcherFactory(cfg *config.Config, logger *slog.Logger) LoaderFactory {
	pacing := scrape.PacingFromConfig(cfg.Scraper)
	sessionOpts := scrape.SessionOptionsFromConfig(cfg.Scraper)
	return func() (scrape.PageLoader, io.Closer) {
		session := scrape.NewSession(sessionOpts)
		return scrape.NewFetcher(session, pacing, scrape.WithLogger(logger)), session
	}
}

const defaultRetryDelay = 2 * time.Second

// Options configures an Orchestrator.
type Options struct {
	Workers   int
	Filters   poster.Filters
	Router    *scrape.Router
	NewLoader LoaderFactory
	Matcher   Matcher
	Applier   Applier
	Observer  Observer
	Logger    *slog.Logger

	// Retries is how many extra attempts a url or record gets after a fetch
	// or upload error. RetryDelay grows linearly with each attempt.
	Retries    int
	RetryDelay time.Duration
}

// Orchestrator runs URL batches.
type Orchestrator struct {
	workers   int
	filters   poster.Filters
	router    *scrape.Router
	newLoader LoaderFactory
	matcher   Matcher
	applier   Applier
	observer  Observer
	logger    *slog.Logger

	retries    int
	retryDelay time.Duration
}

// New builds an Orchestrator. Router defaults to the ThePosterDB and MediUX
// extractors; Workers defaults to 1.
func New(opts Options) (*Orchestrator, error) {
	if opts.Matcher == nil || opts.Applier == nil {
		return nil, errors.New("batch: matcher and applier are required")
	}
	if opts.NewLoader == nil {
		return nil, errors.New("batch: loader factory is required")
	}
	router := opts.Router
	if router == nil {
		router = scrape.DefaultRouter()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &Orchestrator{
		workers:   max(opts.Workers, 1),
		filters:   opts.Filters,
		router:    router,
		newLoader: opts.NewLoader,
		matcher:   opts.Matcher,
		applier:   opts.Applier,
		observer:  observer,
		logger:    logging.NewComponentLogger(opts.Logger, "batch"),

		retries:    max(opts.Retries, 0),
		retryDelay: retryDelay,
	}, nil
}

// Job is a running batch.
type Job struct {
	id        string
	cancelled atomic.Bool
	done      chan struct{}

	mu       sync.Mutex
	state    JobState
	results  []URLResult
	stats    Stats
	started  time.Time
	finished time.Time
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Cancel stops the job from starting further URLs. URLs already processing
// run to completion.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
}

// Done is closed once every URL reached a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes and returns its summary.
func (j *Job) Wait() Summary {
	<-j.done
	return j.Snapshot()
}

// Snapshot returns the current state of the job.
func (j *Job) Snapshot() Summary {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]URLResult, len(j.results))
	for i, r := range j.results {
		r.Outcomes = append([]poster.UploadOutcome(nil), r.Outcomes...)
		results[i] = r
	}
	return Summary{
		JobID:    j.id,
		State:    j.state,
		Results:  results,
		Stats:    j.stats.clone(),
		Started:  j.started,
		Finished: j.finished,
	}
}

// Run starts processing urls and returns immediately. Results keep the order
// of urls.
func (o *Orchestrator) Run(ctx context.Context, urls []string) *Job {
	job := &Job{
		id:      uuid.NewString(),
		done:    make(chan struct{}),
		state:   JobRunning,
		results: make([]URLResult, len(urls)),
		stats:   newStats(),
		started: time.Now(),
	}
	queue := make(chan int, len(urls))
	for i, u := range urls {
		job.results[i] = URLResult{URL: strings.TrimSpace(u), State: URLPending}
		job.stats.URLs[URLPending]++
		queue <- i
	}
	close(queue)

	o.logger.Info("batch started",
		logging.String("job_id", job.id),
		logging.Int("urls", len(urls)),
		logging.Int("workers", min(o.workers, len(urls))),
	)

	var wg sync.WaitGroup
	for w := 1; w <= min(o.workers, len(urls)); w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			o.work(ctx, job, worker, queue)
		}(w)
	}

	go func() {
		wg.Wait()
		o.finish(job)
	}()
	return job
}

func (o *Orchestrator) work(ctx context.Context, job *Job, worker int, queue <-chan int) {
	for idx := range queue {
		if job.cancelled.Load() || ctx.Err() != nil {
			o.transition(job, idx, func(r *URLResult) {
				r.State = URLCancelled
				r.Finished = time.Now()
			})
			continue
		}
		o.process(ctx, job, worker, idx)
	}
}

func (o *Orchestrator) finish(job *Job) {
	job.mu.Lock()
	job.finished = time.Now()
	job.state = JobCompleted
	if job.stats.URLs[URLCancelled] > 0 {
		job.state = JobCancelled
	}
	stats := job.stats.clone()
	state := job.state
	elapsed := job.finished.Sub(job.started)
	job.mu.Unlock()

	o.logger.Info("batch finished",
		logging.String("job_id", job.id),
		logging.String("state", string(state)),
		logging.Int("done", stats.URLs[URLDone]),
		logging.Int("errors", stats.URLs[URLError]),
		logging.Int("cancelled", stats.URLs[URLCancelled]),
		logging.Int("applied", stats.Totals.Applied),
		logging.Int("not_found", stats.Totals.NotFound),
		logging.Int("failed", stats.Totals.Failed),
		logging.Duration("duration", elapsed),
	)
	close(job.done)
}

// transition applies update to the URL result under the job lock, keeps the
// per-state URL counts in step and notifies the observer.
func (o *Orchestrator) transition(job *Job, idx int, update func(*URLResult)) {
	job.mu.Lock()
	r := &job.results[idx]
	before := r.State
	update(r)
	if r.State != before {
		job.stats.URLs[before]--
		job.stats.URLs[r.State]++
	}
	snapshot := *r
	snapshot.Outcomes = nil
	job.mu.Unlock()

	if snapshot.State != before {
		o.observer.OnURLState(snapshot)
	}
}

func (o *Orchestrator) record(job *Job, idx int, outcome poster.UploadOutcome) {
	job.mu.Lock()
	r := &job.results[idx]
	r.Outcomes = append(r.Outcomes, outcome)
	job.stats.add(outcome)
	url := r.URL
	job.mu.Unlock()

	o.observer.OnRecord(url, outcome)
}
