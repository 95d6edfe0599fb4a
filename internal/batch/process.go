package batch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"posterhelper/internal/logging"
	"posterhelper/internal/poster"
	"posterhelper/internal/scrape"
)

// process runs one URL end to end on the calling worker.
func (o *Orchestrator) process(ctx context.Context, job *Job, worker, idx int) {
	var url string
	o.transition(job, idx, func(r *URLResult) {
		url = r.URL
		r.State = URLProcessing
		r.Worker = worker
		r.Started = time.Now()
	})
	ctx = logging.WithURL(logging.WithWorker(ctx, worker), url)
	logger := logging.WithContext(ctx, o.logger)

	fail := func(err error) {
		state := URLError
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			state = URLCancelled
		}
		o.transition(job, idx, func(r *URLResult) {
			r.State = state
			r.Err = err
			r.Finished = time.Now()
		})
		if state == URLError {
			logging.WarnWithContext(logger, "url failed", "url_failed",
				logging.Error(err),
				logging.ErrorKind(err),
				logging.String(logging.FieldErrorHint, hintFor(err)),
				logging.String(logging.FieldImpact, "no artwork applied from this url"),
			)
		}
	}

	extractor, err := o.router.Route(url)
	if err != nil {
		fail(err)
		return
	}
	source := extractor.Source()
	o.transition(job, idx, func(r *URLResult) { r.Source = source })

	loader, session := o.newLoader()
	defer func() {
		if session != nil {
			_ = session.Close()
		}
	}()

	logger.Info("extracting records", logging.String(logging.FieldSource, source.DisplayName()))
	records, err := o.extract(ctx, logger, extractor, loader, url)
	if err != nil {
		fail(err)
		return
	}
	records = poster.FilterRecords(records, o.filters.Intersect(o.router.Filters(source)))
	o.transition(job, idx, func(r *URLResult) { r.Records = len(records) })
	logger.Info("records extracted", logging.Int("records", len(records)))

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			fail(err)
			return
		}
		outcome := o.handleRecord(ctx, logger, rec)
		o.record(job, idx, outcome)
		o.logOutcome(logger, outcome)
	}

	o.transition(job, idx, func(r *URLResult) {
		r.State = URLDone
		r.Finished = time.Now()
	})
}

// extract runs the extractor, retrying fetch failures up to the configured
// number of extra attempts.
func (o *Orchestrator) extract(ctx context.Context, logger *slog.Logger, extractor scrape.Extractor, loader scrape.PageLoader, url string) ([]poster.Record, error) {
	for attempt := 1; ; attempt++ {
		records, err := extractor.Extract(ctx, loader, url)
		if err == nil || attempt > o.retries || !poster.Retryable(err) || ctx.Err() != nil {
			return records, err
		}
		logging.WarnWithContext(logger, "extraction failed; retrying", "url_retry",
			logging.Int("attempt", attempt),
			logging.Error(err),
			logging.ErrorKind(err),
		)
		if err := o.backoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

// handleRecord matches and applies one record, retrying retryable upload
// failures. It never returns an error; failures are captured in the outcome.
func (o *Orchestrator) handleRecord(ctx context.Context, logger *slog.Logger, rec poster.Record) poster.UploadOutcome {
	match, err := o.matcher.Match(ctx, rec)
	if err != nil {
		return poster.UploadOutcome{Record: rec, Match: match, Status: poster.UploadFailed, Err: err}
	}
	if !match.Found() {
		match.Status = poster.MatchNotFound
		return poster.UploadOutcome{Record: rec, Match: match, Status: poster.UploadSkipped, Err: ErrNotFound}
	}
	outcome := o.applier.Apply(ctx, rec, match)
	for attempt := 1; attempt <= o.retries; attempt++ {
		if outcome.Status != poster.UploadFailed || !poster.Retryable(outcome.Err) {
			break
		}
		logger.Debug("record failed; retrying",
			logging.String(logging.FieldTitle, rec.Label()),
			logging.Int("attempt", attempt),
			logging.Error(outcome.Err),
		)
		if o.backoff(ctx, attempt) != nil {
			break
		}
		outcome = o.applier.Apply(ctx, rec, match)
	}
	return outcome
}

func (o *Orchestrator) backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt) * o.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (o *Orchestrator) logOutcome(logger *slog.Logger, outcome poster.UploadOutcome) {
	title := outcome.Record.Label()
	switch {
	case outcome.Status == poster.UploadApplied:
		logger.Info("artwork applied",
			logging.String(logging.FieldTitle, title),
			logging.String("match", string(outcome.Match.Status)),
			logging.String("library", outcome.Match.Library),
			logging.Float64("confidence", outcome.Match.Confidence),
		)
	case outcome.Match.Status == poster.MatchNotFound:
		attrs := []logging.Attr{logging.String(logging.FieldTitle, title)}
		if outcome.Match.MatchedTitle != "" {
			attrs = append(attrs,
				logging.String("closest", outcome.Match.MatchedTitle),
				logging.Float64("confidence", outcome.Match.Confidence),
			)
		}
		logger.Info("no library match", logging.Args(attrs...)...)
	case outcome.Status == poster.UploadFailed:
		logger.Info("record failed",
			logging.String(logging.FieldTitle, title),
			logging.Error(outcome.Err),
			logging.ErrorKind(outcome.Err),
		)
	default:
		logger.Debug("record skipped",
			logging.String(logging.FieldTitle, title),
			logging.String("reason", outcome.Reason()),
		)
	}
}

func hintFor(err error) string {
	switch poster.Kind(err) {
	case "fetch":
		return "the site may be rate limiting; retry later or raise scraper delays"
	case "parse":
		return "the page layout may have changed; check the url in a browser"
	case "unsupported":
		return "use a ThePosterDB or MediUX set, poster or user url"
	default:
		return "check debug.log for details"
	}
}
