package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"posterhelper/internal/config"
	"posterhelper/internal/logging"
	"posterhelper/internal/poster"
)

// BatchEvery is the number of requests between batch backoffs.
const BatchEvery = 10

// Pacing holds the delays applied around page loads.
type Pacing struct {
	MinDelay     time.Duration
	MaxDelay     time.Duration
	InitialDelay time.Duration
	BatchDelay   time.Duration
	PageWaitMin  time.Duration
	PageWaitMax  time.Duration
}

// PacingFromConfig converts the [scraper] section into a Pacing.
func PacingFromConfig(s config.Scraper) Pacing {
	return Pacing{
		MinDelay:     config.Seconds(s.MinDelay),
		MaxDelay:     config.Seconds(s.MaxDelay),
		InitialDelay: config.Seconds(s.InitialDelay),
		BatchDelay:   config.Seconds(s.BatchDelay),
		PageWaitMin:  config.Seconds(s.PageWaitMin),
		PageWaitMax:  config.Seconds(s.PageWaitMax),
	}
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// FetcherOption customises a Fetcher.
type FetcherOption func(*Fetcher)

// WithRandom replaces the uniform [0,1) source used for delays and identities.
func WithRandom(random func() float64) FetcherOption {
	return func(f *Fetcher) { f.random = random }
}

// WithSleep replaces the sleep implementation.
func WithSleep(sleep SleepFunc) FetcherOption {
	return func(f *Fetcher) { f.sleep = sleep }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = logger }
}

// Fetcher is a paced PageLoader driving one Browser. It is owned by a single
// worker and is not safe for concurrent use.
type Fetcher struct {
	browser  Browser
	pacing   Pacing
	random   func() float64
	sleep    SleepFunc
	logger   *slog.Logger
	requests int
}

// NewFetcher builds a Fetcher over browser.
func NewFetcher(browser Browser, pacing Pacing, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		browser: browser,
		pacing:  pacing,
		random:  rand.Float64,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.NewComponentLogger(f.logger, "fetcher")
	return f
}

// Load paces one navigation, waits for the page to settle and returns the
// rendered document.
func (f *Fetcher) Load(ctx context.Context, url string) (*Page, error) {
	if f.requests == 0 && f.pacing.InitialDelay > 0 {
		if err := f.sleep(ctx, f.pacing.InitialDelay); err != nil {
			return nil, err
		}
	}
	if err := f.sleep(ctx, f.uniform(f.pacing.MinDelay, f.pacing.MaxDelay)); err != nil {
		return nil, err
	}

	f.requests++
	status, err := f.navigate(ctx, url)

	if f.requests%BatchEvery == 0 && f.pacing.BatchDelay > 0 {
		f.logger.Debug("batch backoff", logging.Int("requests", f.requests), logging.Duration("delay", f.pacing.BatchDelay))
		if sleepErr := f.sleep(ctx, f.pacing.BatchDelay); sleepErr != nil && err == nil {
			return nil, sleepErr
		}
	}
	if err != nil {
		return nil, err
	}

	if f.pacing.PageWaitMin > 0 || f.pacing.PageWaitMax > 0 {
		if err := f.sleep(ctx, f.uniform(f.pacing.PageWaitMin, f.pacing.PageWaitMax)); err != nil {
			return nil, err
		}
	}

	location, body, err := f.browser.Content(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &poster.FetchError{URL: url, StatusCode: status, Err: fmt.Errorf("read document: %w", err)}
	}
	if location == "" {
		location = url
	}
	return &Page{URL: location, StatusCode: status, Body: body}, nil
}

// navigate loads url under a freshly drawn identity. Status 0 means the
// browser reported no HTTP response for the document.
func (f *Fetcher) navigate(ctx context.Context, url string) (int, error) {
	identity := pickIdentity(f.random(), f.random())
	start := time.Now()
	status, err := f.browser.Navigate(ctx, url, identity)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &poster.FetchError{URL: url, Err: err}
	}

	f.logger.Debug("page loaded",
		logging.String(logging.FieldURL, url),
		logging.Int("status", status),
		logging.String("user_agent", identity.UserAgent),
		logging.String("viewport", fmt.Sprintf("%dx%d", identity.Width, identity.Height)),
		logging.Duration("duration", time.Since(start)),
	)

	if status != 0 && (status < 200 || status > 299) {
		return status, &poster.FetchError{URL: url, StatusCode: status}
	}
	return status, nil
}

// uniform draws a duration in [lo, hi]; the bounds collapse when equal.
func (f *Fetcher) uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(f.random()*float64(hi-lo))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
