package scrape

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"posterhelper/internal/config"
)

var errSessionClosed = errors.New("browser session closed")

// Browser renders pages for a Fetcher.
type Browser interface {
	// Navigate loads url presenting identity and returns the HTTP status of
	// the main document.
	Navigate(ctx context.Context, url string, identity Identity) (int, error)
	// Content returns the current location and the rendered DOM.
	Content(ctx context.Context) (string, []byte, error)
}

// SessionOptions configures the browser a Session launches.
type SessionOptions struct {
	ExecPath string
	Headless bool
	Timeout  time.Duration
}

// SessionOptionsFromConfig converts the [scraper] section into SessionOptions.
func SessionOptionsFromConfig(s config.Scraper) SessionOptions {
	return SessionOptions{
		ExecPath: strings.TrimSpace(s.BrowserPath),
		Headless: s.Headless,
		Timeout:  s.Timeout(),
	}
}

// Session is a Chrome instance owned by one worker for one URL. Every session
// runs its own browser process with a fresh profile, so concurrently scraped
// sites never share cookies or storage. The process starts on the first
// navigation and is torn down by Close.
type Session struct {
	opts SessionOptions

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	closed      bool
}

// NewSession returns a session that has not started its browser yet.
func NewSession(opts SessionOptions) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Session{opts: opts}
}

// Navigate implements Browser.
func (s *Session) Navigate(ctx context.Context, url string, identity Identity) (int, error) {
	runCtx, cancel, err := s.run(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	resp, err := chromedp.RunResponse(runCtx,
		emulation.SetUserAgentOverride(identity.UserAgent).WithAcceptLanguage("en-US,en"),
		chromedp.EmulateViewport(int64(identity.Width), int64(identity.Height)),
		network.SetExtraHTTPHeaders(network.Headers{
			"Viewport-Width":        identity.viewportWidth(),
			"Sec-CH-Viewport-Width": identity.viewportWidth(),
		}),
		chromedp.Navigate(url),
	)
	if err != nil {
		return 0, err
	}
	if resp == nil {
		return 0, nil
	}
	return int(resp.Status), nil
}

// Content implements Browser.
func (s *Session) Content(ctx context.Context) (string, []byte, error) {
	runCtx, cancel, err := s.run(ctx)
	if err != nil {
		return "", nil, err
	}
	defer cancel()

	var location, html string
	if err := chromedp.Run(runCtx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", nil, err
	}
	return location, []byte(html), nil
}

// Close stops the browser process and removes its profile. It is safe to call
// more than once.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.tabCtx, s.tabCancel, s.allocCancel = nil, nil, nil
	return nil
}

// run returns a context for one browser action, bounded by the page timeout
// and cancelled together with ctx.
func (s *Session) run(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	tab, err := s.tab()
	if err != nil {
		return nil, nil, err
	}
	runCtx, cancel := context.WithTimeout(tab, s.opts.Timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}, nil
}

func (s *Session) tab() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errSessionClosed
	}
	if s.tabCtx != nil {
		return s.tabCtx, nil
	}

	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	if !s.opts.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if s.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(s.opts.ExecPath))
	}
	// Chrome refuses to start its sandbox as root.
	if os.Geteuid() == 0 {
		opts = append(opts, chromedp.NoSandbox)
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser and ties its lifetime to tabCtx, so it
	// must not carry a deadline.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	s.tabCtx, s.tabCancel, s.allocCancel = tabCtx, tabCancel, allocCancel
	return tabCtx, nil
}
