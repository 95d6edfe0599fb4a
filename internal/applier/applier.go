// Package applier downloads matched artwork and installs it on the Plex item,
// tagging the item with this tool's provenance labels.
package applier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"posterhelper/internal/config"
	"posterhelper/internal/logging"
	"posterhelper/internal/poster"
)

const (
	defaultDownloadTimeout = 30 * time.Second
	maxImageBytes          = 50 << 20
	sniffLen               = 512
	downloadUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

var (
	// ErrNoMatch is the outcome error for records without a library item.
	ErrNoMatch = errors.New("record has no library match")
	// ErrArtworkDisabled is the outcome error for records whose artwork type
	// is filtered out.
	ErrArtworkDisabled = errors.New("artwork type disabled by upload filters")
	errNotImage        = errors.New("response is not an image")
)

// Server is the subset of the Plex client the applier writes through.
type Server interface {
	UploadArtwork(ctx context.Context, item poster.LibraryItem, artwork poster.ArtworkType, image io.Reader) error
	AddLabels(ctx context.Context, item poster.LibraryItem, labels ...string) error
	Refresh(ctx context.Context, item poster.LibraryItem) (poster.LibraryItem, error)
}

// Options configures an Applier.
type Options struct {
	Filters    poster.Filters
	TempDir    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// OptionsFromConfig builds applier options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Filters:    cfg.Filters(),
		TempDir:    cfg.Upload.TempDir,
		HTTPClient: &http.Client{Timeout: cfg.Scraper.Timeout()},
		Logger:     logger,
	}
}

// Applier installs artwork for matched records. It is safe for concurrent
// use; label edits to one item are serialized.
type Applier struct {
	server     Server
	filters    poster.Filters
	tempDir    string
	client     *http.Client
	logger     *slog.Logger
	labelLocks keyedMutex
}

// New builds an Applier writing through server.
func New(server Server, opts Options) *Applier {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultDownloadTimeout}
	}
	return &Applier{
		server:  server,
		filters: opts.Filters,
		tempDir: strings.TrimSpace(opts.TempDir),
		client:  client,
		logger:  logging.NewComponentLogger(opts.Logger, "applier"),
	}
}

// Apply downloads rec's image and uploads it into the matched item's slot.
// Posters and title cards use the poster slot, backdrops the art slot. On
// success the umbrella and source labels are added to the item's labels.
// Failures are reported in the outcome and never retried.
func (a *Applier) Apply(ctx context.Context, rec poster.Record, match poster.MatchResult) poster.UploadOutcome {
	outcome := poster.UploadOutcome{Record: rec, Match: match}
	if !match.Found() {
		outcome.Status = poster.UploadFailed
		outcome.Err = ErrNoMatch
		return outcome
	}
	artwork := rec.Artwork
	if artwork == "" {
		artwork = poster.ArtworkPoster
	}
	if !a.filters.Allows(artwork) {
		outcome.Status = poster.UploadSkipped
		outcome.Err = ErrArtworkDisabled
		return outcome
	}

	item := *match.Item
	logger := a.logger.With(
		logging.String(logging.FieldTitle, rec.Label()),
		logging.String("rating_key", item.RatingKey),
	)

	if err := a.install(ctx, item, artwork, rec.ImageURL); err != nil {
		err.Title = rec.Label()
		return failed(outcome, err)
	}

	missing, err := a.label(ctx, item, rec.Source, logger)
	if err != nil {
		return failed(outcome, &poster.UploadError{Title: rec.Label(), Stage: poster.StageLabel, Err: err})
	}

	logger.Debug("artwork applied",
		logging.String("artwork", string(artwork)),
		logging.Int("labels_added", len(missing)),
	)
	outcome.Status = poster.UploadApplied
	outcome.LabelsAdded = missing
	return outcome
}

// install downloads imageURL into a temp file and uploads it from there. The
// file is removed once the upload has returned.
func (a *Applier) install(ctx context.Context, item poster.LibraryItem, artwork poster.ArtworkType, imageURL string) *poster.UploadError {
	path, err := a.download(ctx, imageURL)
	if err != nil {
		return &poster.UploadError{Stage: poster.StageDownload, Err: err}
	}
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		return &poster.UploadError{Stage: poster.StageDownload, Err: fmt.Errorf("open temp file: %w", err)}
	}
	defer f.Close()
	if err := a.server.UploadArtwork(ctx, item, artwork, f); err != nil {
		return &poster.UploadError{Stage: poster.StageUpload, Err: err}
	}
	return nil
}

// label adds the umbrella and source labels item is missing. Edits to the same
// rating key run one at a time, so each starts from a refresh that includes
// the previous edit.
func (a *Applier) label(ctx context.Context, item poster.LibraryItem, source poster.Source, logger *slog.Logger) ([]string, error) {
	unlock := a.labelLocks.lock(item.RatingKey)
	defer unlock()

	if refreshed, err := a.server.Refresh(ctx, item); err == nil {
		item = refreshed
	} else {
		logger.Debug("label refresh failed; using cached labels", logging.Error(err))
	}
	missing := poster.MissingLabels(item, poster.UmbrellaLabel, poster.SourceLabel(source))
	if len(missing) == 0 {
		return nil, nil
	}
	if err := a.server.AddLabels(ctx, item, missing...); err != nil {
		return nil, err
	}
	return missing, nil
}

// download fetches imageURL into a uniquely named file under the temp dir and
// returns its path. Responses that do not sniff as an image are rejected
// before anything is written.
func (a *Applier) download(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", downloadUserAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/png,image/jpeg,*/*;q=0.8")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", imageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s returned %d", imageURL, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxImageBytes+1)
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("download %s: %w", imageURL, err)
	}
	head = head[:n]
	if n == 0 {
		return "", errNotImage
	}
	if ct := http.DetectContentType(head); !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("%w (%s)", errNotImage, ct)
	}

	tmp, err := os.CreateTemp(a.tempDir, "poster-"+uuid.NewString()+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	written, err := io.Copy(tmp, io.MultiReader(bytes.NewReader(head), body))
	closeErr := tmp.Close()
	switch {
	case err != nil:
		err = fmt.Errorf("write temp file: %w", err)
	case closeErr != nil:
		err = fmt.Errorf("close temp file: %w", closeErr)
	case written > maxImageBytes:
		err = fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func failed(outcome poster.UploadOutcome, err error) poster.UploadOutcome {
	outcome.Status = poster.UploadFailed
	outcome.Err = err
	return outcome
}

// keyedMutex hands out one lock per key and drops it when the last holder
// releases it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
