package plex

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"posterhelper/internal/config"
	"posterhelper/internal/logging"
	"posterhelper/internal/poster"
)

// ErrServerUnavailable is returned while the circuit breaker is open.
var ErrServerUnavailable = errors.New("plex server unavailable")

// ErrLibraryNotFound is returned when a configured library does not exist.
var ErrLibraryNotFound = errors.New("plex library not found")

const maxResponseBytes = 64 << 20

// Options configures a Client.
type Options struct {
	BaseURL           string
	Token             string
	ClientIdentifier  string
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        HTTPDoer
	Logger            *slog.Logger
}

// Section is one Plex library.
type Section struct {
	Key   string
	Title string
	Type  string
}

// Client is a rate limited Plex Media Server client. It is safe for
// concurrent use.
type Client struct {
	baseURL  string
	token    string
	clientID string
	http     HTTPDoer
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]byte]
	logger   *slog.Logger

	mu       sync.Mutex
	sections []Section
}

// NewClient builds a Client. BaseURL and Token are required.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, &poster.ConfigurationError{Key: "plex.url", Reason: "must be set"}
	}
	if strings.TrimSpace(opts.Token) == "" {
		return nil, &poster.ConfigurationError{Key: "plex.token", Reason: "must be set"}
	}
	doer := opts.HTTPClient
	if doer == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		doer = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	logger := logging.NewComponentLogger(opts.Logger, "plex")

	c := &Client{
		baseURL:  baseURL,
		token:    strings.TrimSpace(opts.Token),
		clientID: opts.ClientIdentifier,
		http:     doer,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "plex-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return !serverFault(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.WarnWithContext(logger, "plex circuit breaker state changed", "circuit_breaker",
				logging.String("from", from.String()),
				logging.String("to", to.String()),
				logging.String(logging.FieldImpact, "plex requests are paused while the breaker is open"),
				logging.String(logging.FieldErrorHint, "check that the Plex server is reachable"),
			)
		},
	})
	return c, nil
}

// NewFromConfig builds a Client from the [plex] section. token overrides the
// configured token when non-empty.
func NewFromConfig(cfg *config.Config, token string, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if strings.TrimSpace(token) == "" {
		token = cfg.Plex.Token
	}
	return NewClient(Options{
		BaseURL:           cfg.Plex.URL,
		Token:             token,
		Timeout:           time.Duration(cfg.Plex.RequestTimeout) * time.Second,
		RequestsPerSecond: cfg.Plex.RequestsPerSecond,
		Logger:            logger,
	})
}

// Sections returns the server's libraries. The list is fetched once.
func (c *Client) Sections(ctx context.Context) ([]Section, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sections != nil {
		return c.sections, nil
	}

	var container mediaContainer
	if err := c.getXML(ctx, "/library/sections", nil, &container); err != nil {
		return nil, fmt.Errorf("list plex sections: %w", err)
	}
	sections := make([]Section, 0, len(container.Directories))
	for _, dir := range container.Directories {
		if dir.Key == "" || dir.Title == "" {
			continue
		}
		sections = append(sections, Section{Key: dir.Key, Title: dir.Title, Type: dir.Type})
	}
	c.sections = sections
	return sections, nil
}

// Section resolves a library by name, case-insensitively.
func (c *Client) Section(ctx context.Context, name string) (Section, error) {
	sections, err := c.Sections(ctx)
	if err != nil {
		return Section{}, err
	}
	for _, s := range sections {
		if strings.EqualFold(s.Title, strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return Section{}, fmt.Errorf("%w: %q", ErrLibraryNotFound, name)
}

// Items lists every item of the given kind in the named library.
func (c *Client) Items(ctx context.Context, library string, kind poster.MediaKind) ([]poster.LibraryItem, error) {
	section, err := c.Section(ctx, library)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("type", strconv.Itoa(typeNumber(kind)))
	query.Set("includeCollections", "0")

	var container mediaContainer
	if err := c.getXML(ctx, "/library/sections/"+section.Key+"/all", query, &container); err != nil {
		return nil, fmt.Errorf("list %s items in %q: %w", kind, library, err)
	}
	return container.items(section), nil
}

// Children lists the seasons of a show, the episodes of a season, or the
// members of a collection.
func (c *Client) Children(ctx context.Context, parent poster.LibraryItem) ([]poster.LibraryItem, error) {
	path := "/library/metadata/" + parent.RatingKey + "/children"
	if parent.Kind == poster.KindCollection {
		path = "/library/collections/" + parent.RatingKey + "/children"
	}
	var container mediaContainer
	if err := c.getXML(ctx, path, nil, &container); err != nil {
		return nil, fmt.Errorf("list children of %q: %w", parent.Title, err)
	}
	items := container.items(Section{Key: parent.SectionID, Title: parent.Library})
	for i := range items {
		if items[i].ParentTitle == "" {
			items[i].ParentTitle = parent.Title
		}
	}
	return items, nil
}

// Refresh reloads a single item, including its current labels.
func (c *Client) Refresh(ctx context.Context, item poster.LibraryItem) (poster.LibraryItem, error) {
	var container mediaContainer
	if err := c.getXML(ctx, "/library/metadata/"+item.RatingKey, nil, &container); err != nil {
		return item, fmt.Errorf("load %q: %w", item.Title, err)
	}
	items := container.items(Section{Key: item.SectionID, Title: item.Library})
	if len(items) == 0 {
		return item, fmt.Errorf("load %q: empty response", item.Title)
	}
	return items[0], nil
}

// UploadArtwork uploads the image read from image into the artwork slot of
// item. Posters and title cards go to the poster slot, backdrops to the art
// slot.
func (c *Client) UploadArtwork(ctx context.Context, item poster.LibraryItem, artwork poster.ArtworkType, image io.Reader) error {
	data, err := io.ReadAll(image)
	if err != nil {
		return fmt.Errorf("read %s for %q: %w", artwork, item.Title, err)
	}
	if len(data) == 0 {
		return errors.New("empty image")
	}
	path := "/library/metadata/" + item.RatingKey + "/" + slotCollection(artwork)
	if _, err := c.do(ctx, http.MethodPost, path, nil, data, http.DetectContentType(data)); err != nil {
		return fmt.Errorf("upload %s for %q: %w", artwork, item.Title, err)
	}
	return nil
}

// AddLabels adds labels to item, keeping its existing labels.
func (c *Client) AddLabels(ctx context.Context, item poster.LibraryItem, labels ...string) error {
	missing := poster.MissingLabels(item, labels...)
	if len(missing) == 0 {
		return nil
	}
	query := c.editQuery(item)
	all := append(append([]string(nil), item.Labels...), missing...)
	for i, label := range all {
		query.Set(fmt.Sprintf("label[%d].tag.tag", i), label)
	}
	query.Set("label.locked", "1")
	if _, err := c.do(ctx, http.MethodPut, "/library/sections/"+item.SectionID+"/all", query, nil, ""); err != nil {
		return fmt.Errorf("add labels to %q: %w", item.Title, err)
	}
	return nil
}

// RemoveLabels removes labels from item. Labels the item does not carry are
// ignored.
func (c *Client) RemoveLabels(ctx context.Context, item poster.LibraryItem, labels ...string) error {
	present := make([]string, 0, len(labels))
	for _, label := range labels {
		for _, existing := range item.Labels {
			if strings.EqualFold(existing, label) {
				present = append(present, existing)
				break
			}
		}
	}
	if len(present) == 0 {
		return nil
	}
	query := c.editQuery(item)
	query.Set("label[].tag.tag-", strings.Join(present, ","))
	query.Set("label.locked", "1")
	if _, err := c.do(ctx, http.MethodPut, "/library/sections/"+item.SectionID+"/all", query, nil, ""); err != nil {
		return fmt.Errorf("remove labels from %q: %w", item.Title, err)
	}
	return nil
}

// RestoreDefault selects the first non-uploaded artwork Plex offers for the
// slot. When no agent artwork exists the slot is unlocked so the next metadata
// refresh repopulates it. It reports whether artwork was selected.
func (c *Client) RestoreDefault(ctx context.Context, item poster.LibraryItem, artwork poster.ArtworkType) (bool, error) {
	collection := slotCollection(artwork)
	var container mediaContainer
	if err := c.getXML(ctx, "/library/metadata/"+item.RatingKey+"/"+collection, nil, &container); err != nil {
		return false, fmt.Errorf("list %s for %q: %w", collection, item.Title, err)
	}
	for _, photo := range container.Photos {
		key := strings.TrimSpace(photo.RatingKey)
		if key == "" {
			key = strings.TrimSpace(photo.Key)
		}
		if key == "" || strings.HasPrefix(key, "upload://") {
			continue
		}
		query := url.Values{}
		query.Set("url", key)
		if _, err := c.do(ctx, http.MethodPut, "/library/metadata/"+item.RatingKey+"/"+slotSingular(artwork), query, nil, ""); err != nil {
			return false, fmt.Errorf("select default %s for %q: %w", slotSingular(artwork), item.Title, err)
		}
		return true, nil
	}

	query := c.editQuery(item)
	query.Set(lockField(artwork), "0")
	if _, err := c.do(ctx, http.MethodPut, "/library/sections/"+item.SectionID+"/all", query, nil, ""); err != nil {
		return false, fmt.Errorf("unlock %s for %q: %w", slotSingular(artwork), item.Title, err)
	}
	return false, nil
}

func (c *Client) editQuery(item poster.LibraryItem) url.Values {
	query := url.Values{}
	query.Set("type", strconv.Itoa(typeNumber(item.Kind)))
	query.Set("id", item.RatingKey)
	return query
}

func (c *Client) getXML(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// do paces, guards and executes one request, returning the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, contentType string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, query, body, contentType)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	return data, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body []byte, contentType string) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	applyStandardHeaders(req, c.clientID)
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/xml")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plex request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("plex request",
		logging.String("method", method),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

func typeNumber(kind poster.MediaKind) int {
	switch kind {
	case poster.KindShow:
		return 2
	case poster.KindSeason:
		return 3
	case poster.KindEpisode:
		return 4
	case poster.KindCollection:
		return 18
	default:
		return 1
	}
}

func slotCollection(artwork poster.ArtworkType) string {
	if artwork == poster.ArtworkBackdrop {
		return "arts"
	}
	return "posters"
}

func slotSingular(artwork poster.ArtworkType) string {
	if artwork == poster.ArtworkBackdrop {
		return "art"
	}
	return "poster"
}

func lockField(artwork poster.ArtworkType) string {
	if artwork == poster.ArtworkBackdrop {
		return "art.locked"
	}
	return "thumb.locked"
}
