package plex

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrLinkTimeout is returned when the PIN is not approved in time.
var ErrLinkTimeout = errors.New("plex link code was not approved before it expired")

const (
	defaultAuthBaseURL  = "https://plex.tv"
	defaultPollInterval = 2 * time.Second
	defaultLinkTimeout  = 5 * time.Minute
)

// AuthOption customises Authenticator construction.
type AuthOption func(*Authenticator)

// WithHTTPClient overrides the HTTP client used for plex.tv calls.
func WithHTTPClient(client HTTPDoer) AuthOption {
	return func(a *Authenticator) { a.http = client }
}

// WithBaseURL overrides the plex.tv base URL (used in tests).
func WithBaseURL(baseURL string) AuthOption {
	return func(a *Authenticator) { a.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithTokenStore injects a custom persistence layer.
func WithTokenStore(store TokenStore) AuthOption {
	return func(a *Authenticator) { a.store = store }
}

// WithPollInterval overrides how often a pending PIN is polled.
func WithPollInterval(interval time.Duration) AuthOption {
	return func(a *Authenticator) { a.pollInterval = interval }
}

// Authenticator runs the plex.tv PIN link flow and owns the stored token.
type Authenticator struct {
	baseURL      string
	http         HTTPDoer
	store        TokenStore
	pollInterval time.Duration

	mu    sync.RWMutex
	state tokenState
}

// Pin is a pending link code.
type Pin struct {
	ID        int64
	Code      string
	ExpiresAt time.Time
}

// PinStatus is the result of polling a Pin.
type PinStatus struct {
	Authorized bool
	AuthToken  string
	ExpiresAt  time.Time
}

type pinResponse struct {
	ID        int64   `json:"id"`
	Code      string  `json:"code"`
	AuthToken string  `json:"authToken"`
	ExpiresIn float64 `json:"expiresIn"`
	ExpiresAt string  `json:"expiresAt"`
}

func (p pinResponse) expirationTime() time.Time {
	if p.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, p.ExpiresAt); err == nil {
			return t
		}
	}
	if p.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	return time.Time{}
}

// NewAuthenticator loads the state stored at statePath, creating a client
// identifier on first use.
func NewAuthenticator(statePath string, opts ...AuthOption) (*Authenticator, error) {
	a := &Authenticator{
		baseURL:      defaultAuthBaseURL,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.http == nil {
		a.http = &http.Client{Timeout: 15 * time.Second}
	}
	if a.store == nil {
		a.store = NewFileTokenStore(statePath)
	}
	if a.pollInterval <= 0 {
		a.pollInterval = defaultPollInterval
	}

	state, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	if state.ClientIdentifier == "" {
		state.ClientIdentifier = strings.ReplaceAll(uuid.NewString(), "-", "")
		if err := a.store.Save(state); err != nil {
			return nil, err
		}
	}
	a.state = state
	return a, nil
}

// ClientIdentifier returns the stable identifier sent to Plex.
func (a *Authenticator) ClientIdentifier() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.ClientIdentifier
}

// Token returns the linked token, or "" when the flow has not completed.
func (a *Authenticator) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.AuthToken
}

// ServerURL returns the server URL discovered during linking, if any.
func (a *Authenticator) ServerURL() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.ServerURL
}

// LinkURL is the page where the user approves a PIN.
func (a *Authenticator) LinkURL(pin *Pin) string {
	if pin == nil {
		return "https://plex.tv/link"
	}
	return "https://plex.tv/link?code=" + url.QueryEscape(pin.Code)
}

// RequestPin starts the device linking flow.
func (a *Authenticator) RequestPin(ctx context.Context) (*Pin, error) {
	var resp pinResponse
	if err := a.doJSON(ctx, http.MethodPost, "/api/v2/pins", &resp); err != nil {
		return nil, err
	}
	if resp.ID == 0 || resp.Code == "" {
		return nil, errors.New("plex auth: pin response missing id or code")
	}
	return &Pin{ID: resp.ID, Code: resp.Code, ExpiresAt: resp.expirationTime()}, nil
}

// PollPin checks whether the user has approved the PIN.
func (a *Authenticator) PollPin(ctx context.Context, id int64) (*PinStatus, error) {
	var resp pinResponse
	if err := a.doJSON(ctx, http.MethodGet, "/api/v2/pins/"+strconv.FormatInt(id, 10), &resp); err != nil {
		return nil, err
	}
	status := &PinStatus{ExpiresAt: resp.expirationTime()}
	if token := strings.TrimSpace(resp.AuthToken); token != "" {
		status.Authorized = true
		status.AuthToken = token
	}
	return status, nil
}

// WaitForAuthorization polls pin until it is approved, timeout elapses, or ctx
// is cancelled. An approved token is stored before it is returned.
func (a *Authenticator) WaitForAuthorization(ctx context.Context, pin *Pin, timeout time.Duration) (string, error) {
	if pin == nil {
		return "", errors.New("pin is nil")
	}
	if timeout <= 0 {
		timeout = defaultLinkTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ErrLinkTimeout
			}
			return "", ctx.Err()
		case <-ticker.C:
			status, err := a.PollPin(ctx, pin.ID)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				return "", err
			}
			if status.Authorized {
				if err := a.SetToken(status.AuthToken); err != nil {
					return "", err
				}
				return status.AuthToken, nil
			}
		}
	}
}

// SetToken stores a token obtained from the link flow or entered manually.
func (a *Authenticator) SetToken(token string) error {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return errors.New("authorization token is empty")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	updated := a.state
	updated.AuthToken = trimmed
	updated.LinkedAt = time.Now().UTC()
	if err := a.store.Save(updated); err != nil {
		return err
	}
	a.state = updated
	return nil
}

// Unlink forgets the stored token and server URL.
func (a *Authenticator) Unlink() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	updated := tokenState{ClientIdentifier: a.state.ClientIdentifier}
	if err := a.store.Save(updated); err != nil {
		return err
	}
	a.state = updated
	return nil
}

type resourceList struct {
	Resources []resource `xml:"resource"`
}

type resource struct {
	Name        string       `xml:"name,attr"`
	AccessToken string       `xml:"accessToken,attr"`
	Provides    string       `xml:"provides,attr"`
	Owned       string       `xml:"owned,attr"`
	Connections []connection `xml:"connections>connection"`
}

type connection struct {
	URI      string `xml:"uri,attr"`
	Protocol string `xml:"protocol,attr"`
	Local    string `xml:"local,attr"`
	Relay    string `xml:"relay,attr"`
}

// DiscoverServer asks plex.tv for the servers the linked account can reach
// and stores the best connection URL of the first owned server.
func (a *Authenticator) DiscoverServer(ctx context.Context) (string, error) {
	token := a.Token()
	if token == "" {
		return "", errors.New("plex account not linked")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/v2/resources?includeHttps=1", nil)
	if err != nil {
		return "", fmt.Errorf("build plex resources request: %w", err)
	}
	applyStandardHeaders(req, a.ClientIdentifier())
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("X-Plex-Token", token)

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch plex resources: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("plex resources returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var list resourceList
	if err := xml.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", fmt.Errorf("decode plex resources: %w", err)
	}

	var fallback string
	for _, res := range list.Resources {
		if !strings.Contains(res.Provides, "server") {
			continue
		}
		uri := selectBestConnection(res.Connections)
		if uri == "" {
			continue
		}
		if parseBool(res.Owned) {
			return uri, a.saveServerURL(uri)
		}
		if fallback == "" {
			fallback = uri
		}
	}
	if fallback == "" {
		return "", errors.New("no plex server found for the linked account")
	}
	return fallback, a.saveServerURL(fallback)
}

func (a *Authenticator) saveServerURL(uri string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	updated := a.state
	updated.ServerURL = uri
	if err := a.store.Save(updated); err != nil {
		return err
	}
	a.state = updated
	return nil
}

// selectBestConnection prefers local, direct https connections over relays.
func selectBestConnection(connections []connection) string {
	bestScore := -1 << 31
	bestURL := ""
	for _, conn := range connections {
		uri := strings.TrimSpace(conn.URI)
		if uri == "" {
			continue
		}
		score := 0
		switch strings.ToLower(strings.TrimSpace(conn.Protocol)) {
		case "https":
			score += 50
		case "":
		default:
			score -= 10
		}
		if parseBool(conn.Local) {
			score += 20
		}
		if parseBool(conn.Relay) {
			score -= 40
		}
		if score > bestScore {
			bestScore = score
			bestURL = strings.TrimRight(uri, "/")
		}
	}
	return bestURL
}

func parseBool(value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}

func (a *Authenticator) doJSON(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	applyStandardHeaders(req, a.ClientIdentifier())

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("plex request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
