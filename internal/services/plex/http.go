package plex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

const (
	productName    = "PlexPosterSetHelper"
	productVersion = "1.0"
	userAgent      = "posterhelper/1.0"
)

// ErrUnauthorized is returned when Plex rejects the configured token.
var ErrUnauthorized = errors.New("plex rejected the token (401)")

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// StatusError reports a non-success HTTP status from Plex.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("plex %s %s returned %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("plex %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// serverFault reports whether err indicates the server (not the request) is
// at fault.
func serverFault(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, ErrUnauthorized) && !errors.Is(err, context.Canceled)
}

func applyStandardHeaders(req *http.Request, clientIdentifier string) {
	if clientIdentifier != "" {
		req.Header.Set("X-Plex-Client-Identifier", clientIdentifier)
	}
	req.Header.Set("X-Plex-Product", productName)
	req.Header.Set("X-Plex-Version", productVersion)
	req.Header.Set("X-Plex-Device", productName)
	req.Header.Set("X-Plex-Device-Name", productName)
	req.Header.Set("X-Plex-Platform", runtime.GOOS)
	req.Header.Set("User-Agent", userAgent)
}
