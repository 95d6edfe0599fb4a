package poster

import (
	"errors"
	"fmt"
	"strings"
)

// FetchError reports a network or navigation failure while loading a page.
// The caller may retry.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "fetch failed"
	}
	switch {
	case e.StatusCode > 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s failed", e.URL)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for outcome reporting.
func (e *FetchError) ErrorKind() string { return "fetch" }

// ParseError reports a page whose structure does not match what the site
// extractor expects. Retrying will not help until the extractor is updated.
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	if e == nil {
		return "parse failed"
	}
	return fmt.Sprintf("parse %s: %s", e.URL, e.Reason)
}

func (e *ParseError) ErrorKind() string { return "parse" }

// UnsupportedSourceError reports a URL no extractor recognizes.
type UnsupportedSourceError struct {
	URL string
}

func (e *UnsupportedSourceError) Error() string {
	if e == nil {
		return "unsupported source"
	}
	return fmt.Sprintf("unsupported source url %q (expected a ThePosterDB or MediUX set, poster or user url)", e.URL)
}

func (e *UnsupportedSourceError) ErrorKind() string { return "unsupported" }

// Upload stages.
const (
	StageDownload = "download"
	StageUpload   = "upload"
	StageLabel    = "label"
)

// UploadError reports a failed artwork download or server upload.
type UploadError struct {
	Title string
	Stage string
	Err   error
}

func (e *UploadError) Error() string {
	if e == nil {
		return "upload failed"
	}
	stage := strings.TrimSpace(e.Stage)
	if stage == "" {
		stage = StageUpload
	}
	if e.Title == "" {
		return fmt.Sprintf("%s failed: %v", stage, e.Err)
	}
	return fmt.Sprintf("%s %q failed: %v", stage, e.Title, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

func (e *UploadError) ErrorKind() string { return "upload" }

// ConfigurationError reports missing or invalid settings. It is raised before
// any processing starts and is fatal for a batch.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "invalid configuration"
	}
	if e.Key == "" {
		return e.Reason
	}
	return e.Key + " " + e.Reason
}

func (e *ConfigurationError) ErrorKind() string { return "configuration" }

// ErrorClassifier is implemented by errors that declare their kind.
type ErrorClassifier interface {
	ErrorKind() string
}

// Kind returns the classification of err, or "internal" when unknown.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return "internal"
}

// Retryable reports whether the caller may retry the operation at batch level.
func Retryable(err error) bool {
	switch Kind(err) {
	case "fetch", "upload":
		return true
	default:
		return false
	}
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
