package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldWorker is the standardized key for the batch worker number.
	FieldWorker = "worker"
	// FieldURL is the standardized key for the source URL being processed.
	FieldURL = "url"
	// FieldSource is the standardized key for the source site.
	FieldSource = "source"
	// FieldTitle is the standardized key for a record or library title.
	FieldTitle = "title"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for a failure.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the error taxonomy kind.
	FieldErrorKind = "error_kind"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

type contextKey int

const (
	workerKey contextKey = iota
	urlKey
)

// WithWorker tags ctx with a batch worker number.
func WithWorker(ctx context.Context, worker int) context.Context {
	return context.WithValue(ctx, workerKey, worker)
}

// WorkerFromContext returns the worker number stored by WithWorker.
func WorkerFromContext(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	worker, ok := ctx.Value(workerKey).(int)
	return worker, ok
}

// WithURL tags ctx with the source URL being processed.
func WithURL(ctx context.Context, url string) context.Context {
	return context.WithValue(ctx, urlKey, url)
}

// URLFromContext returns the URL stored by WithURL.
func URLFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	url, ok := ctx.Value(urlKey).(string)
	return url, ok && url != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if worker, ok := WorkerFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldWorker, worker))
	}
	if url, ok := URLFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldURL, url))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
