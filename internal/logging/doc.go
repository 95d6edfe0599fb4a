// Package logging assembles structured slog loggers and formatting helpers used
// across posterhelper.
//
// It owns the console and JSON handlers, tees output into the debug log file,
// stamps every record with the run's session id, and exposes context helpers
// so batch workers automatically tag lines with the worker number and the URL
// being processed. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
