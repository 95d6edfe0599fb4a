package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for all nil handlers")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutRoutesByLevel(t *testing.T) {
	var console, file bytes.Buffer
	h := newFanoutHandler(
		newPrettyHandler(&console, slog.LevelInfo, false),
		newJSONHandler(&file, slog.LevelDebug, false),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug enabled through the file handler")
	}

	logger := slog.New(h).With(slog.String("library", "Movies"))
	logger.Debug("candidate scored", slog.Float64("confidence", 0.91))

	if console.Len() != 0 {
		t.Fatalf("expected console to drop debug output, got %q", console.String())
	}
	if !strings.Contains(file.String(), `"library":"Movies"`) || !strings.Contains(file.String(), `"confidence":0.91`) {
		t.Fatalf("expected attrs in file output, got %q", file.String())
	}
}

func TestFanoutWithGroup(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil)).WithGroup("plex")
	slog.New(h).Info("test", slog.String("section", "1"))
	for _, buf := range []*bytes.Buffer{&buf1, &buf2} {
		if !strings.Contains(buf.String(), `"plex":{"section":"1"}`) {
			t.Fatalf("expected grouped attr, got %q", buf.String())
		}
	}
}

func TestStampHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(withStamp(slog.NewJSONHandler(&buf, nil), slog.String(FieldSessionID, "session-abc"))).With("extra", "value")
	logger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, `"session_id":"session-abc"`) {
		t.Errorf("expected session_id in output, got: %s", output)
	}
	if !strings.Contains(output, `"extra":"value"`) {
		t.Errorf("expected extra attr in output, got: %s", output)
	}
	if _, ok := withStamp(nil).(NoopHandler); !ok {
		t.Error("expected NoopHandler when base is nil")
	}
}

func TestPrettyHandlerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newPrettyHandler(&buf, slog.LevelDebug, false))
	logger.Debug("stats", slog.Group("source", slog.Int("posterdb", 3)))
	if !strings.Contains(buf.String(), "source.posterdb: 3") {
		t.Fatalf("expected flattened group key, got %q", buf.String())
	}
}

func TestComposeSubject(t *testing.T) {
	tests := []struct {
		worker, url, want string
	}{
		{"", "", ""},
		{"1", "", "Worker 1"},
		{"", "https://www.theposterdb.com/set/12/", "theposterdb.com/set/12"},
		{"3", "https://mediux.pro/sets/9", "Worker 3 · mediux.pro/sets/9"},
	}
	for _, tt := range tests {
		if got := composeSubject(tt.worker, tt.url); got != tt.want {
			t.Errorf("composeSubject(%q, %q) = %q, want %q", tt.worker, tt.url, got, tt.want)
		}
	}
}

func TestFormatValueQuoting(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.Local)
	tests := []struct {
		value slog.Value
		want  string
	}{
		{slog.StringValue("Movies"), "Movies"},
		{slog.StringValue("TV Shows"), `"TV Shows"`},
		{slog.StringValue(""), `""`},
		{slog.Float64Value(0.85), "0.85"},
		{slog.IntValue(3), "3"},
		{slog.DurationValue(1500 * time.Millisecond), "1.5s"},
		{slog.AnyValue(errors.New("plex said no")), `"plex said no"`},
		{slog.TimeValue(ts), "2024-05-01 12:30:00"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.value); got != tt.want {
			t.Errorf("formatValue(%v) = %s, want %s", tt.value, got, tt.want)
		}
	}
}
