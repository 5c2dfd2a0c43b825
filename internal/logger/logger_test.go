package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelDebug))

	log.Info("buffer opened", "count", 3)

	line := buf.String()
	if !strings.Contains(line, "[INF] buffer opened count=3") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Errorf("line should end with newline")
	}
}

func TestHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelWarn))

	log.Info("dropped")
	log.Debug("dropped")
	log.Warn("kept")

	if strings.Contains(buf.String(), "dropped") {
		t.Errorf("records below level were written: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "[WRN] kept") {
		t.Errorf("warn record missing: %q", buf.String())
	}
}

func TestHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelInfo)).With("component", "program").WithGroup("verify")

	log.Info("done", "valid", 9)

	line := buf.String()
	if !strings.Contains(line, "component=program") {
		t.Errorf("bound attribute missing: %q", line)
	}
	if !strings.Contains(line, "verify.valid=9") {
		t.Errorf("group prefix missing: %q", line)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
