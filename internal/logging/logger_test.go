package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"info", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"Debug", slog.LevelDebug},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantTrace bool
	}{
		{"info", false, false},
		{"debug", true, false},
		{"trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Info("session linked", "session", "house")
			logger.Debug("propagation start node not found", "start", "ghost")
			logger.Log(context.Background(), LevelTrace, "edge examined", "target", "car")

			out := buf.String()
			if !strings.Contains(out, "session linked") {
				t.Errorf("info line missing at level %s: %q", tt.level, out)
			}
			if got := strings.Contains(out, "start node not found"); got != tt.wantDebug {
				t.Errorf("debug line visible = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(out, "edge examined"); got != tt.wantTrace {
				t.Errorf("trace line visible = %v, want %v", got, tt.wantTrace)
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)

	logger.Log(context.Background(), LevelTrace, "hop")
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("trace level not labeled: %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger == nil {
		t.Fatal("Discard returned nil")
	}
	logger.Error("dropped")
}

func TestNewEventLogger_InfoLevelIsNil(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "info")
	if el != nil {
		t.Fatal("expected nil EventLogger at info level")
	}

	el.Log(map[string]any{"event": "impact_recorded"})
	el.Close()

	if _, err := os.Stat(filepath.Join(dir, EventsFile)); !os.IsNotExist(err) {
		t.Errorf("%s should not exist at info level, stat err = %v", EventsFile, err)
	}
}

func TestEventLogger_WritesJSONL(t *testing.T) {
	for _, level := range []string{"debug", "trace"} {
		t.Run(level, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "state")
			el := NewEventLogger(dir, level)
			if el == nil {
				t.Fatal("expected EventLogger when the directory needs creating")
			}

			el.Log(map[string]any{"event": "impact_recorded", "target": "car", "magnitude": 12.5})
			el.Log(map[string]any{"event": "resource_shared", "resource": "car", "members": []string{"a", "b"}})
			el.Close()

			path := filepath.Join(dir, EventsFile)
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("reading %s: %v", EventsFile, err)
			}
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) != 2 {
				t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
			}

			var first, second map[string]any
			if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
				t.Fatalf("line 1: %v", err)
			}
			if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
				t.Fatalf("line 2: %v", err)
			}
			if first["event"] != "impact_recorded" || first["magnitude"] != 12.5 {
				t.Errorf("first entry = %v", first)
			}
			if _, ok := first["time"]; !ok {
				t.Error("expected time field")
			}
			if second["event"] != "resource_shared" {
				t.Errorf("second entry = %v", second)
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if perm := info.Mode().Perm(); perm != 0600 {
				t.Errorf("file permissions = %o, want 0600", perm)
			}
		})
	}
}

func TestEventLogger_DoesNotMutateCallerMap(t *testing.T) {
	el := NewEventLogger(t.TempDir(), "debug")
	defer el.Close()

	event := map[string]any{"event": "session_unlinked"}
	el.Log(event)

	if _, ok := event["time"]; ok {
		t.Error("Log injected time into the caller's map")
	}
}

func TestEventLogger_NilAndClosed(t *testing.T) {
	var nilLogger *EventLogger
	nilLogger.Log(map[string]any{"event": "ignored"})
	nilLogger.Close()

	el := NewEventLogger(t.TempDir(), "debug")
	el.Close()
	el.Log(map[string]any{"event": "after_close"})
	el.Close()
}
