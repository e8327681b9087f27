package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewLoggerAddsServiceAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{ServiceName: "guardian", Environment: "test", Level: "warn", Output: &buf})

	logger.Info("dropped")
	logger.Warn("kept", "k", 1)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "kept" || line["service"] != "guardian" || line["env"] != "test" {
		t.Fatalf("unexpected record: %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
