package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"INFO":  slog.LevelInfo,
		"debug": slog.LevelDebug,
		"Trace": LevelTrace,
		"warn":  slog.LevelWarn,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestEventOnlyAtTrace(t *testing.T) {
	var buf bytes.Buffer
	New("debug", &buf).Event("FIGHT", 3, "WIN")
	if buf.Len() != 0 {
		t.Errorf("Expected no event output at debug, got %q", buf.String())
	}

	New("trace", &buf).Event("FIGHT", 3, "WIN")
	out := buf.String()
	if !strings.Contains(out, "level=TRACE") || !strings.Contains(out, "type=FIGHT") {
		t.Errorf("Expected labelled trace record, got %q", out)
	}
}
