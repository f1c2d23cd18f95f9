package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewSlogAdapter_WithNil(t *testing.T) {
	adapter := NewSlogAdapter(nil)
	if adapter.Logger() == nil {
		t.Error("adapter logger should not be nil when created with nil")
	}
}

func TestSlogAdapter_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var l Logger = NewSlogAdapter(logger)
	l.Debug("debug message", "key", "d")
	l.Info("info message", "key", "i")
	l.Warn("warn message", "key", "w")
	l.Error("error message", "key", "e")

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG msg=\"debug message\" key=d",
		"level=INFO msg=\"info message\" key=i",
		"level=WARN msg=\"warn message\" key=w",
		"level=ERROR msg=\"error message\" key=e",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestDiscard(t *testing.T) {
	// Should not panic
	Discard().Info("dropped", "key", "value")
}
