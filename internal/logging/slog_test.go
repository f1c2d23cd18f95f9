package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantErr   bool
		wantJSON  bool
		debugSeen bool
	}{
		{name: "defaults", level: "", format: "", debugSeen: false},
		{name: "text debug", level: "debug", format: "text", debugSeen: true},
		{name: "json info", level: "INFO", format: "json", wantJSON: true},
		{name: "bad level", level: "loud", format: "text", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(tt.level, tt.format, &buf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			logger.Debug("debug line")
			logger.Info("info line", ThreadID("t1"))

			out := buf.String()
			assert.Equal(t, tt.debugSeen, strings.Contains(out, "debug line"))
			assert.Contains(t, out, "info line")

			if tt.wantJSON {
				var record map[string]any
				require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &record))
				assert.Equal(t, "t1", record[KeyThreadID])
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestAttributes(t *testing.T) {
	assert.Equal(t, slog.String(KeyOperation, "triage"), Operation("triage"))
	assert.Equal(t, slog.String(KeyLabel, "libcamera"), Label("libcamera"))
	assert.Equal(t, slog.String(KeySubject, "s"), Subject("s"))
	assert.Equal(t, slog.String(KeyStatus, "success"), Status("success"))
	assert.Equal(t, slog.Duration(KeyDuration, time.Second), Duration(time.Second))
}

func TestWithOperationAndTool(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	WithTool(WithOperation(base, "modify"), "triage_modify_labels").Info("done")

	assert.Contains(t, buf.String(), "operation=modify")
	assert.Contains(t, buf.String(), "tool=triage_modify_labels")
}

func TestErr(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("nil error", Err(nil))
	assert.NotContains(t, buf.String(), "error=")

	buf.Reset()
	logger.Info("real error", Err(errors.New("boom")))
	assert.Contains(t, buf.String(), "error=boom")
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "<empty>", SanitizeToken(""))
	assert.Equal(t, "[token:5 chars]", SanitizeToken("abcde"))
}
