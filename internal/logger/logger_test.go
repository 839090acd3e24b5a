package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_FormatSelection(t *testing.T) {
	tests := []struct {
		name        string
		format      Format
		environment string
		want        string
	}{
		{"production defaults to json", "", "production", `"msg":"converted"`},
		{"development defaults to pretty", "", "development", "INF"},
		{"explicit json wins", FormatJSON, "development", `"msg":"converted"`},
		{"text", FormatText, "", "msg=converted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Writer: &buf, Format: tt.format, Environment: tt.environment, Level: slog.LevelInfo})
			log.Info("converted")
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestPrettyHandler_Line(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatPretty, Level: slog.LevelDebug, NoColor: true})

	log.WithJob("job-1").WithWorker(2).Debug("file failed", "path", "a b.flac", "code", "DECODE_ERROR")

	line := buf.String()
	assert.NotContains(t, line, "\033[")
	assert.Contains(t, line, "DBG file failed")
	assert.Contains(t, line, "job_id=job-1 worker_id=2")
	assert.Contains(t, line, `path="a b.flac"`)
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestPrettyHandler_ColorsAndLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatPretty, Level: slog.LevelWarn})

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), colorYellow+"WRN"+colorReset)
}

func TestPrettyHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatPretty, NoColor: true})

	log.WithGroup("encode").Info("done", "bitrate", 320)
	assert.Contains(t, buf.String(), "encode.bitrate=320")
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatJSON})

	log.WithError(errors.New("disk full")).Error("write failed")
	assert.Contains(t, buf.String(), `"error":"disk full"`)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Error("nothing") })
}
