package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"debug level", "debug", "console"},
		{"info level", "info", "console"},
		{"warn level", "warn", "console"},
		{"error level", "error", "console"},
		{"json format", "info", "json"},
		{"uppercase level", "DEBUG", "console"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Setup(tt.level, tt.format)
			if Log == nil {
				t.Error("expected Log to be initialized")
			}
		})
	}
	Setup("info", "console")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level  string
		expect zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"Warn", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel}, // default case
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expect, ParseLevel(tt.level), tt.level)
	}
}

func TestJSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json").With("run_id", "abc")
	l.Info("epoch done", "epoch", 3, "loss", 0.25, "err", errors.New("boom"), "orphan")

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "epoch done", event["message"])
	assert.Equal(t, "abc", event["run_id"])
	assert.Equal(t, float64(3), event["epoch"])
	assert.Equal(t, "boom", event["err"])
	assert.NotContains(t, event, "orphan")
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Info("ignored", "key", "value")
	l.Error("ignored")
	l.With(1, 2).Debug("ignored")
}
