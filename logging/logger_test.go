package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"", LevelInfo},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestNew_JSONFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(&Config{Level: "warn", Format: "json", Output: &buf, Component: "channel"})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("dropped")
	logger.Warn("unhandled datagram", "keyword", "ET_SPL")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "unhandled datagram", entry["msg"])
	assert.Equal(t, "ET_SPL", entry["keyword"])
	assert.Equal(t, "channel", entry["component"])
}

func TestNew_RejectsUnknownFormat(t *testing.T) {
	_, _, err := New(&Config{Format: "xml"})
	assert.Error(t, err)
}

func TestNew_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewx.log")
	logger, closer, err := New(&Config{Level: "debug", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Debug("sent", "keyword", "ET_CAL")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "keyword=ET_CAL")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(&Config{Output: &buf})
	require.NoError(t, err)

	With(logger, "remote", "10.0.0.2:4444").Info("connected")
	assert.Contains(t, buf.String(), "remote=10.0.0.2:4444")

	assert.Equal(t, NoOpLogger{}, With(NoOpLogger{}, "k", "v"))
}
