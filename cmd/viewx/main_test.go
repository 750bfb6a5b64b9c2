package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyviewx/viewx/internal/config"
)

func TestFullTitle(t *testing.T) {
	assert.Equal(t, "viewx v"+version, fullTitle())
}

func TestWelcomeBanner(t *testing.T) {
	banner := welcomeBanner("127.0.0.1:4444")

	for _, want := range []string{appName, version, "127.0.0.1:4444", ".help", ".quit"} {
		assert.Contains(t, banner, want)
	}
	assert.True(t, strings.HasSuffix(banner, "\n"))
}

func TestParseArgumentsDefaults(t *testing.T) {
	args, err := parseArguments(nil)
	require.NoError(t, err)
	assert.Equal(t, arguments{}, args)
}

func TestParseArguments(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want arguments
	}{
		{"host", []string{"--host", "10.0.0.5"}, arguments{host: "10.0.0.5"}},
		{"port", []string{"--port", "5555"}, arguments{port: 5555}},
		{"local port", []string{"--local-port", "5000"}, arguments{localPort: 5000}},
		{"config", []string{"--config", "/tmp/v.toml"}, arguments{configPath: "/tmp/v.toml"}},
		{"record", []string{"--record", "lab.db"}, arguments{recordPath: "lab.db"}},
		{"timeout", []string{"--timeout", "2s"}, arguments{timeout: 2 * time.Second, timeoutSet: true}},
		{"timeout off", []string{"--timeout", "off"}, arguments{timeoutSet: true}},
		{"plain", []string{"--plain"}, arguments{plain: true}},
		{"help long", []string{"--help"}, arguments{showHelp: true}},
		{"help short", []string{"-h"}, arguments{showHelp: true}},
		{"version", []string{"-v"}, arguments{showVersion: true}},
		{"combined", []string{"--host", "lab", "--plain", "--port", "4444"},
			arguments{host: "lab", port: 4444, plain: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArguments(tt.argv)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArgumentsErrors(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want string
	}{
		{"unknown flag", []string{"--silent"}, "unknown argument"},
		{"missing host", []string{"--host"}, "requires a value"},
		{"bad port", []string{"--port", "abc"}, "invalid port"},
		{"port out of range", []string{"--port", "70000"}, "invalid port"},
		{"bad timeout", []string{"--timeout", "soon"}, "invalid duration"},
		{"negative timeout", []string{"--timeout", "-1s"}, "negative duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseArguments(tt.argv)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyArguments(t *testing.T) {
	cfg := config.Default()
	cfg.Client.ReplyTimeout = 5 * time.Second

	applyArguments(&cfg, arguments{
		host:       "lab",
		port:       5555,
		localPort:  5000,
		recordPath: "lab.db",
		timeoutSet: true,
		plain:      true,
	})

	assert.Equal(t, "lab", cfg.Tracker.Host)
	assert.Equal(t, 5555, cfg.Tracker.Port)
	assert.Equal(t, 5000, cfg.Tracker.LocalPort)
	assert.Equal(t, "lab.db", cfg.Record.Path)
	assert.Zero(t, cfg.Client.ReplyTimeout, "--timeout off overrides the file")
	assert.True(t, cfg.REPL.Plain)
}

func TestApplyArgumentsKeepsConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Tracker.Host = "from-file"
	cfg.Client.ReplyTimeout = 3 * time.Second

	applyArguments(&cfg, arguments{})
	assert.Equal(t, "from-file", cfg.Tracker.Host)
	assert.Equal(t, 3*time.Second, cfg.Client.ReplyTimeout)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewx.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[tracker]
host = "10.1.1.1"
port = 4445

[client]
reply_timeout = "1s"
`), 0o644))

	cfg, err := loadConfig(arguments{configPath: path, port: 4446})
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1", cfg.Tracker.Host)
	assert.Equal(t, 4446, cfg.Tracker.Port, "flag wins over file")
	assert.Equal(t, time.Second, cfg.Client.ReplyTimeout)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(arguments{configPath: filepath.Join(t.TempDir(), "none.toml")})
	assert.Error(t, err)
}

func TestPrintUsage(t *testing.T) {
	var b strings.Builder
	printUsage(&b)
	for _, flag := range []string{"--host", "--port", "--local-port", "--config", "--record", "--timeout", "--plain", "--help", "--version"} {
		assert.Contains(t, b.String(), flag)
	}
}

func TestRunHelpAndVersion(t *testing.T) {
	assert.NoError(t, run([]string{"--version"}))
	assert.Error(t, run([]string{"--bogus"}))
}
