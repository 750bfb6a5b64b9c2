// Package config loads viewx settings from defaults, an optional TOML file
// and VIEWX_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pyviewx/viewx/logging"
	"github.com/pyviewx/viewx/viewxprotocol"
)

// EnvPrefix prefixes every environment override, e.g. VIEWX_TRACKER_HOST.
const EnvPrefix = "VIEWX"

// Config holds application configuration.
type Config struct {
	Tracker TrackerConfig `mapstructure:"tracker"`
	Client  ClientConfig  `mapstructure:"client"`
	Log     LogConfig     `mapstructure:"log"`
	Record  RecordConfig  `mapstructure:"record"`
	REPL    REPLConfig    `mapstructure:"repl"`
}

// TrackerConfig locates the eye tracker.
type TrackerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	LocalPort int    `mapstructure:"local_port"`
}

// ClientConfig holds protocol client settings.
type ClientConfig struct {
	// ReplyTimeout bounds interactive waits for replies. Zero waits forever.
	ReplyTimeout time.Duration `mapstructure:"reply_timeout"`
	Probe        bool          `mapstructure:"probe"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// RecordConfig holds traffic recorder settings.
type RecordConfig struct {
	Path string `mapstructure:"path"`
}

// REPLConfig holds interactive shell settings.
type REPLConfig struct {
	HistoryFile string `mapstructure:"history_file"`
	HistorySize int    `mapstructure:"history_size"`
	Plain       bool   `mapstructure:"plain"`
}

// Option adjusts the loader before the file and environment are read.
type Option func(*viper.Viper)

// WithDefault replaces the built-in default for key. The config file and
// environment still take precedence over it.
func WithDefault(key string, value any) Option {
	return func(v *viper.Viper) { v.SetDefault(key, value) }
}

// Load reads configuration from file and env. The file is VIEWX_CONFIG if
// set, otherwise ~/.config/viewx/config.toml when it exists.
func Load(opts ...Option) (Config, error) {
	v := newViper(opts...)

	if cfgPath := os.Getenv(EnvPrefix + "_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	} else {
		v.AddConfigPath(filepath.Join(homeDir(), ".config", "viewx"))
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return decode(v)
}

// LoadFile reads configuration from path plus env overrides. A missing
// file is an error.
func LoadFile(path string, opts ...Option) (Config, error) {
	v := newViper(opts...)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return decode(v)
}

// Default returns the built-in configuration with env overrides applied.
// It panics if an override is invalid.
func Default() Config {
	c, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return c
}

func newViper(opts ...Option) *viper.Viper {
	v := viper.New()

	// default values
	v.SetDefault("tracker.host", "127.0.0.1")
	v.SetDefault("tracker.port", viewxprotocol.DefaultPort)
	v.SetDefault("tracker.local_port", 0)
	v.SetDefault("client.reply_timeout", "0s")
	v.SetDefault("client.probe", true)
	v.SetDefault("client.probe_timeout", viewxprotocol.ProbeTimeout.String())
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("record.path", "")
	v.SetDefault("repl.history_file", filepath.Join(homeDir(), ".viewx_history"))
	v.SetDefault("repl.history_size", 500)
	v.SetDefault("repl.plain", false)
	for _, opt := range opts {
		opt(v)
	}

	v.SetConfigType("toml")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func decode(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Tracker.Host) == "" {
		errs = append(errs, errors.New("tracker.host is empty"))
	}
	if c.Tracker.Port < 1 || c.Tracker.Port > 65535 {
		errs = append(errs, fmt.Errorf("tracker.port %d out of range", c.Tracker.Port))
	}
	if c.Tracker.LocalPort < 0 || c.Tracker.LocalPort > 65535 {
		errs = append(errs, fmt.Errorf("tracker.local_port %d out of range", c.Tracker.LocalPort))
	}
	if c.Client.ReplyTimeout < 0 {
		errs = append(errs, errors.New("client.reply_timeout is negative"))
	}
	if c.Client.ProbeTimeout < 0 {
		errs = append(errs, errors.New("client.probe_timeout is negative"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	if c.REPL.HistorySize < 0 {
		errs = append(errs, errors.New("repl.history_size is negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Logging converts the log section into a logging.Config.
func (c Config) Logging(component string) *logging.Config {
	return &logging.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		Output:     os.Stderr,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Component:  component,
	}
}

// ProbeTimeout returns the connect probe timeout, or zero when probing is off.
func (c Config) ProbeTimeout() time.Duration {
	if !c.Client.Probe {
		return 0
	}
	return c.Client.ProbeTimeout
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
