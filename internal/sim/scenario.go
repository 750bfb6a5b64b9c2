package sim

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/pyviewx/viewx/viewxprotocol"
)

// Scenario configures the simulated tracker.
type Scenario struct {
	Listen     string   `yaml:"listen"`
	SampleRate int      `yaml:"sample_rate"`
	ReplyDelay Duration `yaml:"reply_delay"`
	DropRate   float64  `yaml:"drop_rate"`
	Seed       int64    `yaml:"seed"`
	Screen     Screen   `yaml:"screen"`

	// Silent lists keywords the tracker never answers.
	Silent []string `yaml:"silent"`
}

// Screen is the stimulus screen size in pixels.
type Screen struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Duration is a time.Duration written as "250ms" in YAML.
type Duration time.Duration

// UnmarshalYAML accepts duration strings and plain integers (milliseconds).
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var ms int64
	if err := unmarshal(&ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %v", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// DefaultScenario returns a well-behaved 250 Hz tracker on the default port.
func DefaultScenario() *Scenario {
	return &Scenario{
		Listen:     fmt.Sprintf("127.0.0.1:%d", viewxprotocol.DefaultPort),
		SampleRate: 250,
		Seed:       1,
		Screen:     Screen{Width: 1280, Height: 1024},
	}
}

// LoadScenario reads a YAML scenario on top of the defaults.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %v", path, err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes YAML on top of the defaults and validates the result.
func ParseScenario(data []byte) (*Scenario, error) {
	sc := DefaultScenario()
	if err := yaml.UnmarshalStrict(data, sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %v", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Validate checks the scenario for values the simulator cannot run with.
func (sc *Scenario) Validate() error {
	var errs []error
	if _, _, err := net.SplitHostPort(sc.Listen); err != nil {
		errs = append(errs, fmt.Errorf("listen %q: %v", sc.Listen, err))
	}
	if sc.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", sc.SampleRate))
	}
	if sc.ReplyDelay < 0 {
		errs = append(errs, errors.New("reply_delay must not be negative"))
	}
	if sc.DropRate < 0 || sc.DropRate > 1 {
		errs = append(errs, fmt.Errorf("drop_rate must be within 0..1, got %g", sc.DropRate))
	}
	if sc.Screen.Width <= 0 || sc.Screen.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid screen %dx%d", sc.Screen.Width, sc.Screen.Height))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid scenario: %w", errors.Join(errs...))
	}
	return nil
}

// IsSilent reports whether keyword is never answered.
func (sc *Scenario) IsSilent(keyword string) bool {
	for _, s := range sc.Silent {
		if strings.EqualFold(s, keyword) {
			return true
		}
	}
	return false
}
