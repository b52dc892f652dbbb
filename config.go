package council

import (
	"fmt"
	"os"
	"time"

	"github.com/zoobzio/zyn"
	"gopkg.in/yaml.v3"
)

// Default configuration for council runs.
// These can be overridden per-council using builder methods.
var (
	// DefaultTimeout bounds each individual member call. A call that
	// exceeds it is canceled and recorded as a timeout failure; the run
	// continues with whoever answered.
	DefaultTimeout = 120 * time.Second

	// DefaultTemperature is used for stage 1 and stage 2 member calls.
	// Analytical keeps answers comparable across members.
	DefaultTemperature = zyn.DefaultTemperatureAnalytical

	// DefaultSynthesisTemperature is used for the aggregator's stage 3
	// call. Deterministic favors a faithful merge over invention.
	DefaultSynthesisTemperature = zyn.DefaultTemperatureDeterministic
)

// MinResponses is the smallest stage 1 response set worth deliberating
// over. Below this the run fails with ErrInsufficientResponses: a single
// answer has nothing to be reviewed against.
const MinResponses = 2

// labelAlphabet provides the anonymous labels assigned to responses
// during review. Its length caps how many peer responses one reviewer
// can see; rosters are validated against it at construction.
const labelAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Config is the file form of a council: the roster plus run options.
//
//	members:
//	  - openai/gpt-5.1
//	  - google/gemini-3-pro
//	  - anthropic/claude-sonnet-4.5
//	aggregator: google/gemini-3-pro
//	timeout: 90s
//	verbose: true
type Config struct {
	Members    []string `yaml:"members"`
	Aggregator string   `yaml:"aggregator"`
	Timeout    string   `yaml:"timeout,omitempty"`
	Verbose    *bool    `yaml:"verbose,omitempty"`
}

// LoadConfig reads a council configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Roster builds the validated roster the configuration describes.
func (cfg *Config) Roster() (Roster, error) {
	return NewRoster(cfg.Members, cfg.Aggregator)
}

// Council builds a configured council over the given gateway.
func (cfg *Config) Council(gateway Gateway) (*Council, error) {
	roster, err := cfg.Roster()
	if err != nil {
		return nil, err
	}
	c, err := New(gateway, roster)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse timeout: %w", err)
		}
		c = c.WithTimeout(d)
	}
	if cfg.Verbose != nil {
		c = c.WithVerbose(*cfg.Verbose)
	}
	return c, nil
}
