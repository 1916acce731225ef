package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Latency distribution names accepted in LatencyConfig.Distribution.
const (
	LatencyUniform = "uniform"
	LatencyPoisson = "poisson"
	LatencyFixed   = "fixed"
)

// Default latency parameters: uniform in [DefaultLatencyBase, DefaultLatencyBase+DefaultLatencyMean).
const (
	DefaultLatencyMean int64 = 100
	DefaultLatencyBase int64 = 50
)

// LatencyConfig selects the per-packet delay distribution.
type LatencyConfig struct {
	Distribution string `yaml:"distribution" validate:"omitempty,oneof=uniform poisson fixed"`
	Base         int64  `yaml:"base" validate:"gte=0"` // minimum delay in ticks
	Mean         int64  `yaml:"mean" validate:"gte=0"` // width of the uniform range, or the Poisson mean
}

// TraceConfig controls where DataSet records are persisted.
type TraceConfig struct {
	Path string `yaml:"path"` // empty = trace records are discarded unless a handler is attached
	Gzip bool   `yaml:"gzip"`
}

// ScenarioConfig groups the knobs of the bundled example scenarios.
type ScenarioConfig struct {
	Name         string `yaml:"name" validate:"omitempty,oneof=producer-consumer broadcast liveness rpc-flood"`
	Nodes        int    `yaml:"nodes" validate:"gte=0"`
	Connectivity int    `yaml:"connectivity" validate:"gte=0"`
	Items        int    `yaml:"items" validate:"gte=0"`
	Spacing      int64  `yaml:"spacing" validate:"gte=0"`
	TTL          int    `yaml:"ttl" validate:"gte=0"`
	KillAt       int64  `yaml:"kill_at" validate:"gte=0"`
}

// Config is the full run configuration, loadable from a YAML file.
type Config struct {
	Seed     int64          `yaml:"seed"`
	Horizon  int64          `yaml:"horizon" validate:"gte=0"` // 0 = run until the queue drains
	Latency  LatencyConfig  `yaml:"latency"`
	Trace    TraceConfig    `yaml:"trace"`
	Scenario ScenarioConfig `yaml:"scenario"`
}

var validate = validator.New()

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Seed: 42,
		Latency: LatencyConfig{
			Distribution: LatencyUniform,
			Base:         DefaultLatencyBase,
			Mean:         DefaultLatencyMean,
		},
		Scenario: ScenarioConfig{
			Name:         "producer-consumer",
			Nodes:        10,
			Connectivity: 4,
			Items:        10,
			Spacing:      10,
			TTL:          15,
			KillAt:       5000,
		},
	}
}

// LoadConfig reads a YAML configuration file. Fields absent from the file keep
// their DefaultConfig values; unknown fields are an error so typos surface.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and names.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.Latency.Validate()
}

// Validate checks the latency parameters, including the cross-field rules
// that struct tags cannot express.
func (l LatencyConfig) Validate() error {
	if err := validate.Struct(l); err != nil {
		return fmt.Errorf("invalid latency config: %w", err)
	}
	if l.Distribution == LatencyPoisson && l.Mean <= 0 {
		return fmt.Errorf("poisson latency requires a positive mean, got %d", l.Mean)
	}
	return nil
}

// RunBound converts Horizon to a Run bound.
func (c *Config) RunBound() int64 {
	if c.Horizon <= 0 {
		return Forever
	}
	return c.Horizon
}
