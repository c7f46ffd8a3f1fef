// Package config loads formcoach settings from YAML or TOML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	formcoach "github.com/lucasjlepore/form-analyzer"
)

// DefaultFiles are searched in order when no explicit path is given.
var DefaultFiles = []string{"formcoach.yaml", "formcoach.yml", "formcoach.toml"}

// Config is the full formcoach configuration.
type Config struct {
	Output    OutputConfig                          `yaml:"output" toml:"output"`
	Gesture   GestureConfig                         `yaml:"gesture" toml:"gesture"`
	Logging   LoggingConfig                         `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig                         `yaml:"metrics" toml:"metrics"`
	Exercises map[string]formcoach.ExerciseOverride `yaml:"exercises" toml:"exercises"`

	// Source is the file the config was read from, empty for defaults.
	Source string `yaml:"-" toml:"-"`
}

type OutputConfig struct {
	Dir       string `yaml:"dir" toml:"dir"`
	Format    string `yaml:"format" toml:"format"`
	Overwrite bool   `yaml:"overwrite" toml:"overwrite"`
}

type GestureConfig struct {
	Enabled       bool     `yaml:"enabled" toml:"enabled"`
	Confirmations int      `yaml:"confirmations" toml:"confirmations"`
	Cooldown      Duration `yaml:"cooldown" toml:"cooldown"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	File   string `yaml:"file" toml:"file"`
	JSON   bool   `yaml:"json" toml:"json"`
	Stdout bool   `yaml:"stdout" toml:"stdout"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace" toml:"namespace"`
	Textfile  string `yaml:"textfile" toml:"textfile"`
}

// Duration accepts Go duration strings ("750ms", "1s") in both formats.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Dir:    "formcoach_out",
			Format: "parquet",
		},
		Gesture: GestureConfig{
			Confirmations: formcoach.DefaultGestureConfirmations,
			Cooldown:      Duration{formcoach.DefaultGestureCooldown},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Namespace: "formcoach",
		},
	}
}

// Load reads configuration from path, or from the first default file found
// in the working directory. With no file the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error
	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		found := false
		for _, name := range DefaultFiles {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				found = true
				break
			}
		}
		if !found {
			return cfg, nil
		}
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.Source = path
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var errs error
	switch strings.ToLower(c.Output.Format) {
	case "parquet", "csv":
	default:
		errs = multierr.Append(errs, fmt.Errorf("output.format %q must be parquet or csv", c.Output.Format))
	}
	if c.Gesture.Confirmations < 1 {
		errs = multierr.Append(errs, fmt.Errorf("gesture.confirmations must be at least 1, got %d", c.Gesture.Confirmations))
	}
	if c.Gesture.Cooldown.Duration < 0 {
		errs = multierr.Append(errs, fmt.Errorf("gesture.cooldown must not be negative"))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		errs = multierr.Append(errs, fmt.Errorf("logging.level %q is not a known level", c.Logging.Level))
	}
	if _, err := c.Registry(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// Registry builds the exercise registry with the configured overrides.
func (c *Config) Registry() (*formcoach.Registry, error) {
	base := formcoach.DefaultRegistry()
	if len(c.Exercises) == 0 {
		return base, nil
	}

	names := make([]string, 0, len(c.Exercises))
	for name := range c.Exercises {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs error
	overrides := make(map[formcoach.Exercise]formcoach.ExerciseOverride, len(c.Exercises))
	for _, name := range names {
		ex, err := formcoach.ParseExercise(name)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("exercises: %w", err))
			continue
		}
		overrides[ex] = c.Exercises[name]
	}
	if errs != nil {
		return nil, errs
	}
	return base.WithOverrides(overrides)
}
