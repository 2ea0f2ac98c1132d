package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AppConfig is the typist application configuration, usually typist.yaml.
type AppConfig struct {
	// Logging configures the CLI logger.
	Logging LoggingSection `yaml:"logging"`

	// Tracing configures OpenTelemetry span export.
	Tracing TracingSection `yaml:"tracing"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsSection `yaml:"metrics"`

	// Store configures the run history database.
	Store StoreSection `yaml:"store"`

	// Server configures the preview server.
	Server ServerSection `yaml:"server"`

	// Lint configures the policies run by validate and the server.
	Lint LintSection `yaml:"lint"`

	// Defaults are applied to scripts that leave a prop unset.
	Defaults ScriptProps `yaml:"defaults"`
}

// LoggingSection configures logging.
type LoggingSection struct {
	Level  string `yaml:"level" validate:"required,oneof=trace debug info warn error fatal"`
	Format string `yaml:"format" validate:"required,oneof=console json"`
}

// TracingSection configures tracing.
type TracingSection struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`
	Endpoint     string  `yaml:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate" validate:"gte=0,lte=1"`
	Insecure     bool    `yaml:"insecure"`
}

// MetricsSection configures metrics.
type MetricsSection struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"required_if=Enabled true"`
}

// StoreSection configures the run history store.
type StoreSection struct {
	// Path is the SQLite database path. Empty disables history.
	Path string `yaml:"path,omitempty"`
}

// ServerSection configures the preview server.
type ServerSection struct {
	Address      string   `yaml:"address" validate:"required"`
	AllowOrigins []string `yaml:"allow_origins,omitempty"`
}

// LintSection configures script linting.
type LintSection struct {
	// Policies are extra .rego or .json policy files and directories.
	Policies []string `yaml:"policies,omitempty"`

	// Disable names built-in policies to skip.
	Disable []string `yaml:"disable,omitempty"`
}

// DefaultAppConfig returns the configuration used when no file is given.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Logging: LoggingSection{
			Level:  "info",
			Format: "console",
		},
		Tracing: TracingSection{
			Enabled:      false,
			Exporter:     "stdout",
			SamplingRate: 1.0,
			Insecure:     true,
		},
		Metrics: MetricsSection{
			Enabled:   true,
			Namespace: "typist",
		},
		Server: ServerSection{
			Address:      "127.0.0.1:8420",
			AllowOrigins: []string{"*"},
		},
	}
}

// LoadAppConfig reads path over the defaults. Unknown keys are rejected.
func LoadAppConfig(path string) (*AppConfig, error) {
	cfg := DefaultAppConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration with its struct tags.
func (c *AppConfig) Validate() error {
	return validator.New().Struct(c)
}

// ApplyDefaults fills every prop the script leaves unset from the configured
// defaults.
func (c *AppConfig) ApplyDefaults(s *Script) {
	d := c.Defaults
	if s.Props.TypingDelay == nil {
		s.Props.TypingDelay = d.TypingDelay
	}
	if s.Props.BackspaceDelay == nil {
		s.Props.BackspaceDelay = d.BackspaceDelay
	}
	if s.Props.Splitter == "" {
		s.Props.Splitter = d.Splitter
	}
	if s.Props.Cursor == "" {
		s.Props.Cursor = d.Cursor
	}
	s.Props.Loop = s.Props.Loop || d.Loop
}
