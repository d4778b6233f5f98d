// Package config loads streamcore settings from the environment and from
// YAML files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/streamcore/pipeline"
)

// EnvPrefix prefixes every environment variable. Sections add their own
// name, e.g. STREAMCORE_PIPELINE_WIDTH or STREAMCORE_LOGGING_LEVEL.
const EnvPrefix = "STREAMCORE"

// Config holds all application configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Source   SourceConfig   `yaml:"source"`
	Logging  LogConfig      `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PipelineConfig holds the stream description and queue tuning.
type PipelineConfig struct {
	Width         uint32        `envconfig:"WIDTH" default:"1280" yaml:"width"`
	Height        uint32        `envconfig:"HEIGHT" default:"720" yaml:"height"`
	FrameRate     uint32        `envconfig:"FRAME_RATE" default:"30" yaml:"frame_rate"`
	Bitrate       uint32        `envconfig:"BITRATE" default:"2500000" yaml:"bitrate"`
	QueueCapacity int           `envconfig:"QUEUE_CAPACITY" default:"64" yaml:"queue_capacity"`
	PollInterval  time.Duration `envconfig:"POLL_INTERVAL" default:"100ms" yaml:"poll_interval"`
	FailurePolicy string        `envconfig:"FAILURE_POLICY" default:"continue" yaml:"failure_policy"`
}

// SourceConfig selects and drives the capture source used by the CLI. Kind
// names a source in the source registry.
type SourceConfig struct {
	Kind          string        `envconfig:"KIND" default:"synthetic" yaml:"kind"`
	Duration      time.Duration `envconfig:"DURATION" default:"5s" yaml:"duration"`
	Producers     int           `envconfig:"PRODUCERS" default:"1" yaml:"producers"`
	BytesPerFrame int           `envconfig:"FRAME_BYTES" default:"0" yaml:"frame_bytes"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info" yaml:"level"`
	Format string `envconfig:"FORMAT" default:"text" yaml:"format"`
}

// MetricsConfig holds Prometheus exporter configuration.
type MetricsConfig struct {
	Enabled   bool   `envconfig:"ENABLED" default:"false" yaml:"enabled"`
	Address   string `envconfig:"ADDR" default:"127.0.0.1:9464" yaml:"address"`
	Namespace string `envconfig:"NAMESPACE" default:"streamcore" yaml:"namespace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Width:         1280,
			Height:        720,
			FrameRate:     30,
			Bitrate:       2500000,
			QueueCapacity: pipeline.DefaultQueueCapacity,
			PollInterval:  pipeline.DefaultPollInterval,
			FailurePolicy: pipeline.FailurePolicyContinue.String(),
		},
		Source: SourceConfig{
			Kind:      "synthetic",
			Duration:  5 * time.Second,
			Producers: 1,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Address:   "127.0.0.1:9464",
			Namespace: "streamcore",
		},
	}
}

// Load reads configuration from STREAMCORE_* environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads a YAML file on top of Default(). Keys missing from the file
// keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "LoadFile",
		"path":     path,
	}).Debug("Loaded configuration file")

	return cfg, nil
}

// Validate checks ranges and names.
func (c *Config) Validate() error {
	if c.Pipeline.QueueCapacity <= 0 {
		return fmt.Errorf("invalid config: queue_capacity must be positive, got %d", c.Pipeline.QueueCapacity)
	}
	if c.Pipeline.PollInterval <= 0 {
		return fmt.Errorf("invalid config: poll_interval must be positive, got %v", c.Pipeline.PollInterval)
	}
	if _, err := pipeline.ParseFailurePolicy(c.Pipeline.FailurePolicy); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if strings.TrimSpace(c.Source.Kind) == "" {
		return fmt.Errorf("invalid config: source kind must not be empty")
	}
	if c.Source.Producers <= 0 {
		return fmt.Errorf("invalid config: source producers must be positive, got %d", c.Source.Producers)
	}
	if c.Source.BytesPerFrame < 0 {
		return fmt.Errorf("invalid config: frame_bytes must not be negative, got %d", c.Source.BytesPerFrame)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid config: unknown log format %q", c.Logging.Format)
	}
	return nil
}

// ToConfig converts the stream description to a pipeline.Config.
func (p PipelineConfig) ToConfig() pipeline.Config {
	return pipeline.Config{
		Width:     p.Width,
		Height:    p.Height,
		FrameRate: p.FrameRate,
		Bitrate:   p.Bitrate,
	}
}

// ToOptions converts the queue tuning to pipeline.Options. Processor,
// Observer and Diagnostics are left for the caller to fill in.
func (p PipelineConfig) ToOptions() (*pipeline.Options, error) {
	policy, err := pipeline.ParseFailurePolicy(p.FailurePolicy)
	if err != nil {
		return nil, err
	}
	opts := pipeline.NewOptions()
	opts.QueueCapacity = p.QueueCapacity
	opts.PollInterval = p.PollInterval
	opts.FailurePolicy = policy
	return opts, nil
}

// ConfigureLogging applies the logging section to the global logrus logger.
func (l LogConfig) ConfigureLogging() error {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)

	switch strings.ToLower(l.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
