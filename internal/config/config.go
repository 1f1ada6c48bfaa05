// Package config loads replication settings from a YAML file. CLI flags
// override whatever the file provides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrMissingSourceDSN = errors.New("config: source_dsn is required")
	ErrMissingTargetDSN = errors.New("config: target_dsn is required")
	ErrMissingTable     = errors.New("config: table is required")
)

// Duration wraps time.Duration so YAML fields accept "30s" style strings
// as well as raw nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("config: invalid duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the replicate command configuration.
type Config struct {
	// SourceDSN is the DSN of the observed cluster.
	SourceDSN string `yaml:"source_dsn"`

	// TargetDSN is the DSN of the replication target.
	TargetDSN string `yaml:"target_dsn"`

	// Table is the source table to replicate.
	Table string `yaml:"table"`

	// TargetTable overrides the default "<table>_replicated" name.
	TargetTable string `yaml:"target_table"`

	// CheckpointPath is the SQLite file holding per-partition offsets.
	CheckpointPath string `yaml:"checkpoint_path"`

	// PauseEvery bounds each observation epoch.
	PauseEvery Duration `yaml:"pause_every"`

	// Verbose logs one line per applied record.
	Verbose bool `yaml:"verbose"`

	// EnableMetrics serves Prometheus metrics on MetricsPort.
	EnableMetrics bool `yaml:"enable_metrics"`
	MetricsPort   int  `yaml:"metrics_port"`
}

// Load reads a YAML config file. An empty path yields a zero config for
// the caller to fill from flags.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		cfg.Normalize()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.Normalize()
	return cfg, nil
}

// Normalize fills in defaults for optional fields.
func (c *Config) Normalize() {
	if c.PauseEvery <= 0 {
		c.PauseEvery = Duration(10 * time.Second)
	}
	if c.CheckpointPath == "" {
		c.CheckpointPath = "cdcsync-checkpoints.db"
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9100
	}
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.SourceDSN == "" {
		return ErrMissingSourceDSN
	}
	if c.TargetDSN == "" {
		return ErrMissingTargetDSN
	}
	if c.Table == "" {
		return ErrMissingTable
	}
	return nil
}
