// Package config holds the benchmark engine configuration: file
// locations, the dev server address, runner tuning, and scoring
// thresholds. Values load from YAML with environment overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"fwbench/internal/bench"
	"fwbench/internal/consolidate"
	"fwbench/internal/runner"
)

// Config holds all fwbench configuration.
type Config struct {
	// SubjectsFile is the subject registry (YAML or JSON).
	SubjectsFile string `yaml:"subjects_file"`

	// ResultsDir is the root of the results store.
	ResultsDir string `yaml:"results_dir"`

	// BaseURL is the dev server hosting the subjects.
	BaseURL string `yaml:"base_url"`

	Runner RunnerConfig `yaml:"runner"`

	// Thresholds are the scoring control points.
	Thresholds consolidate.Thresholds `yaml:"thresholds"`

	// KeepRuns is how many past runs retention cleanup preserves.
	KeepRuns int `yaml:"keep_runs"`

	// PacingDelay is the idle gap between subjects, letting the
	// machine quiesce before the next measurement.
	PacingDelay string `yaml:"pacing_delay"`

	Logging LoggingConfig `yaml:"logging"`
}

// RunnerConfig tunes the measurement runners.
type RunnerConfig struct {
	// Executions repeats browser probes and keeps the median.
	Executions int `yaml:"executions"`

	Headless bool `yaml:"headless"`

	// BrowserBin overrides Chrome autodetection.
	BrowserBin string `yaml:"browser_bin"`

	AuditTimeout    string `yaml:"audit_timeout"`
	BuildTimeout    string `yaml:"build_timeout"`
	ScenarioTimeout string `yaml:"scenario_timeout"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SubjectsFile: "subjects.yaml",
		ResultsDir:   "results",
		BaseURL:      "http://127.0.0.1:3000",
		Runner: RunnerConfig{
			Executions:      3,
			Headless:        true,
			AuditTimeout:    "30s",
			BuildTimeout:    "2m",
			ScenarioTimeout: "15s",
		},
		Thresholds:  consolidate.DefaultThresholds(),
		KeepRuns:    10,
		PacingDelay: "2s",
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "logs",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, &bench.ConfigError{Source: path, Reason: "read failed", Err: err}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &bench.ConfigError{Source: path, Reason: "parse failed", Err: err}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &bench.ConfigError{Source: path, Reason: "create config directory", Err: err}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return &bench.ConfigError{Source: path, Reason: "marshal failed", Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &bench.ConfigError{Source: path, Reason: "write failed", Err: err}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FWBENCH_SUBJECTS"); v != "" {
		c.SubjectsFile = v
	}
	if v := os.Getenv("FWBENCH_RESULTS_DIR"); v != "" {
		c.ResultsDir = v
	}
	if v := os.Getenv("FWBENCH_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("FWBENCH_BROWSER"); v != "" {
		c.Runner.BrowserBin = v
	}
	if v := os.Getenv("FWBENCH_EXECUTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Runner.Executions = n
		}
	}
	if v := os.Getenv("FWBENCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration before a run starts.
func (c *Config) Validate() error {
	if c.SubjectsFile == "" {
		return &bench.ConfigError{Reason: "subjects_file is required"}
	}
	if c.ResultsDir == "" {
		return &bench.ConfigError{Reason: "results_dir is required"}
	}
	if c.BaseURL == "" {
		return &bench.ConfigError{Reason: "base_url is required"}
	}
	if c.KeepRuns < 1 {
		return &bench.ConfigError{Reason: fmt.Sprintf("keep_runs must be at least 1, got %d", c.KeepRuns)}
	}
	for _, d := range []struct{ name, value string }{
		{"audit_timeout", c.Runner.AuditTimeout},
		{"build_timeout", c.Runner.BuildTimeout},
		{"scenario_timeout", c.Runner.ScenarioTimeout},
		{"pacing_delay", c.PacingDelay},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return &bench.ConfigError{Reason: fmt.Sprintf("%s: invalid duration %q", d.name, d.value)}
		}
	}
	return nil
}

// RunnerOptions converts the configured tuning into runner options.
func (c *Config) RunnerOptions() runner.Options {
	return runner.Options{
		BaseURL:         c.BaseURL,
		Executions:      c.Runner.Executions,
		AuditTimeout:    parseDuration(c.Runner.AuditTimeout, 30*time.Second),
		BuildTimeout:    parseDuration(c.Runner.BuildTimeout, 2*time.Minute),
		ScenarioTimeout: parseDuration(c.Runner.ScenarioTimeout, 15*time.Second),
		Headless:        c.Runner.Headless,
		BrowserBin:      c.Runner.BrowserBin,
	}
}

// Pacing returns the inter-subject delay.
func (c *Config) Pacing() time.Duration {
	return parseDuration(c.PacingDelay, 2*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
