package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwbench/internal/bench"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.SubjectsFile, cfg.SubjectsFile)
	assert.Equal(t, def.BaseURL, cfg.BaseURL)
	assert.Equal(t, 3, cfg.Runner.Executions)
	assert.Equal(t, 10, cfg.KeepRuns)
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fwbench.yaml")
	data := `
base_url: http://localhost:8080
runner:
  executions: 5
  headless: false
keep_runs: 3
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 5, cfg.Runner.Executions)
	assert.False(t, cfg.Runner.Headless)
	assert.Equal(t, 3, cfg.KeepRuns)
	// Untouched keys keep their defaults.
	assert.Equal(t, "subjects.yaml", cfg.SubjectsFile)
	assert.Equal(t, "2s", cfg.PacingDelay)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: [broken"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var cerr *bench.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, path, cerr.Source)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FWBENCH_BASE_URL", "http://10.0.0.5:3000")
	t.Setenv("FWBENCH_EXECUTIONS", "7")
	t.Setenv("FWBENCH_BROWSER", "/opt/chrome/chrome")
	t.Setenv("FWBENCH_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:3000", cfg.BaseURL)
	assert.Equal(t, 7, cfg.Runner.Executions)
	assert.Equal(t, "/opt/chrome/chrome", cfg.Runner.BrowserBin)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverridesIgnoreBadExecutions(t *testing.T) {
	t.Setenv("FWBENCH_EXECUTIONS", "zero")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Runner.Executions)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty base url", func(c *Config) { c.BaseURL = "" }, "base_url"},
		{"empty subjects file", func(c *Config) { c.SubjectsFile = "" }, "subjects_file"},
		{"zero keep runs", func(c *Config) { c.KeepRuns = 0 }, "keep_runs"},
		{"bad duration", func(c *Config) { c.Runner.BuildTimeout = "twenty" }, "build_timeout"},
		{"bad pacing", func(c *Config) { c.PacingDelay = "5 parsecs" }, "pacing_delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunnerOptionsParsesDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Runner.AuditTimeout = "45s"
	cfg.Runner.BuildTimeout = ""

	opts := cfg.RunnerOptions()
	assert.Equal(t, 45*time.Second, opts.AuditTimeout)
	assert.Equal(t, 2*time.Minute, opts.BuildTimeout)
	assert.Equal(t, 15*time.Second, opts.ScenarioTimeout)
	assert.Equal(t, cfg.BaseURL, opts.BaseURL)
}

func TestPacingFallsBackOnGarbage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PacingDelay = "soon"
	assert.Equal(t, 2*time.Second, cfg.Pacing())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fwbench.yaml")
	cfg := DefaultConfig()
	cfg.BaseURL = "http://127.0.0.1:4000"
	cfg.Runner.Executions = 9

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.BaseURL, loaded.BaseURL)
	assert.Equal(t, 9, loaded.Runner.Executions)
	assert.Equal(t, cfg.Thresholds, loaded.Thresholds)
}
