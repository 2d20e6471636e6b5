// Package subject loads and validates the registry of benchmark
// subjects. The subject set is fixed once loaded; all consumers treat
// the returned slice as read-only.
package subject

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"fwbench/internal/bench"
	"fwbench/internal/logging"
)

// Subject describes one application variant under benchmark.
// Immutable once loaded.
type Subject struct {
	ID                 string `yaml:"id" json:"id" validate:"required"`
	DisplayName        string `yaml:"display_name" json:"display_name"`
	Directory          string `yaml:"directory" json:"directory" validate:"required"`
	BuildCommand       string `yaml:"build_command" json:"build_command" validate:"required"`
	DevCommand         string `yaml:"dev_command" json:"dev_command" validate:"required"`
	TestCommand        string `yaml:"test_command" json:"test_command" validate:"required"`
	IsStaticallyServed bool   `yaml:"statically_served" json:"statically_served"`

	// BuildDir is the build output directory relative to Directory.
	// Defaults to "dist" when unset.
	BuildDir string `yaml:"build_dir" json:"build_dir"`

	// AssetsDir holds shared static assets excluded from bundle
	// accounting. Defaults to "public" when unset.
	AssetsDir string `yaml:"assets_dir" json:"assets_dir"`
}

// Name returns the display name, falling back to the id.
func (s Subject) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.ID
}

// EffectiveBuildDir returns the build output directory with default.
func (s Subject) EffectiveBuildDir() string {
	if s.BuildDir != "" {
		return s.BuildDir
	}
	return "dist"
}

// EffectiveAssetsDir returns the shared assets directory with default.
func (s Subject) EffectiveAssetsDir() string {
	if s.AssetsDir != "" {
		return s.AssetsDir
	}
	return "public"
}

type registryFile struct {
	Subjects []Subject `yaml:"subjects" json:"subjects"`
}

var validate = validator.New()

// LoadSubjects reads the subject registry from a YAML or JSON file and
// validates it. Any missing required field or duplicate id yields a
// ConfigError.
func LoadSubjects(path string) ([]Subject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &bench.ConfigError{Source: path, Reason: "cannot read subject registry", Err: err}
	}

	var file registryFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &file)
	} else {
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, &bench.ConfigError{Source: path, Reason: "cannot parse subject registry", Err: err}
	}

	if len(file.Subjects) == 0 {
		return nil, &bench.ConfigError{Source: path, Reason: "subject registry is empty"}
	}

	seen := make(map[string]bool, len(file.Subjects))
	for i, s := range file.Subjects {
		if err := validate.Struct(s); err != nil {
			return nil, &bench.ConfigError{
				Source: path,
				Reason: fmt.Sprintf("subject %d (%q) is missing required fields", i, s.ID),
				Err:    err,
			}
		}
		if seen[s.ID] {
			return nil, &bench.ConfigError{Source: path, Reason: fmt.Sprintf("duplicate subject id %q", s.ID)}
		}
		seen[s.ID] = true
	}

	logging.Registry("loaded %d subjects from %s", len(file.Subjects), path)
	return file.Subjects, nil
}

// Filter returns the subjects whose ids appear in ids, preserving
// registry order. Unknown ids yield a ConfigError so a typo in
// --subjects fails loudly instead of silently benchmarking nothing.
func Filter(subjects []Subject, ids []string) ([]Subject, error) {
	if len(ids) == 0 {
		return subjects, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[strings.TrimSpace(id)] = true
	}
	out := make([]Subject, 0, len(ids))
	for _, s := range subjects {
		if want[s.ID] {
			out = append(out, s)
			delete(want, s.ID)
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for id := range want {
			unknown = append(unknown, id)
		}
		sort.Strings(unknown)
		return nil, &bench.ConfigError{Reason: fmt.Sprintf("unknown subject ids: %s", strings.Join(unknown, ", "))}
	}
	return out, nil
}
