// Package store persists raw measurements, consolidated summaries, and
// final reports as JSON files under an explicit results directory.
//
// Layout:
//
//	raw/{subject}/{testType}-{runId}.json
//	consolidated/{subject}-{runId}.json
//	consolidated/latest.json
//	reports/{runId}.json (+ optional .html)
//
// All writes go through one writeJSON helper so every I/O failure
// surfaces as a *bench.StoreError.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fwbench/internal/bench"
	"fwbench/internal/logging"
)

// Store reads and writes pipeline artifacts. Constructed with an
// explicit root so nothing depends on the process working directory.
type Store struct {
	root string
}

// New creates the store rooted at dir, creating the layout directories.
func New(dir string) (*Store, error) {
	for _, sub := range []string{"raw", "consolidated", "reports"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, &bench.StoreError{Op: "init", Path: filepath.Join(dir, sub), Err: err}
		}
	}
	return &Store{root: dir}, nil
}

// Root returns the results directory this store writes under.
func (s *Store) Root() string { return s.root }

func (s *Store) rawPath(subject string, tt bench.TestType, runID string) string {
	return filepath.Join(s.root, "raw", subject, fmt.Sprintf("%s-%s.json", tt, runID))
}

func (s *Store) consolidatedPath(subject, runID string) string {
	return filepath.Join(s.root, "consolidated", fmt.Sprintf("%s-%s.json", subject, runID))
}

func (s *Store) reportPath(runID string) string {
	return filepath.Join(s.root, "reports", runID+".json")
}

// SaveRaw writes one raw measurement to its (subject, testType, runId)
// slot. Each slot has exactly one writer, so plain file replace is
// safe.
func (s *Store) SaveRaw(m bench.RawMeasurement) error {
	path := s.rawPath(m.Subject, m.TestType, m.RunID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &bench.StoreError{Op: "save raw", Path: path, Err: err}
	}
	return s.writeJSON("save raw", path, m)
}

// LoadRaw reads a single raw measurement slot.
func (s *Store) LoadRaw(subject string, tt bench.TestType, runID string) (bench.RawMeasurement, error) {
	var m bench.RawMeasurement
	err := s.readJSON("load raw", s.rawPath(subject, tt, runID), &m)
	return m, err
}

// LoadRawForRun returns whatever raw measurements exist for the
// subject and run, in test-type order. Missing slots are skipped, not
// synthesized.
func (s *Store) LoadRawForRun(subject, runID string) ([]bench.RawMeasurement, error) {
	out := make([]bench.RawMeasurement, 0, 3)
	for _, tt := range bench.AllTestTypes() {
		path := s.rawPath(subject, tt, runID)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		var m bench.RawMeasurement
		if err := s.readJSON("load raw", path, &m); err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

// SaveConsolidated writes a subject's summary and refreshes
// consolidated/latest.json with the summaries of that run.
func (s *Store) SaveConsolidated(sum bench.ConsolidatedSummary) error {
	if err := s.writeJSON("save consolidated", s.consolidatedPath(sum.Subject, sum.RunID), sum); err != nil {
		return err
	}
	return s.refreshLatest(sum.RunID)
}

// LoadConsolidated reads a subject's summary for a run.
func (s *Store) LoadConsolidated(subject, runID string) (bench.ConsolidatedSummary, error) {
	var sum bench.ConsolidatedSummary
	err := s.readJSON("load consolidated", s.consolidatedPath(subject, runID), &sum)
	return sum, err
}

// latestFile is the schema of consolidated/latest.json: the most
// recent run's summaries keyed by subject.
type latestFile struct {
	RunID     string                                `json:"run_id"`
	Summaries map[string]bench.ConsolidatedSummary `json:"summaries"`
}

func (s *Store) refreshLatest(runID string) error {
	pattern := filepath.Join(s.root, "consolidated", "*-"+runID+".json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return &bench.StoreError{Op: "refresh latest", Path: pattern, Err: err}
	}
	latest := latestFile{RunID: runID, Summaries: make(map[string]bench.ConsolidatedSummary, len(matches))}
	for _, path := range matches {
		var sum bench.ConsolidatedSummary
		if err := s.readJSON("refresh latest", path, &sum); err != nil {
			return err
		}
		latest.Summaries[sum.Subject] = sum
	}
	return s.writeJSON("refresh latest", filepath.Join(s.root, "consolidated", "latest.json"), latest)
}

// SaveReport writes the final comparison report for a run.
func (s *Store) SaveReport(r bench.ComparisonReport) error {
	return s.writeJSON("save report", s.reportPath(r.RunID), r)
}

// LoadReport reads a run's comparison report.
func (s *Store) LoadReport(runID string) (bench.ComparisonReport, error) {
	var r bench.ComparisonReport
	err := s.readJSON("load report", s.reportPath(runID), &r)
	return r, err
}

// SaveReportHTML writes a rendered report next to the JSON one.
func (s *Store) SaveReportHTML(runID string, html []byte) error {
	path := filepath.Join(s.root, "reports", runID+".html")
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return &bench.StoreError{Op: "save report html", Path: path, Err: err}
	}
	logging.Store("wrote %s", path)
	return nil
}

// ListRunIDs returns every run id with raw data, ascending. Run ids
// are time-derived so lexicographic order is chronological.
func (s *Store) ListRunIDs() ([]string, error) {
	seen := make(map[string]bool)
	rawDir := filepath.Join(s.root, "raw")
	subjects, err := os.ReadDir(rawDir)
	if err != nil {
		return nil, &bench.StoreError{Op: "list runs", Path: rawDir, Err: err}
	}
	for _, sub := range subjects {
		if !sub.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(rawDir, sub.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			name := strings.TrimSuffix(f.Name(), ".json")
			if idx := strings.Index(name, "-"); idx > 0 && idx < len(name)-1 {
				seen[name[idx+1:]] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// CleanupOlderThan deletes all but the retain most recent runs. The
// in-progress run is never deleted regardless of its age.
func (s *Store) CleanupOlderThan(retain int, inProgress string) error {
	if retain < 0 {
		retain = 0
	}
	runs, err := s.ListRunIDs()
	if err != nil {
		return err
	}
	keep := make(map[string]bool, retain+1)
	for i := len(runs) - 1; i >= 0 && len(keep) < retain; i-- {
		keep[runs[i]] = true
	}
	if inProgress != "" {
		keep[inProgress] = true
	}

	removed := 0
	for _, runID := range runs {
		if keep[runID] {
			continue
		}
		if err := s.deleteRun(runID); err != nil {
			return err
		}
		removed++
	}
	if removed > 0 {
		logging.Store("cleanup removed %d runs, retained %d", removed, len(keep))
	}
	return nil
}

func (s *Store) deleteRun(runID string) error {
	patterns := []string{
		filepath.Join(s.root, "raw", "*", "*-"+runID+".json"),
		filepath.Join(s.root, "consolidated", "*-"+runID+".json"),
		filepath.Join(s.root, "reports", runID+".json"),
		filepath.Join(s.root, "reports", runID+".html"),
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return &bench.StoreError{Op: "cleanup", Path: pattern, Err: err}
		}
		for _, path := range matches {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return &bench.StoreError{Op: "cleanup", Path: path, Err: err}
			}
		}
	}
	return nil
}

func (s *Store) writeJSON(op, path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &bench.StoreError{Op: op, Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logging.StoreError("%s failed: %v", op, err)
		return &bench.StoreError{Op: op, Path: path, Err: err}
	}
	return nil
}

func (s *Store) readJSON(op, path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &bench.StoreError{Op: op, Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &bench.StoreError{Op: op, Path: path, Err: err}
	}
	return nil
}
