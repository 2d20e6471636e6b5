// Package bench defines the shared data model of the benchmark pipeline:
// raw measurements written by runners, consolidated per-subject summaries,
// and the cross-subject comparison report.
package bench

import (
	"encoding/json"
	"sort"
	"time"
)

// TestType identifies one category of measurement.
type TestType string

const (
	TestLighthouse TestType = "lighthouse"
	TestBundle     TestType = "bundle"
	TestRuntime    TestType = "runtime"
)

// AllTestTypes returns every known test type in canonical order.
func AllTestTypes() []TestType {
	return []TestType{TestLighthouse, TestBundle, TestRuntime}
}

// ParseTestTypes resolves a list of raw names into test types.
// Unknown names are reported via MeasurementError.
func ParseTestTypes(names []string) ([]TestType, error) {
	if len(names) == 0 {
		return AllTestTypes(), nil
	}
	out := make([]TestType, 0, len(names))
	for _, n := range names {
		tt := TestType(n)
		switch tt {
		case TestLighthouse, TestBundle, TestRuntime:
			out = append(out, tt)
		default:
			return nil, &MeasurementError{TestType: tt, Reason: "unknown test type"}
		}
	}
	return out, nil
}

// NewRunID derives a run identifier from the invocation time.
// The format sorts lexicographically in chronological order, which the
// store's retention cleanup relies on.
func NewRunID(t time.Time) string {
	return t.Format("20060102-150405")
}

// Score is a tagged partial value: either a valid score clamped to
// [0,100] or explicitly absent. Absent is never zero; consumers must
// check Valid before using Value.
type Score struct {
	Value float64
	Valid bool
}

// ValidScore builds a present score, clamping into [0,100].
func ValidScore(v float64) Score {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return Score{Value: v, Valid: true}
}

// AbsentScore is the canonical missing score.
func AbsentScore() Score {
	return Score{}
}

// MarshalJSON encodes an absent score as null so that "absent" survives
// a store round-trip distinctly from zero.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// UnmarshalJSON accepts null (absent) or a number (present, clamped).
func (s *Score) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Score{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = ValidScore(v)
	return nil
}

// RawMeasurement is the unprocessed output of one runner for one
// (subject, testType, runId) slot. Written exactly once; never mutated
// after write.
type RawMeasurement struct {
	Subject    string             `json:"subject"`
	TestType   TestType           `json:"test_type"`
	RunID      string             `json:"run_id"`
	Metrics    map[string]float64 `json:"metrics"`
	DurationMs int64              `json:"duration_ms"`
	Error      string             `json:"error,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Failed reports whether the runner recorded a failure for this slot.
// A measurement can carry partial metrics and still be failed.
func (m RawMeasurement) Failed() bool {
	return m.Error != ""
}

// MetricNames returns the metric keys in sorted order, for
// deterministic downstream processing.
func (m RawMeasurement) MetricNames() []string {
	names := make([]string, 0, len(m.Metrics))
	for k := range m.Metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// OutcomeStatus classifies how a test type fared for a subject.
type OutcomeStatus string

const (
	OutcomeOK      OutcomeStatus = "ok"
	OutcomePartial OutcomeStatus = "partial"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeMissing OutcomeStatus = "missing"
)

// TestOutcome records per-test status and error text so partial data is
// visible in the final report instead of silently dropped.
type TestOutcome struct {
	Status  OutcomeStatus      `json:"status"`
	Error   string             `json:"error,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// DimensionScores holds the normalized scores of one subject. Each
// field is independently present or absent.
type DimensionScores struct {
	Overall Score `json:"overall"`
	Loading Score `json:"loading"`
	Runtime Score `json:"runtime"`
	Bundle  Score `json:"bundle"`
	Memory  Score `json:"memory"`
}

// Dimension names used in rankings and recommendations.
const (
	DimOverall = "overall"
	DimLoading = "loading"
	DimRuntime = "runtime"
	DimBundle  = "bundle"
	DimMemory  = "memory"
)

// ByName returns the score for a named dimension.
func (d DimensionScores) ByName(name string) Score {
	switch name {
	case DimOverall:
		return d.Overall
	case DimLoading:
		return d.Loading
	case DimRuntime:
		return d.Runtime
	case DimBundle:
		return d.Bundle
	case DimMemory:
		return d.Memory
	}
	return AbsentScore()
}

// ConsolidatedSummary is the scored aggregation of one subject's raw
// measurements for one run. Fully derived; recomputable at any time
// from stored raw data.
type ConsolidatedSummary struct {
	Subject    string                   `json:"subject"`
	RunID      string                   `json:"run_id"`
	PerTest    map[TestType]TestOutcome `json:"per_test"`
	Scores     DimensionScores          `json:"scores"`
	Strengths  []string                 `json:"strengths"`
	Weaknesses []string                 `json:"weaknesses"`
	Errors     []string                 `json:"errors"`
}

// RankedSubject is one entry of a dimension ranking.
type RankedSubject struct {
	Subject string  `json:"subject"`
	Score   float64 `json:"score"`
}

// TopPerformer is a subject within the leader margin of the best
// overall score, annotated with the dimensions it leads.
type TopPerformer struct {
	Subject   string   `json:"subject"`
	Overall   float64  `json:"overall"`
	LeadingIn []string `json:"leading_in"`
}

// Recommendation is a rule-derived improvement suggestion for one
// subject.
type Recommendation struct {
	Subject string `json:"subject"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail"`
}

// Insights groups notable observations and recommendations.
type Insights struct {
	Notable         []string         `json:"notable"`
	Recommendations []Recommendation `json:"recommendations"`
}

// TableRow is one subject's row of the comparison table. Every subject
// of the run appears, measured or not.
type TableRow struct {
	Subject   string                     `json:"subject"`
	Display   string                     `json:"display_name,omitempty"`
	Scores    DimensionScores            `json:"scores"`
	TestState map[TestType]OutcomeStatus `json:"test_state"`
	Errors    []string                   `json:"errors,omitempty"`
}

// ComparisonReport is the final cross-subject output of one run.
// Produced exactly once per run id.
type ComparisonReport struct {
	RunID         string                     `json:"run_id"`
	Rankings      map[string][]RankedSubject `json:"rankings"`
	TopPerformers []TopPerformer             `json:"top_performers"`
	Insights      Insights                   `json:"insights"`
	Table         []TableRow                 `json:"comparison_table"`
	GeneratedAt   time.Time                  `json:"generated_at"`
}

// Usable reports whether at least one subject contributed any data.
func (r ComparisonReport) Usable() bool {
	for _, row := range r.Table {
		for _, st := range row.TestState {
			if st != OutcomeMissing {
				return true
			}
		}
	}
	return false
}
