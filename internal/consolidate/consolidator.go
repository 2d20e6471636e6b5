// Package consolidate aggregates a subject's raw measurements for one
// run into a scored summary. Scoring is presence-gated: a dimension
// without its underlying metric stays absent and never dilutes the
// overall average toward zero.
package consolidate

import (
	"fmt"
	"sort"

	"fwbench/internal/bench"
	"fwbench/internal/logging"
)

// Thresholds are the linear-mapping anchors for dimension scores. The
// floor maps to 100, the ceiling to 0, clamped outside that range.
// Override via config, not by editing consumers.
type Thresholds struct {
	RuntimeFloorMs float64 `yaml:"runtime_floor_ms"`
	RuntimeCeilMs  float64 `yaml:"runtime_ceil_ms"`
	BundleFloorKB  float64 `yaml:"bundle_floor_kb"`
	BundleCeilKB   float64 `yaml:"bundle_ceil_kb"`
	MemoryFloorMB  float64 `yaml:"memory_floor_mb"`
	MemoryCeilMB   float64 `yaml:"memory_ceil_mb"`
}

// DefaultThresholds returns the standard anchor values:
// 500ms/5000ms search response, 50KB/500KB gzip, 25MB/200MB peak heap.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RuntimeFloorMs: 500,
		RuntimeCeilMs:  5000,
		BundleFloorKB:  50,
		BundleCeilKB:   500,
		MemoryFloorMB:  25,
		MemoryCeilMB:   200,
	}
}

// linearScore maps v in [floor, ceil] onto [100, 0], clamped.
func linearScore(v, floor, ceil float64) bench.Score {
	if ceil <= floor {
		return bench.AbsentScore()
	}
	return bench.ValidScore(100 - (v-floor)/(ceil-floor)*100)
}

// Consolidate builds the summary for one (subject, runId) from the raw
// measurements that exist. Deterministic: identical input produces
// byte-identical output on every invocation.
func Consolidate(subjectID, runID string, raws []bench.RawMeasurement, th Thresholds) bench.ConsolidatedSummary {
	timer := logging.StartTimer(logging.CategoryConsolidate, "consolidate "+subjectID)
	defer timer.Stop()

	sum := bench.ConsolidatedSummary{
		Subject:    subjectID,
		RunID:      runID,
		PerTest:    make(map[bench.TestType]bench.TestOutcome, len(raws)),
		Strengths:  []string{},
		Weaknesses: []string{},
		Errors:     []string{},
	}

	metrics := make(map[bench.TestType]map[string]float64, len(raws))
	for _, m := range raws {
		outcome := bench.TestOutcome{Status: bench.OutcomeOK, Metrics: m.Metrics}
		if m.Failed() {
			outcome.Error = m.Error
			if len(m.Metrics) > 0 {
				outcome.Status = bench.OutcomePartial
			} else {
				outcome.Status = bench.OutcomeFailed
			}
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %s", m.TestType, m.Error))
		}
		sum.PerTest[m.TestType] = outcome
		metrics[m.TestType] = m.Metrics
	}
	for _, tt := range bench.AllTestTypes() {
		if _, ok := sum.PerTest[tt]; !ok {
			sum.PerTest[tt] = bench.TestOutcome{Status: bench.OutcomeMissing}
		}
	}
	sort.Strings(sum.Errors)

	sum.Scores = scoreDimensions(metrics, th)
	sum.Strengths, sum.Weaknesses = classify(metrics)
	logging.Consolidate("%s/%s: overall %.1f (valid=%t), %d error(s)",
		subjectID, runID, sum.Scores.Overall.Value, sum.Scores.Overall.Valid, len(sum.Errors))
	return sum
}

func scoreDimensions(metrics map[bench.TestType]map[string]float64, th Thresholds) bench.DimensionScores {
	var scores bench.DimensionScores

	if v, ok := metric(metrics, bench.TestLighthouse, bench.MetricPerformanceScore); ok {
		// Already 0-100; pass through unchanged.
		scores.Loading = bench.ValidScore(v)
	}
	if v, ok := metric(metrics, bench.TestRuntime, bench.MetricSearchResponseMs); ok {
		scores.Runtime = linearScore(v, th.RuntimeFloorMs, th.RuntimeCeilMs)
	}
	if v, ok := metric(metrics, bench.TestBundle, bench.MetricTotalGzipBytes); ok {
		scores.Bundle = linearScore(v/1024, th.BundleFloorKB, th.BundleCeilKB)
	}
	if v, ok := metric(metrics, bench.TestRuntime, bench.MetricMemoryPeakMB); ok {
		scores.Memory = linearScore(v, th.MemoryFloorMB, th.MemoryCeilMB)
	}

	// Overall is the mean of whichever dimensions are present.
	var total float64
	var n int
	for _, s := range []bench.Score{scores.Loading, scores.Runtime, scores.Bundle, scores.Memory} {
		if s.Valid {
			total += s.Value
			n++
		}
	}
	if n > 0 {
		scores.Overall = bench.ValidScore(total / float64(n))
	}
	return scores
}

func metric(metrics map[bench.TestType]map[string]float64, tt bench.TestType, key string) (float64, bool) {
	m, ok := metrics[tt]
	if !ok {
		return 0, false
	}
	v, ok := m[key]
	return v, ok
}

// classifyRule derives a strength or weakness from a raw metric. A
// metric below goodBelow is a strength; above badAbove a weakness.
type classifyRule struct {
	testType  bench.TestType
	key       string
	goodBelow float64
	badAbove  float64
	strength  string
	weakness  string
}

var classifyRules = []classifyRule{
	{bench.TestLighthouse, bench.MetricLargestContentfulMs, 2500, 4000, "fast largest contentful paint", "slow largest contentful paint"},
	{bench.TestLighthouse, bench.MetricFirstContentfulMs, 1800, 3000, "fast first contentful paint", "slow first contentful paint"},
	{bench.TestLighthouse, bench.MetricCumulativeShift, 0.1, 0.25, "stable layout", "high layout shift"},
	{bench.TestLighthouse, bench.MetricTotalBlockingMs, 200, 600, "low main-thread blocking", "high main-thread blocking"},
	{bench.TestBundle, bench.MetricTotalGzipBytes, 100 * 1024, 300 * 1024, "small compressed bundle", "large compressed bundle"},
	{bench.TestRuntime, bench.MetricSearchResponseMs, 1000, 3000, "responsive search", "sluggish search"},
	{bench.TestRuntime, bench.MetricMemoryPeakMB, 50, 150, "low memory footprint", "high memory footprint"},
}

func classify(metrics map[bench.TestType]map[string]float64) (strengths, weaknesses []string) {
	strengths = []string{}
	weaknesses = []string{}
	for _, r := range classifyRules {
		v, ok := metric(metrics, r.testType, r.key)
		if !ok {
			continue
		}
		switch {
		case v < r.goodBelow:
			strengths = append(strengths, r.strength)
		case v > r.badAbove:
			weaknesses = append(weaknesses, r.weakness)
		}
	}
	if v, ok := metric(metrics, bench.TestBundle, bench.MetricBuildSuccess); ok && v == 0 {
		weaknesses = append(weaknesses, "build failed")
	}
	sort.Strings(strengths)
	sort.Strings(weaknesses)
	return strengths, weaknesses
}
