// Package runner implements the three measurement runners: the browser
// audit, the bundle analyzer, and the runtime profiler. All three share
// one contract: Run never lets a failure escape its boundary. Errors
// are recorded on the returned measurement and the runner completes.
package runner

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"fwbench/internal/bench"
	"fwbench/internal/subject"
)

// Options carries per-invocation tuning shared by all runners.
type Options struct {
	// BaseURL is the server hosting the subjects, e.g.
	// http://127.0.0.1:3000; subjects are served under /{id}/.
	BaseURL string

	// Executions repeats browser-side probes and keeps the median.
	// Zero means one execution.
	Executions int

	AuditTimeout    time.Duration
	BuildTimeout    time.Duration
	ScenarioTimeout time.Duration

	Headless bool

	// BrowserBin overrides browser autodetection (tests use this).
	BrowserBin string
}

// Runner drives one category of measurement against a subject.
type Runner interface {
	Type() bench.TestType

	// Run produces the raw measurement for (subject, runId). It must
	// never panic past its boundary; failures populate the returned
	// measurement's Error field.
	Run(ctx context.Context, sub subject.Subject, runID string, opts Options) bench.RawMeasurement
}

// ForTypes returns fresh runners for the requested test types, in the
// given order. The coordinator schedules whatever this returns, so new
// measurement kinds plug in here without coordinator changes.
func ForTypes(types []bench.TestType) []Runner {
	out := make([]Runner, 0, len(types))
	for _, tt := range types {
		switch tt {
		case bench.TestLighthouse:
			out = append(out, NewAuditRunner())
		case bench.TestBundle:
			out = append(out, NewBundleRunner())
		case bench.TestRuntime:
			out = append(out, NewRuntimeProfiler())
		}
	}
	return out
}

// subjectURL builds the page URL for a subject with mock data enabled
// and a cache-busting parameter so repeated audits never hit a warm
// cache.
func subjectURL(baseURL, subjectID string, now time.Time) string {
	u := fmt.Sprintf("%s/%s/?mock=true&_cb=%d", baseURL, url.PathEscape(subjectID), now.UnixMilli())
	return u
}

// executions normalizes Options.Executions to at least one.
func (o Options) executions() int {
	if o.Executions < 1 {
		return 1
	}
	return o.Executions
}

// newMeasurement starts an empty measurement for a slot.
func newMeasurement(sub subject.Subject, tt bench.TestType, runID string, started time.Time) bench.RawMeasurement {
	return bench.RawMeasurement{
		Subject:   sub.ID,
		TestType:  tt,
		RunID:     runID,
		Metrics:   make(map[string]float64),
		Timestamp: started,
	}
}

// finish stamps the duration and records err (if any) on m.
func finish(m *bench.RawMeasurement, started time.Time, err error) {
	m.DurationMs = time.Since(started).Milliseconds()
	if err != nil {
		m.Error = err.Error()
	}
}

// median returns the middle value of samples (mean of the two middle
// values for even counts). Callers guarantee len > 0.
func median(samples []float64) float64 {
	n := len(samples)
	sorted := append([]float64(nil), samples...)
	for i := 1; i < n; i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
