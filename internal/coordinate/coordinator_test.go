package coordinate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwbench/internal/bench"
	"fwbench/internal/consolidate"
	"fwbench/internal/runner"
	"fwbench/internal/store"
	"fwbench/internal/subject"
)

// fakeRunner returns canned measurements without touching a browser or
// shell.
type fakeRunner struct {
	tt      bench.TestType
	metrics map[string]float64
	err     string
}

func (f *fakeRunner) Type() bench.TestType { return f.tt }

func (f *fakeRunner) Run(ctx context.Context, sub subject.Subject, runID string, opts runner.Options) bench.RawMeasurement {
	m := bench.RawMeasurement{
		Subject:   sub.ID,
		TestType:  f.tt,
		RunID:     runID,
		Metrics:   map[string]float64{},
		Timestamp: time.Now(),
		Error:     f.err,
	}
	for k, v := range f.metrics {
		m.Metrics[k] = v
	}
	return m
}

func newTestCoordinator(t *testing.T, runners ...runner.Runner) (*Coordinator, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	c := New(st, Options{Thresholds: consolidate.DefaultThresholds()})
	c.forTypes = func(types []bench.TestType) []runner.Runner {
		out := make([]runner.Runner, 0, len(runners))
		for _, tt := range types {
			for _, r := range runners {
				if r.Type() == tt {
					out = append(out, r)
				}
			}
		}
		return out
	}
	return c, st
}

func TestRunHappyPath(t *testing.T) {
	c, st := newTestCoordinator(t,
		&fakeRunner{tt: bench.TestLighthouse, metrics: map[string]float64{bench.MetricPerformanceScore: 90}},
		&fakeRunner{tt: bench.TestBundle, metrics: map[string]float64{bench.MetricTotalGzipBytes: 100 * 1024}},
		&fakeRunner{tt: bench.TestRuntime, metrics: map[string]float64{
			bench.MetricSearchResponseMs: 800,
			bench.MetricMemoryPeakMB:     50,
		}},
	)

	subjects := []subject.Subject{{ID: "a"}, {ID: "b"}}
	out, err := c.Run(context.Background(), subjects, bench.AllTestTypes())
	require.NoError(t, err)

	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, StateDone, c.State())
	assert.Equal(t, 6, out.Measured)
	assert.Empty(t, out.Partial)
	assert.True(t, out.Report.Usable())
	require.Len(t, out.Report.Table, 2)

	// Raw, consolidated, and report artifacts all exist.
	raws, err := st.LoadRawForRun("a", out.RunID)
	require.NoError(t, err)
	assert.Len(t, raws, 3)
	sum, err := st.LoadConsolidated("b", out.RunID)
	require.NoError(t, err)
	assert.True(t, sum.Scores.Overall.Valid)
	_, err = st.LoadReport(out.RunID)
	require.NoError(t, err)
}

func TestRunPartialFailureStillReports(t *testing.T) {
	c, st := newTestCoordinator(t,
		&fakeRunner{tt: bench.TestBundle, metrics: map[string]float64{bench.MetricTotalGzipBytes: 100 * 1024}},
		&fakeRunner{tt: bench.TestRuntime, err: "tool unavailable: chrome"},
	)

	subjects := []subject.Subject{{ID: "a"}}
	out, err := c.Run(context.Background(), subjects, []bench.TestType{bench.TestBundle, bench.TestRuntime})
	require.NoError(t, err)

	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, 1, out.Measured)
	assert.Equal(t, []bench.TestType{bench.TestRuntime}, out.Partial["a"])

	sum, err := st.LoadConsolidated("a", out.RunID)
	require.NoError(t, err)
	assert.Equal(t, bench.OutcomeFailed, sum.PerTest[bench.TestRuntime].Status)
	assert.True(t, sum.Scores.Bundle.Valid)
	assert.True(t, out.Report.Usable())
}

func TestRunCarriesStoreFailureIntoReport(t *testing.T) {
	c, st := newTestCoordinator(t,
		&fakeRunner{tt: bench.TestBundle, metrics: map[string]float64{bench.MetricTotalGzipBytes: 100 * 1024}},
	)
	// A file where subject a's raw directory belongs makes every save
	// for that subject fail.
	require.NoError(t, os.WriteFile(filepath.Join(st.Root(), "raw", "a"), []byte("x"), 0o644))

	subjects := []subject.Subject{{ID: "a"}, {ID: "b"}}
	out, err := c.Run(context.Background(), subjects, []bench.TestType{bench.TestBundle})
	require.NoError(t, err)

	// Only b's measurement persisted; a is partial despite a clean
	// runner pass.
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, 1, out.Measured)
	assert.Equal(t, []bench.TestType{bench.TestBundle}, out.Partial["a"])
	assert.NotEmpty(t, out.Errors)

	// The persisted summary and the report both name the lost slot.
	sum, err := st.LoadConsolidated("a", out.RunID)
	require.NoError(t, err)
	require.Len(t, sum.Errors, 1)
	assert.Contains(t, sum.Errors[0], "not persisted")

	for _, row := range out.Report.Table {
		if row.Subject != "a" {
			continue
		}
		assert.NotEmpty(t, row.Errors)
		assert.Equal(t, bench.OutcomeMissing, row.TestState[bench.TestBundle])
	}
}

func TestRunFailsWithZeroMeasurements(t *testing.T) {
	c, _ := newTestCoordinator(t,
		&fakeRunner{tt: bench.TestBundle, err: "build exploded"},
	)

	out, err := c.Run(context.Background(), []subject.Subject{{ID: "a"}}, []bench.TestType{bench.TestBundle})
	require.Error(t, err)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, 0, out.Measured)
}

func TestRunFailsWithNoSubjects(t *testing.T) {
	c, _ := newTestCoordinator(t)
	out, err := c.Run(context.Background(), nil, bench.AllTestTypes())
	require.Error(t, err)
	assert.Equal(t, StateFailed, out.State)
}

func TestRunCancellationSkipsRemainingSubjects(t *testing.T) {
	blocker := &cancellingRunner{tt: bench.TestBundle, metrics: map[string]float64{bench.MetricTotalGzipBytes: 1024}}
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	c := New(st, Options{Thresholds: consolidate.DefaultThresholds()})
	c.forTypes = func(types []bench.TestType) []runner.Runner {
		return []runner.Runner{blocker}
	}

	ctx, cancel := context.WithCancel(context.Background())
	blocker.cancel = cancel

	subjects := []subject.Subject{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	out, err := c.Run(ctx, subjects, []bench.TestType{bench.TestBundle})
	require.NoError(t, err)

	// The first subject finished; b and c were never scheduled.
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, 1, out.Measured)
	assert.Equal(t, []bench.TestType{bench.TestBundle}, out.Partial["b"])
	assert.Equal(t, []bench.TestType{bench.TestBundle}, out.Partial["c"])
	require.Len(t, out.Report.Table, 3)
	assert.NotEmpty(t, out.Errors)
}

// cancellingRunner cancels the run context while measuring its first
// subject, then completes normally.
type cancellingRunner struct {
	tt      bench.TestType
	metrics map[string]float64
	cancel  context.CancelFunc
}

func (r *cancellingRunner) Type() bench.TestType { return r.tt }

func (r *cancellingRunner) Run(ctx context.Context, sub subject.Subject, runID string, opts runner.Options) bench.RawMeasurement {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	return bench.RawMeasurement{
		Subject: sub.ID, TestType: r.tt, RunID: runID,
		Metrics: r.metrics, Timestamp: time.Now(),
	}
}

func TestTransitionGuards(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	c := New(st, Options{})

	assert.Equal(t, StateInit, c.State())
	require.Error(t, c.transition(StateConsolidating))
	require.NoError(t, c.transition(StateRunningTests))
	require.Error(t, c.transition(StateDone))
	require.NoError(t, c.transition(StateConsolidating))
	// Failed is unreachable once data-bearing phases begin.
	require.Error(t, c.transition(StateFailed))
	require.NoError(t, c.transition(StateComparing))
	require.NoError(t, c.transition(StateReporting))
	require.NoError(t, c.transition(StateDone))
}
