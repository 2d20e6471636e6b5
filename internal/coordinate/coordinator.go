// Package coordinate drives one full benchmark invocation through an
// explicit state machine: runners per subject, consolidation,
// comparison, and the final report.
package coordinate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"fwbench/internal/bench"
	"fwbench/internal/compare"
	"fwbench/internal/consolidate"
	"fwbench/internal/logging"
	"fwbench/internal/report"
	"fwbench/internal/runner"
	"fwbench/internal/store"
	"fwbench/internal/subject"
)

// State is one phase of the benchmark pipeline.
type State string

const (
	StateInit          State = "init"
	StateRunningTests  State = "running_tests"
	StateConsolidating State = "consolidating"
	StateComparing     State = "comparing"
	StateReporting     State = "reporting"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// validNext guards the pipeline ordering. Failed is reachable only
// before any data exists; once a single measurement landed the
// pipeline always runs to Done.
var validNext = map[State][]State{
	StateInit:          {StateRunningTests, StateFailed},
	StateRunningTests:  {StateConsolidating, StateFailed},
	StateConsolidating: {StateComparing},
	StateComparing:     {StateReporting},
	StateReporting:     {StateDone},
}

// Options tunes one coordinator instance.
type Options struct {
	Runner     runner.Options
	Thresholds consolidate.Thresholds

	// Pacing is the idle gap between subjects.
	Pacing time.Duration

	// HTML also renders the report as a web page.
	HTML bool

	// KeepRuns, when positive, prunes older runs after reporting.
	KeepRuns int
}

// RunOutcome summarizes one finished invocation.
type RunOutcome struct {
	RunID    string
	State    State
	Report   bench.ComparisonReport
	Measured int

	// Partial lists the test types that failed or were skipped, per
	// subject. Subjects absent from the map completed cleanly.
	Partial map[string][]bench.TestType

	Errors []string
}

// Coordinator owns the pipeline state for one invocation. Not safe for
// reuse; build a fresh one per run.
type Coordinator struct {
	store *store.Store
	gen   *report.Generator
	opts  Options
	state State

	// forTypes builds the runners for a subject; tests substitute
	// fakes here.
	forTypes func(types []bench.TestType) []runner.Runner
}

// New returns a coordinator in the initial state.
func New(st *store.Store, opts Options) *Coordinator {
	return &Coordinator{
		store:    st,
		gen:      report.NewGenerator(st),
		opts:     opts,
		state:    StateInit,
		forTypes: runner.ForTypes,
	}
}

// State returns the current pipeline state.
func (c *Coordinator) State() State { return c.state }

// transition moves the pipeline to the next state, enforcing the
// ordering guard.
func (c *Coordinator) transition(to State) error {
	for _, ok := range validNext[c.state] {
		if to == ok {
			logging.Coordinator("state %s -> %s", c.state, to)
			c.state = to
			return nil
		}
	}
	return fmt.Errorf("invalid state transition %s -> %s", c.state, to)
}

// Run executes the whole pipeline for the given subjects and test
// types. Subjects are measured one at a time; a cancelled context
// stops scheduling new subjects but the in-flight subject always
// finishes its own cleanup. Whatever raw data exists when measuring
// ends is consolidated, compared, and reported.
func (c *Coordinator) Run(ctx context.Context, subjects []subject.Subject, types []bench.TestType) (RunOutcome, error) {
	runID := bench.NewRunID(time.Now())
	out := RunOutcome{RunID: runID, Partial: make(map[string][]bench.TestType)}

	if len(subjects) == 0 {
		_ = c.transition(StateFailed)
		out.State = c.state
		return out, &bench.ConfigError{Reason: "no subjects to benchmark"}
	}

	if err := c.transition(StateRunningTests); err != nil {
		out.State = c.state
		return out, err
	}
	logging.Coordinator("run %s: %d subject(s), types %v", runID, len(subjects), types)

	// Persistence failures per subject; carried into that subject's
	// summary so the report shows which slots lost their data.
	storeFailures := make(map[string][]string)

	measured := c.runMeasurements(ctx, subjects, types, runID, &out, storeFailures)
	out.Measured = measured

	if measured == 0 {
		_ = c.transition(StateFailed)
		out.State = c.state
		logging.CoordinatorWarn("run %s: no measurements obtained for any subject", runID)
		return out, &bench.MeasurementError{Reason: "no measurements obtained for any subject"}
	}

	if err := c.transition(StateConsolidating); err != nil {
		out.State = c.state
		return out, err
	}
	summaries := c.consolidate(subjects, runID, &out, storeFailures)

	if err := c.transition(StateComparing); err != nil {
		out.State = c.state
		return out, err
	}
	out.Report = compare.Compare(runID, subjects, summaries, time.Now())

	if err := c.transition(StateReporting); err != nil {
		out.State = c.state
		return out, err
	}
	if err := c.gen.Generate(out.Report, c.opts.HTML); err != nil {
		// The report still exists in memory; surface the failure
		// without discarding the run.
		out.Errors = append(out.Errors, err.Error())
		logging.CoordinatorWarn("run %s: report persistence failed: %v", runID, err)
	}

	if c.opts.KeepRuns > 0 {
		if err := c.store.CleanupOlderThan(c.opts.KeepRuns, runID); err != nil {
			out.Errors = append(out.Errors, err.Error())
		}
	}

	if err := c.transition(StateDone); err != nil {
		out.State = c.state
		return out, err
	}
	out.State = c.state

	if ctx.Err() != nil {
		out.Errors = append(out.Errors, "run interrupted: remaining subjects were skipped")
	}
	return out, nil
}

// runMeasurements drives all runners subject by subject and returns
// the count of measurements that produced metrics and persisted. A
// measurement whose save failed is unavailable to the rest of the
// pipeline, so it counts as partial, not measured.
func (c *Coordinator) runMeasurements(ctx context.Context, subjects []subject.Subject, types []bench.TestType, runID string, out *RunOutcome, storeFailures map[string][]string) int {
	measured := 0

	for i, sub := range subjects {
		if ctx.Err() != nil {
			logging.CoordinatorWarn("run %s: cancelled, skipping remaining %d subject(s)", runID, len(subjects)-i)
			for _, skipped := range subjects[i:] {
				out.Partial[skipped.ID] = append([]bench.TestType(nil), types...)
			}
			break
		}
		if i > 0 && c.opts.Pacing > 0 {
			select {
			case <-time.After(c.opts.Pacing):
			case <-ctx.Done():
			}
		}

		logging.Coordinator("run %s: measuring %s (%d/%d)", runID, sub.ID, i+1, len(subjects))
		results := c.measureSubject(ctx, sub, types, runID)

		for _, m := range results {
			saveErr := c.store.SaveRaw(m)
			if saveErr != nil {
				out.Errors = append(out.Errors, saveErr.Error())
				storeFailures[sub.ID] = append(storeFailures[sub.ID],
					fmt.Sprintf("%s: measurement not persisted: %v", m.TestType, saveErr))
				logging.CoordinatorWarn("run %s: %v", runID, saveErr)
			}
			if len(m.Metrics) > 0 && saveErr == nil {
				measured++
			}
			if m.Failed() || len(m.Metrics) == 0 || saveErr != nil {
				out.Partial[sub.ID] = append(out.Partial[sub.ID], m.TestType)
			}
		}
		sortTypes(out.Partial[sub.ID])
	}
	return measured
}

// measureSubject runs the requested test types for one subject. The
// audit and bundle runners do not share a browser session with the
// profiler, so they run concurrently; the profiler runs after both so
// its timing measurements see a quiet host.
func (c *Coordinator) measureSubject(ctx context.Context, sub subject.Subject, types []bench.TestType, runID string) []bench.RawMeasurement {
	timer := logging.StartTimer(logging.CategoryRunner, "measure "+sub.ID)
	defer timer.StopWithThreshold(5 * time.Minute)

	var parallel, sequential []runner.Runner
	for _, r := range c.forTypes(types) {
		if r.Type() == bench.TestRuntime {
			sequential = append(sequential, r)
		} else {
			parallel = append(parallel, r)
		}
	}
	logging.Runner("%s: %d parallel runner(s), %d sequential", sub.ID, len(parallel), len(sequential))

	results := make([]bench.RawMeasurement, 0, len(parallel)+len(sequential))
	if len(parallel) > 0 {
		slots := make([]bench.RawMeasurement, len(parallel))
		g, gctx := errgroup.WithContext(ctx)
		for i, r := range parallel {
			g.Go(func() error {
				// Runners never fail the group; errors live on the
				// measurement.
				slots[i] = r.Run(gctx, sub, runID, c.opts.Runner)
				return nil
			})
		}
		_ = g.Wait()
		results = append(results, slots...)
	}
	for _, r := range sequential {
		results = append(results, r.Run(ctx, sub, runID, c.opts.Runner))
	}
	for _, m := range results {
		logging.RunnerDebug("%s: %s finished in %dms", sub.ID, m.TestType, m.DurationMs)
	}
	return results
}

// consolidate builds and persists a summary for every subject, even
// those with zero raw data. Store failures recorded during measuring
// join the subject's own measurement errors so the persisted report
// names the missing slots.
func (c *Coordinator) consolidate(subjects []subject.Subject, runID string, out *RunOutcome, storeFailures map[string][]string) map[string]bench.ConsolidatedSummary {
	summaries := make(map[string]bench.ConsolidatedSummary, len(subjects))
	for _, sub := range subjects {
		raws, err := c.store.LoadRawForRun(sub.ID, runID)
		if err != nil {
			out.Errors = append(out.Errors, err.Error())
			logging.CoordinatorWarn("run %s: %v", runID, err)
		}
		sum := consolidate.Consolidate(sub.ID, runID, raws, c.opts.Thresholds)
		if failures := storeFailures[sub.ID]; len(failures) > 0 {
			sum.Errors = append(sum.Errors, failures...)
			sort.Strings(sum.Errors)
		}
		if err := c.store.SaveConsolidated(sum); err != nil {
			out.Errors = append(out.Errors, err.Error())
			logging.CoordinatorWarn("run %s: %v", runID, err)
		}
		summaries[sub.ID] = sum
	}
	return summaries
}

func sortTypes(types []bench.TestType) {
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
}
