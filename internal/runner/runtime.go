package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"fwbench/internal/bench"
	"fwbench/internal/logging"
	"fwbench/internal/subject"
)

const (
	defaultScenarioTimeout = 15 * time.Second
	memorySampleInterval   = 250 * time.Millisecond
	interactionPoll        = 50 * time.Millisecond
)

// Subjects render the same weather UI with framework-specific markup,
// so each hook is probed through a list of candidate selectors.
var (
	searchInputSelectors = []string{
		`[data-testid="search-input"]`,
		`input[type="search"]`,
		`#search-input`,
		`.search-input`,
		`input[name="city"]`,
	}
	searchResultSelectors = []string{
		`[data-testid="weather-result"]`,
		`.weather-card`,
		`.weather-result`,
		`.current-conditions`,
	}
	forecastItemSelectors = []string{
		`[data-testid="forecast-day"]`,
		`.forecast-day`,
		`.forecast-item`,
	}
	forecastDetailSelectors = []string{
		`[data-testid="forecast-detail"]`,
		`.forecast-detail`,
		`.forecast-day.expanded`,
		`.forecast-item.expanded`,
	}
)

const searchQuery = "Seattle"

// frameworkReadyScript resolves with ms-since-navigation once any of
// the interactive hooks becomes queryable, or -1 on timeout.
const frameworkReadyScript = `
(selectors, timeoutMs) => new Promise((resolve) => {
	const deadline = performance.now() + timeoutMs;
	const probe = () => {
		for (const sel of selectors) {
			if (document.querySelector(sel)) {
				resolve({ ready_ms: performance.now() });
				return;
			}
		}
		if (performance.now() > deadline) resolve({ ready_ms: -1 });
		else setTimeout(probe, 25);
	};
	probe();
})`

const loadTimingScript = `
() => {
	const nav = performance.getEntriesByType('navigation')[0] || {};
	let fp = 0;
	for (const e of performance.getEntriesByType('paint')) {
		if (e.name === 'first-paint') fp = e.startTime;
	}
	return { load_ms: nav.loadEventEnd || 0, first_paint_ms: fp };
}`

// RuntimeProfiler drives one live browser session through the fixed
// interaction script while sampling the JS heap in the background.
type RuntimeProfiler struct{}

// NewRuntimeProfiler returns a runtime profiler.
func NewRuntimeProfiler() *RuntimeProfiler {
	return &RuntimeProfiler{}
}

func (*RuntimeProfiler) Type() bench.TestType { return bench.TestRuntime }

// Run implements Runner. Scenarios run in a fixed order and fail
// independently: a broken search still lets the forecast and memory
// scenarios contribute their metrics.
func (p *RuntimeProfiler) Run(ctx context.Context, sub subject.Subject, runID string, opts Options) bench.RawMeasurement {
	started := time.Now()
	m := newMeasurement(sub, bench.TestRuntime, runID, started)
	sessionID := uuid.NewString()

	logging.Runtime("%s: profiling session %s", sub.ID, sessionID)

	session, err := openBrowser(ctx, opts)
	if err != nil {
		finish(&m, started, err)
		return m
	}
	defer session.close()

	page, err := session.newPage(subjectURL(opts.BaseURL, sub.ID, time.Now()), opts.navTimeout())
	if err != nil {
		finish(&m, started, &bench.MeasurementError{TestType: bench.TestRuntime, Reason: "page load failed", Err: err})
		return m
	}
	defer page.Close()

	sampler := startMemorySampler(page)
	defer sampler.stop()

	run := &scenarioRun{ctx: ctx, page: page, timeout: opts.scenarioTimeout(), metrics: m.Metrics, subject: sub.ID, session: sessionID}
	run.do("initial load", run.initialLoad)
	run.do("framework ready", run.frameworkReady)
	run.do("search", run.search)
	run.do("forecast expand/collapse", run.forecast)

	sampler.stop()
	sampler.record(m.Metrics)

	var scenarioErr error
	if len(run.failures) > 0 {
		scenarioErr = &bench.MeasurementError{
			TestType: bench.TestRuntime,
			Reason:   strings.Join(run.failures, "; "),
		}
	}
	finish(&m, started, scenarioErr)
	return m
}

func (o Options) navTimeout() time.Duration {
	if o.AuditTimeout > 0 {
		return o.AuditTimeout
	}
	return defaultNavTimeout
}

func (o Options) scenarioTimeout() time.Duration {
	if o.ScenarioTimeout > 0 {
		return o.ScenarioTimeout
	}
	return defaultScenarioTimeout
}

// scenarioRun carries the shared state of one profiling session.
type scenarioRun struct {
	ctx      context.Context
	page     *rod.Page
	timeout  time.Duration
	metrics  map[string]float64
	subject  string
	session  string
	failures []string
}

// do runs one scenario, converting any error (or panic) into an inline
// failure note.
func (r *scenarioRun) do(name string, fn func() error) {
	if r.ctx.Err() != nil {
		r.failures = append(r.failures, fmt.Sprintf("%s: %v", name, r.ctx.Err()))
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.failures = append(r.failures, fmt.Sprintf("%s: panic: %v", name, p))
		}
	}()
	if err := fn(); err != nil {
		logging.Runtime("%s [%s]: scenario %q failed: %v", r.subject, r.session, name, err)
		r.failures = append(r.failures, fmt.Sprintf("%s: %v", name, err))
	}
}

func (r *scenarioRun) initialLoad() error {
	if err := r.page.Timeout(r.timeout).WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	var timing struct {
		LoadMs       float64 `json:"load_ms"`
		FirstPaintMs float64 `json:"first_paint_ms"`
	}
	if err := evalObject(r.ctx, r.page, loadTimingScript, &timing); err != nil {
		return err
	}
	r.metrics[bench.MetricInitialLoadMs] = timing.LoadMs
	r.metrics[bench.MetricFirstPaintMs] = timing.FirstPaintMs
	return nil
}

func (r *scenarioRun) frameworkReady() error {
	var res struct {
		ReadyMs float64 `json:"ready_ms"`
	}
	err := evalObject(r.ctx, r.page, frameworkReadyScript, &res, searchInputSelectors, r.timeout.Milliseconds())
	if err != nil {
		return err
	}
	if res.ReadyMs < 0 {
		return fmt.Errorf("no interactive element within %s", r.timeout)
	}
	r.metrics[bench.MetricFrameworkReadyMs] = res.ReadyMs
	return nil
}

func (r *scenarioRun) search() error {
	el, err := r.findAny(searchInputSelectors)
	if err != nil {
		return fmt.Errorf("search input: %w", err)
	}
	if err := el.Input(searchQuery); err != nil {
		return fmt.Errorf("type query: %w", err)
	}

	started := time.Now()
	if err := el.Type(input.Enter); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := r.waitAnyVisible(searchResultSelectors, true); err != nil {
		return fmt.Errorf("result did not appear: %w", err)
	}
	r.metrics[bench.MetricSearchResponseMs] = float64(time.Since(started).Milliseconds())
	return nil
}

func (r *scenarioRun) forecast() error {
	item, err := r.findAny(forecastItemSelectors)
	if err != nil {
		return fmt.Errorf("forecast item: %w", err)
	}

	started := time.Now()
	if err := item.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("expand click: %w", err)
	}
	if err := r.waitAnyVisible(forecastDetailSelectors, true); err != nil {
		return fmt.Errorf("detail did not appear: %w", err)
	}
	r.metrics[bench.MetricExpandLatencyMs] = float64(time.Since(started).Milliseconds())

	started = time.Now()
	if err := item.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("collapse click: %w", err)
	}
	if err := r.waitAnyVisible(forecastDetailSelectors, false); err != nil {
		return fmt.Errorf("detail did not disappear: %w", err)
	}
	r.metrics[bench.MetricCollapseLatencyMs] = float64(time.Since(started).Milliseconds())
	return nil
}

// findAny returns the first element matching any candidate selector.
func (r *scenarioRun) findAny(selectors []string) (*rod.Element, error) {
	deadline := time.Now().Add(r.timeout)
	for {
		for _, sel := range selectors {
			has, el, err := r.page.Has(sel)
			if err == nil && has {
				return el, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, &bench.TimeoutError{Op: "locate " + strings.Join(selectors, ", "), Budget: r.timeout}
		}
		select {
		case <-r.ctx.Done():
			return nil, r.ctx.Err()
		case <-time.After(interactionPoll):
		}
	}
}

// waitAnyVisible polls until a candidate is visible (or, with
// want=false, until none is).
func (r *scenarioRun) waitAnyVisible(selectors []string, want bool) error {
	deadline := time.Now().Add(r.timeout)
	for {
		visible := false
		for _, sel := range selectors {
			has, el, err := r.page.Has(sel)
			if err != nil || !has {
				continue
			}
			if v, err := el.Visible(); err == nil && v {
				visible = true
				break
			}
		}
		if visible == want {
			return nil
		}
		if time.Now().After(deadline) {
			return &bench.TimeoutError{Op: "wait visibility", Budget: r.timeout}
		}
		select {
		case <-r.ctx.Done():
			return r.ctx.Err()
		case <-time.After(interactionPoll):
		}
	}
}

// memorySampler polls the page heap on a ticker until stopped.
type memorySampler struct {
	mu      sync.Mutex
	samples []float64
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func startMemorySampler(page *rod.Page) *memorySampler {
	s := &memorySampler{done: make(chan struct{})}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(memorySampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				if mb, err := heapUsedMB(page); err == nil {
					s.mu.Lock()
					s.samples = append(s.samples, mb)
					s.mu.Unlock()
				}
			}
		}
	}()
	return s
}

// stop halts sampling and waits for the goroutine. Idempotent.
func (s *memorySampler) stop() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

// record writes peak, average, growth, and sample count. With no
// samples (heap polling unavailable) the metrics are left out.
func (s *memorySampler) record(metrics map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return
	}
	peak, sum := s.samples[0], 0.0
	for _, v := range s.samples {
		if v > peak {
			peak = v
		}
		sum += v
	}
	metrics[bench.MetricMemoryPeakMB] = peak
	metrics[bench.MetricMemoryAvgMB] = sum / float64(len(s.samples))
	metrics[bench.MetricMemoryGrowthMB] = s.samples[len(s.samples)-1] - s.samples[0]
	metrics[bench.MetricMemorySamples] = float64(len(s.samples))
}
