package runner

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"fwbench/internal/bench"
	"fwbench/internal/logging"
	"fwbench/internal/subject"
)

// settleDelay gives layout shifts and the largest contentful paint
// time to stabilize after the load event before entries are read.
const settleDelay = 3 * time.Second

// auditScript runs in the audited page and gathers the web vitals from
// the performance timeline. Buffered observers pick up entries recorded
// before the script ran.
const auditScript = `
() => new Promise((resolve) => {
	const collect = () => {
		const nav = performance.getEntriesByType('navigation')[0] || {};
		let fcp = 0;
		for (const e of performance.getEntriesByType('paint')) {
			if (e.name === 'first-contentful-paint') fcp = e.startTime;
		}

		let lcp = 0;
		try {
			const obs = new PerformanceObserver(() => {});
			obs.observe({ type: 'largest-contentful-paint', buffered: true });
			for (const e of obs.takeRecords()) lcp = Math.max(lcp, e.startTime);
			obs.disconnect();
		} catch (err) {}

		let cls = 0;
		try {
			const obs = new PerformanceObserver(() => {});
			obs.observe({ type: 'layout-shift', buffered: true });
			for (const e of obs.takeRecords()) {
				if (!e.hadRecentInput) cls += e.value;
			}
			obs.disconnect();
		} catch (err) {}

		let tbt = 0;
		let lastLongTaskEnd = 0;
		try {
			const obs = new PerformanceObserver(() => {});
			obs.observe({ type: 'longtask', buffered: true });
			for (const e of obs.takeRecords()) {
				tbt += Math.max(0, e.duration - 50);
				lastLongTaskEnd = Math.max(lastLongTaskEnd, e.startTime + e.duration);
			}
			obs.disconnect();
		} catch (err) {}

		const tti = Math.max(nav.domContentLoadedEventEnd || 0, lastLongTaskEnd);

		let totalBytes = nav.transferSize || 0;
		let jsBoot = 0;
		let legacyBytes = 0;
		for (const r of performance.getEntriesByType('resource')) {
			const bytes = r.transferSize || r.encodedBodySize || 0;
			totalBytes += bytes;
			if (r.initiatorType === 'script' || /\.m?js(\?|$)/.test(r.name)) {
				jsBoot += r.duration;
				if (/polyfill|legacy|nomodule|core-js/.test(r.name)) legacyBytes += bytes;
			}
		}

		resolve({
			fcp: fcp,
			lcp: lcp || fcp,
			cls: cls,
			tbt: tbt,
			tti: tti,
			total_bytes: totalBytes,
			js_boot: jsBoot,
			legacy_bytes: legacyBytes,
		});
	};
	if (document.readyState === 'complete') collect();
	else window.addEventListener('load', collect);
})`

type auditSample struct {
	FCP         float64 `json:"fcp"`
	LCP         float64 `json:"lcp"`
	CLS         float64 `json:"cls"`
	TBT         float64 `json:"tbt"`
	TTI         float64 `json:"tti"`
	TotalBytes  float64 `json:"total_bytes"`
	JSBoot      float64 `json:"js_boot"`
	LegacyBytes float64 `json:"legacy_bytes"`
}

// scoreCurve holds the log-normal control points of one scored metric:
// the value that earns 0.9 and the value that earns 0.5.
type scoreCurve struct {
	p10    float64
	median float64
	weight float64
}

// scoreCurves mirrors the Lighthouse v10 performance category weighting.
var scoreCurves = map[string]scoreCurve{
	bench.MetricFirstContentfulMs:   {p10: 1800, median: 3000, weight: 0.10},
	bench.MetricSpeedIndexMs:        {p10: 3387, median: 5800, weight: 0.10},
	bench.MetricLargestContentfulMs: {p10: 2500, median: 4000, weight: 0.25},
	bench.MetricTotalBlockingMs:     {p10: 200, median: 600, weight: 0.30},
	bench.MetricCumulativeShift:     {p10: 0.1, median: 0.25, weight: 0.25},
}

// AuditRunner measures page quality with a cold browser per execution,
// the way a first-time visitor would see the subject.
type AuditRunner struct{}

// NewAuditRunner returns an audit runner.
func NewAuditRunner() *AuditRunner {
	return &AuditRunner{}
}

func (*AuditRunner) Type() bench.TestType { return bench.TestLighthouse }

// Run implements Runner. Each execution launches its own browser so no
// cache or JIT state carries over; the median of every metric across
// executions is reported.
func (r *AuditRunner) Run(ctx context.Context, sub subject.Subject, runID string, opts Options) bench.RawMeasurement {
	started := time.Now()
	m := newMeasurement(sub, bench.TestLighthouse, runID, started)

	samples := make(map[string][]float64)
	var lastErr error
	succeeded := 0

	for i := 0; i < opts.executions(); i++ {
		one, err := r.auditOnce(ctx, sub, opts)
		if err != nil {
			lastErr = err
			logging.Audit("%s: execution %d failed: %v", sub.ID, i+1, err)
			continue
		}
		succeeded++
		for name, v := range one {
			samples[name] = append(samples[name], v)
		}
	}

	if succeeded == 0 {
		finish(&m, started, &bench.MeasurementError{TestType: bench.TestLighthouse, Reason: "all executions failed", Err: lastErr})
		return m
	}

	for name, vals := range samples {
		m.Metrics[name] = median(vals)
	}
	m.Metrics[bench.MetricPerformanceScore] = performanceScore(m.Metrics)

	logging.Audit("%s: score %.1f over %d execution(s)", sub.ID, m.Metrics[bench.MetricPerformanceScore], succeeded)
	finish(&m, started, nil)
	return m
}

// auditOnce runs one cold-start audit and returns the raw metric map.
func (r *AuditRunner) auditOnce(ctx context.Context, sub subject.Subject, opts Options) (map[string]float64, error) {
	timeout := opts.AuditTimeout
	if timeout <= 0 {
		timeout = defaultNavTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout+settleDelay+10*time.Second)
	defer cancel()

	session, err := openBrowser(execCtx, opts)
	if err != nil {
		return nil, err
	}
	defer session.close()

	page, err := session.newPage("about:blank", timeout)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	// Script coverage has to start before any subject code executes.
	if err := (proto.ProfilerEnable{}).Call(page); err != nil {
		return nil, fmt.Errorf("enable profiler: %w", err)
	}
	if _, err := (proto.ProfilerStartPreciseCoverage{Detailed: true}).Call(page); err != nil {
		return nil, fmt.Errorf("start coverage: %w", err)
	}

	if err := page.Timeout(timeout).Navigate(subjectURL(opts.BaseURL, sub.ID, time.Now())); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	select {
	case <-time.After(settleDelay):
	case <-execCtx.Done():
		return nil, &bench.TimeoutError{Op: "audit settle", Budget: timeout}
	}

	var sample auditSample
	if err := evalObject(execCtx, page, auditScript, &sample); err != nil {
		return nil, &bench.MeasurementError{TestType: bench.TestLighthouse, Reason: "metrics collection failed", Err: err}
	}

	out := map[string]float64{
		bench.MetricFirstContentfulMs:   sample.FCP,
		bench.MetricLargestContentfulMs: sample.LCP,
		bench.MetricCumulativeShift:     sample.CLS,
		bench.MetricTotalBlockingMs:     sample.TBT,
		bench.MetricInteractiveMs:       sample.TTI,
		bench.MetricSpeedIndexMs:        (sample.FCP + sample.LCP) / 2,
		bench.MetricTotalByteWeight:     sample.TotalBytes,
		bench.MetricJSBootMs:            sample.JSBoot,
		bench.MetricLegacyJSBytes:       sample.LegacyBytes,
	}

	if nodes, err := domNodeCount(page); err == nil {
		out[bench.MetricDOMSize] = nodes
	}
	if unused, err := unusedScriptBytes(page); err == nil {
		out[bench.MetricUnusedJSBytes] = unused
	}
	return out, nil
}

// unusedScriptBytes sums the never-executed byte ranges reported by V8
// precise coverage.
func unusedScriptBytes(page *rod.Page) (float64, error) {
	res, err := proto.ProfilerTakePreciseCoverage{}.Call(page)
	if err != nil {
		return 0, err
	}
	var unused float64
	for _, script := range res.Result {
		for _, fn := range script.Functions {
			for _, rng := range fn.Ranges {
				if rng.Count == 0 {
					unused += float64(rng.EndOffset - rng.StartOffset)
				}
			}
		}
	}
	return unused, nil
}

// performanceScore folds the scored vitals into a single 0-100 value
// using log-normal curves. Metrics missing from the map are skipped and
// the weights renormalized.
func performanceScore(metrics map[string]float64) float64 {
	var weighted, totalWeight float64
	for name, curve := range scoreCurves {
		value, ok := metrics[name]
		if !ok {
			continue
		}
		weighted += logNormalScore(value, curve.p10, curve.median) * curve.weight
		totalWeight += curve.weight
	}
	if totalWeight == 0 {
		return 0
	}
	return 100 * weighted / totalWeight
}

// logNormalScore maps value onto [0,1] so that p10 scores 0.9 and
// median scores 0.5, falling off log-normally. Zero and negative values
// score a perfect 1.
func logNormalScore(value, p10, median float64) float64 {
	if value <= 0 {
		return 1
	}
	shape := (math.Log(p10) - math.Log(median)) / (math.Sqrt2 * math.Erfcinv(1.8))
	z := (math.Log(value) - math.Log(median)) / (shape * math.Sqrt2)
	return math.Erfc(z) / 2
}
