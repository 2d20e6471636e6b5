package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"fwbench/internal/bench"
)

const (
	viewportWidth  = 1920
	viewportHeight = 1080

	defaultNavTimeout = 30 * time.Second
)

// browserSession owns one launched Chrome with a throwaway profile.
// Each measurement pass gets its own session so nothing leaks between
// subjects: no shared cache, cookies, or JIT state.
type browserSession struct {
	browser     *rod.Browser
	launch      *launcher.Launcher
	userDataDir string
}

// openBrowser launches Chrome into a fresh temp profile and connects.
func openBrowser(ctx context.Context, opts Options) (*browserSession, error) {
	dir, err := os.MkdirTemp("", "fwbench-profile-")
	if err != nil {
		return nil, &bench.ToolUnavailableError{Tool: "chrome", Err: err}
	}

	launch := launcher.New().
		Headless(opts.Headless).
		UserDataDir(dir).
		Set(flags.Flag("disable-background-networking")).
		Set(flags.Flag("disable-extensions"))
	if opts.BrowserBin != "" {
		launch = launch.Bin(opts.BrowserBin)
	}

	controlURL, err := launch.Launch()
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, &bench.ToolUnavailableError{Tool: "chrome", Err: err}
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		launch.Cleanup()
		_ = os.RemoveAll(dir)
		return nil, &bench.ToolUnavailableError{Tool: "chrome", Err: fmt.Errorf("connect: %w", err)}
	}

	return &browserSession{browser: browser, launch: launch, userDataDir: dir}, nil
}

// close tears down the browser, the launched process, and the temp
// profile. Safe on a partially failed session.
func (s *browserSession) close() {
	if s == nil {
		return
	}
	if s.browser != nil {
		_ = s.browser.Close()
	}
	if s.launch != nil {
		s.launch.Cleanup()
	}
	if s.userDataDir != "" {
		_ = os.RemoveAll(s.userDataDir)
	}
}

// newPage opens a blank page, sets the viewport, and navigates.
func (s *browserSession) newPage(url string, timeout time.Duration) (*rod.Page, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            viewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	// The Performance domain reports nothing until enabled; heap and
	// DOM-size reads depend on it.
	if err := (proto.PerformanceEnable{}).Call(page); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("enable performance metrics: %w", err)
	}

	if timeout <= 0 {
		timeout = defaultNavTimeout
	}
	if err := page.Timeout(timeout).Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	return page, nil
}

// evalObject runs fn in the page and unmarshals its JSON result into
// out. fn must be a JS function expression returning (or resolving to)
// a plain object.
func evalObject(ctx context.Context, page *rod.Page, fn string, out any, args ...any) error {
	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           fn,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if res == nil || res.Value.Nil() {
		return fmt.Errorf("evaluate: empty result")
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// performanceMetric finds one named value in a Performance.getMetrics
// reply. An empty reply usually means the domain was never enabled on
// the page.
func performanceMetric(metrics []*proto.PerformanceMetric, name string) (float64, error) {
	for _, metric := range metrics {
		if metric.Name == name {
			return metric.Value, nil
		}
	}
	return 0, fmt.Errorf("%s not reported (%d metrics)", name, len(metrics))
}

// heapUsedMB reads the page's current JS heap via the Performance
// domain, in megabytes.
func heapUsedMB(page *rod.Page) (float64, error) {
	reply, err := proto.PerformanceGetMetrics{}.Call(page)
	if err != nil {
		return 0, err
	}
	bytes, err := performanceMetric(reply.Metrics, "JSHeapUsedSize")
	if err != nil {
		return 0, err
	}
	return bytes / (1024 * 1024), nil
}

// domNodeCount reads the renderer's node count via the Performance
// domain.
func domNodeCount(page *rod.Page) (float64, error) {
	reply, err := proto.PerformanceGetMetrics{}.Call(page)
	if err != nil {
		return 0, err
	}
	return performanceMetric(reply.Metrics, "Nodes")
}
