package runner

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fwbench/internal/bench"
	"fwbench/internal/logging"
	"fwbench/internal/proc"
	"fwbench/internal/subject"
)

// defaultBuildTimeout bounds one subject build.
const defaultBuildTimeout = 2 * time.Minute

// cacheDirs are framework build caches cleaned before a timed build so
// every subject gets a genuinely cold build.
var cacheDirs = []string{
	"node_modules/.vite",
	"node_modules/.cache",
	".angular",
	".svelte-kit",
	"dist/.cache",
}

// sharedAssets are files identical across subjects; counting them would
// flatten the comparison.
var sharedAssets = map[string]bool{
	"base.css":          true,
	"components.css":    true,
	"design-system.css": true,
	"variables.css":     true,
	"favicon.ico":       true,
	"favicon.png":       true,
	"logo.png":          true,
	"weather-data.json": true,
}

var excludedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"coverage":     true,
	"test-results": true,
}

// BundleRunner builds a subject and measures its produced assets and
// source tree. The build is non-destructive: pre-existing build output
// is backed up first and restored afterward no matter how the build
// ends.
type BundleRunner struct {
	launcher proc.Launcher
}

// NewBundleRunner returns a bundle runner.
func NewBundleRunner() *BundleRunner {
	return &BundleRunner{}
}

func (*BundleRunner) Type() bench.TestType { return bench.TestBundle }

// Run implements Runner.
func (r *BundleRunner) Run(ctx context.Context, sub subject.Subject, runID string, opts Options) (m bench.RawMeasurement) {
	started := time.Now()
	m = newMeasurement(sub, bench.TestBundle, runID, started)
	defer func() {
		if p := recover(); p != nil {
			finish(&m, started, &bench.MeasurementError{TestType: bench.TestBundle, Reason: fmt.Sprintf("panic: %v", p)})
		}
	}()

	buildDir := filepath.Join(sub.Directory, sub.EffectiveBuildDir())

	backup, err := backupTree(buildDir)
	if err != nil {
		finish(&m, started, &bench.MeasurementError{TestType: bench.TestBundle, Reason: "backup of build output failed", Err: err})
		return m
	}
	// Restore runs on every exit path, including build failure and
	// timeout, so the subject's tree is left exactly as found.
	defer func() {
		if rerr := restoreTree(buildDir, backup); rerr != nil {
			logging.Bundle("restore of %s failed: %v", buildDir, rerr)
			if m.Error == "" {
				m.Error = fmt.Sprintf("restore build output: %v", rerr)
			}
		}
	}()

	buildErr := r.build(ctx, sub, buildDir, opts, &m)

	// Asset accounting proceeds on whatever output exists; a failed
	// build yields a partial result instead of aborting the runner.
	if err := r.measureAssets(buildDir, sub, &m); err != nil && buildErr == nil {
		buildErr = err
	}
	r.measureSource(sub, &m)

	finish(&m, started, buildErr)
	return m
}

// build cleans caches and runs the subject's build command, recording
// build_success, build_time_ms, and output_size_bytes.
func (r *BundleRunner) build(ctx context.Context, sub subject.Subject, buildDir string, opts Options, m *bench.RawMeasurement) error {
	if sub.IsStaticallyServed || isNoBuild(sub.BuildCommand) {
		m.Metrics[bench.MetricBuildSuccess] = 1
		m.Metrics[bench.MetricBuildTimeMs] = 0
		return nil
	}

	if err := os.RemoveAll(buildDir); err != nil {
		return &bench.MeasurementError{TestType: bench.TestBundle, Reason: "clean build output", Err: err}
	}
	for _, cache := range cacheDirs {
		// Cache cleaning failures are not critical.
		_ = os.RemoveAll(filepath.Join(sub.Directory, cache))
	}

	timeout := opts.BuildTimeout
	if timeout <= 0 {
		timeout = defaultBuildTimeout
	}

	logging.Bundle("%s: building (%s)", sub.ID, sub.BuildCommand)
	res, err := r.launcher.Run(ctx, proc.Command{
		Shell:   sub.BuildCommand,
		Dir:     sub.Directory,
		Timeout: timeout,
	})
	m.Metrics[bench.MetricBuildTimeMs] = float64(res.Duration.Milliseconds())

	if err != nil {
		m.Metrics[bench.MetricBuildSuccess] = 0
		return err
	}
	if res.ExitCode != 0 {
		m.Metrics[bench.MetricBuildSuccess] = 0
		detail := strings.TrimSpace(res.Stderr)
		if len(detail) > 200 {
			detail = detail[:200]
		}
		return &bench.MeasurementError{
			TestType: bench.TestBundle,
			Reason:   fmt.Sprintf("build exited %d: %s", res.ExitCode, detail),
		}
	}

	m.Metrics[bench.MetricBuildSuccess] = 1
	m.Metrics[bench.MetricOutputSizeBytes] = float64(treeSize(buildDir))
	return nil
}

func isNoBuild(cmd string) bool {
	return strings.Contains(strings.ToLower(cmd), "no build")
}

// measureAssets walks the build output summing raw and gzip bytes per
// asset class.
func (r *BundleRunner) measureAssets(buildDir string, sub subject.Subject, m *bench.RawMeasurement) error {
	if _, err := os.Stat(buildDir); err != nil {
		return &bench.MeasurementError{TestType: bench.TestBundle, Reason: "no build output to analyze", Err: err}
	}

	sizes := map[string]int64{}
	gzips := map[string]int64{}
	var count int64

	err := filepath.WalkDir(buildDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if excludedDirs[d.Name()] || d.Name() == sub.EffectiveAssetsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if sharedAssets[strings.ToLower(d.Name())] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		class := assetClass(path)
		sizes[class] += info.Size()
		gz, err := gzippedSize(path)
		if err == nil {
			gzips[class] += gz
		}
		count++
		return nil
	})
	if err != nil {
		return &bench.MeasurementError{TestType: bench.TestBundle, Reason: "asset walk failed", Err: err}
	}

	var totalSize, totalGzip int64
	for _, class := range []string{bench.AssetClassScript, bench.AssetClassStyle, bench.AssetClassMarkup, bench.AssetClassImage, bench.AssetClassOther} {
		m.Metrics[bench.AssetSizeMetric(class)] = float64(sizes[class])
		m.Metrics[bench.AssetGzipMetric(class)] = float64(gzips[class])
		totalSize += sizes[class]
		totalGzip += gzips[class]
	}
	m.Metrics[bench.MetricTotalSizeBytes] = float64(totalSize)
	m.Metrics[bench.MetricTotalGzipBytes] = float64(totalGzip)
	m.Metrics[bench.MetricAssetCount] = float64(count)
	return nil
}

// measureSource counts lines of code per language class across the
// subject's source tree. Best effort: failures leave the metrics out.
func (r *BundleRunner) measureSource(sub subject.Subject, m *bench.RawMeasurement) {
	lines := map[string]int64{}
	buildDirName := sub.EffectiveBuildDir()

	err := filepath.WalkDir(sub.Directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if excludedDirs[d.Name()] || d.Name() == buildDirName || d.Name() == sub.EffectiveAssetsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		lang, ok := languageClass(path)
		if !ok {
			return nil
		}
		n, err := countLines(path)
		if err != nil {
			return nil
		}
		lines[lang] += n
		return nil
	})
	if err != nil {
		logging.Bundle("%s: source walk failed: %v", sub.ID, err)
		return
	}

	var total int64
	for lang, n := range lines {
		m.Metrics[bench.SourceLinesMetric(lang)] = float64(n)
		total += n
	}
	m.Metrics[bench.MetricSourceLines] = float64(total)
}

func assetClass(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs":
		return bench.AssetClassScript
	case ".css":
		return bench.AssetClassStyle
	case ".html", ".htm":
		return bench.AssetClassMarkup
	case ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico":
		return bench.AssetClassImage
	default:
		return bench.AssetClassOther
	}
}

func languageClass(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".ts", ".tsx", ".mjs", ".svelte", ".vue":
		return bench.AssetClassScript, true
	case ".css", ".scss", ".less":
		return bench.AssetClassStyle, true
	case ".html", ".htm":
		return bench.AssetClassMarkup, true
	default:
		return "", false
	}
}

func countLines(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	var n int64
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	if data[len(data)-1] != '\n' {
		n++
	}
	return n, nil
}

type countingWriter struct{ n int64 }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

// gzippedSize compresses the file at best-compression and returns the
// compressed byte count, mirroring how the assets would travel over
// the wire.
func gzippedSize(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cw := &countingWriter{}
	zw, err := gzip.NewWriterLevel(cw, gzip.BestCompression)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(zw, f); err != nil {
		zw.Close()
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	return cw.n, nil
}

func treeSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// backupTree copies dir into a fresh temp directory and returns its
// path. A missing dir returns "" (nothing to restore).
func backupTree(dir string) (string, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	backup, err := os.MkdirTemp("", "fwbench-build-backup-")
	if err != nil {
		return "", err
	}
	if err := copyTree(dir, filepath.Join(backup, filepath.Base(dir))); err != nil {
		_ = os.RemoveAll(backup)
		return "", err
	}
	return backup, nil
}

// restoreTree puts the backed-up output back in place and removes the
// backup. With an empty backup path it removes whatever the build left
// behind, restoring the original "no output" state.
func restoreTree(dir, backup string) error {
	if backup == "" {
		return os.RemoveAll(dir)
	}
	defer os.RemoveAll(backup)
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return copyTree(filepath.Join(backup, filepath.Base(dir)), dir)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}
