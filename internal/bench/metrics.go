package bench

// Canonical metric keys. Runners write these into
// RawMeasurement.Metrics; the consolidator and comparator read them.
// Keeping the names here is what lets a new runner plug in without
// touching the scoring code.

// Audit (lighthouse) metrics.
const (
	MetricPerformanceScore    = "performance_score" // category score, 0-100
	MetricFirstContentfulMs   = "first_contentful_paint_ms"
	MetricLargestContentfulMs = "largest_contentful_paint_ms"
	MetricCumulativeShift     = "cumulative_layout_shift"
	MetricTotalBlockingMs     = "total_blocking_time_ms"
	MetricInteractiveMs       = "time_to_interactive_ms"
	MetricSpeedIndexMs        = "speed_index_ms"
	MetricTotalByteWeight     = "total_byte_weight"
	MetricDOMSize             = "dom_size"
	MetricJSBootMs            = "js_boot_time_ms"
	MetricUnusedJSBytes       = "unused_js_bytes"
	MetricLegacyJSBytes       = "legacy_js_bytes"
)

// Bundle metrics.
const (
	MetricBuildSuccess    = "build_success" // 1 or 0
	MetricBuildTimeMs     = "build_time_ms"
	MetricOutputSizeBytes = "output_size_bytes"
	MetricTotalSizeBytes  = "total_size_bytes"
	MetricTotalGzipBytes  = "total_gzip_bytes"
	MetricAssetCount      = "asset_count"
	MetricSourceLines     = "source_lines_total"
)

// Per-asset-class bundle metrics are MetricAssetSize/MetricAssetGzip
// with a class suffix, e.g. "script_size_bytes".
const (
	AssetClassScript = "script"
	AssetClassStyle  = "style"
	AssetClassMarkup = "markup"
	AssetClassImage  = "image"
	AssetClassOther  = "other"
)

// AssetSizeMetric returns the raw-size metric key for an asset class.
func AssetSizeMetric(class string) string { return class + "_size_bytes" }

// AssetGzipMetric returns the gzip-size metric key for an asset class.
func AssetGzipMetric(class string) string { return class + "_gzip_bytes" }

// SourceLinesMetric returns the lines-of-code metric key for a
// language class, e.g. "source_lines_script".
func SourceLinesMetric(lang string) string { return "source_lines_" + lang }

// Runtime profiler metrics.
const (
	MetricInitialLoadMs     = "initial_load_ms"
	MetricFirstPaintMs      = "first_paint_ms"
	MetricSearchResponseMs  = "search_response_ms"
	MetricExpandLatencyMs   = "expand_latency_ms"
	MetricCollapseLatencyMs = "collapse_latency_ms"
	MetricMemoryPeakMB      = "memory_peak_mb"
	MetricMemoryAvgMB       = "memory_avg_mb"
	MetricMemoryGrowthMB    = "memory_growth_mb"
	MetricFrameworkReadyMs  = "framework_ready_ms"
	MetricMemorySamples     = "memory_samples"
)
