// Package logging provides categorized file-based logging for fwbench.
// Logs are written under <results-dir>/logs/ with one file per category
// per day. When Initialize has not been called (or debug mode is off)
// every call is a silent no-op, so library code can log unconditionally.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot        Category = "boot"        // startup, config resolution
	CategoryRegistry    Category = "registry"    // subject registry loading
	CategoryRunner      Category = "runner"      // runner scheduling
	CategoryAudit       Category = "audit"       // browser audit runner
	CategoryBundle      Category = "bundle"      // bundle size runner
	CategoryRuntime     Category = "runtime"     // runtime profiler
	CategoryStore       Category = "store"       // results persistence
	CategoryConsolidate Category = "consolidate" // summary scoring
	CategoryCompare     Category = "compare"     // rankings and insights
	CategoryReport      Category = "report"      // report generation
	CategoryCoordinator Category = "coordinator" // run state machine
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	logLevel  = LevelInfo
	enabled   bool
	stateMu   sync.RWMutex
)

// Initialize sets up the logging directory. level is one of
// debug/info/warn/error; anything else means info.
func Initialize(dir, level string) error {
	if dir == "" {
		return fmt.Errorf("logs directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}

	stateMu.Lock()
	logsDir = dir
	enabled = true
	switch level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	stateMu.Unlock()

	Boot("=== fwbench logging initialized ===")
	Boot("logs directory: %s, level: %s", dir, level)
	return nil
}

// Enabled reports whether file logging is active.
func Enabled() bool {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return enabled
}

// Get returns (or creates) a logger for the given category. Returns a
// no-op logger when logging is not initialized.
func Get(category Category) *Logger {
	stateMu.RLock()
	dir, on := logsDir, enabled
	stateMu.RUnlock()
	if !on || dir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] warning: could not open %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			_ = l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Convenience functions. No-ops when the category (or logging) is off.

func Boot(format string, args ...interface{})     { Get(CategoryBoot).Info(format, args...) }
func Registry(format string, args ...interface{}) { Get(CategoryRegistry).Info(format, args...) }
func Runner(format string, args ...interface{})   { Get(CategoryRunner).Info(format, args...) }
func RunnerDebug(format string, args ...interface{}) {
	Get(CategoryRunner).Debug(format, args...)
}
func Audit(format string, args ...interface{})  { Get(CategoryAudit).Info(format, args...) }
func Bundle(format string, args ...interface{}) { Get(CategoryBundle).Info(format, args...) }
func Runtime(format string, args ...interface{}) {
	Get(CategoryRuntime).Info(format, args...)
}
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }
func StoreError(format string, args ...interface{}) {
	Get(CategoryStore).Error(format, args...)
}
func Consolidate(format string, args ...interface{}) {
	Get(CategoryConsolidate).Info(format, args...)
}
func Compare(format string, args ...interface{}) {
	Get(CategoryCompare).Info(format, args...)
}
func Report(format string, args ...interface{}) { Get(CategoryReport).Info(format, args...) }
func Coordinator(format string, args ...interface{}) {
	Get(CategoryCoordinator).Info(format, args...)
}
func CoordinatorWarn(format string, args ...interface{}) {
	Get(CategoryCoordinator).Warn(format, args...)
}

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
