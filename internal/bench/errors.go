package bench

import (
	"errors"
	"fmt"
	"time"
)

// ConfigError reports a malformed subject registry or configuration.
// Fatal before any run starts.
type ConfigError struct {
	Source string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("config %s: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("config: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ToolUnavailableError reports a required external capability that
// could not be reached (browser binary, build toolchain). Recorded
// per runner; never fatal to other subjects.
type ToolUnavailableError struct {
	Tool string
	Err  error
}

func (e *ToolUnavailableError) Error() string {
	return fmt.Sprintf("tool unavailable: %s: %v", e.Tool, e.Err)
}

func (e *ToolUnavailableError) Unwrap() error { return e.Err }

// TimeoutError reports a runner or scenario exceeding its budget.
// Resources are force-released before this is returned.
type TimeoutError struct {
	Op      string
	Budget  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Budget)
}

// MeasurementError reports a tool that ran but produced unusable data.
type MeasurementError struct {
	TestType TestType
	Reason   string
	Err      error
}

func (e *MeasurementError) Error() string {
	if e.TestType != "" {
		return fmt.Sprintf("measurement %s: %s", e.TestType, e.Reason)
	}
	return fmt.Sprintf("measurement: %s", e.Reason)
}

func (e *MeasurementError) Unwrap() error { return e.Err }

// StoreError reports a persistence failure. Non-fatal to the pipeline;
// later stages may operate on incomplete data, which surfaces in the
// final report.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsTimeout reports whether err carries a TimeoutError anywhere in its
// chain.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
