// Package proc runs external commands with hard timeouts and captured
// output. Runners use it for build commands; nothing here knows about
// benchmark semantics.
package proc

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"time"

	"fwbench/internal/bench"
)

// maxCapturedOutput bounds stdout+stderr retained per command.
const maxCapturedOutput = 50_000

// Command describes one external invocation. Shell is passed to
// `sh -c` (or `cmd /C` on Windows) so subject build commands keep their
// pipes and &&-chains.
type Command struct {
	Shell   string
	Dir     string
	Env     []string // appended to the ambient environment
	Timeout time.Duration
}

// Result captures the outcome of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// Combined returns stdout with stderr appended, matching what a user
// would see in a terminal.
func (r Result) Combined() string {
	out := r.Stdout
	if r.Stderr != "" {
		if out != "" {
			out += "\n--- stderr ---\n"
		}
		out += r.Stderr
	}
	return out
}

// Launcher executes commands. The zero value is usable.
type Launcher struct{}

// Run executes cmd and waits for completion or timeout. On timeout the
// process tree is killed via the context and a TimeoutError is
// returned alongside whatever output was captured.
func (Launcher) Run(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	var c *exec.Cmd
	if runtime.GOOS == "windows" {
		c = exec.CommandContext(ctx, "cmd", "/C", cmd.Shell)
	} else {
		c = exec.CommandContext(ctx, "sh", "-c", cmd.Shell)
	}
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := Result{
		Stdout:   truncate(stdout.String()),
		Stderr:   truncate(stderr.String()),
		Duration: time.Since(start),
	}

	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
		return res, &bench.TimeoutError{Op: cmd.Shell, Budget: cmd.Timeout}
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil // non-zero exit is a result, not a launcher error
		}
		return res, &bench.ToolUnavailableError{Tool: cmd.Shell, Err: err}
	}
	return res, nil
}

func truncate(s string) string {
	if len(s) > maxCapturedOutput {
		return s[:maxCapturedOutput] + "\n...[truncated]"
	}
	return s
}
