package proc

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwbench/internal/bench"
)

func TestRunCapturesOutput(t *testing.T) {
	var l Launcher
	res, err := l.Run(context.Background(), Command{Shell: "echo hello"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello", strings.TrimSpace(res.Stdout))
	assert.False(t, res.TimedOut)
	assert.Greater(t, res.Duration, time.Duration(0))
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	var l Launcher
	res, err := l.Run(context.Background(), Command{Shell: "echo oops >&2; exit 7"})
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
	assert.Equal(t, "oops", strings.TrimSpace(res.Stderr))
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sleep semantics differ on windows")
	}
	var l Launcher
	start := time.Now()
	res, err := l.Run(context.Background(), Command{
		Shell:   "sleep 30",
		Timeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, bench.IsTimeout(err))
	assert.True(t, res.TimedOut)
	assert.Equal(t, -1, res.ExitCode)
	// The process must not have run to completion.
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), []byte("here"), 0o644))
	var l Launcher
	res, err := l.Run(context.Background(), Command{Shell: "cat marker", Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "here", res.Stdout)
}

func TestRunEnvAppended(t *testing.T) {
	var l Launcher
	res, err := l.Run(context.Background(), Command{
		Shell: "echo $FWBENCH_TEST_VALUE",
		Env:   []string{"FWBENCH_TEST_VALUE=42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "42", strings.TrimSpace(res.Stdout))
}

func TestCombined(t *testing.T) {
	r := Result{Stdout: "out", Stderr: "err"}
	assert.Contains(t, r.Combined(), "out")
	assert.Contains(t, r.Combined(), "err")

	assert.Equal(t, "out", Result{Stdout: "out"}.Combined())
	assert.Equal(t, "err", Result{Stderr: "err"}.Combined())
}
