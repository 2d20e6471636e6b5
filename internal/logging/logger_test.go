package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reset returns the package to its uninitialized state between tests.
func reset() {
	CloseAll()
	stateMu.Lock()
	logsDir = ""
	enabled = false
	logLevel = LevelInfo
	stateMu.Unlock()
}

func readCategoryLog(t *testing.T, dir string, category Category) string {
	t.Helper()
	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(dir, date+"_"+string(category)+".log"))
	require.NoError(t, err)
	return string(data)
}

func TestUninitializedIsSilent(t *testing.T) {
	reset()

	assert.False(t, Enabled())
	// Must not panic or create files.
	Runner("scheduling %d runners", 3)
	Get(CategoryStore).Error("boom")
}

func TestInitializeWritesPerCategoryFiles(t *testing.T) {
	reset()
	t.Cleanup(reset)
	dir := t.TempDir()

	require.NoError(t, Initialize(dir, "info"))
	assert.True(t, Enabled())

	Bundle("react: building (%s)", "npm run build")
	Compare("ranked %d subjects", 4)
	CloseAll()

	bundleLog := readCategoryLog(t, dir, CategoryBundle)
	assert.Contains(t, bundleLog, "[INFO] react: building (npm run build)")
	compareLog := readCategoryLog(t, dir, CategoryCompare)
	assert.Contains(t, compareLog, "ranked 4 subjects")
	// Categories never logged to have no file.
	_, err := os.Stat(filepath.Join(dir, time.Now().Format("2006-01-02")+"_report.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestLevelFiltering(t *testing.T) {
	reset()
	t.Cleanup(reset)
	dir := t.TempDir()

	require.NoError(t, Initialize(dir, "warn"))
	l := Get(CategoryRuntime)
	l.Info("dropped")
	l.Warn("kept")
	CloseAll()

	log := readCategoryLog(t, dir, CategoryRuntime)
	assert.NotContains(t, log, "dropped")
	assert.Contains(t, log, "[WARN] kept")
}

func TestDebugLevelKeepsEverything(t *testing.T) {
	reset()
	t.Cleanup(reset)
	dir := t.TempDir()

	require.NoError(t, Initialize(dir, "debug"))
	l := Get(CategoryAudit)
	l.Debug("fine detail")
	l.Error("problem")
	CloseAll()

	log := readCategoryLog(t, dir, CategoryAudit)
	assert.Contains(t, log, "[DEBUG] fine detail")
	assert.Contains(t, log, "[ERROR] problem")
}

func TestInitializeRequiresDir(t *testing.T) {
	reset()
	require.Error(t, Initialize("", "info"))
}

func TestTimerStop(t *testing.T) {
	reset()
	timer := StartTimer(CategoryConsolidate, "consolidate react")
	elapsed := timer.Stop()
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
}
