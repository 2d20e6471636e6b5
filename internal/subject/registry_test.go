package subject

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwbench/internal/bench"
)

func writeRegistry(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
subjects:
  - id: vanilla
    display_name: Vanilla JS
    directory: apps/vanilla
    build_command: "echo no build step"
    dev_command: "npx serve ."
    test_command: "npm test"
    statically_served: true
  - id: svelte
    directory: apps/svelte
    build_command: "npm run build"
    dev_command: "npm run dev"
    test_command: "npm test"
    build_dir: build
`

func TestLoadSubjectsYAML(t *testing.T) {
	path := writeRegistry(t, "subjects.yaml", validYAML)

	subjects, err := LoadSubjects(path)
	require.NoError(t, err)
	require.Len(t, subjects, 2)

	assert.Equal(t, "vanilla", subjects[0].ID)
	assert.Equal(t, "Vanilla JS", subjects[0].Name())
	assert.True(t, subjects[0].IsStaticallyServed)
	assert.Equal(t, "dist", subjects[0].EffectiveBuildDir())

	assert.Equal(t, "svelte", subjects[1].Name())
	assert.Equal(t, "build", subjects[1].EffectiveBuildDir())
	assert.Equal(t, "public", subjects[1].EffectiveAssetsDir())
}

func TestLoadSubjectsJSON(t *testing.T) {
	path := writeRegistry(t, "subjects.json", `{
		"subjects": [{
			"id": "react",
			"directory": "apps/react",
			"build_command": "npm run build",
			"dev_command": "npm run dev",
			"test_command": "npm test"
		}]
	}`)

	subjects, err := LoadSubjects(path)
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, "react", subjects[0].ID)
}

func TestLoadSubjectsMissingRequiredField(t *testing.T) {
	path := writeRegistry(t, "subjects.yaml", `
subjects:
  - id: broken
    directory: apps/broken
    build_command: "npm run build"
`)

	_, err := LoadSubjects(path)
	require.Error(t, err)
	var cfgErr *bench.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Reason, "broken")
}

func TestLoadSubjectsDuplicateID(t *testing.T) {
	path := writeRegistry(t, "subjects.yaml", `
subjects:
  - id: dup
    directory: a
    build_command: b
    dev_command: d
    test_command: t
  - id: dup
    directory: a2
    build_command: b
    dev_command: d
    test_command: t
`)

	_, err := LoadSubjects(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate subject id "dup"`)
}

func TestLoadSubjectsEmptyAndMissing(t *testing.T) {
	path := writeRegistry(t, "subjects.yaml", "subjects: []\n")
	_, err := LoadSubjects(path)
	assert.Error(t, err)

	_, err = LoadSubjects(filepath.Join(t.TempDir(), "nope.yaml"))
	var cfgErr *bench.ConfigError
	require.True(t, errors.As(err, &cfgErr))
}

func TestFilter(t *testing.T) {
	subjects := []Subject{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	out, err := Filter(subjects, nil)
	require.NoError(t, err)
	assert.Len(t, out, 3)

	out, err = Filter(subjects, []string{"c", "a"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	// Registry order is preserved regardless of request order.
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "c", out[1].ID)

	_, err = Filter(subjects, []string{"z", "a", "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "y, z")
}
