package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: two_regimes
description: "Global exclusion keeps the two large elements"
elements:
  - { element_id: a, regime_id: R1, value: 6 }
  - { element_id: b, regime_id: R1, value: 1 }
  - { element_id: c, regime_id: R2, value: 3 }
config:
  tau: 0.2
assertions:
  - type: active_order
    ids: [a, c]
  - type: excluded
    ids: [b]
  - type: unity
`

const failingScenario = `name: wrong_count
description: "Expects more active elements than the threshold keeps"
elements:
  - { element_id: a, regime_id: R1, value: 6 }
  - { element_id: b, regime_id: R1, value: 1 }
  - { element_id: c, regime_id: R2, value: 3 }
config:
  tau: 0.2
assertions:
  - type: active_count
    count: 3
`

const errorScenario = `name: everything_excluded
description: "No element survives tau=0.95"
elements:
  - { element_id: a, regime_id: R1, value: 6 }
  - { element_id: c, regime_id: R2, value: 3 }
config:
  tau: 0.95
assertions:
  - type: error_code
    code: ALL_EXCLUDED
`

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestTestCommand_AllPass(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"two_regimes.yaml":         passingScenario,
		"everything_excluded.yaml": errorScenario,
	})

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ two_regimes")
	assert.Contains(t, out, "✓ everything_excluded")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_Failure(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"two_regimes.yaml": passingScenario,
		"wrong_count.yaml": failingScenario,
	})

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decode[TestResult](t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Equal(t, 2, resp.Data.Total)

	for _, s := range resp.Data.Scenarios {
		if s.Name == "wrong_count" {
			assert.False(t, s.Pass)
			require.NotEmpty(t, s.Errors)
			assert.Contains(t, s.Errors[0], "active_count")
		}
	}
}

func TestTestCommand_InvalidScenarioFile(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"broken.yaml": "name: broken\n",
	})

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommand_UpdateThenCompareGolden(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"two_regimes.yaml": passingScenario})
	golden := filepath.Join(dir, "golden", "two_regimes.golden")

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ two_regimes (golden updated)")
	require.FileExists(t, golden)

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario":"two_regimes"`)

	_, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario":"stale"}`), 0644))
	out, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, "snapshot does not match golden file")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"two_regimes.yaml": passingScenario,
		"wrong_count.yaml": failingScenario,
	})

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), dir, "--filter", "two_*")
	require.NoError(t, err)

	resp := decode[TestResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "two_regimes", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_NoScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFindScenarioFiles_SkipsGolden(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"a.yaml": passingScenario, "notes.txt": "x"})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "b.yaml"), []byte("x"), 0644))

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml")}, files)
}
