package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/huf/internal/audit"
	"github.com/roach88/huf/internal/engine"
	"github.com/roach88/huf/internal/testutil"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// sampleArtifacts runs one cycle over the reference table.
func sampleArtifacts(t *testing.T, cfg engine.Config) *audit.Artifacts {
	t.Helper()
	a, err := audit.New(testutil.SampleTable(t), audit.Meta{DatasetID: "sample"},
		audit.WithClock(testutil.NewFixedClock(testutil.Epoch)))
	if err != nil {
		t.Fatalf("audit.New() failed: %v", err)
	}
	art, err := a.Cycle(cfg, nil)
	if err != nil {
		t.Fatalf("Cycle() failed: %v", err)
	}
	return art
}

var sampleConfig = engine.Config{BudgetType: engine.BudgetMass, Exclusion: engine.ExclusionGlobal, Tau: 0.03}
