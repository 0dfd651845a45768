package store

import (
	"context"
	"testing"
	"time"

	"github.com/roach88/huf/internal/audit"
	"github.com/roach88/huf/internal/testutil"
)

func TestListRuns_OrderAndFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	clock := testutil.NewStepClock(testutil.Epoch, time.Second)
	a, err := audit.New(testutil.SampleTable(t), audit.Meta{DatasetID: "sample"}, audit.WithClock(clock))
	if err != nil {
		t.Fatalf("audit.New() failed: %v", err)
	}
	b, err := audit.New(testutil.LadderTable(t, 20, 10), audit.Meta{DatasetID: "ladder"}, audit.WithClock(clock))
	if err != nil {
		t.Fatalf("audit.New() failed: %v", err)
	}

	var ids []string
	for _, step := range []struct {
		a   *audit.Auditor
		tau float64
	}{{a, 0.03}, {b, 0.05}, {a, 0.1}} {
		art, err := step.a.Cycle(sampleConfig.WithTau(step.tau), nil)
		if err != nil {
			t.Fatalf("Cycle() failed: %v", err)
		}
		if _, err := s.WriteRun(ctx, NewRun(art, "")); err != nil {
			t.Fatalf("WriteRun() failed: %v", err)
		}
		ids = append(ids, art.RunStamp.RunID)
	}

	all, err := s.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListRuns() returned %d runs, want 3", len(all))
	}
	for i, rs := range all {
		if rs.RunID != ids[i] {
			t.Errorf("run %d = %s, want %s", i, rs.RunID, ids[i])
		}
	}
	if all[0].ActiveCount != 6 {
		t.Errorf("first run active count = %d, want 6", all[0].ActiveCount)
	}

	sample, err := s.ListRuns(ctx, "sample")
	if err != nil {
		t.Fatalf("ListRuns(sample) failed: %v", err)
	}
	if len(sample) != 2 {
		t.Fatalf("ListRuns(sample) returned %d runs, want 2", len(sample))
	}
	if sample[0].Seq >= sample[1].Seq {
		t.Errorf("runs not in seq order: %d, %d", sample[0].Seq, sample[1].Seq)
	}
}

func TestListRuns_EmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), "")
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil {
		t.Error("ListRuns() returned nil, want empty slice")
	}
}

func TestCompareRun(t *testing.T) {
	art := sampleArtifacts(t, sampleConfig)
	stored := NewRun(art, "")

	res := CompareRun(stored, art)
	if !res.OK() {
		t.Errorf("identical replay not OK: %+v", res)
	}

	wider := sampleArtifacts(t, sampleConfig.WithTau(0.02))
	res = CompareRun(stored, wider)
	if res.ParamHashMatch {
		t.Error("different tau should change the param hash")
	}
	if res.ActiveSetMatch {
		t.Error("different active sets reported as matching")
	}
	if len(res.Added) != 2 || len(res.Dropped) != 0 {
		t.Errorf("Added = %v, Dropped = %v; want two added", res.Added, res.Dropped)
	}
}
