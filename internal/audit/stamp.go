package audit

import (
	"fmt"
	"time"

	"github.com/roach88/huf/internal/engine"
	"github.com/roach88/huf/internal/ir"
)

// Clock supplies the creation time of run stamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// RunStamp gives every cycle a reproducible, content-addressed identity.
type RunStamp struct {
	DatasetID  string `json:"dataset_id"`
	CodeHash   string `json:"code_hash"`
	ParamHash  string `json:"param_hash"`
	CreatedUTC string `json:"created_utc"`
	RunID      string `json:"run_id"`
}

// makeRunStamp hashes the canonical config and the code fingerprint and
// derives the run id from dataset, params and creation time.
func makeRunStamp(datasetID string, cfg engine.Config, fingerprint string, now time.Time) (RunStamp, error) {
	paramHash, err := cfg.ParamHash()
	if err != nil {
		return RunStamp{}, fmt.Errorf("run stamp: %w", err)
	}
	created := now.UTC().Format(time.RFC3339Nano)
	runID, err := ir.RunID(datasetID, paramHash, created)
	if err != nil {
		return RunStamp{}, fmt.Errorf("run stamp: %w", err)
	}
	return RunStamp{
		DatasetID:  datasetID,
		CodeHash:   ir.CodeHash(fingerprint),
		ParamHash:  paramHash,
		CreatedUTC: created,
		RunID:      runID,
	}, nil
}
