package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/huf/internal/audit"
	"github.com/roach88/huf/internal/engine"
	"github.com/roach88/huf/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs scenarios with a fixed clock so that run stamps are reproducible.
type Harness struct {
	clock  audit.Clock
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Table, cycle and sweep failures are recorded on the result rather than
// returned, so that error_code assertions can inspect them. The returned
// error is reserved for a scenario that cannot be run at all.
//
// Execution flow:
//  1. Build the element table
//  2. Run one cycle at the scenario config
//  3. Run the stability sweep, if requested
//  4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	if scenario == nil {
		return nil, fmt.Errorf("scenario is nil")
	}

	h := &Harness{
		clock:  testutil.NewFixedClock(testutil.Epoch),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	result := NewResult()
	h.execute(scenario, result)

	for _, err := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(err.Error())
	}
	if result.Err != nil && !expectsError(scenario.Assertions) {
		result.AddError(fmt.Sprintf("unexpected error: %v", result.Err))
	}
	return result, nil
}

func (h *Harness) execute(s *Scenario, result *Result) {
	elems := make([]engine.Element, len(s.Elements))
	for i, row := range s.Elements {
		elems[i] = engine.Element{
			ID:        row.ID,
			RegimeID:  row.RegimeID,
			Value:     row.Value,
			InputsRef: "scenario:" + s.Name,
			MethodRef: "scenario",
		}
	}

	table, err := engine.NewTable(elems)
	if err != nil {
		result.Err = err
		return
	}

	a, err := audit.New(table, audit.Meta{DatasetID: datasetID(s)},
		audit.WithClock(h.clock),
		audit.WithLogger(h.logger),
	)
	if err != nil {
		result.Err = err
		return
	}

	var metric audit.ErrorMetric
	if s.Metric == MetricTV {
		metric = audit.TotalVariation(table)
	}

	cfg := s.Config.Engine()
	art, err := a.Cycle(cfg, metric)
	if err != nil {
		result.Err = err
		return
	}
	result.Artifacts = art

	if s.Sweep == nil {
		return
	}
	h.logger.Debug("running sweep", "scenario", s.Name, "taus", len(s.Sweep.Taus))
	rows, err := a.StabilityPacket(cfg, s.Sweep.Taus, s.Sweep.TopK)
	if err != nil {
		result.Err = err
		return
	}
	result.Stability = rows
}

func datasetID(s *Scenario) string {
	if s.DatasetID != "" {
		return s.DatasetID
	}
	return "scenario:" + s.Name
}

func expectsError(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertErrorCode {
			return true
		}
	}
	return false
}
