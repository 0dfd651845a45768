package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/huf/internal/audit"
)

// ErrNotFound is returned when a run or batch id is not in the ledger.
var ErrNotFound = errors.New("not found")

// RunSummary is one line of the run listing.
type RunSummary struct {
	Seq                   int64   `json:"seq"`
	RunID                 string  `json:"run_id"`
	DatasetID             string  `json:"dataset_id"`
	ParamHash             string  `json:"param_hash"`
	CreatedUTC            string  `json:"created_utc"`
	ActiveCount           int     `json:"active_count"`
	DiscardedBudgetGlobal float64 `json:"discarded_budget_global"`
}

// ListRuns returns runs in ledger order, optionally restricted to one
// dataset. Results are ordered deterministically: ORDER BY seq ASC.
//
// Returns an empty slice (not nil) if no runs match.
func (s *Store) ListRuns(ctx context.Context, datasetID string) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.seq, r.run_id, r.dataset_id, r.param_hash, r.created_utc,
		       r.discarded_budget_global,
		       (SELECT COUNT(*) FROM active_set a WHERE a.run_id = r.run_id)
		FROM runs r
		WHERE ? = '' OR r.dataset_id = ?
		ORDER BY r.seq ASC
	`, datasetID, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := []RunSummary{}
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(&rs.Seq, &rs.RunID, &rs.DatasetID, &rs.ParamHash, &rs.CreatedUTC,
			&rs.DiscardedBudgetGlobal, &rs.ActiveCount); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: iterate: %w", err)
	}
	return out, nil
}

// ReadRun loads a run and its artifacts. Returns ErrNotFound for an
// unknown id.
func (s *Store) ReadRun(ctx context.Context, runID string) (*Run, error) {
	var (
		run        Run
		cfgJSON    string
		budgetJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, run_id, dataset_id, code_hash, param_hash, created_utc, config, source,
		       discarded_budget_global, error_budget, engine_version
		FROM runs WHERE run_id = ?
	`, runID).Scan(
		&run.Seq,
		&run.Stamp.RunID,
		&run.Stamp.DatasetID,
		&run.Stamp.CodeHash,
		&run.Stamp.ParamHash,
		&run.Stamp.CreatedUTC,
		&cfgJSON,
		&run.Source,
		&run.DiscardedBudgetGlobal,
		&budgetJSON,
		&run.EngineVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", runID, err)
	}

	if run.Config, err = unmarshalConfig(cfgJSON); err != nil {
		return nil, fmt.Errorf("read run %s: %w", runID, err)
	}
	if err := unmarshalRecord(budgetJSON, &run.ErrorBudget); err != nil {
		return nil, fmt.Errorf("read run %s: error budget: %w", runID, err)
	}

	run.ActiveSet = []audit.ActiveRecord{}
	if err := s.readRecords(ctx, `SELECT record FROM active_set WHERE run_id = ? ORDER BY rank ASC`, runID,
		func(data string) error {
			var rec audit.ActiveRecord
			if err := unmarshalRecord(data, &rec); err != nil {
				return err
			}
			run.ActiveSet = append(run.ActiveSet, rec)
			return nil
		}); err != nil {
		return nil, fmt.Errorf("read run %s: active set: %w", runID, err)
	}

	run.TraceReport = []audit.TraceRecord{}
	if err := s.readRecords(ctx, `SELECT record FROM trace_records WHERE run_id = ? ORDER BY ordinal ASC`, runID,
		func(data string) error {
			var rec audit.TraceRecord
			if err := unmarshalRecord(data, &rec); err != nil {
				return err
			}
			run.TraceReport = append(run.TraceReport, rec)
			return nil
		}); err != nil {
		return nil, fmt.Errorf("read run %s: trace: %w", runID, err)
	}

	run.CoherenceMap = []audit.RegimeRow{}
	if err := s.readRecords(ctx, `SELECT record FROM coherence_map WHERE run_id = ? ORDER BY ordinal ASC`, runID,
		func(data string) error {
			var row audit.RegimeRow
			if err := unmarshalRecord(data, &row); err != nil {
				return err
			}
			run.CoherenceMap = append(run.CoherenceMap, row)
			return nil
		}); err != nil {
		return nil, fmt.Errorf("read run %s: coherence map: %w", runID, err)
	}

	return &run, nil
}

func (s *Store) readRecords(ctx context.Context, query, runID string, each func(string) error) error {
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return err
		}
		if err := each(data); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ReadStability loads a stability batch with its rows in sweep order.
// Returns ErrNotFound for an unknown id.
func (s *Store) ReadStability(ctx context.Context, batchID string) (*StabilityBatch, error) {
	b := StabilityBatch{BatchID: batchID}
	var cfgJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT dataset_id, base_config, top_k FROM stability_batches WHERE batch_id = ?
	`, batchID).Scan(&b.DatasetID, &cfgJSON, &b.TopK)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read stability %s: %w", batchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read stability %s: %w", batchID, err)
	}
	if b.BaseConfig, err = unmarshalConfig(cfgJSON); err != nil {
		return nil, fmt.Errorf("read stability %s: %w", batchID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tau, active_count, discarded_budget_global, jaccard_vs_baseline,
		       spearman_regime_rho_vs_baseline, near_threshold_count, invalid
		FROM stability_rows
		WHERE batch_id = ?
		ORDER BY ordinal ASC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("read stability %s: %w", batchID, err)
	}
	defer rows.Close()

	b.Rows = []audit.StabilityRow{}
	for rows.Next() {
		var r audit.StabilityRow
		var invalid int
		if err := rows.Scan(&r.Tau, &r.ActiveCount, &r.DiscardedBudgetGlobal, &r.JaccardVsBaseline,
			&r.SpearmanVsBaseline, &r.NearThresholdCount, &invalid); err != nil {
			return nil, fmt.Errorf("read stability %s: scan: %w", batchID, err)
		}
		r.Invalid = invalid == 1
		b.Rows = append(b.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read stability %s: iterate: %w", batchID, err)
	}
	return &b, nil
}
