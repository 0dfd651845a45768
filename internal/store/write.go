package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/huf/internal/audit"
	"github.com/roach88/huf/internal/engine"
	"github.com/roach88/huf/internal/ir"
)

// Run is one ledgered cycle: its stamp, the config that produced it and
// the four artifacts.
type Run struct {
	Stamp audit.RunStamp
	// Seq is the ledger insertion order, set on read.
	Seq    int64
	Config engine.Config

	// Source locates the input (plan or dataset path) for replay.
	Source string

	EngineVersion         string
	DiscardedBudgetGlobal float64
	ErrorBudget           map[string]any
	CoherenceMap          []audit.RegimeRow
	ActiveSet             []audit.ActiveRecord
	TraceReport           []audit.TraceRecord
}

// NewRun captures a cycle's artifacts for the ledger.
func NewRun(art *audit.Artifacts, source string) *Run {
	return &Run{
		Stamp:                 *art.RunStamp,
		Config:                art.Frame.Config,
		Source:                source,
		EngineVersion:         ir.EngineVersion,
		DiscardedBudgetGlobal: art.Frame.DiscardedBudgetGlobal,
		ErrorBudget:           art.ErrorBudget.Map(),
		CoherenceMap:          art.CoherenceMap,
		ActiveSet:             art.ActiveSet,
		TraceReport:           art.TraceReport,
	}
}

// WriteRun inserts a run and its artifact rows in one transaction.
// Uses ON CONFLICT(run_id) DO NOTHING for idempotency: rewriting a run id
// leaves the first write in place and reports inserted=false.
func (s *Store) WriteRun(ctx context.Context, run *Run) (inserted bool, err error) {
	cfgJSON, err := marshalConfig(run.Config)
	if err != nil {
		return false, fmt.Errorf("write run: %w", err)
	}
	budgetJSON, err := marshalRecord(run.ErrorBudget)
	if err != nil {
		return false, fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, dataset_id, code_hash, param_hash, created_utc, config, source,
		 discarded_budget_global, error_budget, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		run.Stamp.RunID,
		run.Stamp.DatasetID,
		run.Stamp.CodeHash,
		run.Stamp.ParamHash,
		run.Stamp.CreatedUTC,
		cfgJSON,
		run.Source,
		run.DiscardedBudgetGlobal,
		budgetJSON,
		run.EngineVersion,
	)
	if err != nil {
		return false, fmt.Errorf("write run: insert: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write run: rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if err := writeActiveSet(ctx, tx, run); err != nil {
		return false, err
	}
	if err := writeTrace(ctx, tx, run); err != nil {
		return false, err
	}
	if err := writeCoherence(ctx, tx, run); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write run: commit: %w", err)
	}
	return true, nil
}

func writeActiveSet(ctx context.Context, tx *sql.Tx, run *Run) error {
	for _, rec := range run.ActiveSet {
		data, err := marshalRecord(rec)
		if err != nil {
			return fmt.Errorf("write active set: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO active_set (run_id, rank, item_id, regime_id, rho_global_post, record)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.Stamp.RunID, rec.Rank, rec.ItemID, rec.RegimeID, rec.RhoGlobalPost, data); err != nil {
			return fmt.Errorf("write active set: %w", err)
		}
	}
	return nil
}

func writeTrace(ctx context.Context, tx *sql.Tx, run *Run) error {
	for i, rec := range run.TraceReport {
		data, err := marshalRecord(rec)
		if err != nil {
			return fmt.Errorf("write trace: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO trace_records (run_id, ordinal, item_id, record)
			VALUES (?, ?, ?, ?)
		`, run.Stamp.RunID, i, rec.ItemID, data); err != nil {
			return fmt.Errorf("write trace: %w", err)
		}
	}
	return nil
}

func writeCoherence(ctx context.Context, tx *sql.Tx, run *Run) error {
	for i, row := range run.CoherenceMap {
		data, err := marshalRecord(row)
		if err != nil {
			return fmt.Errorf("write coherence map: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO coherence_map (run_id, ordinal, regime_id, record)
			VALUES (?, ?, ?, ?)
		`, run.Stamp.RunID, i, row.RegimeID, data); err != nil {
			return fmt.Errorf("write coherence map: %w", err)
		}
	}
	return nil
}

// StabilityBatch is one ledgered stability packet.
type StabilityBatch struct {
	BatchID    string
	DatasetID  string
	BaseConfig engine.Config
	TopK       int
	Rows       []audit.StabilityRow
}

// WriteStability stores a stability packet under a fresh batch id and
// returns the id.
func (s *Store) WriteStability(ctx context.Context, datasetID string, base engine.Config, topK int, rows []audit.StabilityRow) (string, error) {
	cfgJSON, err := marshalConfig(base)
	if err != nil {
		return "", fmt.Errorf("write stability: %w", err)
	}
	batchID := s.ids.Generate()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write stability: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stability_batches (batch_id, dataset_id, base_config, top_k)
		VALUES (?, ?, ?, ?)
	`, batchID, datasetID, cfgJSON, topK); err != nil {
		return "", fmt.Errorf("write stability: insert batch: %w", err)
	}

	for i, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stability_rows
			(batch_id, ordinal, tau, active_count, discarded_budget_global,
			 jaccard_vs_baseline, spearman_regime_rho_vs_baseline, near_threshold_count, invalid)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			batchID, i, r.Tau, r.ActiveCount, r.DiscardedBudgetGlobal,
			r.JaccardVsBaseline, r.SpearmanVsBaseline, r.NearThresholdCount, boolToInt(r.Invalid),
		); err != nil {
			return "", fmt.Errorf("write stability: insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write stability: commit: %w", err)
	}
	return batchID, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
