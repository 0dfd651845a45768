package adapter

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/huf/internal/audit"
	"github.com/roach88/huf/internal/engine"
	"github.com/roach88/huf/internal/ir"
)

// NonnegMode says how negative retrieval scores become nonnegative values.
type NonnegMode string

const (
	// NonnegClip raises negative scores to zero.
	NonnegClip NonnegMode = "clip"

	// NonnegShift subtracts the minimum score from every score.
	NonnegShift NonnegMode = "shift"
)

// GlobalRegime is the regime of hits without a regime field.
const GlobalRegime = "Global"

// VectorDBConfig maps retrieval dump fields onto elements.
type VectorDBConfig struct {
	IDField     string     `json:"id_field"`
	ScoreField  string     `json:"score_field"`
	RegimeField string     `json:"regime_field"`
	NonnegMode  NonnegMode `json:"nonneg_mode"`

	// TopK keeps only the K highest-scoring hits when > 0.
	TopK int `json:"top_k,omitempty"`

	// TraceFields are extra record fields appended to each trace path.
	TraceFields []string `json:"trace_fields,omitempty"`
}

// DefaultVectorDBConfig reads id, score and namespace, clipping negatives.
func DefaultVectorDBConfig() VectorDBConfig {
	return VectorDBConfig{
		IDField:     "id",
		ScoreField:  "score",
		RegimeField: "namespace",
		NonnegMode:  NonnegClip,
	}
}

func (c VectorDBConfig) withDefaults() VectorDBConfig {
	d := DefaultVectorDBConfig()
	if c.IDField == "" {
		c.IDField = d.IDField
	}
	if c.ScoreField == "" {
		c.ScoreField = d.ScoreField
	}
	if c.RegimeField == "" {
		c.RegimeField = d.RegimeField
	}
	if c.NonnegMode == "" {
		c.NonnegMode = d.NonnegMode
	}
	return c
}

func (c VectorDBConfig) methodRef() string {
	return fmt.Sprintf("vector_db_results(id_field=%s,score_field=%s,regime_field=%s,nonneg_mode=%s)",
		c.IDField, c.ScoreField, c.RegimeField, c.NonnegMode)
}

type hit struct {
	row    record
	id     string
	score  float64
	regime string
}

// VectorDB interprets a retrieval dump as elements: one element per hit,
// valued by its (nonnegative) score and grouped by the regime field.
// Records whose score is missing or not numeric are dropped.
func VectorDB(path string, cfg VectorDBConfig, queryLabel string) (*engine.Table, audit.Meta, error) {
	cfg = cfg.withDefaults()
	if cfg.NonnegMode != NonnegClip && cfg.NonnegMode != NonnegShift {
		return nil, audit.Meta{}, fmt.Errorf("nonneg_mode must be 'clip' or 'shift' (got %q)", cfg.NonnegMode)
	}
	if queryLabel == "" {
		queryLabel = "query"
	}

	rs, err := readRecords(path)
	if err != nil {
		return nil, audit.Meta{}, err
	}
	if missing := rs.missing(cfg.IDField, cfg.ScoreField); len(missing) > 0 {
		return nil, audit.Meta{}, missingColumns(path, missing)
	}
	fp, err := Fingerprint(path)
	if err != nil {
		return nil, audit.Meta{}, err
	}
	hasRegime := rs.hasColumn(cfg.RegimeField)

	var hits []hit
	for _, row := range rs.rows {
		raw, ok := row[cfg.ScoreField]
		if !ok {
			continue
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(score) {
			continue
		}
		regime := GlobalRegime
		if r := row[cfg.RegimeField]; hasRegime && r != "" {
			regime = r
		}
		hits = append(hits, hit{row: row, id: row[cfg.IDField], score: score, regime: regime})
	}

	// A top_k orders hits by score even when it keeps them all.
	if cfg.TopK > 0 {
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
		if len(hits) > cfg.TopK {
			hits = hits[:cfg.TopK]
		}
	}

	minScore := 0.0
	for i, h := range hits {
		if i == 0 || h.score < minScore {
			minScore = h.score
		}
	}

	extras := make([]string, 0, len(cfg.TraceFields))
	for _, f := range cfg.TraceFields {
		if rs.hasColumn(f) && f != cfg.IDField && f != cfg.ScoreField {
			extras = append(extras, f)
		}
	}

	method := cfg.methodRef()
	elems := make([]engine.Element, 0, len(hits))
	for _, h := range hits {
		v := h.score
		if minScore < 0 {
			switch cfg.NonnegMode {
			case NonnegClip:
				v = math.Max(v, 0)
			case NonnegShift:
				v -= minScore
			}
		}

		trace := []string{
			"VectorDBResults",
			"query=" + queryLabel,
			"id=" + h.id,
			"score=" + strconv.FormatFloat(h.score, 'g', -1, 64),
		}
		if hasRegime {
			trace = append(trace, cfg.RegimeField+"="+h.row[cfg.RegimeField])
		}
		for _, f := range extras {
			trace = append(trace, f+"="+h.row[f])
		}
		tp, err := json.Marshal(trace)
		if err != nil {
			return nil, audit.Meta{}, fmt.Errorf("trace path: %w", err)
		}

		elems = append(elems, engine.Element{
			ID:        underscore(h.regime) + "/id=" + underscore(h.id),
			RegimeID:  h.regime,
			Value:     v,
			TracePath: string(tp),
			InputsRef: fp,
			MethodRef: method,
		})
	}

	tbl, err := engine.NewTable(elems)
	if err != nil {
		return nil, audit.Meta{}, err
	}
	return tbl, audit.Meta{
		DatasetID: ir.DatasetID(fp + "|" + queryLabel),
		Extra: map[string]any{
			"query_label":        queryLabel,
			"source_file":        filepath.Base(path),
			"rows_loaded":        len(hits),
			"regimes":            countRegimes(elems),
			"nonneg_mode":        string(cfg.NonnegMode),
			"min_score_original": minScore,
		},
	}, nil
}

func underscore(s string) string {
	return strings.ReplaceAll(s, " ", "_")
}
