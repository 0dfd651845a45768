package adapter

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/huf/internal/audit"
	"github.com/roach88/huf/internal/engine"
	"github.com/roach88/huf/internal/ir"
)

// Phase bands group signal phases for TrafficPhaseBand.
const (
	BandMajorEven = "MajorEven(2,4,6,8)"
	BandMinorOdd  = "MinorOdd(1,3,5,7)"
	BandOther     = "Other(9-12)"
)

// DefaultAnomalyStatus is the status subset audited when none is given.
const DefaultAnomalyStatus = "Green Termination"

const unknownText = "Unknown"

// PhaseBand maps a PHASE value onto its band. Unparsable phases are Other.
func PhaseBand(phase string) string {
	p, err := parseInt(phase)
	if err != nil {
		return BandOther
	}
	switch p {
	case 2, 4, 6, 8:
		return BandMajorEven
	case 1, 3, 5, 7:
		return BandMinorOdd
	default:
		return BandOther
	}
}

// parseInt accepts integral floats such as "4.0", which spreadsheet
// exports commonly produce.
func parseInt(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// countKey is a grouped row: the TCS number plus the remaining keys.
type countKey struct {
	tcs  int
	rest string
}

type countGroup struct {
	key   countKey
	parts []string
	count int
}

// groupCounts counts rows per key, returning groups sorted by TCS then
// by the remaining key parts.
func groupCounts(rows []record, keyOf func(record) (int, []string, bool)) []*countGroup {
	groups := make(map[countKey]*countGroup)
	for _, row := range rows {
		tcs, parts, ok := keyOf(row)
		if !ok {
			continue
		}
		k := countKey{tcs: tcs, rest: strings.Join(parts, "\x00")}
		g, exists := groups[k]
		if !exists {
			g = &countGroup{key: k, parts: parts}
			groups[k] = g
		}
		g.count++
	}

	out := make([]*countGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key.tcs != out[j].key.tcs {
			return out[i].key.tcs < out[j].key.tcs
		}
		return out[i].key.rest < out[j].key.rest
	})
	return out
}

func tcsRegime(tcs int) string {
	return fmt.Sprintf("TCS=%d", tcs)
}

// TrafficPhaseBand counts phase status rows per TCS × phase band.
// Regimes are intersections (TCS); rows with an unparsable TCS are
// skipped.
func TrafficPhaseBand(path string) (*engine.Table, audit.Meta, error) {
	rs, err := readRecords(path)
	if err != nil {
		return nil, audit.Meta{}, err
	}
	if missing := rs.missing("TCS", "PHASE"); len(missing) > 0 {
		return nil, audit.Meta{}, missingColumns(path, missing)
	}
	fp, err := Fingerprint(path)
	if err != nil {
		return nil, audit.Meta{}, err
	}

	groups := groupCounts(rs.rows, func(row record) (int, []string, bool) {
		tcs, err := parseInt(row["TCS"])
		if err != nil {
			return 0, nil, false
		}
		return tcs, []string{PhaseBand(row["PHASE"])}, true
	})

	method := fmt.Sprintf("counts(TCS x PHASE_BAND); PHASE_BAND={%s,%s,%s}", BandMajorEven, BandMinorOdd, BandOther)
	elems := make([]engine.Element, 0, len(groups))
	for _, g := range groups {
		band := g.parts[0]
		tp, err := json.Marshal([]string{"Global", tcsRegime(g.key.tcs), "PHASE_BAND=" + band})
		if err != nil {
			return nil, audit.Meta{}, fmt.Errorf("trace path: %w", err)
		}
		elems = append(elems, engine.Element{
			ID:        fmt.Sprintf("TCS=%d/band=%s", g.key.tcs, band),
			RegimeID:  tcsRegime(g.key.tcs),
			Value:     float64(g.count),
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
		DatasetID: ir.DatasetID(fp),
		Extra: map[string]any{
			"source_file": filepath.Base(path),
			"rows":        len(rs.rows),
			"elements":    len(elems),
			"regimes":     countRegimes(elems),
		},
	}, nil
}

// TrafficAnomaly counts rows whose PHASE_STATUS_TEXT is one of statuses,
// per TCS × PHASE × status, and also per PHASE_CALL_TEXT when
// includeCallText is set and the column exists. Unity is over the anomaly
// subset only. An empty statuses means DefaultAnomalyStatus.
func TrafficAnomaly(path string, statuses []string, includeCallText bool) (*engine.Table, audit.Meta, error) {
	if len(statuses) == 0 {
		statuses = []string{DefaultAnomalyStatus}
	}
	rs, err := readRecords(path)
	if err != nil {
		return nil, audit.Meta{}, err
	}
	if missing := rs.missing("TCS", "PHASE", "PHASE_STATUS_TEXT"); len(missing) > 0 {
		return nil, audit.Meta{}, missingColumns(path, missing)
	}
	fp, err := Fingerprint(path)
	if err != nil {
		return nil, audit.Meta{}, err
	}
	withCall := includeCallText && rs.hasColumn("PHASE_CALL_TEXT")

	wanted := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	var subset []record
	for _, row := range rs.rows {
		if wanted[textOrUnknown(row["PHASE_STATUS_TEXT"])] {
			subset = append(subset, row)
		}
	}

	groups := groupCounts(subset, func(row record) (int, []string, bool) {
		tcs, err := parseInt(row["TCS"])
		if err != nil {
			return 0, nil, false
		}
		phase, err := parseInt(row["PHASE"])
		if err != nil {
			return 0, nil, false
		}
		parts := []string{fmt.Sprintf("%03d", phase), textOrUnknown(row["PHASE_STATUS_TEXT"])}
		if withCall {
			parts = append(parts, textOrUnknown(row["PHASE_CALL_TEXT"]))
		}
		return tcs, parts, true
	})

	method := "counts(TCS x PHASE x PHASE_STATUS_TEXT"
	if withCall {
		method += " x PHASE_CALL_TEXT"
	}
	method += fmt.Sprintf(") over anomaly subset=%v", statuses)

	elems := make([]engine.Element, 0, len(groups))
	for _, g := range groups {
		phase, _ := strconv.Atoi(g.parts[0])
		status := g.parts[1]
		id := fmt.Sprintf("TCS=%d/phase=%d/status=%s", g.key.tcs, phase, status)
		trace := []string{
			"AnomalySubset",
			tcsRegime(g.key.tcs),
			fmt.Sprintf("PHASE=%d", phase),
			"PHASE_STATUS_TEXT=" + status,
		}
		if withCall {
			id += "/call=" + g.parts[2]
			trace = append(trace, "PHASE_CALL_TEXT="+g.parts[2])
		}
		tp, err := json.Marshal(trace)
		if err != nil {
			return nil, audit.Meta{}, fmt.Errorf("trace path: %w", err)
		}
		elems = append(elems, engine.Element{
			ID:        id,
			RegimeID:  tcsRegime(g.key.tcs),
			Value:     float64(g.count),
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
		DatasetID: ir.DatasetID(fp + "|" + strings.Join(statuses, ",")),
		Extra: map[string]any{
			"anomaly_status":    statuses,
			"include_call_text": withCall,
			"rows_in_subset":    len(subset),
			"elements":          len(elems),
			"regimes":           countRegimes(elems),
		},
	}, nil
}

func textOrUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownText
	}
	return s
}
