package adapter

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roach88/huf/internal/audit"
	"github.com/roach88/huf/internal/engine"
	"github.com/roach88/huf/internal/ir"
)

// ElementColumns are the required columns of a generic element table.
var ElementColumns = []string{"element_id", "regime_id", "value"}

// LoadElements reads a generic element table. Optional columns
// trace_path, inputs_ref and method_ref are carried through; rows without
// inputs_ref get the file fingerprint.
func LoadElements(path string) (*engine.Table, audit.Meta, error) {
	rs, err := readRecords(path)
	if err != nil {
		return nil, audit.Meta{}, err
	}
	if missing := rs.missing(ElementColumns...); len(missing) > 0 {
		return nil, audit.Meta{}, missingColumns(path, missing)
	}
	fp, err := Fingerprint(path)
	if err != nil {
		return nil, audit.Meta{}, err
	}

	elems := make([]engine.Element, 0, len(rs.rows))
	for i, row := range rs.rows {
		v, err := parseValue(row["value"])
		if err != nil {
			return nil, audit.Meta{}, engine.NewError(engine.ErrCodeInvalidValue,
				fmt.Sprintf("row %d: value %q is not a number", i+1, row["value"]),
				map[string]string{"row": strconv.Itoa(i + 1)})
		}
		e := engine.Element{
			ID:        row["element_id"],
			RegimeID:  row["regime_id"],
			Value:     v,
			TracePath: row["trace_path"],
			InputsRef: row["inputs_ref"],
			MethodRef: row["method_ref"],
		}
		if e.InputsRef == "" {
			e.InputsRef = fp
		}
		if e.MethodRef == "" {
			e.MethodRef = "elements_table"
		}
		elems = append(elems, e)
	}

	tbl, err := engine.NewTable(elems)
	if err != nil {
		return nil, audit.Meta{}, err
	}
	return tbl, audit.Meta{
		DatasetID: ir.DatasetID(fp),
		Extra: map[string]any{
			"source_file": filepath.Base(path),
			"rows":        len(elems),
			"regimes":     countRegimes(elems),
		},
	}, nil
}

func parseValue(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func missingColumns(path string, cols []string) error {
	return engine.NewError(engine.ErrCodeMissingColumns,
		fmt.Sprintf("%s: missing required columns %v", filepath.Base(path), cols),
		map[string]string{"columns": strings.Join(cols, ",")})
}

func countRegimes(elems []engine.Element) int {
	seen := make(map[string]bool)
	for _, e := range elems {
		seen[e.RegimeID] = true
	}
	return len(seen)
}
