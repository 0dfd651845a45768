package engine

import (
	"fmt"
	"math"
)

// Normalize computes the global and local pre-shares of every element.
// It fails with NONPOSITIVE_TOTAL when the table's total value is not
// positive, and with INVALID_VALUE when finite values sum past the float
// range.
func Normalize(t *Table) (*Frame, error) {
	total := t.TotalValue()
	if math.IsInf(total, 0) {
		return nil, newAuditError(ErrCodeInvalidValue,
			"cannot normalize: total value overflows", nil)
	}
	if total <= 0 {
		return nil, newAuditError(ErrCodeNonPositiveTotal,
			fmt.Sprintf("cannot normalize: total value %v <= 0", total), nil)
	}

	regimeTotals := make(map[string]float64)
	for _, e := range t.elems {
		regimeTotals[e.RegimeID] += e.Value
	}

	rows := make([]Row, len(t.elems))
	for i, e := range t.elems {
		rt := regimeTotals[e.RegimeID]
		rows[i] = Row{
			Element:        e,
			RegimeTotalPre: rt,
			RhoGlobalPre:   e.Value / total,
			RhoLocalPre:    safeShare(e.Value, rt),
		}
	}

	return &Frame{Rows: rows, TotalValue: total}, nil
}

// safeShare returns v/total, or 0 when total is not positive.
func safeShare(v, total float64) float64 {
	if total > 0 {
		return v / total
	}
	return 0
}
