package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/huf/internal/engine"
)

// SampleElements is the two-regime reference table:
// R1/e0..e4 = [10,5,2,1,0.5] and R2/e0..e4 = [8,4,2,1,0.5], total 34.
func SampleElements() []engine.Element {
	values := map[string][]float64{
		"R1": {10, 5, 2, 1, 0.5},
		"R2": {8, 4, 2, 1, 0.5},
	}
	var elems []engine.Element
	for _, regime := range []string{"R1", "R2"} {
		for i, v := range values[regime] {
			elems = append(elems, engine.Element{
				ID:        fmt.Sprintf("%s/e%d", regime, i),
				RegimeID:  regime,
				Value:     v,
				InputsRef: "sample.csv",
				MethodRef: "sample",
			})
		}
	}
	return elems
}

// SampleTable builds the reference table.
func SampleTable(t testing.TB) *engine.Table {
	t.Helper()
	tbl, err := engine.NewTable(SampleElements())
	require.NoError(t, err)
	return tbl
}

// LadderTable builds n elements A0..A(n-1) with values n..1. The first
// split elements belong to R1, the rest to R2.
func LadderTable(t testing.TB, n, split int) *engine.Table {
	t.Helper()
	elems := make([]engine.Element, n)
	for i := range elems {
		regime := "R2"
		if i < split {
			regime = "R1"
		}
		elems[i] = engine.Element{
			ID:        fmt.Sprintf("A%d", i),
			RegimeID:  regime,
			Value:     float64(n - i),
			InputsRef: "ladder",
			MethodRef: "ladder",
		}
	}
	tbl, err := engine.NewTable(elems)
	require.NoError(t, err)
	return tbl
}
