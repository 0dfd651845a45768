package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Element is the atomic unit of mass under audit: a budget line item, a
// map pixel, a retrieval hit.
type Element struct {
	// ID is unique within a table.
	ID string `json:"element_id"`

	// RegimeID names the partition the element belongs to.
	RegimeID string `json:"regime_id"`

	// Value is the element's nonnegative mass (count, energy, amount).
	Value float64 `json:"value"`

	// TracePath is an optional serialized JSON array of breadcrumb strings.
	TracePath string `json:"trace_path,omitempty"`

	// InputsRef and MethodRef are free-text provenance strings.
	InputsRef string `json:"inputs_ref,omitempty"`
	MethodRef string `json:"method_ref,omitempty"`
}

// Path returns the parsed provenance breadcrumb. An absent, blank or
// unparsable TracePath falls back to [RegimeID, ID].
func (e Element) Path() []string {
	if strings.TrimSpace(e.TracePath) != "" {
		var path []string
		if err := json.Unmarshal([]byte(e.TracePath), &path); err == nil && path != nil {
			return path
		}
	}
	return []string{e.RegimeID, e.ID}
}

// Table is an immutable, validated element table.
type Table struct {
	elems []Element
}

// NewTable validates and copies elems into a Table.
//
// Fatal input errors:
//   - EMPTY_TABLE: no elements
//   - MISSING_COLUMNS: an element without element_id or regime_id
//   - DUPLICATE_ELEMENT: element_id repeated
//   - NEGATIVE_VALUE: value < 0
//   - INVALID_VALUE: NaN or infinite value
func NewTable(elems []Element) (*Table, error) {
	if len(elems) == 0 {
		return nil, newAuditError(ErrCodeEmptyTable, "element table is empty", nil)
	}

	seen := make(map[string]int, len(elems))
	for i, e := range elems {
		if e.ID == "" || e.RegimeID == "" {
			return nil, newAuditError(ErrCodeMissingColumns,
				fmt.Sprintf("element %d is missing element_id or regime_id", i),
				map[string]string{"row": fmt.Sprint(i)})
		}
		if prev, dup := seen[e.ID]; dup {
			return nil, newAuditError(ErrCodeDuplicateElement,
				fmt.Sprintf("element_id %q appears at rows %d and %d", e.ID, prev, i),
				map[string]string{"element_id": e.ID})
		}
		seen[e.ID] = i

		if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
			return nil, newAuditError(ErrCodeInvalidValue,
				fmt.Sprintf("element %q has non-finite value %v", e.ID, e.Value),
				map[string]string{"element_id": e.ID})
		}
		if e.Value < 0 {
			return nil, newAuditError(ErrCodeNegativeValue,
				fmt.Sprintf("value must be nonnegative (element %q has %v)", e.ID, e.Value),
				map[string]string{"element_id": e.ID})
		}
	}

	cp := make([]Element, len(elems))
	copy(cp, elems)
	return &Table{elems: cp}, nil
}

// MustTable is like NewTable but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustTable(elems []Element) *Table {
	t, err := NewTable(elems)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of elements.
func (t *Table) Len() int {
	return len(t.elems)
}

// Elements returns a copy of the elements in input order.
func (t *Table) Elements() []Element {
	cp := make([]Element, len(t.elems))
	copy(cp, t.elems)
	return cp
}

// TotalValue returns the sum of all element values.
func (t *Table) TotalValue() float64 {
	var sum float64
	for _, e := range t.elems {
		sum += e.Value
	}
	return sum
}
