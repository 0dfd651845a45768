package audit

import (
	"fmt"
	"reflect"

	"github.com/roach88/huf/internal/engine"
)

// RequiredArtifactKeys are the keys of the cycle output mapping.
var RequiredArtifactKeys = []string{"coherence_map", "active_set", "trace_report", "error_budget", "run_stamp"}

// RequiredTraceFields are mandatory on every trace record.
var RequiredTraceFields = []string{"item_id", "regime_path", "rho_global_post", "inputs_ref", "method_ref", "discarded_budget_global"}

// Record returns the five-key cycle output mapping. A nil artifact is
// reported as an absent key.
func (a *Artifacts) Record() map[string]any {
	rec := make(map[string]any, len(RequiredArtifactKeys))
	put := func(key string, v any) {
		if !isNil(v) {
			rec[key] = v
		}
	}
	put("coherence_map", a.CoherenceMap)
	put("active_set", a.ActiveSet)
	put("trace_report", a.TraceReport)
	if a.ErrorBudget != nil {
		rec["error_budget"] = a.ErrorBudget.Map()
	}
	put("run_stamp", a.RunStamp)
	return rec
}

// Fields returns the record as a mapping. An empty item id or a nil
// regime path counts as an absent field.
func (t TraceRecord) Fields() map[string]any {
	fields := map[string]any{
		"rho_global_post":         t.RhoGlobalPost,
		"inputs_ref":              t.InputsRef,
		"method_ref":              t.MethodRef,
		"discarded_budget_global": t.DiscardedBudgetGlobal,
	}
	if t.ItemID != "" {
		fields["item_id"] = t.ItemID
	}
	if t.RegimePath != nil {
		fields["regime_path"] = t.RegimePath
	}
	return fields
}

// validateArtifacts asserts the output contract. Failures are builder
// bugs, reported as internal AuditErrors.
func validateArtifacts(a *Artifacts) error {
	rec := a.Record()
	for _, key := range RequiredArtifactKeys {
		if _, ok := rec[key]; !ok {
			return engine.NewError(engine.ErrCodeMissingArtifact,
				fmt.Sprintf("missing required artifact: %s", key),
				map[string]string{"artifact": key})
		}
	}
	for i, tr := range a.TraceReport {
		fields := tr.Fields()
		for _, f := range RequiredTraceFields {
			if _, ok := fields[f]; !ok {
				return engine.NewError(engine.ErrCodeMissingTraceField,
					fmt.Sprintf("trace record %d missing field: %s", i, f),
					map[string]string{"record": fmt.Sprint(i), "field": f})
			}
		}
	}
	return nil
}

// ValidateTraceLine checks one persisted trace line (e.g. a JSONL row).
// It accepts the legacy keys rho_global and discarded_budget in place of
// rho_global_post and discarded_budget_global.
func ValidateTraceLine(obj map[string]any) error {
	var missing []string
	for _, k := range []string{"item_id", "regime_path", "inputs_ref", "method_ref"} {
		if _, ok := obj[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return engine.NewError(engine.ErrCodeMissingTraceField,
			fmt.Sprintf("trace line missing required fields: %v", missing), nil)
	}
	if !hasAny(obj, "rho_global_post", "rho_global") {
		return engine.NewError(engine.ErrCodeMissingTraceField,
			"trace line missing required field: rho_global_post (or legacy rho_global)", nil)
	}
	if !hasAny(obj, "discarded_budget_global", "discarded_budget") {
		return engine.NewError(engine.ErrCodeMissingTraceField,
			"trace line missing required field: discarded_budget_global (or legacy discarded_budget)", nil)
	}
	return nil
}

func hasAny(obj map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
