package engine

// Exclude runs the full normalize, exclude, renormalize pipeline.
//
// The returned Frame carries every element (kept and excluded) with its
// four shares. Fatal errors (no partial frame): invalid config, non-positive
// total, and ALL_EXCLUDED when the predicate removes every element.
func Exclude(t *Table, cfg Config) (*Frame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f, err := Normalize(t)
	if err != nil {
		return nil, err
	}
	f.Config = cfg

	pred := predicate(cfg)

	var discarded float64
	kept := 0
	for i := range f.Rows {
		r := &f.Rows[i]
		r.Excluded = pred(r.RhoGlobalPre, r.RhoLocalPre)
		if r.Excluded {
			discarded += r.Element.Value
		} else {
			kept++
		}
	}
	f.DiscardedBudgetGlobal = safeShare(discarded, f.TotalValue)

	if kept == 0 {
		return nil, newAuditError(ErrCodeAllExcluded,
			"exclusion removed all elements; invalid run", map[string]string{"tau": cfg.String()})
	}

	renormalize(f)
	return f, nil
}

// predicate returns the exclusion test for a validated config.
func predicate(cfg Config) func(global, local float64) bool {
	switch cfg.Exclusion {
	case ExclusionLocal:
		return func(_, local float64) bool { return local < cfg.Tau }
	case ExclusionDual:
		tauLocal := *cfg.TauLocal
		return func(global, local float64) bool { return global < cfg.Tau && local < tauLocal }
	default:
		return func(global, _ float64) bool { return global < cfg.Tau }
	}
}

// renormalize fills the post-shares of kept rows.
func renormalize(f *Frame) {
	regimeKept := make(map[string]float64)
	var keptTotal float64
	for _, r := range f.Rows {
		if !r.Excluded {
			keptTotal += r.Element.Value
			regimeKept[r.Element.RegimeID] += r.Element.Value
		}
	}
	f.KeptValue = keptTotal

	for i := range f.Rows {
		r := &f.Rows[i]
		r.RegimeKeptTotal = regimeKept[r.Element.RegimeID]
		if r.Excluded {
			continue
		}
		r.RhoGlobalPost = safeShare(r.Element.Value, keptTotal)
		r.RhoLocalPost = safeShare(r.Element.Value, r.RegimeKeptTotal)
	}
}
