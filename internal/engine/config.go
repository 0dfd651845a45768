package engine

import (
	"fmt"

	"github.com/roach88/huf/internal/ir"
)

// BudgetType labels what the element values measure. It never changes the
// arithmetic, only how the error budget is framed.
type BudgetType string

const (
	BudgetMass   BudgetType = "mass"
	BudgetEnergy BudgetType = "energy"
)

// Exclusion selects which share(s) the exclusion predicate consults.
type Exclusion string

const (
	// ExclusionGlobal excludes elements whose global pre-share is below Tau.
	ExclusionGlobal Exclusion = "global"

	// ExclusionLocal excludes elements whose local pre-share is below Tau.
	ExclusionLocal Exclusion = "local"

	// ExclusionDual excludes elements below BOTH Tau (global) and TauLocal
	// (local). An element clearing either threshold is kept.
	ExclusionDual Exclusion = "dual"
)

// Config is the immutable threshold configuration for one cycle.
type Config struct {
	BudgetType BudgetType `json:"budget_type"`
	Exclusion  Exclusion  `json:"exclusion"`

	// Tau is the primary threshold in share units. Not clamped.
	Tau float64 `json:"tau"`

	// TauLocal is required only for ExclusionDual.
	TauLocal *float64 `json:"tau_local,omitempty"`

	// Seed is reserved for stochastic extensions; the deterministic core
	// ignores it, but it is part of the parameter identity.
	Seed int64 `json:"seed"`
}

// Float returns a pointer to f, for populating Config.TauLocal.
func Float(f float64) *float64 {
	return &f
}

// Validate checks the exclusion and budget tags and the dual-mode
// requirement for TauLocal.
func (c Config) Validate() error {
	switch c.Exclusion {
	case ExclusionGlobal, ExclusionLocal:
	case ExclusionDual:
		if c.TauLocal == nil {
			return newAuditError(ErrCodeMissingTauLocal, "dual exclusion requires tau_local", nil)
		}
	default:
		return newAuditError(ErrCodeUnknownExclusion,
			fmt.Sprintf("exclusion must be 'global', 'local', or 'dual' (got %q)", c.Exclusion),
			map[string]string{"exclusion": string(c.Exclusion)})
	}

	switch c.BudgetType {
	case BudgetMass, BudgetEnergy:
	default:
		return newAuditError(ErrCodeUnknownBudget,
			fmt.Sprintf("budget_type must be 'mass' or 'energy' (got %q)", c.BudgetType),
			map[string]string{"budget_type": string(c.BudgetType)})
	}
	return nil
}

// WithTau returns a copy of c with Tau replaced. All other fields,
// including TauLocal, are held fixed.
func (c Config) WithTau(tau float64) Config {
	out := c
	out.Tau = tau
	if c.TauLocal != nil {
		out.TauLocal = Float(*c.TauLocal)
	}
	return out
}

// Frame returns the error-budget frame label for the budget type.
func (c Config) Frame() string {
	if c.BudgetType == BudgetEnergy {
		return "energy"
	}
	return "mass"
}

// Canonical returns the order-independent identity form of the config.
// Floats are rendered with ir.Decimal; an absent TauLocal is omitted.
func (c Config) Canonical() ir.IRObject {
	obj := ir.IRObject{
		"budget_type": ir.IRString(c.BudgetType),
		"exclusion":   ir.IRString(c.Exclusion),
		"tau":         ir.Decimal(c.Tau),
		"seed":        ir.IRInt(c.Seed),
	}
	if c.TauLocal != nil {
		obj["tau_local"] = ir.Decimal(*c.TauLocal)
	}
	return obj
}

// ParamHash returns the content hash of the config.
func (c Config) ParamHash() (string, error) {
	return ir.ParamHash(c.Canonical())
}

// String renders the config for logs.
func (c Config) String() string {
	if c.TauLocal != nil {
		return fmt.Sprintf("%s/%s tau=%g tau_local=%g", c.BudgetType, c.Exclusion, c.Tau, *c.TauLocal)
	}
	return fmt.Sprintf("%s/%s tau=%g", c.BudgetType, c.Exclusion, c.Tau)
}
