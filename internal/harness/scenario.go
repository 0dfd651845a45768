package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/huf/internal/engine"
)

// Scenario defines one audit contract test.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// DatasetID overrides the default "scenario:<name>" dataset id.
	DatasetID string `yaml:"dataset_id,omitempty"`

	// Elements is the inline element table.
	Elements []ElementRow `yaml:"elements"`

	// Config is the threshold configuration for the cycle.
	Config ConfigSpec `yaml:"config"`

	// Metric selects an optional error metric: "none" (default) or "tv".
	Metric string `yaml:"metric,omitempty"`

	// Sweep runs a stability packet after the cycle when present.
	Sweep *SweepSpec `yaml:"sweep,omitempty"`

	// Assertions validate the artifacts.
	Assertions []Assertion `yaml:"assertions"`
}

// ElementRow is one inline element.
type ElementRow struct {
	ID       string  `yaml:"element_id"`
	RegimeID string  `yaml:"regime_id"`
	Value    float64 `yaml:"value"`
}

// ConfigSpec mirrors engine.Config with YAML-friendly defaults: an empty
// budget_type means mass and an empty exclusion means global.
type ConfigSpec struct {
	BudgetType string   `yaml:"budget_type,omitempty"`
	Exclusion  string   `yaml:"exclusion,omitempty"`
	Tau        float64  `yaml:"tau"`
	TauLocal   *float64 `yaml:"tau_local,omitempty"`
	Seed       int64    `yaml:"seed,omitempty"`
}

// Engine converts the scenario config into an engine.Config.
func (c ConfigSpec) Engine() engine.Config {
	cfg := engine.Config{
		BudgetType: engine.BudgetType(c.BudgetType),
		Exclusion:  engine.Exclusion(c.Exclusion),
		Tau:        c.Tau,
		Seed:       c.Seed,
	}
	if cfg.BudgetType == "" {
		cfg.BudgetType = engine.BudgetMass
	}
	if cfg.Exclusion == "" {
		cfg.Exclusion = engine.ExclusionGlobal
	}
	if c.TauLocal != nil {
		cfg.TauLocal = engine.Float(*c.TauLocal)
	}
	return cfg
}

// SweepSpec configures the stability packet.
type SweepSpec struct {
	Taus []float64 `yaml:"taus"`
	TopK int       `yaml:"top_k,omitempty"`
}

// Assertion is a single check against a scenario result.
// Which fields apply depends on Type.
type Assertion struct {
	Type string `yaml:"type"`

	// Count is used by active_count and stability_rows.
	Count int `yaml:"count,omitempty"`

	// IDs is used by active_order, excluded and kept.
	IDs []string `yaml:"ids,omitempty"`

	// Code is used by error_code.
	Code string `yaml:"code,omitempty"`

	// Value and Tolerance are used by discarded_budget.
	Value     float64 `yaml:"value,omitempty"`
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Taus is used by invalid_taus.
	Taus []float64 `yaml:"taus,omitempty"`
}

// Assertion types.
const (
	AssertActiveCount     = "active_count"
	AssertActiveOrder     = "active_order"
	AssertExcluded        = "excluded"
	AssertKept            = "kept"
	AssertErrorCode       = "error_code"
	AssertDiscardedBudget = "discarded_budget"
	AssertUnity           = "unity"
	AssertStabilityRows   = "stability_rows"
	AssertInvalidTaus     = "invalid_taus"
)

// Metric names accepted in a scenario.
const (
	MetricNone = "none"
	MetricTV   = "tv"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
// Element-level problems (duplicates, negative values) are left to the
// engine so that error_code assertions can observe them.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	switch s.Metric {
	case "", MetricNone, MetricTV:
	default:
		return fmt.Errorf("metric must be %q or %q (got %q)", MetricNone, MetricTV, s.Metric)
	}

	if s.Sweep != nil && len(s.Sweep.Taus) == 0 {
		return fmt.Errorf("sweep.taus is required when sweep is present")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertActiveCount, AssertStabilityRows:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertActiveOrder, AssertExcluded, AssertKept:
		if len(a.IDs) == 0 {
			return fmt.Errorf("assertions[%d]: ids list is required for %s", index, a.Type)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error_code", index)
		}
	case AssertDiscardedBudget:
		if a.Tolerance < 0 {
			return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
		}
	case AssertUnity, AssertInvalidTaus:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
