package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/huf/internal/engine"
	"github.com/roach88/huf/internal/ir"
)

// marshalConfig stores a config in its canonical identity form, so the
// stored text hashes to the run's param_hash.
func marshalConfig(cfg engine.Config) (string, error) {
	data, err := ir.MarshalCanonical(cfg.Canonical())
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

// unmarshalConfig parses canonical config text. Floats are stored as
// shortest round-trip decimal strings.
func unmarshalConfig(data string) (engine.Config, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return engine.Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	str := func(key string) (string, error) {
		s, ok := m[key].(string)
		if !ok {
			return "", fmt.Errorf("unmarshal config: %s is not a string", key)
		}
		return s, nil
	}
	float := func(key string) (float64, error) {
		s, err := str(key)
		if err != nil {
			return 0, err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("unmarshal config: %s: %w", key, err)
		}
		return f, nil
	}

	var cfg engine.Config
	budget, err := str("budget_type")
	if err != nil {
		return engine.Config{}, err
	}
	exclusion, err := str("exclusion")
	if err != nil {
		return engine.Config{}, err
	}
	cfg.BudgetType = engine.BudgetType(budget)
	cfg.Exclusion = engine.Exclusion(exclusion)
	if cfg.Tau, err = float("tau"); err != nil {
		return engine.Config{}, err
	}
	if _, ok := m["tau_local"]; ok {
		tl, err := float("tau_local")
		if err != nil {
			return engine.Config{}, err
		}
		cfg.TauLocal = engine.Float(tl)
	}
	if n, ok := m["seed"].(json.Number); ok {
		if cfg.Seed, err = n.Int64(); err != nil {
			return engine.Config{}, fmt.Errorf("unmarshal config: seed: %w", err)
		}
	}
	return cfg, nil
}

// marshalRecord converts an artifact record to JSON TEXT.
// Artifact records carry floats, so they use encoding/json (shortest
// round-trip float formatting) with HTML escaping disabled rather than
// canonical JSON.
func marshalRecord(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalRecord(data string, v any) error {
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	return nil
}
