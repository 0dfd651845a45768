package plan

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Error is a plan loading or validation error.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads, validates and checks a plan. The format follows the file
// extension: .cue, .yaml/.yml or .json.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	p.baseDir = filepath.Dir(path)
	if err := p.Check(); err != nil {
		return nil, err
	}
	return p, nil
}

// Parse validates plan source against the schema and decodes it.
// filename selects the format and labels error positions.
func Parse(data []byte, filename string) (*Plan, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Plan"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("plan schema: %w", err)
	}

	var v cue.Value
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".cue":
		v = ctx.CompileBytes(data, cue.Filename(filename))
	case ".yaml", ".yml", ".json":
		// JSON is a YAML subset, so one decoder serves both.
		var m map[string]any
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, &Error{Field: "plan", Message: fmt.Sprintf("parse %s: %v", filepath.Base(filename), err)}
		}
		if m == nil {
			return nil, &Error{Field: "plan", Message: "plan is empty"}
		}
		v = ctx.Encode(m)
	default:
		return nil, &Error{Field: "plan", Message: fmt.Sprintf("unsupported plan format %q: want .cue, .yaml, .yml or .json", filepath.Ext(filename))}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var p Plan
	if err := unified.Decode(&p); err != nil {
		return nil, formatCUEError(err)
	}
	return &p, nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	e := &Error{Field: "cue", Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}
