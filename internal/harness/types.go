package harness

import "github.com/roach88/huf/internal/audit"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Artifacts is nil when the cycle failed.
	Artifacts *audit.Artifacts `json:"artifacts,omitempty"`

	// Stability holds the sweep rows when the scenario requested a sweep
	// and it succeeded.
	Stability []audit.StabilityRow `json:"stability,omitempty"`

	// Err is the first fatal error from the table, cycle or sweep.
	Err error `json:"-"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
