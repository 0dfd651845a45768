package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/huf/internal/export"
	"github.com/roach88/huf/internal/plan"
)

// ValidationResult holds the validation output.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Kind    string `json:"kind"` // "plan" or "trace"
	Path    string `json:"path"`
	Records int    `json:"records,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate an audit plan or a trace report",
		Long: `Validate an audit plan (.cue, .yaml, .yml, .json) against the plan
schema, or check every record of a trace report (.jsonl) for the six
mandatory trace fields.

Exit codes:
  0 - File is valid
  1 - File is invalid
  2 - File not found

Examples:
  huf validate audit.cue
  huf validate out/artifact_3_trace_report.jsonl --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	if _, err := os.Stat(path); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("file not found: %s", path), nil)
	}

	result := ValidationResult{Valid: true, Path: path}
	var err error
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		result.Kind = "trace"
		formatter.VerboseLog("Checking trace records in %s", path)
		result.Records, err = export.ValidateTraceFile(path)
	} else {
		result.Kind = "plan"
		formatter.VerboseLog("Checking plan %s", path)
		_, err = plan.Load(path)
	}

	if err != nil {
		result.Valid = false
		result.Error = err.Error()
		return outputValidationFailure(formatter, result, err)
	}

	return formatter.Result(result, func(w io.Writer) {
		if result.Kind == "trace" {
			fmt.Fprintf(w, "✓ %s: %d trace records valid\n", path, result.Records)
			return
		}
		fmt.Fprintf(w, "✓ %s: plan valid\n", path)
	})
}

func outputValidationFailure(formatter *OutputFormatter, result ValidationResult, err error) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    ErrCodeInvalid,
				Message: err.Error(),
			},
		}
		if encErr := jsonEncode(formatter.Writer, response); encErr != nil {
			return encErr
		}
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	fmt.Fprintf(formatter.Writer, "✗ %s: %s invalid\n", result.Path, result.Kind)
	fmt.Fprintf(formatter.Writer, "  %s\n", err)
	return WrapExitError(ExitFailure, "validation failed", err)
}
