package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/huf/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Audit/validation failure (retention error, replay mismatch, failed scenarios)
	ExitCommandError = 2 // Command error (invalid paths, bad plan, ledger not found)
)

// CLI error codes reported in JSON responses.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodePlanInvalid = "E002" // Plan or flags rejected
	ErrCodeDataset     = "E003" // Dataset could not be loaded
	ErrCodeAudit       = "E004" // Cycle or sweep failed
	ErrCodeNotFound    = "E005" // Path or run id not found
	ErrCodeLedger      = "E006" // Ledger open/read/write failed
	ErrCodeWriteFailed = "E007" // Artifact write failed
	ErrCodeReplay      = "E008" // Replay did not reproduce the stored run
	ErrCodeInvalid     = "E009" // Validated file is invalid
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// auditExitCode classifies an engine error: input and configuration
// problems are command errors, everything else (the retention guard,
// builder invariants) is an audit failure.
func auditExitCode(err error) int {
	switch engine.CodeOf(err) {
	case engine.ErrCodeAllExcluded, engine.ErrCodeMissingArtifact, engine.ErrCodeMissingTraceField:
		return ExitFailure
	case "":
		return ExitFailure
	default:
		return ExitCommandError
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "E001", "E002", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Result outputs data as a JSON success response, or calls text to
// render it for humans.
func (f *OutputFormatter) Result(data interface{}, text func(w io.Writer)) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	text(f.Writer)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err under code and returns it as an ExitError. In JSON
// mode the error response is written to Writer; in text mode the caller
// prints the returned error. Audit errors contribute their own code and
// details.
func (f *OutputFormatter) Fail(exitCode int, code, message string, err error) error {
	var details interface{}
	var ae *engine.AuditError
	if errors.As(err, &ae) {
		d := map[string]string{"audit_code": string(ae.Code)}
		for k, v := range ae.Details {
			d[k] = v
		}
		details = d
	}

	full := message
	if err != nil {
		full = fmt.Sprintf("%s: %v", message, err)
	}
	if f.Format == "json" {
		_ = f.Error(code, full, details)
	}
	return WrapExitError(exitCode, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// jsonEncode writes v as indented JSON, for responses that carry a
// payload alongside an error.
func jsonEncode(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
