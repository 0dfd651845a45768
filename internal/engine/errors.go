package engine

import (
	"errors"
	"fmt"
)

// AuditError is a fatal error raised by the engine or the cycle
// orchestrator. No partial artifacts accompany it.
//
// Codes split into two classes:
//   - input/configuration errors: bad table, bad config, degenerate threshold
//   - internal errors: an artifact builder produced an incomplete record
type AuditError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context (element id, row, field).
	Details map[string]string
}

// ErrorCode categorizes audit errors.
type ErrorCode string

const (
	ErrCodeEmptyTable       ErrorCode = "EMPTY_TABLE"
	ErrCodeMissingColumns   ErrorCode = "MISSING_COLUMNS"
	ErrCodeNegativeValue    ErrorCode = "NEGATIVE_VALUE"
	ErrCodeInvalidValue     ErrorCode = "INVALID_VALUE"
	ErrCodeDuplicateElement ErrorCode = "DUPLICATE_ELEMENT"
	ErrCodeNonPositiveTotal ErrorCode = "NONPOSITIVE_TOTAL"
	ErrCodeAllExcluded      ErrorCode = "ALL_EXCLUDED"
	ErrCodeUnknownExclusion ErrorCode = "UNKNOWN_EXCLUSION"
	ErrCodeUnknownBudget    ErrorCode = "UNKNOWN_BUDGET"
	ErrCodeMissingTauLocal  ErrorCode = "MISSING_TAU_LOCAL"
	ErrCodeTooFewTaus       ErrorCode = "TOO_FEW_TAUS"
	ErrCodeMissingDatasetID ErrorCode = "MISSING_DATASET_ID"

	// Internal invariant violations: a builder bug, not bad input.
	ErrCodeMissingArtifact   ErrorCode = "MISSING_ARTIFACT"
	ErrCodeMissingTraceField ErrorCode = "MISSING_TRACE_FIELD"
)

// Error implements the error interface.
func (e *AuditError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Internal reports whether the error indicates a builder bug.
func (e *AuditError) Internal() bool {
	return e.Code == ErrCodeMissingArtifact || e.Code == ErrCodeMissingTraceField
}

func newAuditError(code ErrorCode, msg string, details map[string]string) *AuditError {
	return &AuditError{Code: code, Message: msg, Details: details}
}

// NewError creates an AuditError. Exposed for the orchestrator and adapters,
// which raise codes from the same vocabulary.
func NewError(code ErrorCode, msg string, details map[string]string) *AuditError {
	return newAuditError(code, msg, details)
}

// CodeOf extracts the error code, or "" if err is not an AuditError.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsRetentionError reports whether err is the all-elements-excluded guard.
// The stability sweep downgrades exactly this error to an invalid row.
func IsRetentionError(err error) bool {
	return CodeOf(err) == ErrCodeAllExcluded
}

// IsInternal reports whether err is an internal invariant violation.
func IsInternal(err error) bool {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Internal()
	}
	return false
}
