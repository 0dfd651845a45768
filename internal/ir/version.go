package ir

// Version constants for the audit core.
const (
	// CodeFingerprint identifies the share/exclusion algorithm. It feeds the
	// code_hash of every run stamp, so bump it whenever the arithmetic or the
	// artifact layout changes.
	CodeFingerprint = "huf_core_v1"

	// EngineVersion is the HUF tool version.
	EngineVersion = "0.1.0"
)
