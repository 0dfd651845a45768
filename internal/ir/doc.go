// Package ir provides the canonical value model used for content-addressed
// identities in HUF run stamps.
//
// All other internal packages may import ir; ir imports nothing internal.
//
// Key constraints:
//   - No float values inside canonical JSON. Shares and thresholds are
//     rendered as shortest round-trip decimal strings (see Decimal) so the
//     same configuration hashes identically on every platform.
//   - Object keys are ordered by UTF-16 code units (RFC 8785).
//   - All JSON tags use snake_case.
package ir
