// Package apperr defines the error kinds shared across codesense.
//
// Components wrap these sentinels with %w so the outer surfaces (CLI, MCP)
// can tell "not indexed yet" apart from "corrupt data" with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound covers missing projects, graphs, symbols and files.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when persisted graph or index data is malformed.
	ErrInvalidState = errors.New("invalid persisted state")

	// ErrInputMismatch marks caller bugs such as vector/metadata length mismatches.
	ErrInputMismatch = errors.New("input mismatch")

	// ErrProviderFailure wraps embedding and language-model failures.
	ErrProviderFailure = errors.New("provider failure")
)

// Kind returns a short label for err's category, or "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInputMismatch):
		return "input_mismatch"
	case errors.Is(err, ErrProviderFailure):
		return "provider_failure"
	default:
		return "internal"
	}
}
