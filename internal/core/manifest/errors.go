// Package manifest parses declarative deployment manifests into captured
// definitions. Validation is staged: YAML structure first, then per-entry
// fields, then full option capture, so a bad manifest fails before anything
// is applied.
package manifest

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input validation errors
	ErrEmptyInput = errors.New("manifest is empty")

	// YAML parsing errors
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// Manifest structure errors
	ErrNoDeployments = errors.New("manifest must declare at least one deployment")

	// Deployment entry errors
	ErrDeploymentNoName    = errors.New("deployment must have a name")
	ErrDuplicateDeployment = errors.New("duplicate deployment name")
	ErrNameMismatch        = errors.New("entry name conflicts with options")

	// Init payload errors
	ErrPayloadNoFormat = errors.New("init payload must declare a format")
	ErrPayloadEncoding = errors.New("init payload data must be base64")
)

// ParseError wraps errors with context about where parsing failed.
type ParseError struct {
	Field   string // e.g., "deployments[0].options"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
