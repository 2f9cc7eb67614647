// Package deploy contains the pure deployment-configuration model: the option
// registry, option capture, config construction with layered overrides, and
// the structural validation rules. This is part of the Functional Core - all
// functions are pure with no I/O.
package deploy

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Capture errors
	ErrUnknownOption = errors.New("unknown deployment option")
	ErrNullOption    = errors.New("option does not accept null")
	ErrOptionValue   = errors.New("invalid option value")

	// Cross-field validation errors
	ErrMutualExclusion        = errors.New("num_replicas and autoscaling_config cannot both be null")
	ErrBundleResources        = errors.New("placement group bundle must request at least one positive resource quantity")
	ErrStrategyWithoutBundles = errors.New("placement group strategy requires non-empty placement group bundles")
)

// OptionError wraps errors with context about which option failed and why.
type OptionError struct {
	Option  string // e.g., "num_replicas"
	Message string
	Err     error
}

func (e *OptionError) Error() string {
	if e.Option != "" {
		return fmt.Sprintf("option %q: %s", e.Option, e.Message)
	}
	return e.Message
}

func (e *OptionError) Unwrap() error {
	return e.Err
}

// NewOptionError creates a new OptionError.
func NewOptionError(option, message string, err error) *OptionError {
	return &OptionError{
		Option:  option,
		Message: message,
		Err:     err,
	}
}
