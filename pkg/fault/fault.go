// Package fault defines the error taxonomy shared by the pipeline,
// discovery, and batch layers. Every failure carries a human-readable
// message and a machine-readable kind so that reports can classify
// failures without parsing message text.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// Validation means a step's required input key was missing before
	// the step ran.
	Validation Kind = "validation"

	// Execution means a step's internal operation failed, including an
	// external tool exiting non-zero or timing out.
	Execution Kind = "execution"

	// Discovery means the study root could not be scanned for work
	// items. Per-item exclusions for incomplete input are warnings,
	// never errors, and carry no kind.
	Discovery Kind = "discovery"

	// Configuration means an unresolvable dependency such as a missing
	// external executable. Fatal at startup, never per-item.
	Configuration Kind = "configuration"
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error, preserving it for errors.Is and
// errors.As chains.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first classified error in the chain,
// or Execution if the chain carries no classification.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Execution
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
