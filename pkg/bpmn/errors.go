package bpmn

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error checking via errors.Is().
var (
	// ErrParse indicates malformed markup or a structural problem in the diagram.
	ErrParse = errors.New("bpmn parse error")

	// ErrNoProcess indicates the document contains no process definition.
	ErrNoProcess = errors.New("no process definition")
)

// ParseError represents a failure to parse the diagram.
// Wraps ErrParse for errors.Is() compatibility.
type ParseError struct {
	Msg string // Deterministic error message
	Err error  // Optional underlying error (e.g. from encoding/xml)
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return ErrParse.Error()
	}
	return fmt.Sprintf("%s: %s", ErrParse.Error(), e.Msg)
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrParse, e.Err}
	}
	return []error{ErrParse}
}

// NoExecutableProcessError is returned when no process definition exists.
type NoExecutableProcessError struct{}

func (e *NoExecutableProcessError) Error() string {
	return ErrNoProcess.Error() + " found in document"
}

func (e *NoExecutableProcessError) Unwrap() error { return ErrNoProcess }
