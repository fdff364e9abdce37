package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic checks via errors.Is().
var (
	// ErrSessionNotFound is returned when a session ID cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoStartEvent indicates the graph has no start event to begin from.
	ErrNoStartEvent = errors.New("no start event")

	// ErrContextMissing indicates a node needs a context value no hook produced.
	ErrContextMissing = errors.New("context value missing")

	// ErrHook indicates a side-effect hook failed.
	ErrHook = errors.New("hook failed")

	// ErrNoMatch indicates a reply did not resolve to any outgoing flow. Recoverable.
	ErrNoMatch = errors.New("no matching flow")

	// ErrUnhandledFlow indicates the engine reached a node it cannot leave.
	ErrUnhandledFlow = errors.New("unhandled flow")

	// ErrNotAwaitingInput is returned when a reply is submitted outside PhaseAwaitingInput.
	ErrNotAwaitingInput = errors.New("session is not awaiting input")

	// ErrAlreadyStarted is returned by Start on a session that left PhaseIdle.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrItemNotFound is returned by inventories for unknown item ids.
	ErrItemNotFound = errors.New("item not found")

	// ErrNoSelection is returned by hooks that need a selected item.
	ErrNoSelection = errors.New("no item selected")
)

// NoStartEventError is returned by Start when the graph has no start event.
type NoStartEventError struct {
	ProcessID string
}

func (e *NoStartEventError) Error() string {
	return fmt.Sprintf("%s in process %q", ErrNoStartEvent, e.ProcessID)
}

func (e *NoStartEventError) Unwrap() error { return ErrNoStartEvent }

// ContextMissingError reports a missing or malformed context value.
type ContextMissingError struct {
	NodeID string
	Key    string
	Err    error // Optional decode failure
}

func (e *ContextMissingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("node %s: %s: %q: %v", e.NodeID, ErrContextMissing, e.Key, e.Err)
	}
	return fmt.Sprintf("node %s: %s: %q", e.NodeID, ErrContextMissing, e.Key)
}

func (e *ContextMissingError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrContextMissing, e.Err}
	}
	return []error{ErrContextMissing}
}

// HookError wraps the failure of a side-effect hook.
type HookError struct {
	NodeID string
	Hook   string
	Err    error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("node %s: hook %q failed: %v", e.NodeID, e.Hook, e.Err)
}

func (e *HookError) Unwrap() []error { return []error{ErrHook, e.Err} }

// NoMatchError is returned when a reply resolves to no flow.
// The session stays in PhaseAwaitingInput.
type NoMatchError struct {
	NodeID  string
	Input   string
	Choices []string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("node %s: %s for %q (expected one of %v)", e.NodeID, ErrNoMatch, e.Input, e.Choices)
}

func (e *NoMatchError) Unwrap() error { return ErrNoMatch }

// UnhandledFlowError is returned when a node has no flow to continue along.
type UnhandledFlowError struct {
	NodeID string
	Reason string
}

func (e *UnhandledFlowError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("node %s: %s", e.NodeID, ErrUnhandledFlow)
	}
	return fmt.Sprintf("node %s: %s: %s", e.NodeID, ErrUnhandledFlow, e.Reason)
}

func (e *UnhandledFlowError) Unwrap() error { return ErrUnhandledFlow }
