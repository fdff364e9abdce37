package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter  EventType = "node_enter"
	EventNodeLeave  EventType = "node_leave"
	EventHookCall   EventType = "hook_call"
	EventHookReturn EventType = "hook_return"
	EventNoMatch    EventType = "no_match"
	EventSessionEnd EventType = "session_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// NodeEvent represents entry into or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeType NodeType `json:"node_type"`
}

// HookEvent represents a side-effect hook invocation.
type HookEvent struct {
	EventBase
	NodeID   string        `json:"node_id"`
	HookName string        `json:"hook_name"`
	Duration time.Duration `json:"duration,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
}

// InputEvent represents a reply that did not resolve to any flow.
type InputEvent struct {
	EventBase
	NodeID string `json:"node_id"`
	Input  string `json:"input"`
}

// EndEvent represents a session reaching PhaseEnded.
type EndEvent struct {
	EventBase
	NodeID string    `json:"node_id,omitempty"`
	Reason EndReason `json:"reason"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any field may be nil.
type LifecycleHooks struct {
	OnNodeEnter  func(context.Context, *NodeEvent)
	OnNodeLeave  func(context.Context, *NodeEvent)
	OnHookCall   func(context.Context, *HookEvent)
	OnHookReturn func(context.Context, *HookEvent)
	OnNoMatch    func(context.Context, *InputEvent)
	OnSessionEnd func(context.Context, *EndEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:  chain(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:  chain(h.OnNodeLeave, other.OnNodeLeave),
		OnHookCall:   chain(h.OnHookCall, other.OnHookCall),
		OnHookReturn: chain(h.OnHookReturn, other.OnHookReturn),
		OnNoMatch:    chain(h.OnNoMatch, other.OnNoMatch),
		OnSessionEnd: chain(h.OnSessionEnd, other.OnSessionEnd),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
