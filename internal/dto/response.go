// Package dto holds the wire shapes shared by the HTTP and MCP adapters.
package dto

import (
	"errors"

	"github.com/aretw0/bpmnchat/pkg/domain"
)

// SessionView is the public projection of a session.
type SessionView struct {
	ID              string           `json:"id" jsonschema_description:"Session identifier"`
	Phase           domain.Phase     `json:"phase" jsonschema_description:"idle, active, awaiting_input or ended"`
	CurrentNodeID   string           `json:"current_node_id,omitempty"`
	CurrentNodeName string           `json:"current_node_name,omitempty"`
	ExpectedChoices []string         `json:"expected_choices,omitempty" jsonschema_description:"Replies the current node accepts"`
	EndReason       domain.EndReason `json:"end_reason,omitempty"`
	History         []string         `json:"history,omitempty"`
	Context         domain.Context   `json:"context,omitempty"`
}

// TurnResponse is the result of one operation on a session.
type TurnResponse struct {
	Session SessionView   `json:"session"`
	Turns   []domain.Turn `json:"turns" jsonschema_description:"Dialogue turns produced by the operation, in order"`
	Error   string        `json:"error,omitempty" jsonschema_description:"Error code when the operation did not fully succeed"`
	Message string        `json:"message,omitempty"`
}

// FlowView is an outgoing sequence flow.
type FlowView struct {
	ID     string `json:"id"`
	Target string `json:"target"`
	Name   string `json:"name,omitempty"`
}

// NodeView is a graph node with its outgoing flows.
type NodeView struct {
	ID       string     `json:"id"`
	Name     string     `json:"name,omitempty"`
	Type     string     `json:"type"`
	Outgoing []FlowView `json:"outgoing"`
}

// NewSessionView projects s, resolving the current node name against g.
func NewSessionView(g *domain.Graph, s *domain.Session) SessionView {
	if s == nil {
		return SessionView{}
	}
	v := SessionView{
		ID:              s.ID,
		Phase:           s.Phase,
		CurrentNodeID:   s.CurrentNodeID,
		ExpectedChoices: s.ExpectedChoices,
		EndReason:       s.EndReason,
		History:         s.History,
		Context:         s.Context,
	}
	if node, ok := g.Node(s.CurrentNodeID); ok {
		v.CurrentNodeName = node.Name
	}
	return v
}

// NewGraphView lists the nodes of g in document order.
func NewGraphView(g *domain.Graph) []NodeView {
	nodes := g.Nodes()
	out := make([]NodeView, 0, len(nodes))
	for _, n := range nodes {
		v := NodeView{ID: n.ID, Name: n.Name, Type: string(n.Type), Outgoing: make([]FlowView, 0, len(n.Outgoing))}
		for _, f := range n.Outgoing {
			v.Outgoing = append(v.Outgoing, FlowView{ID: f.ID, Target: f.Target, Name: f.Name})
		}
		out = append(out, v)
	}
	return out
}

// Error codes reported in TurnResponse.Error.
const (
	CodeNoMatch          = "no_match"
	CodeNotAwaiting      = "not_awaiting_input"
	CodeNotFound         = "session_not_found"
	CodeAlreadyStarted   = "already_started"
	CodeNoStartEvent     = "no_start_event"
	CodeContextMissing   = "context_missing"
	CodeHookFailed       = "hook_failed"
	CodeUnhandledFlow    = "unhandled_flow"
	CodeInvalidInput     = "invalid_input"
	CodeInternal         = "internal"
	CodeItemNotFound     = "item_not_found"
	CodeInventoryMissing = "inventory_unavailable"
)

// ErrorCode classifies err. It returns "" for nil.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrNoMatch):
		return CodeNoMatch
	case errors.Is(err, domain.ErrNotAwaitingInput):
		return CodeNotAwaiting
	case errors.Is(err, domain.ErrSessionNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrAlreadyStarted):
		return CodeAlreadyStarted
	case errors.Is(err, domain.ErrNoStartEvent):
		return CodeNoStartEvent
	case errors.Is(err, domain.ErrContextMissing):
		return CodeContextMissing
	case errors.Is(err, domain.ErrHook):
		return CodeHookFailed
	case errors.Is(err, domain.ErrUnhandledFlow):
		return CodeUnhandledFlow
	case errors.Is(err, domain.ErrItemNotFound):
		return CodeItemNotFound
	}
	return CodeInternal
}

// Conversational reports whether err is a dialogue outcome already explained
// to the user by the produced turns, as opposed to a transport or storage failure.
func Conversational(err error) bool {
	switch ErrorCode(err) {
	case CodeNoMatch, CodeContextMissing, CodeHookFailed, CodeUnhandledFlow:
		return true
	}
	return false
}
