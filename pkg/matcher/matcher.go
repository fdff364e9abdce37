// Package matcher resolves a free-text reply to the flow a session should follow.
//
// Resolution runs in a fixed priority order against the current node's
// outgoing flows:
//
//  1. the reply contains a flow name
//  2. on an event-based gateway, the reply contains a target node name
//  3. "si"/"sí" and "no" answer flows named that way
//  4. on an intermediate catch event, the reply is a 1-based index into the offered items
//  5. the routing table: input patterns, then the negative loop-back
//
// A task covered by a capture rule accepts any reply.
package matcher

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/routing"
)

// Kind tells the engine how to apply a Resolution.
type Kind int

const (
	// KindFlow follows Flow to its target.
	KindFlow Kind = iota
	// KindLoopBack jumps to ResetTo without traversing a flow.
	KindLoopBack
	// KindCapture stores the reply under CaptureKey and follows Flow.
	KindCapture
)

func (k Kind) String() string {
	switch k {
	case KindFlow:
		return "flow"
	case KindLoopBack:
		return "loop_back"
	case KindCapture:
		return "capture"
	}
	return "unknown"
}

// Resolution is the outcome of a successful match.
type Resolution struct {
	Kind Kind
	Flow domain.Flow

	// Rule is the priority step that resolved the reply (1-5), 0 for captures.
	Rule int

	// Selected is set when a catch-event index picked an item.
	Selected *domain.Item

	// ResetTo and Message describe a loop-back.
	ResetTo string
	Message string

	// CaptureKey, Value and Ack describe a capture.
	CaptureKey string
	Value      string
	Ack        string
}

// Matcher applies the resolution order with an optional routing table.
type Matcher struct {
	table *routing.Table
}

// New creates a matcher. A nil table disables step 5.
func New(table *routing.Table) *Matcher {
	return &Matcher{table: table}
}

// Normalize trims and lower-cases a reply.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Match resolves text against node.
//
// It returns *domain.NoMatchError when nothing resolves, *domain.ContextMissingError
// when a catch event has no usable item list, and *domain.UnhandledFlowError when
// a selection or capture resolves but the node has no flow to leave by.
func (m *Matcher) Match(g *domain.Graph, node *domain.Node, sc domain.Context, text string) (Resolution, error) {
	input := Normalize(text)
	rule, hasRule := m.table.Lookup(node)

	if hasRule && rule.Capture != nil && node.Type.IsActivity() {
		flow, ok := node.FirstOutgoing()
		if !ok {
			return Resolution{}, &domain.UnhandledFlowError{NodeID: node.ID, Reason: "capture task has no outgoing flow"}
		}
		return Resolution{
			Kind:       KindCapture,
			Flow:       flow,
			CaptureKey: rule.Capture.Key,
			Value:      strings.TrimSpace(text),
			Ack:        rule.Capture.Ack,
		}, nil
	}

	if input == "" {
		return Resolution{}, noMatch(node, text)
	}

	// 1. Flow name
	for _, f := range node.Outgoing {
		if name := strings.ToLower(f.Name); name != "" && strings.Contains(input, name) {
			return Resolution{Kind: KindFlow, Flow: f, Rule: 1}, nil
		}
	}

	// 2. Target node name on event-based gateways
	if node.Type == domain.NodeEventBasedGateway {
		for _, f := range node.Outgoing {
			if name := strings.ToLower(g.TargetName(f)); name != "" && strings.Contains(input, name) {
				return Resolution{Kind: KindFlow, Flow: f, Rule: 2}, nil
			}
		}
	}

	// 3. Affirmative and negative aliases
	named := false
	for _, f := range node.Outgoing {
		name := strings.ToLower(strings.TrimSpace(f.Name))
		if name != "" {
			named = true
		}
		if isAffirmative(input) && isAffirmative(name) {
			return Resolution{Kind: KindFlow, Flow: f, Rule: 3}, nil
		}
		if input == "no" && name == "no" {
			return Resolution{Kind: KindFlow, Flow: f, Rule: 3}, nil
		}
	}
	// Unnamed decisions offer sí/no: sí takes the first flow, no the second.
	if !named && isDecision(node) {
		if isAffirmative(input) && len(node.Outgoing) > 0 {
			return Resolution{Kind: KindFlow, Flow: node.Outgoing[0], Rule: 3}, nil
		}
		if input == "no" && len(node.Outgoing) > 1 {
			return Resolution{Kind: KindFlow, Flow: node.Outgoing[1], Rule: 3}, nil
		}
	}

	// 4. Index into the offered items
	if node.Type == domain.NodeIntermediateCatchEvent {
		res, ok, err := selectItem(node, sc, input)
		if err != nil || ok {
			return res, err
		}
	}

	// 5. Routing table
	if hasRule {
		for _, p := range rule.Patterns {
			if !containsAny(input, p.Contains) {
				continue
			}
			if f, ok := routing.ResolveTarget(g, node, p.Target); ok {
				return Resolution{Kind: KindFlow, Flow: f, Rule: 5}, nil
			}
		}
		if rule.OnNegative != nil && IsNegative(input) {
			target := routing.ResolveNode(g, rule.OnNegative.ResetTo)
			if target == nil {
				return Resolution{}, &domain.UnhandledFlowError{NodeID: node.ID, Reason: "loop-back target " + rule.OnNegative.ResetTo + " not found"}
			}
			return Resolution{
				Kind:    KindLoopBack,
				Rule:    5,
				ResetTo: target.ID,
				Message: rule.OnNegative.Message,
			}, nil
		}
	}

	return Resolution{}, noMatch(node, text)
}

// noMatch leaves Choices empty; the engine fills them from the session.
func noMatch(node *domain.Node, text string) error {
	return &domain.NoMatchError{NodeID: node.ID, Input: text}
}

func selectItem(node *domain.Node, sc domain.Context, input string) (Resolution, bool, error) {
	raw, ok := sc[domain.KeyItems]
	if !ok {
		return Resolution{}, false, &domain.ContextMissingError{NodeID: node.ID, Key: domain.KeyItems}
	}
	items, err := domain.DecodeItems(raw)
	if err != nil {
		return Resolution{}, false, &domain.ContextMissingError{NodeID: node.ID, Key: domain.KeyItems, Err: err}
	}

	idx, err := strconv.Atoi(input)
	if err != nil || idx < 1 || idx > len(items) {
		return Resolution{}, false, nil
	}

	flow, ok := node.FirstOutgoing()
	if !ok {
		return Resolution{}, false, &domain.UnhandledFlowError{NodeID: node.ID, Reason: "catch event has no outgoing flow"}
	}
	selected := items[idx-1]
	return Resolution{Kind: KindFlow, Flow: flow, Rule: 4, Selected: &selected}, true, nil
}

func isAffirmative(s string) bool {
	return s == "si" || s == "sí"
}

func isDecision(node *domain.Node) bool {
	return node.Type == domain.NodeExclusiveGateway || node.Type == domain.NodeInclusiveGateway
}

// IsNegative reports whether "no" appears as a whole word in the normalized input.
func IsNegative(input string) bool {
	words := strings.FieldsFunc(input, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if w == "no" {
			return true
		}
	}
	return false
}

func containsAny(input string, subs []string) bool {
	for _, s := range subs {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" && strings.Contains(input, s) {
			return true
		}
	}
	return false
}
