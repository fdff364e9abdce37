package routing

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aretw0/bpmnchat/pkg/domain"
)

// Pattern routes replies containing any of Contains to Target.
// Target names a flow (id or name) or a target node (id or name).
type Pattern struct {
	Contains []string `mapstructure:"contains" json:"contains"`
	Target   string   `mapstructure:"target" json:"target"`
}

// Negative replaces flow traversal with a loop-back when the reply is a negative answer.
type Negative struct {
	// ResetTo is the node id (or name) the session returns to.
	ResetTo string `mapstructure:"reset_to" json:"reset_to"`
	// Message is emitted before the loop-back step. Optional.
	Message string `mapstructure:"message" json:"message,omitempty"`
}

// Capture makes a task wait for free text, store it and continue along its first flow.
type Capture struct {
	Key string `mapstructure:"key" json:"key"`
	// Ack overrides the acknowledgement. "%s" is replaced by the reply.
	Ack string `mapstructure:"ack" json:"ack,omitempty"`
}

// Rule is the override set for one node.
type Rule struct {
	// Node is the node id or name the rule applies to.
	Node       string    `mapstructure:"node" json:"node"`
	Patterns   []Pattern `mapstructure:"patterns" json:"patterns,omitempty"`
	OnNegative *Negative `mapstructure:"on_negative" json:"on_negative,omitempty"`
	Capture    *Capture  `mapstructure:"capture" json:"capture,omitempty"`
}

// Table is a concurrency-safe set of rules keyed by node id or name.
// The zero value is not usable; use NewTable.
type Table struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewTable creates a table holding rules. Later rules replace earlier ones for the same node.
func NewTable(rules ...Rule) *Table {
	t := &Table{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		t.Add(r)
	}
	return t
}

// Add registers a rule, replacing any rule for the same node key.
func (t *Table) Add(rule Rule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rules[strings.TrimSpace(rule.Node)] = rule
}

// Lookup returns the rule for node, matching its id first and its name second.
// A nil table has no rules.
func (t *Table) Lookup(node *domain.Node) (Rule, bool) {
	if t == nil || node == nil {
		return Rule{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	if r, ok := t.rules[node.ID]; ok {
		return r, true
	}
	if node.Name != "" {
		if r, ok := t.rules[node.Name]; ok {
			return r, true
		}
	}
	return Rule{}, false
}

// Len returns the number of rules.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rules)
}

// Rules returns a copy of all rules.
func (t *Table) Rules() []Rule {
	if t == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Rule, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, r)
	}
	return out
}

// Validate checks that every rule refers to a node of g and that
// loop-back targets and pattern targets resolve.
func (t *Table) Validate(g *domain.Graph) error {
	var problems []string
	for _, rule := range t.Rules() {
		node := ResolveNode(g, rule.Node)
		if node == nil {
			problems = append(problems, fmt.Sprintf("rule for %q: node not found", rule.Node))
			continue
		}
		if rule.OnNegative != nil && ResolveNode(g, rule.OnNegative.ResetTo) == nil {
			problems = append(problems, fmt.Sprintf("rule for %q: reset_to %q not found", rule.Node, rule.OnNegative.ResetTo))
		}
		for _, p := range rule.Patterns {
			if _, ok := ResolveTarget(g, node, p.Target); !ok {
				problems = append(problems, fmt.Sprintf("rule for %q: target %q is not an outgoing flow", rule.Node, p.Target))
			}
		}
		if rule.Capture != nil && !node.Type.IsActivity() {
			problems = append(problems, fmt.Sprintf("rule for %q: capture only applies to tasks", rule.Node))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid routing table: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ResolveNode finds a node by id, then by case-insensitive name.
func ResolveNode(g *domain.Graph, key string) *domain.Node {
	if g == nil || key == "" {
		return nil
	}
	if n, ok := g.Node(key); ok {
		return n
	}
	for _, n := range g.Nodes() {
		if n.Name != "" && strings.EqualFold(n.Name, key) {
			return n
		}
	}
	return nil
}

// ResolveTarget finds the outgoing flow of node designated by target.
// Flow id and flow name are tried before the target node's id and name.
func ResolveTarget(g *domain.Graph, node *domain.Node, target string) (domain.Flow, bool) {
	target = strings.TrimSpace(target)
	if target == "" {
		return domain.Flow{}, false
	}
	for _, f := range node.Outgoing {
		if f.ID == target || (f.Name != "" && strings.EqualFold(f.Name, target)) {
			return f, true
		}
	}
	for _, f := range node.Outgoing {
		if f.Target == target || strings.EqualFold(g.TargetName(f), target) {
			return f, true
		}
	}
	return domain.Flow{}, false
}
