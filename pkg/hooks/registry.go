// Package hooks binds task and sub-process nodes to side-effect handlers.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/bpmnchat/pkg/domain"
)

// Call carries what a handler may read about the node being visited.
type Call struct {
	SessionID string
	NodeID    string
	NodeName  string
	// IdempotencyKey is stable for one visit of one node in one session.
	// Handlers performing non-idempotent mutations should pass it on or guard on it.
	IdempotencyKey string
	// Context is a copy of the session context. Mutating it has no effect unless returned.
	Context domain.Context
}

// Result is what a handler hands back to the engine.
type Result struct {
	// Context replaces the session context when non-nil.
	Context domain.Context
	// Messages are emitted as bot turns after the node name.
	Messages []string
}

// Handler performs the side effect bound to a node.
// Handlers never decide branching; they may only change the context.
type Handler func(ctx context.Context, call Call) (Result, error)

// Registry manages the available handlers and which nodes they are bound to.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	bindings map[string]string
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		bindings: make(map[string]string),
	}
}

// Register adds a handler under name.
// A node whose id or name equals name is bound to it without an explicit Bind.
// If a handler with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Bind routes the node with the given id or name to the handler registered as hook.
func (r *Registry) Bind(nodeKey, hook string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[nodeKey] = hook
}

// BindAll applies every binding of m.
func (r *Registry) BindAll(m map[string]string) {
	for node, hook := range m {
		r.Bind(node, hook)
	}
}

// Resolve returns the handler bound to node.
// Explicit bindings win over name matches; ids win over names.
func (r *Registry) Resolve(node *domain.Node) (string, Handler, bool) {
	if r == nil || node == nil {
		return "", nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := []string{node.ID}
	if node.Name != "" {
		keys = append(keys, node.Name)
	}
	for _, k := range keys {
		if hook, ok := r.bindings[k]; ok {
			if fn, ok := r.handlers[hook]; ok {
				return hook, fn, true
			}
		}
	}
	for _, k := range keys {
		if fn, ok := r.handlers[k]; ok {
			return k, fn, true
		}
	}
	return "", nil, false
}

// Names returns the registered handler names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check reports bindings that point at unregistered handlers.
func (r *Registry) Check() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	for node, hook := range r.bindings {
		if _, ok := r.handlers[hook]; !ok {
			missing = append(missing, fmt.Sprintf("%s -> %s", node, hook))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("unregistered hooks: %v", missing)
	}
	return nil
}
