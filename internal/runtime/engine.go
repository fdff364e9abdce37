// Package runtime walks a process graph turn by turn: it emits bot turns,
// calls side-effect hooks and resolves replies through the matcher.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/bpmnchat/internal/logging"
	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/hooks"
	"github.com/aretw0/bpmnchat/pkg/matcher"
	"github.com/aretw0/bpmnchat/pkg/ports"
	"github.com/aretw0/bpmnchat/pkg/routing"
)

// maxAutoSteps bounds a run of auto-advancing nodes so a cycle without
// gateways cannot spin forever.
const maxAutoSteps = 512

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(h domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.lifecycle = e.lifecycle.Merge(h)
	}
}

// WithHooks sets the side-effect hook registry.
func WithHooks(r *hooks.Registry) EngineOption {
	return func(e *Engine) {
		e.hooks = r
	}
}

// WithRoutes sets the routing table consulted by the matcher.
func WithRoutes(t *routing.Table) EngineOption {
	return func(e *Engine) {
		e.routes = t
	}
}

// WithPacing inserts a delay between auto-advancing steps.
func WithPacing(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.pacing = d
	}
}

// Engine interprets one process graph for any number of sessions.
// It holds no per-session state and is safe for concurrent use.
type Engine struct {
	graph     *domain.Graph
	hooks     *hooks.Registry
	routes    *routing.Table
	matcher   *matcher.Matcher
	lifecycle domain.LifecycleHooks
	logger    *slog.Logger
	pacing    time.Duration
	now       func() time.Time
}

// NewEngine creates an engine for g.
func NewEngine(g *domain.Graph, opts ...EngineOption) *Engine {
	e := &Engine{
		graph:  g,
		hooks:  hooks.NewRegistry(),
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.matcher = matcher.New(e.routes)
	return e
}

// Graph returns the graph the engine interprets.
func (e *Engine) Graph() *domain.Graph {
	return e.graph
}

// NewSession creates an idle session. Nil ports are replaced by no-ops.
func (e *Engine) NewSession(id string, surface ports.Surface, renderer ports.Renderer) *Session {
	return e.Resume(domain.NewSession(id), surface, renderer)
}

// Resume wraps a stored session snapshot so it can continue.
func (e *Engine) Resume(state *domain.Session, surface ports.Surface, renderer ports.Renderer) *Session {
	if surface == nil {
		surface = ports.SurfaceFunc(func(context.Context, domain.Turn) error { return nil })
	}
	if renderer == nil {
		renderer = ports.NopRenderer{}
	}
	if state.Context == nil {
		state.Context = make(domain.Context)
	}
	return &Session{
		engine:   e,
		state:    state,
		surface:  surface,
		renderer: renderer,
		logger:   e.logger.With("session_id", state.ID),
	}
}

func (e *Engine) base(t domain.EventType, sessionID string) domain.EventBase {
	return domain.EventBase{Timestamp: e.now(), Type: t, SessionID: sessionID}
}
