package bpmnchat

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/bpmnchat/internal/logging"
	"github.com/aretw0/bpmnchat/internal/runtime"
	"github.com/aretw0/bpmnchat/pkg/bpmn"
	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/hooks"
	"github.com/aretw0/bpmnchat/pkg/ports"
	"github.com/aretw0/bpmnchat/pkg/reservation"
	"github.com/aretw0/bpmnchat/pkg/routing"
)

// Session is a single conversation driven by an Engine.
type Session = runtime.Session

// Engine is the high-level entry point for the library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime  *runtime.Engine
	registry *hooks.Registry
	logger   *slog.Logger
	Name     string
}

type settings struct {
	logger      *slog.Logger
	lifecycle   domain.LifecycleHooks
	pacing      time.Duration
	strictFlows bool
	routes      *routing.Table
	dialogue    *routing.Dialogue
	inventory   ports.Inventory
	handlers    map[string]hooks.Handler
	bindings    map[string]string
}

// Option defines a functional option for configuring the Engine.
type Option func(*settings)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Repeated use merges them.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(s *settings) {
		s.lifecycle = s.lifecycle.Merge(h)
	}
}

// WithPacing delays each automatic step so a reader can follow the dialogue.
func WithPacing(d time.Duration) Option {
	return func(s *settings) {
		s.pacing = d
	}
}

// WithStrictFlows rejects diagrams with dangling sequence flows. Only used by Load and Parse.
func WithStrictFlows() Option {
	return func(s *settings) {
		s.strictFlows = true
	}
}

// WithRoutes replaces the routing table. Defaults to routing.Default().
func WithRoutes(t *routing.Table) Option {
	return func(s *settings) {
		s.routes = t
	}
}

// WithDialogue applies a dialogue file: its routes replace the routing table
// and its hook bindings override the built-in ones.
func WithDialogue(d *routing.Dialogue) Option {
	return func(s *settings) {
		s.dialogue = d
	}
}

// WithInventory registers the booking hooks backed by inv.
func WithInventory(inv ports.Inventory) Option {
	return func(s *settings) {
		s.inventory = inv
	}
}

// WithHook registers a side-effect handler under name.
func WithHook(name string, fn hooks.Handler) Option {
	return func(s *settings) {
		if s.handlers == nil {
			s.handlers = make(map[string]hooks.Handler)
		}
		s.handlers[name] = fn
	}
}

// WithBinding attaches the hook named hook to the node with the given id or name.
func WithBinding(nodeKey, hook string) Option {
	return func(s *settings) {
		if s.bindings == nil {
			s.bindings = make(map[string]string)
		}
		s.bindings[nodeKey] = hook
	}
}

// Load parses the BPMN diagram at path and creates an engine for it.
func Load(path string, opts ...Option) (*Engine, error) {
	s := apply(opts)
	g, err := bpmn.ParseFile(path, parseOptions(s)...)
	if err != nil {
		return nil, err
	}
	eng, err := build(g, s)
	if err != nil {
		return nil, err
	}
	if eng.Name == "" {
		eng.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return eng, nil
}

// Parse reads a BPMN diagram from r and creates an engine for it.
func Parse(r io.Reader, opts ...Option) (*Engine, error) {
	s := apply(opts)
	g, err := bpmn.Parse(r, parseOptions(s)...)
	if err != nil {
		return nil, err
	}
	return build(g, s)
}

// New creates an engine for an already loaded graph.
func New(g *domain.Graph, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("graph is required")
	}
	return build(g, apply(opts))
}

func apply(opts []Option) *settings {
	s := &settings{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func parseOptions(s *settings) []bpmn.Option {
	opts := []bpmn.Option{bpmn.WithLogger(s.logger)}
	if s.strictFlows {
		opts = append(opts, bpmn.WithStrictFlows())
	}
	return opts
}

func build(g *domain.Graph, s *settings) (*Engine, error) {
	registry := hooks.NewRegistry()
	if s.inventory != nil {
		reservation.New(s.inventory).Register(registry)
	}
	for name, fn := range s.handlers {
		registry.Register(name, fn)
	}

	routes := s.routes
	if s.dialogue != nil {
		registry.BindAll(s.dialogue.Hooks)
		if len(s.dialogue.Routes) > 0 {
			routes = s.dialogue.Table()
			if err := routes.Validate(g); err != nil {
				return nil, err
			}
		}
	}
	if routes == nil {
		routes = routing.Default()
	}
	registry.BindAll(s.bindings)

	if err := registry.Check(); err != nil {
		return nil, fmt.Errorf("invalid hook bindings: %w", err)
	}

	logger := s.logger
	if g.ProcessName != "" {
		logger = logger.With("process", g.ProcessName)
	}

	eng := &Engine{
		registry: registry,
		logger:   logger,
		Name:     g.ProcessName,
		runtime: runtime.NewEngine(g,
			runtime.WithLogger(logger),
			runtime.WithLifecycleHooks(s.lifecycle),
			runtime.WithHooks(registry),
			runtime.WithRoutes(routes),
			runtime.WithPacing(s.pacing),
		),
	}
	return eng, nil
}

// Graph returns the loaded process graph.
func (e *Engine) Graph() *domain.Graph {
	return e.runtime.Graph()
}

// Runtime exposes the underlying runtime engine, e.g. for session.NewManager.
func (e *Engine) Runtime() *runtime.Engine {
	return e.runtime
}

// Hooks returns the names of the registered side-effect handlers.
func (e *Engine) Hooks() []string {
	return e.registry.Names()
}

// NewSession creates an idle session. Call Start to greet the user.
// Nil ports are replaced by no-ops.
func (e *Engine) NewSession(id string, surface ports.Surface, renderer ports.Renderer) *Session {
	return e.runtime.NewSession(id, surface, renderer)
}

// Resume continues a stored session snapshot.
func (e *Engine) Resume(state *domain.Session, surface ports.Surface, renderer ports.Renderer) *Session {
	return e.runtime.Resume(state, surface, renderer)
}
