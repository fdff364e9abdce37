package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/bpmnchat/internal/logging"
	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/ports"
	"github.com/aretw0/bpmnchat/pkg/session"
)

// EndCommands are replies that end the session instead of being matched.
var EndCommands = []string{"/salir", "/fin", "/exit"}

// Runner handles the dialogue loop of one session using the provided IO.
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on Stdin/Stdout.
	Handler IOHandler

	// Renderer receives highlight updates. Defaults to a no-op.
	Renderer ports.Renderer

	// Logger is used for internal debug logging.
	Logger *slog.Logger
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithRenderer configures the diagram renderer.
func WithRenderer(renderer ports.Renderer) Option {
	return func(r *Runner) {
		r.Renderer = renderer
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{Logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r
}

// Run starts session id, or resumes it when it is already stored, and
// exchanges turns until it ends. Exhausted input or a cancelled ctx ends the
// session explicitly. Unmatched replies are re-prompted by the engine and the
// loop continues; fatal runtime errors are returned after the session ended.
func (r *Runner) Run(ctx context.Context, mgr *session.Manager, id string) error {
	state, err := mgr.Start(ctx, id, r.Handler, r.Renderer)
	if errors.Is(err, domain.ErrAlreadyStarted) {
		state, err = r.resume(ctx, mgr, id)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return r.stop(ctx, mgr, id, err)
		}
		return err
	}

	for state.Phase != domain.PhaseEnded {
		if state.Phase == domain.PhaseActive {
			if state, err = mgr.Step(ctx, id, r.Handler, r.Renderer); err != nil {
				if errors.Is(err, context.Canceled) {
					return r.stop(ctx, mgr, id, err)
				}
				return err
			}
			continue
		}

		text, err := r.Handler.Input(ctx)
		if err != nil {
			return r.stop(ctx, mgr, id, err)
		}
		if isEndCommand(text) {
			_, err := mgr.End(ctx, id, r.Handler, r.Renderer)
			return err
		}

		state, err = mgr.Submit(ctx, id, text, r.Handler, r.Renderer)
		if err != nil {
			var noMatch *domain.NoMatchError
			if errors.As(err, &noMatch) {
				r.Logger.Debug("reply did not match", "session_id", id, "choices", noMatch.Choices)
				continue
			}
			return err
		}
		r.Logger.Debug("turn applied", "session_id", id, "node_id", state.CurrentNodeID, "phase", state.Phase)
	}
	return nil
}

func (r *Runner) resume(ctx context.Context, mgr *session.Manager, id string) (*domain.Session, error) {
	state, err := mgr.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch state.Phase {
	case domain.PhaseEnded:
		_ = r.Handler.SystemOutput(ctx, fmt.Sprintf("La sesión %s ya finalizó.", id))
	case domain.PhaseAwaitingInput:
		msg := fmt.Sprintf("Retomando la sesión %s.", id)
		if len(state.ExpectedChoices) > 0 {
			msg += " Opciones: " + strings.Join(state.ExpectedChoices, ", ") + "."
		}
		_ = r.Handler.SystemOutput(ctx, msg)
	}
	return state, nil
}

// stop ends the session when input is exhausted or interrupted.
// The end runs on a context detached from ctx so a cancelled run still records it.
func (r *Runner) stop(ctx context.Context, mgr *session.Manager, id string, cause error) error {
	if !errors.Is(cause, io.EOF) && !errors.Is(cause, context.Canceled) {
		return fmt.Errorf("input error: %w", cause)
	}
	r.Logger.Debug("input closed, ending session", "session_id", id, "cause", cause)
	if _, err := mgr.End(context.WithoutCancel(ctx), id, r.Handler, r.Renderer); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

func isEndCommand(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	for _, cmd := range EndCommands {
		if text == cmd {
			return true
		}
	}
	return false
}
