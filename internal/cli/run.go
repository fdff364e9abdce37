package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/bpmnchat/internal/presentation/graph"
	"github.com/aretw0/bpmnchat/internal/presentation/tui"
	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/runner"
	"github.com/google/uuid"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	SessionID string
	JSON      bool
	Fresh     bool
	NoBanner  bool
	// Trace, when set, receives the Mermaid diagram of the visited path after the run.
	Trace string

	In  io.Reader
	Out io.Writer
}

// RunChat holds a terminal conversation on st until the session ends or the
// input is exhausted.
func RunChat(ctx context.Context, st *Stack, opts RunOptions) error {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}

	if opts.Fresh {
		if err := st.Manager.Delete(ctx, opts.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to reset session: %w", err)
		}
	}

	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(opts.In, opts.Out)
	} else {
		var handlerOpts []runner.TextHandlerOption
		if render, err := tui.NewRenderer(0); err != nil {
			st.Logger.Warn("markdown rendering disabled", "err", err)
		} else {
			handlerOpts = append(handlerOpts, runner.WithTextHandlerRenderer(render))
		}
		handler = runner.NewTextHandler(opts.In, opts.Out, handlerOpts...)
		if !opts.NoBanner {
			tui.PrintBanner(opts.Out, st.Engine.Name)
		}
	}

	trail := graph.NewRenderer()
	r := runner.NewRunner(
		runner.WithInputHandler(handler),
		runner.WithRenderer(trail),
		runner.WithLogger(st.Logger),
	)

	st.Logger.Info("session started", "session_id", opts.SessionID)
	runErr := r.Run(ctx, st.Manager, opts.SessionID)

	if opts.Trace != "" {
		if err := os.WriteFile(opts.Trace, []byte(trail.Mermaid(st.Engine.Graph())), 0o644); err != nil {
			return errors.Join(runErr, fmt.Errorf("failed to write trace: %w", err))
		}
	}
	return runErr
}
