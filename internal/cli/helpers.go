package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/bpmnchat/internal/logging"
)

// SignalContext is cancelled by SIGINT or SIGTERM and remembers which
// signal arrived, so commands can report it on the way out.
type SignalContext struct {
	context.Context
	Cancel func()
}

// interruption is the cancellation cause recorded for a signal.
// It matches context.Canceled so callers treat it as a plain cancellation.
type interruption struct {
	sig os.Signal
}

func (i interruption) Error() string {
	return "interrupted by " + i.sig.String()
}

func (i interruption) Is(target error) bool {
	return target == context.Canceled
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancelCause(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			cancel(interruption{sig: sig})
		case <-ctx.Done():
		}
	}()

	return &SignalContext{Context: ctx, Cancel: func() { cancel(nil) }}
}

// Signal returns the signal that cancelled the context, or nil.
func (sc *SignalContext) Signal() os.Signal {
	var in interruption
	if errors.As(context.Cause(sc.Context), &in) {
		return in.sig
	}
	return nil
}

// NewLogger builds the command logger. Quiet commands log only warnings and
// errors so stdout stays clean for dialogue or protocol output.
func NewLogger(level string, quiet bool) *slog.Logger {
	lvl := logging.ParseLevel(level)
	if quiet && lvl < slog.LevelWarn {
		lvl = slog.LevelWarn
	}
	return logging.New(lvl)
}

// isInterrupted reports whether err only means the user stopped the program.
func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)
}

// HandleExecutionError maps interruptions to a clean exit.
func HandleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil
	}
	return err
}
