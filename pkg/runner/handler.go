package runner

import (
	"context"

	"github.com/aretw0/bpmnchat/pkg/ports"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (terminal) and JSON (structured) modes.
type IOHandler interface {
	// Emit presents one dialogue turn.
	ports.Surface

	// Input reads a reply. It returns io.EOF when the source is exhausted.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message that is not part of the dialogue.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms bot text before it is printed (e.g. markdown to ANSI).
type ContentRenderer func(string) (string, error)
