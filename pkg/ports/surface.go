package ports

import (
	"context"

	"github.com/aretw0/bpmnchat/pkg/domain"
)

// Surface receives the turns of a dialogue, in order.
type Surface interface {
	Emit(ctx context.Context, turn domain.Turn) error
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(ctx context.Context, turn domain.Turn) error

func (f SurfaceFunc) Emit(ctx context.Context, turn domain.Turn) error { return f(ctx, turn) }

// Transcript is a Surface that records turns in memory.
// It is not safe for concurrent use; sessions emit sequentially.
type Transcript struct {
	Turns []domain.Turn
}

func (t *Transcript) Emit(_ context.Context, turn domain.Turn) error {
	t.Turns = append(t.Turns, turn)
	return nil
}

// Bot returns the text of the bot turns.
func (t *Transcript) Bot() []string {
	var out []string
	for _, turn := range t.Turns {
		if turn.Speaker == domain.SpeakerBot {
			out = append(out, turn.Text)
		}
	}
	return out
}

// Reset drops the recorded turns and returns them.
func (t *Transcript) Reset() []domain.Turn {
	turns := t.Turns
	t.Turns = nil
	return turns
}
