package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/muesli/termenv"
)

// Default speaker labels of the terminal dialogue.
const (
	DefaultBotLabel   = "bot ›"
	DefaultUserPrompt = "tú ›"
)

// TextHandler prints the dialogue on a terminal with colored speaker labels.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	BotLabel   string
	UserPrompt string

	out       *termenv.Output
	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithTextHandlerLabels replaces the bot label and the input prompt.
func WithTextHandlerLabels(bot, user string) TextHandlerOption {
	return func(h *TextHandler) {
		h.BotLabel = bot
		h.UserPrompt = user
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader:     bufio.NewReader(r),
		Writer:     w,
		BotLabel:   DefaultBotLabel,
		UserPrompt: DefaultUserPrompt,
		out:        termenv.NewOutput(w),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Emit prints a bot turn after its label. Bot text goes through the Renderer
// when one is set; continuation lines are indented under the first one.
func (h *TextHandler) Emit(ctx context.Context, turn domain.Turn) error {
	if turn.Speaker == domain.SpeakerUser {
		// The user already sees what they typed.
		return nil
	}
	text := turn.Text
	if h.Renderer != nil {
		if rendered, err := h.Renderer(text); err == nil {
			text = rendered
		}
	}
	label := h.out.String(h.BotLabel).Foreground(h.out.Color("#a78bfa")).Bold()
	indent := "\n" + strings.Repeat(" ", utf8.RuneCountInString(h.BotLabel)+1)
	body := strings.ReplaceAll(strings.TrimSpace(text), "\n", indent)
	_, err := fmt.Fprintf(h.Writer, "%s %s\n", label, body)
	return err
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honour ctx cancellation.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			close(h.inputChan)
			return
		}
	}
}

// Input prompts and reads one sanitized line.
// Rejected lines are reported and the prompt is repeated.
func (h *TextHandler) Input(ctx context.Context) (string, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			fmt.Fprint(h.Writer, h.out.String(h.UserPrompt).Foreground(h.out.Color("#34d399")).String()+" ")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			clean, err := SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Por favor, intente de nuevo.\n", err)
				continue
			}
			return clean, nil
		}
	}
}

// SystemOutput prints msg with a "[Sistema]" prefix.
func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "\n[Sistema] %s\n", msg)
	return err
}
