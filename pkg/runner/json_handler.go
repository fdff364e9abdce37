package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/aretw0/bpmnchat/pkg/domain"
)

// JSONHandler speaks NDJSON: every emitted turn is one object per line and
// every input line is a reply. A reply may be a JSON string, an object with a
// "text" field, or bare text.
type JSONHandler struct {
	Reader  *bufio.Reader
	Encoder *json.Encoder
}

// reply is the object form of an input line.
type reply struct {
	Text *string `json:"text"`
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Encoder: enc,
	}
}

// Emit writes the turn as a JSON object.
func (h *JSONHandler) Emit(ctx context.Context, turn domain.Turn) error {
	return h.Encoder.Encode(turn)
}

// Input reads and decodes one line. Blank lines are skipped.
func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		line, err := h.Reader.ReadBytes('\n')
		if err != nil && (err != io.EOF || len(line) == 0) {
			return "", err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err == io.EOF {
				return "", io.EOF
			}
			continue
		}
		return SanitizeInput(decodeReply(line))
	}
}

func decodeReply(line []byte) string {
	switch line[0] {
	case '"':
		var s string
		if json.Unmarshal(line, &s) == nil {
			return s
		}
	case '{':
		var r reply
		if json.Unmarshal(line, &r) == nil && r.Text != nil {
			return *r.Text
		}
	}
	return string(line)
}

// SystemOutput writes {"system": msg}.
func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(map[string]string{"system": msg})
}
