package runner

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxInputSize bounds a reply when nothing else is configured.
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize overrides DefaultMaxInputSize for SanitizeInput.
	EnvMaxInputSize = "BPMNCHAT_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// escapeSequence matches ANSI CSI and OSC sequences pasted into a terminal.
var escapeSequence = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(\x07|\x1b\\)`)

// SanitizeInput is Sanitize with the limit from EnvMaxInputSize.
func SanitizeInput(input string) (string, error) {
	return Sanitize(input, MaxInputSize())
}

// Sanitize turns raw user text into a single-line reply the matcher and the
// capture rules can store as is. Oversized or invalid UTF-8 input is rejected
// rather than repaired. Escape sequences and control characters are dropped,
// line breaks and tabs become spaces and runs of whitespace collapse.
// A limit <= 0 means DefaultMaxInputSize.
func Sanitize(input string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxInputSize
	}
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	input = escapeSequence.ReplaceAllString(input, "")
	input = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, input)
	return strings.Join(strings.Fields(input), " "), nil
}

// MaxInputSize returns the limit configured through EnvMaxInputSize.
func MaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
