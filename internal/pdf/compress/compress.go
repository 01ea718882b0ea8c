// Package compress shortens text with a language model when rule-based
// fitting cannot produce an acceptable result.
package compress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnavailable is returned when no model backend is configured
var ErrUnavailable = errors.New("compressor unavailable")

// Hint describes the field the text is being compressed for
type Hint struct {
	Label     string
	FieldType string
}

// Compressor shortens text to at most maxChars characters
type Compressor interface {
	Compress(ctx context.Context, text string, maxChars int, hint Hint) (string, error)
}

// Func adapts a plain function to the Compressor interface
type Func func(ctx context.Context, text string, maxChars int, hint Hint) (string, error)

// Compress calls f
func (f Func) Compress(ctx context.Context, text string, maxChars int, hint Hint) (string, error) {
	return f(ctx, text, maxChars, hint)
}

// Noop never compresses
type Noop struct{}

// Compress always reports ErrUnavailable
func (Noop) Compress(context.Context, string, int, Hint) (string, error) {
	return "", ErrUnavailable
}

// Lazy builds its backend on first use. Construction happens at most once,
// even under concurrent first calls; a failed construction is remembered.
type Lazy struct {
	factory func() (Compressor, error)

	once    sync.Once
	backend Compressor
	err     error
}

// NewLazy wraps factory so it is only invoked when compression is first needed
func NewLazy(factory func() (Compressor, error)) *Lazy {
	return &Lazy{factory: factory}
}

// Compress builds the backend if needed and delegates to it
func (l *Lazy) Compress(ctx context.Context, text string, maxChars int, hint Hint) (string, error) {
	l.once.Do(func() {
		if l.factory == nil {
			l.err = ErrUnavailable
			return
		}
		l.backend, l.err = l.factory()
		if l.err == nil && l.backend == nil {
			l.err = ErrUnavailable
		}
	})
	if l.err != nil {
		return "", l.err
	}
	return l.backend.Compress(ctx, text, maxChars, hint)
}

// Prompt builds the instruction sent to a model
func Prompt(text string, maxChars int, hint Hint) string {
	label := hint.Label
	if label == "" {
		label = "field"
	}
	fieldType := hint.FieldType
	if fieldType == "" {
		fieldType = "text"
	}
	return fmt.Sprintf(
		"Compress this text to under %d characters for a %s field named %q.\n"+
			"Keep all key info. Use standard abbreviations. Reply with the compressed text only.\n"+
			"Original: %q\nCompressed:",
		maxChars, fieldType, label, text)
}

// cleanReply strips quoting and keeps the first non-empty line of a model reply
func cleanReply(reply string) string {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "Compressed:")
		line = strings.Trim(strings.TrimSpace(line), "\"'`")
		if line != "" {
			return line
		}
	}
	return ""
}
