package notify

import (
	"fmt"
	"io"
	"sync"
	"unicode"
	"unicode/utf8"
)

// StageSeparatingWriter inserts a blank line before every step title after the first
// write, so pipeline steps render as separate blocks.
//
// A step title is a line that starts with a pictographic emoji such as "🔐" or "📦".
// Status symbols used by the message types are never treated as titles.
type StageSeparatingWriter struct {
	underlying io.Writer
	hasWritten bool
	mu         sync.Mutex
}

// NewStageSeparatingWriter wraps underlying.
func NewStageSeparatingWriter(underlying io.Writer) *StageSeparatingWriter {
	return &StageSeparatingWriter{underlying: underlying}
}

// Write implements io.Writer.
func (w *StageSeparatingWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(data) == 0 {
		return 0, nil
	}

	if w.hasWritten && isStepTitle(data) {
		_, err := w.underlying.Write([]byte{'\n'})
		if err != nil {
			return 0, fmt.Errorf("write step separator: %w", err)
		}
	}

	n, err := w.underlying.Write(data)
	if n > 0 {
		w.hasWritten = true
	}

	if err != nil {
		return n, fmt.Errorf("write output: %w", err)
	}

	return n, nil
}

// Reset makes the next title behave as the first output.
func (w *StageSeparatingWriter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.hasWritten = false
}

// HasWritten reports whether any bytes reached the underlying writer.
func (w *StageSeparatingWriter) HasWritten() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.hasWritten
}

func isStepTitle(data []byte) bool {
	first, _ := utf8.DecodeRune(data)
	if first == utf8.RuneError {
		return false
	}

	switch first {
	case '►', '✔', '✗', '⚠', 'ℹ', '↷', '⏲':
		return false
	}

	return unicode.Is(unicode.So, first)
}
