package cli

import (
	"strings"
	"sync"
)

// LineRing is a thread-safe bounded buffer of the most recent lines.
type LineRing struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewLineRing creates a ring keeping at most max lines.
func NewLineRing(max int) *LineRing {
	return &LineRing{max: max}
}

// Add appends a line, evicting the oldest when full.
func (r *LineRing) Add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	if len(r.lines) > r.max {
		r.lines = r.lines[len(r.lines)-r.max:]
	}
}

// Lines returns a copy of the buffered lines, oldest first.
func (r *LineRing) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Len returns the number of buffered lines.
func (r *LineRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

// LogWriter implements io.Writer and captures log output for TUI display.
// It stores lines in a ring and notifies via a channel.
type LogWriter struct {
	ring *LineRing
	ch   chan string
}

// NewLogWriter creates a new log writer keeping the given max lines.
func NewLogWriter(maxLines int) *LogWriter {
	return &LogWriter{
		ring: NewLineRing(maxLines),
		ch:   make(chan string, 100),
	}
}

// Write implements io.Writer.
// Handles multi-line input by splitting on newlines.
func (w *LogWriter) Write(p []byte) (n int, err error) {
	text := strings.TrimRight(string(p), "\n")
	for _, line := range strings.Split(text, "\n") {
		w.ring.Add(line)

		// Non-blocking send to channel
		select {
		case w.ch <- line:
		default:
		}
	}
	return len(p), nil
}

// Lines returns all buffered lines.
func (w *LogWriter) Lines() []string {
	return w.ring.Lines()
}

// Channel returns the notification channel for new lines.
func (w *LogWriter) Channel() <-chan string {
	return w.ch
}
