// Package transcript accumulates incremental text fragments from a live
// translation session into discrete conversational turns.
//
// The remote side streams source-language and target-language text in
// arbitrarily small fragments and signals when the current turn is done.
// The aggregator keeps one accumulator per track and emits an immutable
// Turn on completion.
package transcript

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Track identifies which language a fragment belongs to.
type Track int

const (
	// TrackSource is the speaker's language.
	TrackSource Track = iota
	// TrackTarget is the translated language.
	TrackTarget
)

// Turn is one complete exchange: the accumulated source text and its
// translated counterpart, finalized when the remote side signals it has
// finished speaking. Turns are immutable once created.
type Turn struct {
	ID     string
	Source string
	Target string
}

// Aggregator accumulates fragments for the current turn. Safe for
// concurrent use: fragments arrive from the session event goroutine while
// the presentation layer reads partials.
type Aggregator struct {
	mu     sync.Mutex
	source strings.Builder
	target strings.Builder
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Append concatenates text onto the named track's accumulator. Fragment
// count within a turn is unbounded; the remote side chunks text however it
// likes.
func (a *Aggregator) Append(track Track, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch track {
	case TrackSource:
		a.source.WriteString(text)
	case TrackTarget:
		a.target.WriteString(text)
	}
}

// Partial returns the in-progress text for a track.
func (a *Aggregator) Partial(track Track) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if track == TrackSource {
		return a.source.String()
	}
	return a.target.String()
}

// CompleteTurn finalizes the current turn. It returns false when both
// accumulators trim to empty; otherwise it returns a Turn with a fresh
// unique identifier and clears both accumulators. A turn with text on only
// one track is still emitted.
func (a *Aggregator) CompleteTurn() (Turn, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	src := a.source.String()
	tgt := a.target.String()
	if strings.TrimSpace(src) == "" && strings.TrimSpace(tgt) == "" {
		return Turn{}, false
	}

	a.source.Reset()
	a.target.Reset()

	return Turn{
		ID:     newTurnID(),
		Source: src,
		Target: tgt,
	}, true
}

// Reset clears both accumulators without emitting a turn. Used when a new
// session starts.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.source.Reset()
	a.target.Reset()
}

// newTurnID generates a unique turn identifier.
func newTurnID() string {
	return "turn_" + uuid.New().String()[:12]
}
