// Package session owns the lifecycle of one duplex interpreter session:
// microphone capture pumped out to a remote streaming translation endpoint,
// inbound synthesized audio scheduled for gapless playback, and incremental
// transcripts aggregated into turns.
//
// The remote endpoint, the capture device, and the output device are opaque
// collaborators behind small interfaces; the controller only sees their
// capability surface.
package session

import (
	"context"
	"errors"
	"iter"
)

// Status is the caller-visible session state.
type Status int

const (
	// StatusIdle means no session is active.
	StatusIdle Status = iota
	// StatusConnecting means the remote session is being opened.
	StatusConnecting
	// StatusListening means the session is open and frames are flowing.
	StatusListening
	// StatusError means the last session ended with a fatal error; a
	// manual Start clears it.
	StatusError
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusListening:
		return "listening"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// EventType identifies an inbound session event.
type EventType int

const (
	// EventSourceText carries an incremental source-language fragment.
	EventSourceText EventType = iota + 1
	// EventTargetText carries an incremental translated fragment.
	EventTargetText
	// EventAudio carries a synthesized audio payload.
	EventAudio
	// EventInterrupted signals the remote model stopped speaking early;
	// queued and playing audio must be discarded.
	EventInterrupted
	// EventTurnComplete signals the current turn is finished.
	EventTurnComplete
	// EventClosed signals the remote side closed the session.
	EventClosed
)

// Event is one inbound message from the remote session, delivered in
// arrival order.
type Event struct {
	Type EventType

	// Text is set for EventSourceText and EventTargetText.
	Text string

	// AudioBase64 is set for EventAudio delivered inside a JSON message.
	AudioBase64 string

	// Audio is set for EventAudio delivered as a raw binary frame.
	Audio []byte
}

// RemoteSession is the opaque bidirectional session surface, independent of
// the vendor wire format.
type RemoteSession interface {
	// SendFrame sends one encoded outbound audio frame. Fire-and-forget;
	// ordering is preserved per session.
	SendFrame(ctx context.Context, frame []byte) error

	// Events yields inbound events in arrival order. A yielded error is a
	// transport error and terminates the stream.
	Events() iter.Seq2[*Event, error]

	// Close asks the session to close. Idempotent, and safe to call
	// before the open has fully completed.
	Close() error
}

// OpenFunc opens a remote session. It returns once the session is
// acknowledged open or fails.
type OpenFunc func(ctx context.Context) (RemoteSession, error)

// CaptureDevice is a live audio input stream at a fixed sample rate. Start
// begins invoking onFrame with each fixed-size window of normalized
// samples; Release stops the stream and invalidates the callback.
type CaptureDevice interface {
	Start(onFrame func(samples []float32)) error
	Release() error
}

// Error kinds, matched with errors.Is.
var (
	// ErrAlreadyRunning is returned by Start while a session is
	// connecting or listening.
	ErrAlreadyRunning = errors.New("session: already running")

	// ErrAcquisition wraps capture/output device acquisition failures.
	ErrAcquisition = errors.New("session: audio device unavailable")

	// ErrSessionOpen wraps remote session open failures.
	ErrSessionOpen = errors.New("session: remote open failed")
)
