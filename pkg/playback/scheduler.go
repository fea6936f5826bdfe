// Package playback schedules decoded audio buffers onto an output device
// with no gaps and no overlap.
//
// Each buffer's start time is anchored to the computed end of the previous
// buffer, not to its arrival time, so jitter in inbound chunk delivery
// never produces audible silence between chunks. Flush stops everything at
// once when the remote side is interrupted (barge-in) or the session tears
// down.
package playback

import (
	"sync"

	"github.com/lingopipe/lingopipe/pkg/audio/frame"
)

// OutputContext is the output device surface the scheduler drives.
//
// Now is a monotonic clock in seconds. Play schedules buf to begin at the
// absolute time startAt and must invoke done (from a goroutine, never
// synchronously) when playback ends naturally; the returned Stopper cancels
// the buffer early. Release stops and invalidates everything.
type OutputContext interface {
	Now() float64
	Play(buf *frame.Buffer, startAt float64, done func()) (Stopper, error)
	Release() error
}

// Stopper cancels one scheduled buffer. Stop is idempotent.
type Stopper interface {
	Stop()
}

// Handle represents one buffer scheduled on the output device. A handle is
// in the scheduler's active set iff it has been started and has neither
// ended nor been stopped.
type Handle struct {
	StartAt  float64
	Duration float64

	stopper Stopper
}

// Scheduler serializes buffer scheduling for one session.
type Scheduler struct {
	out OutputContext

	mu     sync.Mutex
	next   float64
	active map[*Handle]struct{}
}

// NewScheduler creates a scheduler over the given output context.
func NewScheduler(out OutputContext) *Scheduler {
	return &Scheduler{
		out:    out,
		active: make(map[*Handle]struct{}),
	}
}

// Schedule queues buf to play immediately after the last scheduled buffer,
// or right now if the timeline has drained. Start times are non-decreasing
// and buffers from the same session never overlap.
func (s *Scheduler) Schedule(buf *frame.Buffer) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	startAt := s.next
	if now := s.out.Now(); now > startAt {
		startAt = now
	}

	h := &Handle{
		StartAt:  startAt,
		Duration: buf.Duration().Seconds(),
	}

	stopper, err := s.out.Play(buf, startAt, func() { s.finished(h) })
	if err != nil {
		return nil, err
	}
	h.stopper = stopper

	s.next = startAt + h.Duration
	s.active[h] = struct{}{}
	return h, nil
}

// finished removes a handle whose playback ended naturally.
func (s *Scheduler) finished(h *Handle) {
	s.mu.Lock()
	delete(s.active, h)
	s.mu.Unlock()
}

// Flush stops every active handle, clears the set, and resets the timeline
// so the next Schedule starts at device-current-time.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.active))
	for h := range s.active {
		handles = append(handles, h)
	}
	s.active = make(map[*Handle]struct{})
	s.next = 0
	s.mu.Unlock()

	for _, h := range handles {
		h.stopper.Stop()
	}
}

// Active returns the number of handles currently scheduled or playing.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// NextStart returns the anchor time for the next scheduled buffer.
func (s *Scheduler) NextStart() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
