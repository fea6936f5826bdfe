package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/lingopipe/lingopipe/pkg/audio/frame"
	"github.com/lingopipe/lingopipe/pkg/metrics"
	"github.com/lingopipe/lingopipe/pkg/playback"
	"github.com/lingopipe/lingopipe/pkg/transcript"
)

// Config wires a Controller to its collaborators.
type Config struct {
	// Open opens the remote session. Required.
	Open OpenFunc

	// AcquireCapture binds the capture device. Required.
	AcquireCapture func() (CaptureDevice, error)

	// AcquireOutput binds the output device context. Required.
	AcquireOutput func() (playback.OutputContext, error)

	// PlaybackRate is the sample rate of inbound synthesized audio.
	// Defaults to 24000.
	PlaybackRate int

	// PlaybackChannels is the channel count of inbound audio. Defaults
	// to 1.
	PlaybackChannels int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics is optional instrumentation.
	Metrics *metrics.Metrics
}

// Controller owns exactly one session at a time: one capture binding, one
// output context, one remote session. Start while connecting or listening
// is rejected, not additive.
//
// Three event sources run concurrently with the caller's Start/Stop: the
// capture pump, the remote event loop, and playback completion callbacks.
// All shared state is guarded by one mutex.
type Controller struct {
	cfg Config
	log *slog.Logger
	agg *transcript.Aggregator

	dropped atomic.Uint64

	mu            sync.Mutex
	status        Status
	starting      bool
	stopRequested bool
	lastErr       error
	capture       CaptureDevice
	output        playback.OutputContext
	sched         *playback.Scheduler
	remote        RemoteSession
	turns         []transcript.Turn
}

// NewController creates an idle controller.
func NewController(cfg Config) *Controller {
	if cfg.PlaybackRate == 0 {
		cfg.PlaybackRate = 24000
	}
	if cfg.PlaybackChannels == 0 {
		cfg.PlaybackChannels = 1
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		cfg: cfg,
		log: log,
		agg: transcript.NewAggregator(),
	}
}

// Start acquires the devices, opens the remote session, and begins pumping
// frames. Valid from Idle or Error; a concurrent or repeated Start returns
// ErrAlreadyRunning. Turn history from the previous session is cleared.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.starting || c.status == StatusConnecting || c.status == StatusListening {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.starting = true
	c.stopRequested = false
	c.setStatusLocked(StatusIdle)
	c.lastErr = nil
	c.turns = nil
	c.mu.Unlock()

	c.agg.Reset()
	c.cfg.Metrics.IncSessionsStarted()

	capture, err := c.cfg.AcquireCapture()
	if err != nil {
		return c.failStart(fmt.Errorf("%w: %w", ErrAcquisition, err), nil, nil)
	}
	output, err := c.cfg.AcquireOutput()
	if err != nil {
		return c.failStart(fmt.Errorf("%w: %w", ErrAcquisition, err), capture, nil)
	}

	c.mu.Lock()
	c.setStatusLocked(StatusConnecting)
	c.mu.Unlock()

	remote, err := c.cfg.Open(ctx)
	if err != nil {
		return c.failStart(fmt.Errorf("%w: %w", ErrSessionOpen, err), capture, output)
	}

	sched := playback.NewScheduler(output)

	c.mu.Lock()
	if c.stopRequested {
		// Stop raced the open; unwind and stay Idle.
		c.starting = false
		c.setStatusLocked(StatusIdle)
		c.mu.Unlock()
		c.releaseAll(capture, sched, output, remote)
		return nil
	}
	c.capture = capture
	c.output = output
	c.sched = sched
	c.remote = remote
	c.setStatusLocked(StatusListening)
	c.starting = false
	c.mu.Unlock()

	if err := capture.Start(c.onFrame); err != nil {
		c.mu.Lock()
		if c.remote != remote {
			// Stop raced in after Listening was published and already
			// released everything, including this device; the start
			// failure on a released device is moot.
			c.mu.Unlock()
			return nil
		}
		err = fmt.Errorf("%w: %w", ErrAcquisition, err)
		capture, sched, output, remote := c.takeResourcesLocked()
		c.setStatusLocked(StatusError)
		c.lastErr = err
		c.mu.Unlock()
		c.cfg.Metrics.IncSessionErrors()
		c.releaseAll(capture, sched, output, remote)
		return err
	}

	go c.eventLoop(remote, sched)

	c.log.Info("session listening")
	return nil
}

// Stop closes the session and releases every resource. Idempotent no-op
// from Idle or Error; safe to call while the open is still pending.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.starting && c.remote == nil {
		// Start is mid-flight; it will unwind once the open settles.
		c.stopRequested = true
		c.mu.Unlock()
		return
	}
	if c.status != StatusConnecting && c.status != StatusListening {
		c.mu.Unlock()
		return
	}
	capture, sched, output, remote := c.takeResourcesLocked()
	c.setStatusLocked(StatusIdle)
	c.mu.Unlock()

	c.releaseAll(capture, sched, output, remote)
	c.log.Info("session stopped")
}

// setStatusLocked updates the status and mirrors it to the status gauge.
// Callers must hold c.mu.
func (c *Controller) setStatusLocked(s Status) {
	c.status = s
	c.cfg.Metrics.SetSessionStatus(int(s))
}

// Status returns the current session status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastError returns the error that moved the session to StatusError, if
// any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Turns returns a copy of the session's turn history, oldest first. The
// history is append-only for the session's lifetime and is cleared only
// when a new session starts.
func (c *Controller) Turns() []transcript.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]transcript.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Partials returns the in-progress fragment text for both tracks. On Error
// the last error's detail is surfaced through the target-text channel so
// the user sees why the session stopped.
func (c *Controller) Partials() (source, target string) {
	c.mu.Lock()
	status, lastErr := c.status, c.lastErr
	c.mu.Unlock()

	source = c.agg.Partial(transcript.TrackSource)
	if status == StatusError && lastErr != nil {
		return source, "[error] " + lastErr.Error()
	}
	return source, c.agg.Partial(transcript.TrackTarget)
}

// DroppedFrames returns the number of captured frames dropped while the
// session was not listening.
func (c *Controller) DroppedFrames() uint64 {
	return c.dropped.Load()
}

// onFrame is the capture callback: encode the window and send it in
// capture order. Frames produced while the session is not listening are
// dropped and counted rather than buffered -- audio spoken before the
// session opened is useless by the time its translation could arrive, and
// dropping keeps capture and transmission in sync with zero queue growth.
func (c *Controller) onFrame(samples []float32) {
	c.mu.Lock()
	remote := c.remote
	listening := c.status == StatusListening
	c.mu.Unlock()

	if !listening || remote == nil {
		c.dropped.Add(1)
		c.cfg.Metrics.IncFramesDropped()
		return
	}

	if err := remote.SendFrame(context.Background(), frame.Encode(samples)); err != nil {
		c.cfg.Metrics.IncSendErrors()
		c.log.Warn("frame send failed", "error", err)
		return
	}
	c.cfg.Metrics.IncFramesSent()
}

// eventLoop consumes inbound events in arrival order until the stream ends
// or fails. Decode and schedule happen on this single goroutine, so
// playback submission order always matches delivery order.
func (c *Controller) eventLoop(remote RemoteSession, sched *playback.Scheduler) {
	for ev, err := range remote.Events() {
		if err != nil {
			c.transportError(remote, err)
			return
		}
		if !c.dispatch(remote, sched, ev) {
			return
		}
	}
	c.remoteClosed(remote)
}

// dispatch handles one event. It returns false when the loop should stop.
func (c *Controller) dispatch(remote RemoteSession, sched *playback.Scheduler, ev *Event) bool {
	c.mu.Lock()
	stale := c.remote != remote
	c.mu.Unlock()
	if stale {
		return false
	}

	switch ev.Type {
	case EventSourceText:
		c.agg.Append(transcript.TrackSource, ev.Text)

	case EventTargetText:
		c.agg.Append(transcript.TrackTarget, ev.Text)

	case EventAudio:
		c.scheduleAudio(sched, ev)

	case EventInterrupted:
		sched.Flush()
		c.cfg.Metrics.IncInterruptions()
		c.cfg.Metrics.SetActiveHandles(sched.Active())
		c.log.Debug("playback flushed on interruption")

	case EventTurnComplete:
		if turn, ok := c.agg.CompleteTurn(); ok {
			c.mu.Lock()
			c.turns = append(c.turns, turn)
			c.mu.Unlock()
			c.cfg.Metrics.IncTurnsCompleted()
			c.log.Debug("turn completed", "id", turn.ID)
		}

	case EventClosed:
		c.remoteClosed(remote)
		return false
	}
	return true
}

// scheduleAudio decodes one inbound payload and schedules it. A malformed
// payload drops the chunk and keeps the session alive.
func (c *Controller) scheduleAudio(sched *playback.Scheduler, ev *Event) {
	var (
		buf *frame.Buffer
		err error
	)
	if ev.AudioBase64 != "" {
		buf, err = frame.Decode(ev.AudioBase64, c.cfg.PlaybackRate, c.cfg.PlaybackChannels)
	} else {
		buf, err = frame.DecodeBytes(ev.Audio, c.cfg.PlaybackRate, c.cfg.PlaybackChannels)
	}
	if err != nil {
		c.cfg.Metrics.IncDecodeErrors()
		c.log.Warn("dropping malformed audio chunk", "error", err)
		return
	}

	if _, err := sched.Schedule(buf); err != nil {
		c.log.Warn("playback schedule failed", "error", err)
		return
	}
	c.cfg.Metrics.IncChunksScheduled()
	c.cfg.Metrics.SetActiveHandles(sched.Active())
}

// transportError records a fatal mid-session error and tears everything
// down. Turn history accumulated so far is preserved for display.
func (c *Controller) transportError(remote RemoteSession, err error) {
	c.mu.Lock()
	if c.remote != remote {
		c.mu.Unlock()
		return
	}
	capture, sched, output, rem := c.takeResourcesLocked()
	c.setStatusLocked(StatusError)
	c.lastErr = err
	c.mu.Unlock()

	c.cfg.Metrics.IncSessionErrors()
	c.log.Error("session transport error", "error", err)
	c.releaseAll(capture, sched, output, rem)
}

// remoteClosed handles a remote-initiated close: Error stays Error,
// anything else returns to Idle. Teardown runs either way.
func (c *Controller) remoteClosed(remote RemoteSession) {
	c.mu.Lock()
	if c.remote != remote {
		c.mu.Unlock()
		return
	}
	capture, sched, output, rem := c.takeResourcesLocked()
	if c.status != StatusError {
		c.setStatusLocked(StatusIdle)
	}
	c.mu.Unlock()

	c.releaseAll(capture, sched, output, rem)
	c.log.Info("session closed by remote")
}

// takeResourcesLocked detaches every held resource so teardown can run
// outside the lock. Callers must hold c.mu.
func (c *Controller) takeResourcesLocked() (CaptureDevice, *playback.Scheduler, playback.OutputContext, RemoteSession) {
	capture, sched, output, remote := c.capture, c.sched, c.output, c.remote
	c.capture, c.sched, c.output, c.remote = nil, nil, nil, nil
	return capture, sched, output, remote
}

// failStart releases partially acquired resources and moves to Error. If a
// Stop raced the attempt, the caller already asked for Idle and the failure
// is discarded.
func (c *Controller) failStart(err error, capture CaptureDevice, output playback.OutputContext) error {
	c.releaseAll(capture, nil, output, nil)

	c.mu.Lock()
	if c.stopRequested {
		c.starting = false
		c.setStatusLocked(StatusIdle)
		c.mu.Unlock()
		c.log.Info("session start canceled")
		return nil
	}
	c.starting = false
	c.setStatusLocked(StatusError)
	c.lastErr = err
	c.mu.Unlock()

	c.cfg.Metrics.IncSessionErrors()
	c.log.Error("session start failed", "error", err)
	return err
}

// releaseAll is the uniform best-effort teardown: every step runs even if
// an earlier one fails; failures are logged, never propagated.
func (c *Controller) releaseAll(capture CaptureDevice, sched *playback.Scheduler, output playback.OutputContext, remote RemoteSession) {
	if capture != nil {
		if err := capture.Release(); err != nil {
			c.log.Warn("capture release failed", "error", err)
		}
	}
	if sched != nil {
		sched.Flush()
	}
	if output != nil {
		if err := output.Release(); err != nil {
			c.log.Warn("output release failed", "error", err)
		}
	}
	if remote != nil {
		if err := remote.Close(); err != nil {
			c.log.Warn("remote close failed", "error", err)
		}
	}
	c.cfg.Metrics.SetActiveHandles(0)
}
