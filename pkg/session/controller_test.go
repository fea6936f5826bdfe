package session

import (
	"context"
	"encoding/base64"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/lingopipe/lingopipe/pkg/audio/frame"
	"github.com/lingopipe/lingopipe/pkg/playback"
)

// fakeCapture implements CaptureDevice. Emit simulates the device invoking
// the capture callback.
type fakeCapture struct {
	mu        sync.Mutex
	onFrame   func([]float32)
	released  bool
	startErr  error
	startHook func()
}

func (f *fakeCapture) Start(onFrame func([]float32)) error {
	if f.startHook != nil {
		f.startHook()
	}
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.onFrame = onFrame
	f.mu.Unlock()
	return nil
}

func (f *fakeCapture) Release() error {
	f.mu.Lock()
	f.released = true
	f.onFrame = nil
	f.mu.Unlock()
	return nil
}

func (f *fakeCapture) Emit(samples []float32) {
	f.mu.Lock()
	cb := f.onFrame
	f.mu.Unlock()
	if cb != nil {
		cb(samples)
	}
}

// fakeOutput implements playback.OutputContext with a manual clock.
type fakeOutput struct {
	mu       sync.Mutex
	now      float64
	plays    []*fakePlay
	released bool
}

type fakePlay struct {
	stopped bool
}

func (p *fakePlay) Stop() { p.stopped = true }

func (f *fakeOutput) Now() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeOutput) Play(buf *frame.Buffer, startAt float64, done func()) (playback.Stopper, error) {
	p := &fakePlay{}
	f.mu.Lock()
	f.plays = append(f.plays, p)
	f.mu.Unlock()
	return p, nil
}

func (f *fakeOutput) Release() error {
	f.mu.Lock()
	f.released = true
	f.mu.Unlock()
	return nil
}

func (f *fakeOutput) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.plays)
}

// fakeRemote implements RemoteSession driven by a test-controlled event
// channel.
type eventOrErr struct {
	ev  *Event
	err error
}

type fakeRemote struct {
	mu      sync.Mutex
	sent    [][]byte
	closed  int
	sendErr error
	events  chan eventOrErr
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{events: make(chan eventOrErr, 64)}
}

func (f *fakeRemote) SendFrame(ctx context.Context, frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeRemote) Events() iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		for item := range f.events {
			if !yield(item.ev, item.err) {
				return
			}
			if item.err != nil {
				return
			}
		}
	}
}

func (f *fakeRemote) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeRemote) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeRemote) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// harness bundles a controller with its fakes.
type harness struct {
	capture *fakeCapture
	output  *fakeOutput
	remote  *fakeRemote
	ctrl    *Controller
}

func newHarness() *harness {
	h := &harness{
		capture: &fakeCapture{},
		output:  &fakeOutput{},
		remote:  newFakeRemote(),
	}
	h.ctrl = NewController(Config{
		Open:           func(ctx context.Context) (RemoteSession, error) { return h.remote, nil },
		AcquireCapture: func() (CaptureDevice, error) { return h.capture, nil },
		AcquireOutput:  func() (playback.OutputContext, error) { return h.output, nil },
	})
	return h
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestStartStop(t *testing.T) {
	h := newHarness()

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if got := h.ctrl.Status(); got != StatusListening {
		t.Fatalf("Status after Start = %v; want listening", got)
	}

	h.ctrl.Stop()
	if got := h.ctrl.Status(); got != StatusIdle {
		t.Errorf("Status after Stop = %v; want idle", got)
	}
	if !h.capture.released {
		t.Error("capture device not released")
	}
	if !h.output.released {
		t.Error("output context not released")
	}
	if h.remote.closeCount() != 1 {
		t.Errorf("remote Close called %d times; want 1", h.remote.closeCount())
	}
}

func TestStop_Idempotent(t *testing.T) {
	h := newHarness()

	// Stop from Idle is a no-op.
	h.ctrl.Stop()
	if got := h.ctrl.Status(); got != StatusIdle {
		t.Fatalf("Status = %v; want idle", got)
	}

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	h.ctrl.Stop()
	h.ctrl.Stop() // second call while already Idle
	if got := h.ctrl.Status(); got != StatusIdle {
		t.Errorf("Status after double Stop = %v; want idle", got)
	}
	if h.remote.closeCount() != 1 {
		t.Errorf("remote Close called %d times; want 1", h.remote.closeCount())
	}
}

func TestStart_WhileRunning(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := h.ctrl.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start error = %v; want ErrAlreadyRunning", err)
	}
	h.ctrl.Stop()
}

func TestStart_AcquisitionFailure(t *testing.T) {
	opened := false
	ctrl := NewController(Config{
		Open: func(ctx context.Context) (RemoteSession, error) {
			opened = true
			return nil, errors.New("unreachable")
		},
		AcquireCapture: func() (CaptureDevice, error) { return nil, errors.New("device busy") },
		AcquireOutput:  func() (playback.OutputContext, error) { return &fakeOutput{}, nil },
	})

	err := ctrl.Start(context.Background())
	if !errors.Is(err, ErrAcquisition) {
		t.Fatalf("Start error = %v; want ErrAcquisition", err)
	}
	// Idle -> Error directly, never through Connecting/Listening.
	if got := ctrl.Status(); got != StatusError {
		t.Errorf("Status = %v; want error", got)
	}
	if opened {
		t.Error("remote session opened despite device failure")
	}

	// Error detail surfaces through the target-text channel.
	_, target := ctrl.Partials()
	if target == "" {
		t.Error("target partial empty; want error detail")
	}
}

func TestStart_OpenFailure(t *testing.T) {
	capture := &fakeCapture{}
	output := &fakeOutput{}
	ctrl := NewController(Config{
		Open: func(ctx context.Context) (RemoteSession, error) {
			return nil, errors.New("endpoint down")
		},
		AcquireCapture: func() (CaptureDevice, error) { return capture, nil },
		AcquireOutput:  func() (playback.OutputContext, error) { return output, nil },
	})

	err := ctrl.Start(context.Background())
	if !errors.Is(err, ErrSessionOpen) {
		t.Fatalf("Start error = %v; want ErrSessionOpen", err)
	}
	if got := ctrl.Status(); got != StatusError {
		t.Errorf("Status = %v; want error", got)
	}
	if !capture.released {
		t.Error("partially acquired capture device not released")
	}
	if !output.released {
		t.Error("partially acquired output context not released")
	}
}

func TestStart_ClearsErrorAndHistory(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	h.remote.events <- eventOrErr{ev: &Event{Type: EventSourceText, Text: "hi"}}
	h.remote.events <- eventOrErr{ev: &Event{Type: EventTurnComplete}}
	waitFor(t, func() bool { return len(h.ctrl.Turns()) == 1 })

	h.ctrl.Stop()

	// Restart with a fresh remote: history cleared.
	h.remote = newFakeRemote()
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("restart error: %v", err)
	}
	if got := len(h.ctrl.Turns()); got != 0 {
		t.Errorf("Turns() after restart = %d; want 0", got)
	}
	h.ctrl.Stop()
}

func TestFramePump(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	h.capture.Emit(make([]float32, 320))
	h.capture.Emit(make([]float32, 320))
	waitFor(t, func() bool { return h.remote.sentCount() == 2 })

	// 320 float samples encode to 640 bytes of L16.
	if got := len(h.remote.sent[0]); got != 640 {
		t.Errorf("frame size = %d bytes; want 640", got)
	}

	h.ctrl.Stop()
}

func TestFramePump_DropsWhenNotListening(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	cb := h.capture // callback survives in the fake until Release
	h.ctrl.Stop()

	cb.mu.Lock()
	cb.onFrame = h.ctrl.onFrame // simulate a late device callback
	cb.mu.Unlock()

	cb.Emit(make([]float32, 320))
	if h.remote.sentCount() != 0 {
		t.Errorf("frames sent while not listening = %d; want 0", h.remote.sentCount())
	}
	if got := h.ctrl.DroppedFrames(); got != 1 {
		t.Errorf("DroppedFrames() = %d; want 1", got)
	}
}

func TestTranscriptFlow(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer h.ctrl.Stop()

	h.remote.events <- eventOrErr{ev: &Event{Type: EventSourceText, Text: "你好"}}
	h.remote.events <- eventOrErr{ev: &Event{Type: EventTargetText, Text: "Hello"}}

	waitFor(t, func() bool {
		src, tgt := h.ctrl.Partials()
		return src == "你好" && tgt == "Hello"
	})

	h.remote.events <- eventOrErr{ev: &Event{Type: EventTurnComplete}}
	waitFor(t, func() bool { return len(h.ctrl.Turns()) == 1 })

	turns := h.ctrl.Turns()
	if turns[0].Source != "你好" || turns[0].Target != "Hello" {
		t.Errorf("turn = %+v; want 你好/Hello", turns[0])
	}

	// Partials cleared after completion.
	src, tgt := h.ctrl.Partials()
	if src != "" || tgt != "" {
		t.Errorf("partials after turn = %q/%q; want empty", src, tgt)
	}
}

func TestTurnComplete_EmptyIsSkipped(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer h.ctrl.Stop()

	h.remote.events <- eventOrErr{ev: &Event{Type: EventTurnComplete}}
	h.remote.events <- eventOrErr{ev: &Event{Type: EventSourceText, Text: "after"}}
	waitFor(t, func() bool {
		src, _ := h.ctrl.Partials()
		return src == "after"
	})

	if got := len(h.ctrl.Turns()); got != 0 {
		t.Errorf("Turns() = %d; want 0 for empty completion", got)
	}
}

func TestAudioFlow(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer h.ctrl.Stop()

	payload := base64.StdEncoding.EncodeToString(make([]byte, 960))
	h.remote.events <- eventOrErr{ev: &Event{Type: EventAudio, AudioBase64: payload}}
	h.remote.events <- eventOrErr{ev: &Event{Type: EventAudio, Audio: make([]byte, 480)}}

	waitFor(t, func() bool { return h.output.playCount() == 2 })
}

func TestAudioFlow_DecodeErrorIsTransient(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer h.ctrl.Stop()

	// Truncated payload: dropped, session continues.
	h.remote.events <- eventOrErr{ev: &Event{Type: EventAudio, Audio: []byte{1, 2, 3}}}
	h.remote.events <- eventOrErr{ev: &Event{Type: EventAudio, Audio: make([]byte, 480)}}

	waitFor(t, func() bool { return h.output.playCount() == 1 })
	if got := h.ctrl.Status(); got != StatusListening {
		t.Errorf("Status after decode error = %v; want listening", got)
	}
}

func TestInterrupted_FlushesPlayback(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer h.ctrl.Stop()

	h.remote.events <- eventOrErr{ev: &Event{Type: EventAudio, Audio: make([]byte, 960)}}
	h.remote.events <- eventOrErr{ev: &Event{Type: EventAudio, Audio: make([]byte, 960)}}
	waitFor(t, func() bool { return h.output.playCount() == 2 })

	h.remote.events <- eventOrErr{ev: &Event{Type: EventInterrupted}}
	waitFor(t, func() bool {
		h.output.mu.Lock()
		defer h.output.mu.Unlock()
		for _, p := range h.output.plays {
			if !p.stopped {
				return false
			}
		}
		return true
	})
}

func TestTransportError(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	h.remote.events <- eventOrErr{ev: &Event{Type: EventSourceText, Text: "partial"}}
	h.remote.events <- eventOrErr{ev: &Event{Type: EventTurnComplete}}
	waitFor(t, func() bool { return len(h.ctrl.Turns()) == 1 })

	h.remote.events <- eventOrErr{err: errors.New("connection reset")}
	waitFor(t, func() bool { return h.ctrl.Status() == StatusError })

	// History is preserved for display.
	if got := len(h.ctrl.Turns()); got != 1 {
		t.Errorf("Turns() after error = %d; want 1", got)
	}
	if !h.capture.released || !h.output.released {
		t.Error("devices not released after transport error")
	}
	if h.remote.closeCount() == 0 {
		t.Error("remote not closed after transport error")
	}

	// Stop from Error is a no-op and stays Error until manual restart.
	h.ctrl.Stop()
	if got := h.ctrl.Status(); got != StatusError {
		t.Errorf("Status after Stop from Error = %v; want error", got)
	}
}

func TestRemoteClose(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	h.remote.events <- eventOrErr{ev: &Event{Type: EventClosed}}
	waitFor(t, func() bool { return h.ctrl.Status() == StatusIdle })

	if !h.capture.released || !h.output.released {
		t.Error("devices not released after remote close")
	}
}

func TestStop_DuringConnecting(t *testing.T) {
	capture := &fakeCapture{}
	output := &fakeOutput{}
	remote := newFakeRemote()

	openEntered := make(chan struct{})
	openRelease := make(chan struct{})
	ctrl := NewController(Config{
		Open: func(ctx context.Context) (RemoteSession, error) {
			close(openEntered)
			<-openRelease
			return remote, nil
		},
		AcquireCapture: func() (CaptureDevice, error) { return capture, nil },
		AcquireOutput:  func() (playback.OutputContext, error) { return output, nil },
	})

	startDone := make(chan error, 1)
	go func() { startDone <- ctrl.Start(context.Background()) }()

	<-openEntered
	if got := ctrl.Status(); got != StatusConnecting {
		t.Fatalf("Status during open = %v; want connecting", got)
	}

	// Stop before the open acknowledgement: must be honored once the
	// open completes.
	ctrl.Stop()
	close(openRelease)

	if err := <-startDone; err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if got := ctrl.Status(); got != StatusIdle {
		t.Errorf("Status = %v; want idle", got)
	}
	if remote.closeCount() != 1 {
		t.Errorf("remote Close called %d times; want 1", remote.closeCount())
	}
	if !capture.released || !output.released {
		t.Error("devices not released after raced stop")
	}
}

func TestStop_DuringConnecting_OpenFailure(t *testing.T) {
	capture := &fakeCapture{}
	output := &fakeOutput{}

	openEntered := make(chan struct{})
	openRelease := make(chan struct{})
	ctrl := NewController(Config{
		Open: func(ctx context.Context) (RemoteSession, error) {
			close(openEntered)
			<-openRelease
			return nil, errors.New("endpoint down")
		},
		AcquireCapture: func() (CaptureDevice, error) { return capture, nil },
		AcquireOutput:  func() (playback.OutputContext, error) { return output, nil },
	})

	startDone := make(chan error, 1)
	go func() { startDone <- ctrl.Start(context.Background()) }()

	<-openEntered
	ctrl.Stop()
	close(openRelease)

	// The user already asked to stop; the open failure after that must not
	// surface as an error state.
	if err := <-startDone; err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if got := ctrl.Status(); got != StatusIdle {
		t.Errorf("Status after Stop-then-open-failure = %v; want idle", got)
	}
	if err := ctrl.LastError(); err != nil {
		t.Errorf("LastError() = %v; want nil", err)
	}
	if !capture.released || !output.released {
		t.Error("devices not released after canceled start")
	}
}

func TestStop_BetweenListeningAndCaptureStart(t *testing.T) {
	capture := &fakeCapture{startErr: errors.New("stream closed")}
	output := &fakeOutput{}
	remote := newFakeRemote()

	var ctrl *Controller
	// Stop lands after Listening is published but before the capture pump
	// starts; the pump then fails on the released device.
	capture.startHook = func() { ctrl.Stop() }
	ctrl = NewController(Config{
		Open:           func(ctx context.Context) (RemoteSession, error) { return remote, nil },
		AcquireCapture: func() (CaptureDevice, error) { return capture, nil },
		AcquireOutput:  func() (playback.OutputContext, error) { return output, nil },
	})

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if got := ctrl.Status(); got != StatusIdle {
		t.Errorf("Status = %v; want idle", got)
	}
	if err := ctrl.LastError(); err != nil {
		t.Errorf("LastError() = %v; want nil", err)
	}
	if remote.closeCount() != 1 {
		t.Errorf("remote Close called %d times; want 1", remote.closeCount())
	}
}
