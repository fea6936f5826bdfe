package portaudio

import (
	"errors"
	"sync"
	"time"

	"github.com/lingopipe/lingopipe/pkg/audio/pcm"
	"github.com/lingopipe/lingopipe/pkg/session"
)

// Microphone captures audio from the default input device and delivers it
// as fixed-size windows of normalized float32 samples in [-1, 1].
type Microphone struct {
	format pcm.Format
	window int

	mu      sync.Mutex
	stream  *stream
	started bool
	stop    chan struct{}
}

// OpenMicrophone opens the default input device at the given format. Each
// capture window is window long (e.g. 20ms at 16 kHz mono = 320 samples).
// The device stays silent until Start.
func OpenMicrophone(format pcm.Format, window time.Duration) (*Microphone, error) {
	frames := int(format.SamplesInDuration(window))
	if frames <= 0 {
		return nil, errors.New("portaudio: capture window too short")
	}

	st, err := openStream(format.Channels(), 0, float64(format.SampleRate()), frames)
	if err != nil {
		return nil, err
	}

	return &Microphone{
		format: format,
		window: frames,
		stream: st,
		stop:   make(chan struct{}),
	}, nil
}

// Format returns the capture format.
func (m *Microphone) Format() pcm.Format {
	return m.format
}

// Start begins capture and invokes onFrame with each window, in order, from
// a single pump goroutine. onFrame must not retain the slice.
func (m *Microphone) Start(onFrame func(samples []float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return errors.New("portaudio: microphone released")
	}
	if m.started {
		return errors.New("portaudio: microphone already started")
	}
	if err := m.stream.start(); err != nil {
		return err
	}
	m.started = true

	go m.pump(m.stream, onFrame)
	return nil
}

// pump blocks on device reads until the stream closes.
func (m *Microphone) pump(st *stream, onFrame func([]float32)) {
	samples := make([]float32, m.window)
	for {
		select {
		case <-m.stop:
			return
		default:
		}

		raw, err := st.read(m.window)
		if err != nil {
			return
		}
		select {
		case <-m.stop:
			return
		default:
		}
		for i, s := range raw {
			samples[i] = float32(s) / 32768
		}
		onFrame(samples)
	}
}

// Release stops capture and closes the device. Idempotent. At most one
// already-captured window may still be delivered concurrently with Release.
func (m *Microphone) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}
	close(m.stop)
	err := m.stream.close()
	m.stream = nil
	return err
}

var _ session.CaptureDevice = (*Microphone)(nil)
