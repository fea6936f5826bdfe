package portaudio

import (
	"errors"
	"sync"
	"time"

	"github.com/lingopipe/lingopipe/pkg/audio/frame"
	"github.com/lingopipe/lingopipe/pkg/audio/pcm"
	"github.com/lingopipe/lingopipe/pkg/audio/resampler"
	"github.com/lingopipe/lingopipe/pkg/playback"
)

// Speaker plays buffers on the default output device at scheduled times.
// Its clock is seconds since the device was opened; buffers whose sample
// rate differs from the device rate are resampled on the way out.
type Speaker struct {
	format pcm.Format
	chunk  int // samples per device write
	epoch  time.Time

	mu     sync.Mutex
	stream *stream
}

// OpenSpeaker opens the default output device at the given format and
// starts it. chunk is how much audio each device write carries (e.g. 20ms);
// smaller chunks stop faster on Flush, larger chunks tolerate more jitter.
func OpenSpeaker(format pcm.Format, chunk time.Duration) (*Speaker, error) {
	frames := int(format.SamplesInDuration(chunk))
	if frames <= 0 {
		return nil, errors.New("portaudio: playback chunk too short")
	}

	st, err := openStream(0, format.Channels(), float64(format.SampleRate()), frames)
	if err != nil {
		return nil, err
	}
	if err := st.start(); err != nil {
		st.close()
		return nil, err
	}

	return &Speaker{
		format: format,
		chunk:  frames,
		epoch:  time.Now(),
		stream: st,
	}, nil
}

// Format returns the device output format.
func (s *Speaker) Format() pcm.Format {
	return s.format
}

// Now returns seconds since the speaker was opened.
func (s *Speaker) Now() float64 {
	return time.Since(s.epoch).Seconds()
}

// Play schedules buf to begin at the absolute time startAt. Playback runs
// on its own goroutine; done is invoked there when the buffer ends, either
// naturally or on a device write failure. The returned stopper cancels at
// the next chunk boundary.
func (s *Speaker) Play(buf *frame.Buffer, startAt float64, done func()) (playback.Stopper, error) {
	s.mu.Lock()
	st := s.stream
	s.mu.Unlock()
	if st == nil {
		return nil, errors.New("portaudio: speaker released")
	}

	samples, err := s.prepare(buf)
	if err != nil {
		return nil, err
	}

	h := &playing{stop: make(chan struct{})}
	go s.run(st, h, samples, startAt, done)
	return h, nil
}

// prepare mixes buf down to the device channel layout and resamples it to
// the device rate.
func (s *Speaker) prepare(buf *frame.Buffer) ([]float32, error) {
	if len(buf.Channels) == 0 {
		return nil, errors.New("portaudio: empty buffer")
	}

	samples := buf.Channels[0]
	if len(buf.Channels) > 1 {
		// Average down to mono.
		samples = make([]float32, len(buf.Channels[0]))
		for _, ch := range buf.Channels {
			for i, v := range ch {
				samples[i] += v / float32(len(buf.Channels))
			}
		}
	}

	if buf.SampleRate == s.format.SampleRate() {
		return samples, nil
	}

	rs, err := resampler.New(buf.SampleRate, s.format.SampleRate(), 1)
	if err != nil {
		return nil, err
	}
	return rs.Process(samples)
}

// pcmWriter is the device write surface run feeds; stream satisfies it.
type pcmWriter interface {
	write(samples []int16) error
}

// run waits for startAt, then feeds the device chunk by chunk. done fires
// when the buffer ends, naturally or on a device write failure; a stopped
// buffer skips it because the stopper's owner already dropped the handle.
func (s *Speaker) run(st pcmWriter, h *playing, samples []float32, startAt float64, done func()) {
	if delay := startAt - s.Now(); delay > 0 {
		t := time.NewTimer(time.Duration(delay * float64(time.Second)))
		select {
		case <-h.stop:
			t.Stop()
			return
		case <-t.C:
		}
	}

	out := make([]int16, s.chunk)
	for off := 0; off < len(samples); off += s.chunk {
		select {
		case <-h.stop:
			return
		default:
		}

		end := min(off+s.chunk, len(samples))
		n := 0
		for _, v := range samples[off:end] {
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			out[n] = int16(v * 32767)
			n++
		}

		if err := st.write(out[:n]); err != nil {
			done()
			return
		}
	}

	done()
}

// Release closes the output device. Any playing buffers end early without
// their done callbacks firing.
func (s *Speaker) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}
	err := s.stream.close()
	s.stream = nil
	return err
}

// playing is one in-flight buffer.
type playing struct {
	once sync.Once
	stop chan struct{}
}

// Stop cancels the buffer at the next chunk boundary. Idempotent.
func (p *playing) Stop() {
	p.once.Do(func() { close(p.stop) })
}

var _ playback.OutputContext = (*Speaker)(nil)
