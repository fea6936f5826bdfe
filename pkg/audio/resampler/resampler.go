// Package resampler converts PCM sample streams between sample rates.
//
// Synthesized playback audio usually arrives at 24 kHz while output devices
// commonly run at 48 kHz; this package bridges the two with a pure Go
// resampler (no CGO/FFI dependencies).
package resampler

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler converts float32 PCM samples from one sample rate to another.
// Not safe for concurrent use.
type Resampler struct {
	rs       resampling.Resampler
	channels int
	in       []float64
}

// New creates a resampler converting from inRate to outRate.
func New(inRate, outRate, channels int) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", inRate, outRate)
	}
	if channels <= 0 {
		channels = 1
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(inRate),
		OutputRate: float64(outRate),
		Channels:   channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}

	return &Resampler{rs: rs, channels: channels}, nil
}

// Process converts one block of interleaved samples. The returned slice is
// owned by the caller. Output length varies with the rate ratio and the
// resampler's internal latency.
func (r *Resampler) Process(samples []float32) ([]float32, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	if cap(r.in) < len(samples) {
		r.in = make([]float64, len(samples))
	}
	in := r.in[:len(samples)]
	for i, s := range samples {
		in[i] = float64(s)
	}

	out, err := r.rs.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}

	result := make([]float32, len(out))
	for i, s := range out {
		result[i] = float32(s)
	}
	return result, nil
}
