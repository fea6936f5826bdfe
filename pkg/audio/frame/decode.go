package frame

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedPayload reports an inbound audio payload that is not valid
// L16 PCM (bad base64, truncated sample, or wrong channel alignment). The
// offending chunk is dropped by the session; the error is never fatal.
var ErrMalformedPayload = errors.New("frame: malformed audio payload")

// Buffer is one decoded inbound audio chunk, de-interleaved per channel,
// with samples normalized to [-1, 1].
type Buffer struct {
	// Channels holds one sample slice per channel. All slices have equal
	// length.
	Channels [][]float32

	// SampleRate is the playback sample rate in Hz.
	SampleRate int
}

// Frames returns the number of sample frames in the buffer.
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback duration of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Decode decodes a base64-encoded L16 payload into a playback buffer.
func Decode(payload string, sampleRate, channels int) (*Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return DecodeBytes(raw, sampleRate, channels)
}

// DecodeBytes decodes raw L16 little-endian bytes into a playback buffer,
// de-interleaving when channels > 1.
func DecodeBytes(raw []byte, sampleRate, channels int) (*Buffer, error) {
	if channels < 1 {
		return nil, fmt.Errorf("frame: invalid channel count %d", channels)
	}
	stride := 2 * channels
	if len(raw) == 0 || len(raw)%stride != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d-channel frames", ErrMalformedPayload, len(raw), channels)
	}

	frames := len(raw) / stride
	chans := make([][]float32, channels)
	for ch := range chans {
		chans[ch] = make([]float32, frames)
	}

	for f := 0; f < frames; f++ {
		base := f * stride
		for ch := 0; ch < channels; ch++ {
			v := int16(binary.LittleEndian.Uint16(raw[base+ch*2:]))
			chans[ch][f] = float32(v) / 32768
		}
	}

	return &Buffer{Channels: chans, SampleRate: sampleRate}, nil
}
