package frame

import (
	"encoding/base64"
	"errors"
	"math"
	"testing"
	"time"
)

func TestEncode(t *testing.T) {
	got := Encode([]float32{0, 1, -1, 0.5})

	samples := decodeInt16(t, got)
	want := []int16{0, 32767, -32767, 16383}
	for i, v := range want {
		if samples[i] != v {
			t.Errorf("sample[%d] = %d; want %d", i, samples[i], v)
		}
	}
}

func TestEncode_Clamps(t *testing.T) {
	got := decodeInt16(t, Encode([]float32{2.5, -3.0}))
	if got[0] != 32767 {
		t.Errorf("over-range sample = %d; want 32767", got[0])
	}
	if got[1] != -32767 {
		t.Errorf("under-range sample = %d; want -32767", got[1])
	}
}

func TestEncode_Empty(t *testing.T) {
	if got := Encode(nil); len(got) != 0 {
		t.Errorf("Encode(nil) = %d bytes; want 0", len(got))
	}
}

func TestDecode_Mono(t *testing.T) {
	// Two samples: 16384, -16384.
	raw := []byte{0x00, 0x40, 0x00, 0xc0}
	payload := base64.StdEncoding.EncodeToString(raw)

	buf, err := Decode(payload, 24000, 1)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if len(buf.Channels) != 1 {
		t.Fatalf("channels = %d; want 1", len(buf.Channels))
	}
	if buf.Frames() != 2 {
		t.Fatalf("frames = %d; want 2", buf.Frames())
	}
	if got := buf.Channels[0][0]; math.Abs(float64(got)-0.5) > 1e-4 {
		t.Errorf("sample[0] = %f; want 0.5", got)
	}
	if got := buf.Channels[0][1]; math.Abs(float64(got)+0.5) > 1e-4 {
		t.Errorf("sample[1] = %f; want -0.5", got)
	}
}

func TestDecodeBytes_Stereo(t *testing.T) {
	// One frame: L=32767, R=-32768 interleaved.
	raw := []byte{0xff, 0x7f, 0x00, 0x80}
	buf, err := DecodeBytes(raw, 48000, 2)
	if err != nil {
		t.Fatalf("DecodeBytes error: %v", err)
	}
	if len(buf.Channels) != 2 || buf.Frames() != 1 {
		t.Fatalf("got %d channels x %d frames; want 2x1", len(buf.Channels), buf.Frames())
	}
	if got := buf.Channels[0][0]; got < 0.99 {
		t.Errorf("left sample = %f; want ~1", got)
	}
	if got := buf.Channels[1][0]; got != -1 {
		t.Errorf("right sample = %f; want -1", got)
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode("not base64!!", 24000, 1); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("bad base64: err = %v; want ErrMalformedPayload", err)
	}
	// Truncated: 3 bytes is not a whole int16 sample.
	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	if _, err := Decode(payload, 24000, 1); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("truncated: err = %v; want ErrMalformedPayload", err)
	}
	// Empty payload carries no audio.
	if _, err := DecodeBytes(nil, 24000, 1); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("empty: err = %v; want ErrMalformedPayload", err)
	}
	// Odd frame alignment for stereo.
	if _, err := DecodeBytes([]byte{0, 0}, 24000, 2); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("misaligned stereo: err = %v; want ErrMalformedPayload", err)
	}
}

func TestBuffer_Duration(t *testing.T) {
	raw := make([]byte, 48000) // 24000 samples @ 24kHz mono = 1s
	buf, err := DecodeBytes(raw, 24000, 1)
	if err != nil {
		t.Fatalf("DecodeBytes error: %v", err)
	}
	if got := buf.Duration(); got != time.Second {
		t.Errorf("Duration() = %v; want 1s", got)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.9, -0.9}
	buf, err := DecodeBytes(Encode(in), 16000, 1)
	if err != nil {
		t.Fatalf("DecodeBytes error: %v", err)
	}
	for i, want := range in {
		if got := buf.Channels[0][i]; math.Abs(float64(got-want)) > 1e-3 {
			t.Errorf("sample[%d] = %f; want ~%f", i, got, want)
		}
	}
}

func decodeInt16(t *testing.T, b []byte) []int16 {
	t.Helper()
	if len(b)%2 != 0 {
		t.Fatalf("odd byte count %d", len(b))
	}
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return out
}
