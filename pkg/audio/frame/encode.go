// Package frame converts between normalized float samples and the signed
// 16-bit little-endian PCM carried on the wire.
//
// Outbound: captured float32 amplitudes in [-1, 1] are encoded into L16
// frames ready to send on a session. Inbound: base64 (or raw binary) L16
// payloads are decoded into per-channel float32 buffers for playback.
package frame

import "encoding/binary"

// Encode converts normalized float32 samples into signed 16-bit
// little-endian PCM bytes. Samples outside [-1, 1] are clamped, never
// wrapped. Encode is pure and stateless; the input length is whatever the
// capture window produced.
func Encode(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}
