// Package portaudio binds the PortAudio C library and exposes the two
// device surfaces an interpreter session needs: a Microphone that pumps
// fixed-size capture windows, and a Speaker that plays buffers at scheduled
// times on a monotonic clock.
//
// Requires portaudio installed via pkg-config (brew install portaudio).
package portaudio

/*
#cgo pkg-config: portaudio-2.0

#include <portaudio.h>
#include <stdlib.h>
#include <string.h>

// Wrapper functions using void* to avoid CGO type issues with PaStream
static PaError pa_open_stream(void **stream,
                              const PaStreamParameters *inputParams,
                              const PaStreamParameters *outputParams,
                              double sampleRate,
                              unsigned long framesPerBuffer,
                              PaStreamFlags streamFlags) {
    return Pa_OpenStream((PaStream**)stream, inputParams, outputParams, sampleRate,
                         framesPerBuffer, streamFlags, NULL, NULL);
}

static PaError pa_start_stream(void *stream) {
    return Pa_StartStream((PaStream*)stream);
}

static PaError pa_stop_stream(void *stream) {
    return Pa_StopStream((PaStream*)stream);
}

static PaError pa_close_stream(void *stream) {
    return Pa_CloseStream((PaStream*)stream);
}

static PaError pa_read_stream(void *stream, void *buffer, unsigned long frames) {
    return Pa_ReadStream((PaStream*)stream, buffer, frames);
}

static PaError pa_write_stream(void *stream, const void *buffer, unsigned long frames) {
    return Pa_WriteStream((PaStream*)stream, buffer, frames);
}
*/
import "C"

import (
	"errors"
	"sync"
	"unsafe"
)

var (
	initOnce sync.Once
	initErr  error
)

// paError converts a PortAudio error code to a Go error.
func paError(code C.PaError) error {
	if code == C.paNoError {
		return nil
	}
	return errors.New(C.GoString(C.Pa_GetErrorText(code)))
}

// Initialize initializes the PortAudio library.
// It is safe to call multiple times.
func Initialize() error {
	initOnce.Do(func() {
		initErr = paError(C.Pa_Initialize())
	})
	return initErr
}

// Terminate terminates the PortAudio library.
func Terminate() error {
	return paError(C.Pa_Terminate())
}

// stream is one open blocking-mode PortAudio stream carrying int16 samples.
type stream struct {
	ptr    unsafe.Pointer
	buffer unsafe.Pointer
	closed bool
	mu     sync.Mutex
}

// openStream opens a blocking int16 stream on the default devices.
func openStream(inputChannels, outputChannels int, sampleRate float64, framesPerBuffer int) (*stream, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	var inputParams, outputParams *C.PaStreamParameters

	if inputChannels > 0 {
		device := C.Pa_GetDefaultInputDevice()
		if device == C.paNoDevice {
			return nil, errors.New("portaudio: no default input device")
		}
		info := C.Pa_GetDeviceInfo(device)
		inputParams = &C.PaStreamParameters{
			device:                    device,
			channelCount:              C.int(inputChannels),
			sampleFormat:              C.paInt16,
			suggestedLatency:          info.defaultLowInputLatency,
			hostApiSpecificStreamInfo: nil,
		}
	}

	if outputChannels > 0 {
		device := C.Pa_GetDefaultOutputDevice()
		if device == C.paNoDevice {
			return nil, errors.New("portaudio: no default output device")
		}
		info := C.Pa_GetDeviceInfo(device)
		outputParams = &C.PaStreamParameters{
			device:                    device,
			channelCount:              C.int(outputChannels),
			sampleFormat:              C.paInt16,
			suggestedLatency:          info.defaultLowOutputLatency,
			hostApiSpecificStreamInfo: nil,
		}
	}

	var paStream unsafe.Pointer
	err := paError(C.pa_open_stream(
		&paStream,
		inputParams,
		outputParams,
		C.double(sampleRate),
		C.ulong(framesPerBuffer),
		C.paClipOff,
	))
	if err != nil {
		return nil, err
	}

	channels := max(inputChannels, outputChannels)
	bufferSize := framesPerBuffer * channels * 2 // int16 = 2 bytes

	return &stream{
		ptr:    paStream,
		buffer: C.malloc(C.size_t(bufferSize)),
	}, nil
}

// start starts the stream.
func (s *stream) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("portaudio: stream closed")
	}
	return paError(C.pa_start_stream(s.ptr))
}

// close stops and closes the stream. Idempotent.
func (s *stream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	C.pa_stop_stream(s.ptr)
	err := paError(C.pa_close_stream(s.ptr))
	C.free(s.buffer)
	return err
}

// read reads framesPerBuffer samples from an input stream. Blocks until the
// device has captured a full window.
func (s *stream) read(framesPerBuffer int) ([]int16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("portaudio: stream closed")
	}

	if err := paError(C.pa_read_stream(s.ptr, s.buffer, C.ulong(framesPerBuffer))); err != nil {
		return nil, err
	}

	samples := make([]int16, framesPerBuffer)
	C.memcpy(unsafe.Pointer(&samples[0]), s.buffer, C.size_t(framesPerBuffer*2))
	return samples, nil
}

// write writes samples to an output stream. Blocks until the device has
// consumed them.
func (s *stream) write(samples []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("portaudio: stream closed")
	}
	if len(samples) == 0 {
		return nil
	}

	C.memcpy(s.buffer, unsafe.Pointer(&samples[0]), C.size_t(len(samples)*2))
	return paError(C.pa_write_stream(s.ptr, s.buffer, C.ulong(len(samples))))
}
