package portaudio

/*
#include <portaudio.h>
*/
import "C"

import "errors"

// DeviceInfo describes one host audio device.
type DeviceInfo struct {
	Index             int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefaultInput    bool
	IsDefaultOutput   bool
}

// Devices returns every host audio device.
func Devices() ([]DeviceInfo, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	count := int(C.Pa_GetDeviceCount())
	if count < 0 {
		return nil, paError(C.PaError(count))
	}

	defaultInput := int(C.Pa_GetDefaultInputDevice())
	defaultOutput := int(C.Pa_GetDefaultOutputDevice())

	devices := make([]DeviceInfo, 0, count)
	for i := 0; i < count; i++ {
		info := C.Pa_GetDeviceInfo(C.PaDeviceIndex(i))
		if info == nil {
			continue
		}
		devices = append(devices, DeviceInfo{
			Index:             i,
			Name:              C.GoString(info.name),
			MaxInputChannels:  int(info.maxInputChannels),
			MaxOutputChannels: int(info.maxOutputChannels),
			DefaultSampleRate: float64(info.defaultSampleRate),
			IsDefaultInput:    i == defaultInput,
			IsDefaultOutput:   i == defaultOutput,
		})
	}
	return devices, nil
}

// DefaultInputDevice returns the default input device.
func DefaultInputDevice() (*DeviceInfo, error) {
	return defaultDevice(true)
}

// DefaultOutputDevice returns the default output device.
func DefaultOutputDevice() (*DeviceInfo, error) {
	return defaultDevice(false)
}

func defaultDevice(input bool) (*DeviceInfo, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	var idx C.PaDeviceIndex
	if input {
		idx = C.Pa_GetDefaultInputDevice()
	} else {
		idx = C.Pa_GetDefaultOutputDevice()
	}
	if idx == C.paNoDevice {
		if input {
			return nil, errors.New("portaudio: no default input device")
		}
		return nil, errors.New("portaudio: no default output device")
	}

	info := C.Pa_GetDeviceInfo(idx)
	if info == nil {
		return nil, errors.New("portaudio: failed to get device info")
	}

	return &DeviceInfo{
		Index:             int(idx),
		Name:              C.GoString(info.name),
		MaxInputChannels:  int(info.maxInputChannels),
		MaxOutputChannels: int(info.maxOutputChannels),
		DefaultSampleRate: float64(info.defaultSampleRate),
		IsDefaultInput:    input,
		IsDefaultOutput:   !input,
	}, nil
}
