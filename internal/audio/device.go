package audio

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/cbegin/midisynth-go/internal/dac"
)

// Backend names accepted by Open.
const (
	BackendEbiten    = "ebiten"
	BackendOto       = "oto"
	BackendPortAudio = "portaudio"
	BackendSerial    = "serial"
	BackendStdout    = "stdout"
	BackendNull      = "null"
)

// Backends lists every name Open understands.
var Backends = []string{BackendEbiten, BackendOto, BackendPortAudio, BackendSerial, BackendStdout, BackendNull}

type Options struct {
	SampleRate  int
	BufferBytes int
	SerialPort  string
	BaudRate    int
}

// Open returns the named output device.
func Open(name string, opts Options) (dac.Device, error) {
	if opts.SampleRate <= 0 {
		return nil, errors.Errorf("invalid sample rate %d", opts.SampleRate)
	}
	switch name {
	case BackendEbiten, "":
		return NewEbitenDevice(opts.SampleRate), nil
	case BackendOto:
		return NewOtoDevice(opts.SampleRate, opts.BufferBytes), nil
	case BackendPortAudio:
		return NewPortAudioDevice(opts.SampleRate), nil
	case BackendSerial:
		return NewSerialDevice(opts.SerialPort, opts.BaudRate, opts.BufferBytes)
	case BackendStdout:
		return dac.NewWriterDevice(os.Stdout, opts.SampleRate, opts.BufferBytes), nil
	case BackendNull:
		return dac.NewWriterDevice(io.Discard, opts.SampleRate, opts.BufferBytes), nil
	}
	return nil, errors.Errorf("unknown audio backend %q", name)
}

func bufferDuration(bytes, sampleRate int) time.Duration {
	if bytes <= 0 || sampleRate <= 0 {
		return 0
	}
	return time.Duration(bytes) * time.Second / time.Duration(sampleRate)
}
