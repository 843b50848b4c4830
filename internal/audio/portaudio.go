package audio

import (
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"

	"github.com/cbegin/midisynth-go/internal/dac"
)

// PortAudioDevice opens the default mono output stream. The stream callback
// pulls the ring directly.
type PortAudioDevice struct {
	sampleRate int

	mu     sync.Mutex
	stream *portaudio.Stream
	ring   *dac.Ring
	buf    []byte
	inited bool
}

func NewPortAudioDevice(sampleRate int) *PortAudioDevice {
	return &PortAudioDevice{sampleRate: sampleRate}
}

func (d *PortAudioDevice) output(out []float32) {
	if cap(d.buf) < len(out) {
		d.buf = make([]byte, len(out))
	}
	buf := d.buf[:len(out)]
	d.ring.Read(buf)
	for i, b := range buf {
		out[i] = U8ToFloat(b)
	}
}

func (d *PortAudioDevice) Start(r *dac.Ring) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		if err := portaudio.Initialize(); err != nil {
			return errors.Wrap(err, "init portaudio")
		}
		d.inited = true
		d.ring = r
		stream, err := portaudio.OpenDefaultStream(0, 1, float64(d.sampleRate), portaudio.FramesPerBufferUnspecified, d.output)
		if err != nil {
			return errors.Wrap(err, "open default stream")
		}
		d.stream = stream
	}
	return errors.Wrap(d.stream.Start(), "start stream")
}

func (d *PortAudioDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return nil
	}
	return errors.Wrap(d.stream.Stop(), "stop stream")
}

func (d *PortAudioDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	if d.stream != nil {
		err = d.stream.Close()
		d.stream = nil
	}
	if d.inited {
		// ignore Terminate error
		_ = portaudio.Terminate()
		d.inited = false
	}
	return errors.Wrap(err, "close stream")
}
