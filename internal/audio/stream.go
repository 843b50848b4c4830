// Package audio binds the DAC ring to real output backends.
package audio

import (
	"encoding/binary"
	"math"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/pkg/errors"

	"github.com/cbegin/midisynth-go/internal/dac"
)

// StreamReader expands the ring's biased 8-bit mono samples into the
// little-endian float32 stereo frames ebiten plays.
type StreamReader struct {
	mu   sync.Mutex
	ring *dac.Ring
	buf  []byte
}

func NewStreamReader(ring *dac.Ring) *StreamReader {
	return &StreamReader{ring: ring}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	if cap(r.buf) < frames {
		r.buf = make([]byte, frames)
	}
	r.buf = r.buf[:frames]
	r.ring.Read(r.buf)
	for i, b := range r.buf {
		u := math.Float32bits(U8ToFloat(b))
		binary.LittleEndian.PutUint32(p[i*8:], u)
		binary.LittleEndian.PutUint32(p[i*8+4:], u)
	}
	return frames * 8, nil
}

func (r *StreamReader) Close() error { return nil }

// U8ToFloat maps a biased 8-bit sample onto [-1, 1).
func U8ToFloat(b byte) float32 {
	return float32(int(b)-dac.Silence) / 128
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, errors.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// EbitenDevice plays through ebiten's shared audio context.
type EbitenDevice struct {
	sampleRate int

	mu     sync.Mutex
	player *ebitaudio.Player
}

func NewEbitenDevice(sampleRate int) *EbitenDevice {
	return &EbitenDevice{sampleRate: sampleRate}
}

func (d *EbitenDevice) Start(r *dac.Ring) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		d.player.Play()
		return nil
	}
	ctx, err := sharedAudioContext(d.sampleRate)
	if err != nil {
		return err
	}
	pl, err := ctx.NewPlayerF32(NewStreamReader(r))
	if err != nil {
		return errors.Wrap(err, "create ebiten player")
	}
	d.player = pl
	pl.Play()
	return nil
}

func (d *EbitenDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		d.player.Pause()
	}
	return nil
}

func (d *EbitenDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return nil
	}
	d.player.Pause()
	err := d.player.Close()
	d.player = nil
	return err
}
