package audio

import (
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"

	"github.com/cbegin/midisynth-go/internal/dac"
)

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
	otoRate int
)

func sharedOtoContext(sampleRate, bufferBytes int) (*oto.Context, error) {
	otoOnce.Do(func() {
		otoRate = sampleRate
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatUnsignedInt8,
			BufferSize:   bufferDuration(bufferBytes, sampleRate),
		})
		if otoErr == nil {
			<-ready
		}
	})
	if otoErr != nil {
		return nil, errors.Wrap(otoErr, "create oto context")
	}
	if otoRate != sampleRate {
		return nil, errors.Errorf("oto context already initialized at %d Hz (requested %d Hz)", otoRate, sampleRate)
	}
	return otoCtx, nil
}

// ringReader adapts the ring to io.Reader. The ring never blocks and never
// ends.
type ringReader struct{ ring *dac.Ring }

func (r ringReader) Read(p []byte) (int, error) { return r.ring.Read(p), nil }

// OtoDevice plays unsigned 8-bit mono directly through oto.
type OtoDevice struct {
	sampleRate  int
	bufferBytes int

	mu     sync.Mutex
	player *oto.Player
}

func NewOtoDevice(sampleRate, bufferBytes int) *OtoDevice {
	return &OtoDevice{sampleRate: sampleRate, bufferBytes: bufferBytes}
}

func (d *OtoDevice) Start(r *dac.Ring) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		d.player.Play()
		return nil
	}
	ctx, err := sharedOtoContext(d.sampleRate, d.bufferBytes)
	if err != nil {
		return err
	}
	d.player = ctx.NewPlayer(ringReader{r})
	d.player.Play()
	return nil
}

func (d *OtoDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		d.player.Pause()
	}
	return nil
}

func (d *OtoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return nil
	}
	err := d.player.Close()
	d.player = nil
	return errors.Wrap(err, "close oto player")
}
