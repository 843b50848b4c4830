package dac

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// WriterDevice pulls the ring from its own goroutine and writes the bytes to
// w. With a non-zero sample rate it paces itself to real time; otherwise it
// runs as fast as w accepts data. A nil writer discards output.
type WriterDevice struct {
	w          io.Writer
	sampleRate int
	chunk      int

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
	err  error
}

func NewWriterDevice(w io.Writer, sampleRate, chunk int) *WriterDevice {
	if w == nil {
		w = io.Discard
	}
	if chunk <= 0 {
		chunk = 256
	}
	return &WriterDevice{w: w, sampleRate: sampleRate, chunk: chunk}
}

func (d *WriterDevice) Start(r *Ring) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return nil
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.loop(r, d.stop, d.done)
	return nil
}

func (d *WriterDevice) loop(r *Ring, stop, done chan struct{}) {
	defer close(done)
	buf := make([]byte, d.chunk)
	var tick *time.Ticker
	if d.sampleRate > 0 {
		period := time.Duration(d.chunk) * time.Second / time.Duration(d.sampleRate)
		tick = time.NewTicker(period)
		defer tick.Stop()
	}
	for {
		if tick != nil {
			select {
			case <-stop:
				return
			case <-tick.C:
			}
		} else {
			select {
			case <-stop:
				return
			default:
			}
		}
		r.Read(buf)
		if _, err := d.w.Write(buf); err != nil {
			d.mu.Lock()
			d.err = errors.Wrap(err, "dac: write output")
			d.mu.Unlock()
			return
		}
	}
}

func (d *WriterDevice) Stop() error {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return d.Err()
}

func (d *WriterDevice) Close() error { return d.Stop() }

// Err returns the first write error, if any.
func (d *WriterDevice) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// ManualDevice never pulls on its own; callers drive it with Pull. It backs
// offline rendering and tests.
type ManualDevice struct {
	mu      sync.Mutex
	ring    *Ring
	started bool
	Starts  int
	Stops   int
	Closes  int
}

func (d *ManualDevice) Start(r *Ring) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ring = r
	d.started = true
	d.Starts++
	return nil
}

func (d *ManualDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	d.Stops++
	return nil
}

func (d *ManualDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closes++
	return nil
}

// Pull reads len(p) bytes as the hardware would. A stopped device returns
// silence.
func (d *ManualDevice) Pull(p []byte) {
	d.mu.Lock()
	r, started := d.ring, d.started
	d.mu.Unlock()
	if !started || r == nil {
		for i := range p {
			p[i] = Silence
		}
		return
	}
	r.Read(p)
}
