// Package dac moves rendered audio from the synthesis loop to an output
// device. The device side only ever signals "descriptor played" into a
// bounded queue; all rendering happens in Poll on the caller's goroutine.
package dac

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

const (
	DefaultBufferSize  = 2048
	DefaultDescriptors = 4
)

// FillFunc renders exactly len(dst) biased 8-bit samples.
type FillFunc func(dst []byte)

// Device plays descriptors from a ring. Start begins pulling and must call
// Ring.Read from its own goroutine or callback; Stop halts output; Close
// releases the hardware.
type Device interface {
	Start(r *Ring) error
	Stop() error
	Close() error
}

type Option func(*Pipeline)

// WithBufferSize sets the bytes per descriptor.
func WithBufferSize(n int) Option {
	return func(p *Pipeline) { p.size = n }
}

// WithDescriptors sets the descriptor count, which is also the capacity of
// the completion queue.
func WithDescriptors(n int) Option {
	return func(p *Pipeline) { p.descriptors = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline connects a fill callback to a device.
type Pipeline struct {
	dev         Device
	fill        FillFunc
	ring        *Ring
	queue       chan int
	scratch     []byte
	size        int
	descriptors int
	logger      *slog.Logger

	dropped  atomic.Uint64
	reported uint64

	mu      sync.Mutex
	running bool
	closed  bool
}

// New builds a pipeline. Invalid sizes are configuration errors.
func New(dev Device, fill FillFunc, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		dev:         dev,
		fill:        fill,
		size:        DefaultBufferSize,
		descriptors: DefaultDescriptors,
	}
	for _, opt := range opts {
		opt(p)
	}
	if dev == nil {
		return nil, errors.New("dac: nil device")
	}
	if fill == nil {
		return nil, errors.New("dac: nil fill callback")
	}
	if p.size <= 0 {
		return nil, errors.Errorf("dac: buffer size %d must be positive", p.size)
	}
	if p.descriptors < 2 {
		return nil, errors.Errorf("dac: need at least 2 descriptors, got %d", p.descriptors)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.queue = make(chan int, p.descriptors)
	p.scratch = make([]byte, p.size)
	p.ring = NewRing(p.descriptors, p.size, p.Notify)
	return p, nil
}

// Ring returns the descriptor ring the device reads.
func (p *Pipeline) Ring() *Ring { return p.ring }

// Notify records that descriptor desc finished playing. It runs in device
// context and never blocks: when the queue is full the oldest notification
// is dropped. The queue holds one slot per descriptor, so a drop needs a
// device that notifies out of turn; the ring then recycles the descriptor
// whose notification was lost and playback glitches instead of stalling.
func (p *Pipeline) Notify(desc int) {
	for {
		select {
		case p.queue <- desc:
			return
		default:
		}
		select {
		case <-p.queue:
			p.dropped.Add(1)
		default:
		}
	}
}

// Dropped returns how many notifications were discarded.
func (p *Pipeline) Dropped() uint64 { return p.dropped.Load() }

// Pending returns the number of queued notifications.
func (p *Pipeline) Pending() int { return len(p.queue) }

// Poll handles at most one notification: it renders the next chunk and
// loads it into the freed descriptor. It reports whether it did any work.
func (p *Pipeline) Poll() bool {
	select {
	case desc := <-p.queue:
		p.refill(desc)
		return true
	default:
		return false
	}
}

// Run polls until ctx is done. Functions received on control run on the
// polling goroutine between refills, so they may touch whatever the fill
// callback touches. control may be nil.
func (p *Pipeline) Run(ctx context.Context, control <-chan func()) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case desc := <-p.queue:
			p.refill(desc)
		case fn := <-control:
			fn()
		}
	}
}

func (p *Pipeline) refill(desc int) {
	p.fill(p.scratch)
	p.ring.Load(desc, p.scratch)
	if d := p.dropped.Load(); d != p.reported {
		p.logger.Debug("dac notifications dropped", "total", d, "new", d-p.reported)
		p.reported = d
	}
}

// Start primes every descriptor and starts the device. Starting a running
// pipeline does nothing.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("dac: pipeline closed")
	}
	if p.running {
		return nil
	}
	p.ring.reset()
	for len(p.queue) > 0 {
		<-p.queue
	}
	for i := 0; i < p.ring.Len(); i++ {
		p.fill(p.scratch)
		p.ring.Load(i, p.scratch)
	}
	if err := p.dev.Start(p.ring); err != nil {
		return errors.Wrap(err, "dac: start device")
	}
	p.running = true
	p.logger.Info("dac started", "descriptors", p.ring.Len(), "buffer", p.size)
	return nil
}

// Stop disables output. It is safe to call repeatedly.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop()
}

func (p *Pipeline) stop() error {
	if !p.running {
		return nil
	}
	p.running = false
	if err := p.dev.Stop(); err != nil {
		return errors.Wrap(err, "dac: stop device")
	}
	p.logger.Info("dac stopped", "dropped", p.dropped.Load(), "underruns", p.ring.Underruns())
	return nil
}

// Close stops output and releases the device. It is safe to call
// repeatedly.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	stopErr := p.stop()
	if err := p.dev.Close(); err != nil {
		return errors.Wrap(err, "dac: close device")
	}
	return stopErr
}
