// Package stream feeds live MIDI input into the sequencer. Messages arrive
// on the driver's goroutine and wait in a bounded queue until the audio
// loop drains them.
package stream

import (
	"log/slog"
	"sync"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/pkg/errors"

	"github.com/cbegin/midisynth-go/internal/midi"
)

const DefaultQueueSize = 256

// Queue buffers decoded live events. Push never blocks; when the queue is
// full the newest event is dropped so note-offs already queued still land.
type Queue struct {
	ch      chan midi.Event
	dropped atomic.Uint64
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan midi.Event, size)}
}

// Push decodes msg and queues it. It reports false when the message was
// dropped or is not a channel or system exclusive message.
func (q *Queue) Push(msg gomidi.Message) bool {
	e, ok := midi.Decode(msg.Bytes())
	if !ok {
		return false
	}
	return q.PushEvent(e)
}

func (q *Queue) PushEvent(e midi.Event) bool {
	select {
	case q.ch <- e:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Next returns the oldest waiting event. It matches sequencer.StreamFunc.
func (q *Queue) Next() (midi.Event, bool) {
	select {
	case e := <-q.ch:
		return e, true
	default:
		return midi.Event{}, false
	}
}

func (q *Queue) Len() int        { return len(q.ch) }
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Ports lists the input port names of the registered driver.
func Ports() ([]string, error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, errors.Wrap(err, "list midi inputs")
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}

// Input is an open port listening into a Queue.
type Input struct {
	*Queue
	name   string
	port   drivers.In
	logger *slog.Logger

	mu   sync.Mutex
	stop func()
}

// Open starts listening on the named port. An empty name picks the only
// port when exactly one exists.
func Open(name string, queueSize int, logger *slog.Logger) (*Input, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ins, err := drivers.Ins()
	if err != nil {
		return nil, errors.Wrap(err, "list midi inputs")
	}
	var found drivers.In
	switch {
	case name == "" && len(ins) == 1:
		found = ins[0]
	case name == "":
		return nil, errors.Errorf("%d midi inputs available, choose one by name", len(ins))
	default:
		for _, in := range ins {
			if in.String() == name {
				found = in
				break
			}
		}
	}
	if found == nil {
		return nil, errors.Errorf("midi input %q not found", name)
	}
	if err := found.Open(); err != nil {
		return nil, errors.Wrapf(err, "open midi input %q", found.String())
	}
	in := &Input{Queue: NewQueue(queueSize), name: found.String(), port: found, logger: logger}
	stop, err := gomidi.ListenTo(found, func(msg gomidi.Message, _ int32) {
		if !in.Push(msg) {
			logger.Debug("midi input message ignored", "msg", msg.String())
		}
	}, gomidi.UseSysEx(), gomidi.HandleError(func(listenErr error) {
		logger.Warn("midi listener error", "device", in.name, "err", listenErr)
	}))
	if err != nil {
		_ = found.Close()
		return nil, errors.Wrapf(err, "listen on %q", in.name)
	}
	in.stop = stop
	logger.Info("midi input connected", "device", in.name)
	return in, nil
}

func (in *Input) Name() string { return in.name }

// Close stops listening and closes the port. It is safe to call repeatedly.
func (in *Input) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.stop == nil {
		return nil
	}
	in.stop()
	in.stop = nil
	in.logger.Info("midi input closed", "device", in.name, "dropped", in.Dropped())
	return errors.Wrap(in.port.Close(), "close midi input")
}
