// Package sequencer turns a tick-stamped MIDI event stream into calls on a
// synthesis engine, one output sample at a time.
package sequencer

import (
	"github.com/cbegin/midisynth-go/internal/midi"
	"github.com/cbegin/midisynth-go/internal/midifile"
)

// Engine receives dispatched events and renders samples. *synth.Synth
// implements it.
type Engine interface {
	NoteOn(channel, note, velocity uint8)
	NoteOff(channel, note, velocity uint8)
	AfterTouch(channel, note, pressure uint8)
	ChannelPressure(channel, pressure uint8)
	ControlChange(channel uint8, ctl midi.Control, value uint8)
	ProgramChange(channel, program uint8)
	PitchWheel(channel uint8, value uint16)
	GMOn()
	GMOff()
	// Reset silences every voice and keeps channel programs.
	Reset()
	// Step renders one output sample.
	Step() int32
}

// StreamFunc returns the next live event, or false when none is waiting. It
// must not block.
type StreamFunc func() (midi.Event, bool)

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackEnded
)

func (k EventKind) String() string {
	if k == EventPlaybackEnded {
		return "playback-ended"
	}
	return "loop-completed"
}

// Mode is the event source in use.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeFile
	ModeStream
)

// DefaultDivision is assumed when a source reports zero ticks per quarter.
const DefaultDivision = 96

// maxStreamEvents bounds how many live events one sample may dispatch.
const maxStreamEvents = 32

type Options struct {
	Loop    bool
	OnEvent func(EventKind)
	// OnText receives text meta events (text, lyric, marker, ...).
	OnText func(midi.Event)
}

// Sequencer is a plain value; copying it snapshots the playback position.
// It holds no engine: the engine is passed to every call that dispatches.
type Sequencer struct {
	sampleRate int
	mode       Mode
	reader     midifile.Reader
	stream     StreamFunc

	pending    midi.Event
	pendingDue uint64
	hasPending bool

	tempo        uint32
	tickAnchor   uint32
	sampleAnchor uint64
	sampleCount  uint64

	paused   bool
	loop     bool
	finished bool

	onEvent func(EventKind)
	onText  func(midi.Event)
}

func New(sampleRate int) *Sequencer {
	return NewWithOptions(sampleRate, Options{})
}

func NewWithOptions(sampleRate int, opts Options) *Sequencer {
	return &Sequencer{
		sampleRate: sampleRate,
		tempo:      midi.DefaultTempo,
		loop:       opts.Loop,
		onEvent:    opts.OnEvent,
		onText:     opts.OnText,
	}
}

// SetFile starts playing r from its current position.
func (s *Sequencer) SetFile(r midifile.Reader) {
	s.mode = ModeFile
	s.reader = r
	s.stream = nil
	s.restart()
}

// SetStream switches to live events from fn.
func (s *Sequencer) SetStream(fn StreamFunc) {
	s.mode = ModeStream
	s.stream = fn
	s.reader = midifile.Reader{}
	s.restart()
}

// Stop detaches the source.
func (s *Sequencer) Stop() {
	s.mode = ModeIdle
	s.reader = midifile.Reader{}
	s.stream = nil
	s.restart()
}

// Rewind returns a file source to its first event.
func (s *Sequencer) Rewind() {
	s.reader.Rewind()
	s.restart()
}

func (s *Sequencer) restart() {
	s.hasPending = false
	s.tempo = midi.DefaultTempo
	s.tickAnchor = 0
	s.sampleAnchor = 0
	s.sampleCount = 0
	s.finished = false
}

func (s *Sequencer) Mode() Mode          { return s.mode }
func (s *Sequencer) Tempo() uint32       { return s.tempo }
func (s *Sequencer) SampleCount() uint64 { return s.sampleCount }
func (s *Sequencer) Finished() bool      { return s.finished }
func (s *Sequencer) Paused() bool        { return s.paused }
func (s *Sequencer) SetPaused(p bool)    { s.paused = p }
func (s *Sequencer) Loop() bool          { return s.loop }
func (s *Sequencer) SetLoop(loop bool)   { s.loop = loop }

// SetCallbacks replaces the lifecycle and text callbacks.
func (s *Sequencer) SetCallbacks(onEvent func(EventKind), onText func(midi.Event)) {
	s.onEvent = onEvent
	s.onText = onText
}

func (s *Sequencer) division() uint16 {
	if d := s.reader.Division(); d != 0 {
		return d
	}
	return DefaultDivision
}

// Tick returns the song position in ticks.
func (s *Sequencer) Tick() uint32 {
	return s.tickAnchor + SamplesToTicks(s.sampleCount-s.sampleAnchor, s.tempo, s.division(), s.sampleRate)
}

// due returns the sample at which tick falls under the current tempo.
func (s *Sequencer) due(tick uint32) uint64 {
	if tick <= s.tickAnchor {
		return s.sampleAnchor
	}
	return s.sampleAnchor + TicksToSamples(tick-s.tickAnchor, s.tempo, s.division(), s.sampleRate)
}

// SetTempo changes the tempo from the current position on.
func (s *Sequencer) SetTempo(tempo uint32) {
	if tempo == 0 {
		return
	}
	s.tickAnchor = s.Tick()
	s.sampleAnchor = s.sampleCount
	s.tempo = tempo
	if s.hasPending {
		s.pendingDue = s.due(s.pending.Tick)
	}
}

func (s *Sequencer) pull() bool {
	ev, ok := s.reader.Next()
	if !ok {
		return false
	}
	s.pending = ev
	s.pendingDue = s.due(ev.Tick)
	s.hasPending = true
	return true
}

// Advance dispatches every event due at the current sample, renders one
// sample through e and moves the clock forward. A paused sequencer renders
// silence without advancing.
func (s *Sequencer) Advance(e Engine) int32 {
	if s.paused {
		return 0
	}
	switch s.mode {
	case ModeFile:
		s.drain(e)
	case ModeStream:
		for i := 0; i < maxStreamEvents; i++ {
			ev, ok := s.stream()
			if !ok {
				break
			}
			s.dispatch(e, ev)
		}
	}
	out := e.Step()
	s.sampleCount++
	return out
}

func (s *Sequencer) drain(e Engine) {
	looped := false
	for !s.finished {
		if !s.hasPending && !s.pull() {
			if looped {
				return
			}
			s.endOfSong(e)
			looped = true
			continue
		}
		if s.pendingDue > s.sampleCount {
			return
		}
		s.hasPending = false
		s.dispatch(e, s.pending)
	}
}

func (s *Sequencer) endOfSong(e Engine) {
	if s.loop {
		s.reader.Rewind()
		s.restart()
		e.Reset()
		s.emit(EventLoopCompleted)
		return
	}
	s.finished = true
	s.emit(EventPlaybackEnded)
}

func (s *Sequencer) emit(kind EventKind) {
	if s.onEvent != nil {
		s.onEvent(kind)
	}
}

// Dispatch applies one event to e immediately.
func (s *Sequencer) Dispatch(e Engine, ev midi.Event) {
	s.dispatch(e, ev)
}

func (s *Sequencer) dispatch(e Engine, ev midi.Event) {
	switch ev.Type {
	case midi.NoteOn:
		e.NoteOn(ev.Channel, ev.Data1, ev.Data2)
	case midi.NoteOff:
		e.NoteOff(ev.Channel, ev.Data1, ev.Data2)
	case midi.AfterTouch:
		e.AfterTouch(ev.Channel, ev.Data1, ev.Data2)
	case midi.ChannelPressure:
		e.ChannelPressure(ev.Channel, ev.Data1)
	case midi.ControlChange:
		e.ControlChange(ev.Channel, midi.Control(ev.Data1), ev.Data2)
	case midi.ProgramChange:
		e.ProgramChange(ev.Channel, ev.Data1)
	case midi.PitchBend:
		e.PitchWheel(ev.Channel, ev.Bend)
	case midi.SysEx:
		switch {
		case midi.IsGMOn(ev.Data):
			e.GMOn()
		case midi.IsGMOff(ev.Data):
			e.GMOff()
		}
	case midi.Meta:
		switch {
		case ev.Meta == midi.MetaTempo:
			s.changeTempo(ev)
		case ev.Meta.IsText():
			if s.onText != nil {
				s.onText(ev)
			}
		}
	}
}

// changeTempo re-anchors the clock at a file tempo event.
func (s *Sequencer) changeTempo(ev midi.Event) {
	if ev.Tempo == 0 {
		return
	}
	if s.mode == ModeFile {
		s.sampleAnchor = s.due(ev.Tick)
		s.tickAnchor = ev.Tick
		s.tempo = ev.Tempo
		return
	}
	s.SetTempo(ev.Tempo)
}

// Seek moves a file source to tick. Events before the target are replayed
// into e without sound: note-ons are skipped and every voice is silenced.
// Seeking backward rewinds and replays from the beginning.
func (s *Sequencer) Seek(e Engine, tick uint32) {
	if s.mode != ModeFile {
		return
	}
	if tick < s.Tick() || s.finished {
		s.reader.Rewind()
		s.restart()
	}
	e.Reset()
	for {
		if !s.hasPending && !s.pull() {
			break
		}
		if s.pending.Tick >= tick {
			break
		}
		s.hasPending = false
		switch s.pending.Type {
		case midi.NoteOn, midi.NoteOff, midi.AfterTouch:
			continue
		}
		s.dispatch(e, s.pending)
	}
	s.sampleCount = s.due(tick)
	s.sampleAnchor = s.sampleCount
	s.tickAnchor = tick
	if s.hasPending {
		s.pendingDue = s.due(s.pending.Tick)
	}
}
