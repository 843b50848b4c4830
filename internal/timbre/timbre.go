// Package timbre describes how a voice turns a note into samples: the sample
// source, its envelope and flags.
package timbre

import (
	"github.com/cbegin/midisynth-go/internal/envelope"
	"github.com/cbegin/midisynth-go/internal/midi"
	"github.com/cbegin/midisynth-go/internal/osc"
	"github.com/cbegin/midisynth-go/internal/wavetable"
)

// Kind discriminates the sample source of a Timbre.
type Kind uint8

const (
	KindWavetable Kind = iota
	KindSample
	KindShape
	KindPercussion
)

func (k Kind) String() string {
	switch k {
	case KindWavetable:
		return "wavetable"
	case KindSample:
		return "sample"
	case KindShape:
		return "shape"
	case KindPercussion:
		return "percussion"
	}
	return "unknown"
}

// Flags modify how notes of a timbre are allocated.
type Flags uint8

const (
	// FlagPercussion marks a drum kit; notes are drum keys.
	FlagPercussion Flags = 1 << iota
	// FlagMono allows a single sounding note per channel.
	FlagMono
)

// Effects carries per-timbre effect settings.
type Effects struct {
	// Chorus is the requested number of detuned oscillators per voice. It is
	// capped by the oscillators a voice owns.
	Chorus uint8
}

// Wavetable reads a shared single-cycle table.
type Wavetable struct {
	Index uint16
	Func  wavetable.WaveFunc
}

// Sample plays a fixed PCM buffer resampled to the note's pitch.
type Sample struct {
	Data []int8
	// Rate is the recording rate in Hz.
	Rate uint32
	// BaseNote is the recorded pitch as a note number in 8.24 fixed point.
	BaseNote uint32
	// Loop is the number of passes; 0 loops forever.
	Loop uint32
}

// Percussion synthesizes drum sounds. Sample is called once per output
// sample with the drum key, the number of samples since the note started and
// a scratch area owned by the voice; it returns the sample and whether the
// sound has finished.
type Percussion interface {
	Sample(drum midi.Percussion, idx uint32, scratch *[4]uint32) (int8, bool)
}

// PercussionFunc adapts a function to the Percussion interface.
type PercussionFunc func(drum midi.Percussion, idx uint32, scratch *[4]uint32) (int8, bool)

func (f PercussionFunc) Sample(drum midi.Percussion, idx uint32, scratch *[4]uint32) (int8, bool) {
	return f(drum, idx, scratch)
}

// Timbre is a tagged union over the sample sources; only the field matching
// Kind is meaningful. Timbres are plain values: copying one shares its
// read-only payload (PCM data, tables, generator).
type Timbre struct {
	Name     string
	Kind     Kind
	Flags    Flags
	Envelope envelope.Envelope
	Effects  Effects

	Wave  Wavetable
	PCM   Sample
	Shape osc.Shape
	Drums Percussion
}

// IsPercussion reports whether the timbre is a drum kit.
func (t *Timbre) IsPercussion() bool {
	return t.Flags&FlagPercussion != 0
}

// IsMono reports whether the timbre is monophonic.
func (t *Timbre) IsMono() bool {
	return t.Flags&FlagMono != 0
}

// NewWavetable returns a timbre reading wave index through fn.
func NewWavetable(name string, index uint16, fn wavetable.WaveFunc, env envelope.Envelope) Timbre {
	return Timbre{Name: name, Kind: KindWavetable, Envelope: env, Wave: Wavetable{Index: index, Func: fn}}
}

// NewShape returns a timbre computing shape from the oscillator phase.
func NewShape(name string, shape osc.Shape, env envelope.Envelope) Timbre {
	return Timbre{Name: name, Kind: KindShape, Envelope: env, Shape: shape}
}

// NewSample returns a PCM timbre.
func NewSample(name string, pcm Sample, env envelope.Envelope) Timbre {
	return Timbre{Name: name, Kind: KindSample, Envelope: env, PCM: pcm}
}

// NewPercussion returns a drum kit driven by drums.
func NewPercussion(name string, drums Percussion, env envelope.Envelope) Timbre {
	return Timbre{Name: name, Kind: KindPercussion, Flags: FlagPercussion, Envelope: env, Drums: drums}
}
