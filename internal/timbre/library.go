package timbre

import (
	"github.com/cbegin/midisynth-go/internal/envelope"
	"github.com/cbegin/midisynth-go/internal/osc"
	"github.com/cbegin/midisynth-go/internal/wavetable"
)

// ProgramCount is the number of programs in a bank.
const ProgramCount = 128

// Library maps (bank, program) pairs to timbres and drum kit programs to
// percussion timbres. Bank 0 is the fallback for unknown banks and must
// always be complete.
type Library struct {
	banks map[uint16]*[ProgramCount]Timbre
	kits  map[uint8]Timbre
	kit   Timbre
}

// NewLibrary returns a library whose default bank holds def in every slot
// and whose default kit is kit.
func NewLibrary(def Timbre, kit Timbre) *Library {
	l := &Library{
		banks: map[uint16]*[ProgramCount]Timbre{},
		kits:  map[uint8]Timbre{},
		kit:   kit,
	}
	var b [ProgramCount]Timbre
	for i := range b {
		b[i] = def
	}
	l.banks[0] = &b
	return l
}

// Program returns the timbre for a program, falling back to bank 0.
func (l *Library) Program(bank uint16, program uint8) Timbre {
	program &= 0x7F
	if b, ok := l.banks[bank]; ok {
		return b[program]
	}
	return l.banks[0][program]
}

// SetProgram installs t. A new bank starts as a copy of bank 0.
func (l *Library) SetProgram(bank uint16, program uint8, t Timbre) {
	b, ok := l.banks[bank]
	if !ok {
		cp := *l.banks[0]
		b = &cp
		l.banks[bank] = b
	}
	b[program&0x7F] = t
}

// Kit returns the drum kit selected by program on a percussion channel.
func (l *Library) Kit(program uint8) Timbre {
	if k, ok := l.kits[program&0x7F]; ok {
		return k
	}
	return l.kit
}

// SetKit installs a drum kit for program; program 0 also becomes the default.
func (l *Library) SetKit(program uint8, t Timbre) {
	l.kits[program&0x7F] = t
	if program == 0 {
		l.kit = t
	}
}

type family struct {
	name      string
	kind      Kind
	wave      uint16
	shape     osc.Shape
	attackMs  uint32
	decayMs   uint32
	sustain   uint8
	releaseMs uint32
	chorus    uint8
}

// One entry per group of eight GM programs.
var gmFamilies = [16]family{
	{name: "Piano", kind: KindWavetable, wave: wavetable.Triangle, attackMs: 2, decayMs: 700, sustain: 24, releaseMs: 250},
	{name: "Chromatic Percussion", kind: KindShape, shape: osc.ShapeSine, attackMs: 1, decayMs: 450, sustain: 0, releaseMs: 300},
	{name: "Organ", kind: KindWavetable, wave: wavetable.Square, attackMs: 6, decayMs: 20, sustain: 150, releaseMs: 40},
	{name: "Guitar", kind: KindWavetable, wave: wavetable.Sawtooth, attackMs: 2, decayMs: 900, sustain: 16, releaseMs: 160},
	{name: "Bass", kind: KindShape, shape: osc.ShapeTriangle, attackMs: 3, decayMs: 300, sustain: 100, releaseMs: 80},
	{name: "Strings", kind: KindWavetable, wave: wavetable.Sawtooth, attackMs: 80, decayMs: 200, sustain: 130, releaseMs: 300},
	{name: "Ensemble", kind: KindWavetable, wave: wavetable.Sawtooth, attackMs: 120, decayMs: 100, sustain: 140, releaseMs: 400, chorus: 2},
	{name: "Brass", kind: KindWavetable, wave: wavetable.Square, attackMs: 30, decayMs: 100, sustain: 140, releaseMs: 120},
	{name: "Reed", kind: KindShape, shape: osc.ShapeSquare, attackMs: 20, decayMs: 60, sustain: 140, releaseMs: 100},
	{name: "Pipe", kind: KindWavetable, wave: wavetable.Sine, attackMs: 40, decayMs: 50, sustain: 160, releaseMs: 120},
	{name: "Synth Lead", kind: KindShape, shape: osc.ShapeSawtooth, attackMs: 5, decayMs: 100, sustain: 150, releaseMs: 80},
	{name: "Synth Pad", kind: KindWavetable, wave: wavetable.Triangle, attackMs: 300, decayMs: 200, sustain: 140, releaseMs: 600, chorus: 2},
	{name: "Synth Effects", kind: KindShape, shape: osc.ShapeSine, attackMs: 100, decayMs: 500, sustain: 90, releaseMs: 500},
	{name: "Ethnic", kind: KindShape, shape: osc.ShapeTriangle, attackMs: 2, decayMs: 500, sustain: 40, releaseMs: 200},
	{name: "Percussive", kind: KindShape, shape: osc.ShapeSine, attackMs: 1, decayMs: 200, sustain: 0, releaseMs: 100},
	{name: "Sound Effects", kind: KindShape, shape: osc.ShapeNoise, attackMs: 10, decayMs: 300, sustain: 60, releaseMs: 200},
}

func msToSamples(ms uint32, sampleRate int) uint32 {
	return uint32(uint64(ms) * uint64(sampleRate) / 1000)
}

func (f family) timbre(sampleRate int, bank *wavetable.Bank) Timbre {
	env := envelope.Envelope{
		AttackTime: msToSamples(f.attackMs, sampleRate),
		// Harder hits reach the peak sooner.
		AttackTimeVel:  envelope.CoefFromFloat(-float64(msToSamples(f.attackMs, sampleRate)) / 254),
		DecayTime:      msToSamples(f.decayMs, sampleRate),
		ReleaseTime:    msToSamples(f.releaseMs, sampleRate),
		ReleaseTimeVel: envelope.CoefFromFloat(float64(msToSamples(f.releaseMs, sampleRate)) / 508),
		SustainVol:     f.sustain,
	}
	if f.sustain > 0 {
		env.SustainVolVel = envelope.CoefFromFloat(0.75)
	}
	var t Timbre
	switch f.kind {
	case KindWavetable:
		t = NewWavetable(f.name, f.wave, bank.Sample, env)
	default:
		t = NewShape(f.name, f.shape, env)
	}
	t.Effects.Chorus = f.chorus
	return t
}

// NewGMLibrary builds the General MIDI program table: every group of eight
// programs shares one family timbre. drums becomes the default kit.
func NewGMLibrary(sampleRate int, bank *wavetable.Bank, drums Percussion) *Library {
	if bank == nil {
		bank = wavetable.Default()
	}
	// the kit level tracks the attack peak, 2*velocity+1
	kit := NewPercussion("Standard Kit", drums, envelope.Envelope{
		SustainVol:    1,
		SustainVolVel: envelope.CoefFromFloat(2),
		ReleaseTime:   msToSamples(30, sampleRate),
	})
	l := NewLibrary(gmFamilies[0].timbre(sampleRate, bank), kit)
	b := l.banks[0]
	for i := range b {
		b[i] = gmFamilies[i/8].timbre(sampleRate, bank)
	}
	return l
}
