package synth

import (
	"github.com/cbegin/midisynth-go/internal/envelope"
	"github.com/cbegin/midisynth-go/internal/midi"
	"github.com/cbegin/midisynth-go/internal/osc"
	"github.com/cbegin/midisynth-go/internal/timbre"
)

// OscPerVoice is the number of oscillators each voice owns.
const OscPerVoice = 1

// chorusDetune is the pitch spread between chorus oscillators, in cents.
const chorusDetune = 7

type pendingNote struct {
	valid    bool
	velocity uint8
}

// Voice is one sounding note. It is free when its envelope is off, and
// otherwise bound to exactly one (channel, note) pair.
type Voice struct {
	env      envelope.State
	timbre   timbre.Timbre
	osc      [OscPerVoice]osc.Oscillator
	channel  uint8
	note     uint8
	velocity uint8
	// key is the note the generators are playing. It differs from note only
	// while a steal wind-down is in progress.
	key uint8

	// sampleTick counts output samples since the note started.
	sampleTick uint32
	// scratch belongs to the percussion generator, or holds the fractional
	// step (0) and remaining loops (1) of sample playback.
	scratch    [4]uint32
	pos        uint32
	sampleStep uint32 // 16.16
	halted     bool

	age uint32
	// pending is the note that takes over once a steal wind-down reaches
	// silence. channel and note already name it.
	pending pendingNote
}

// Channel returns the channel the voice is bound to.
func (v Voice) Channel() uint8 { return v.channel }

// Note returns the bound note.
func (v Voice) Note() uint8 { return v.note }

// Velocity returns the current velocity.
func (v Voice) Velocity() uint8 { return v.velocity }

// Phase returns the envelope phase.
func (v Voice) Phase() envelope.Phase { return v.env.Phase }

// Volume returns the current envelope level.
func (v Voice) Volume() uint8 { return v.env.Volume() }

func (v *Voice) oscillators() int {
	n := int(v.timbre.Effects.Chorus)
	if n < 1 {
		n = 1
	}
	if n > OscPerVoice {
		n = OscPerVoice
	}
	return n
}

// start binds the voice to a new note and resets its generators.
func (v *Voice) start(t *timbre.Timbre, channel, note, velocity uint8, age uint32) {
	v.timbre = *t
	v.channel = channel
	v.note = note
	v.key = note
	v.velocity = velocity
	v.sampleTick = 0
	v.scratch = [4]uint32{}
	v.pos = 0
	v.halted = false
	v.pending = pendingNote{}
	v.age = age
	for i := range v.osc {
		v.osc[i].Reset()
	}
	if v.timbre.Kind == timbre.KindSample {
		v.scratch[1] = v.timbre.PCM.Loop
	}
}

// retune recomputes the phase steps for a pitch in cents.
func (v *Voice) retune(cents int32, sampleRate int) {
	switch v.timbre.Kind {
	case timbre.KindSample:
		pcm := &v.timbre.PCM
		v.sampleStep = osc.SampleStep(cents, pcm.BaseNote, pcm.Rate, sampleRate)
	case timbre.KindWavetable, timbre.KindShape:
		for i := 0; i < v.oscillators(); i++ {
			v.osc[i].Step = osc.NoteStep(cents+int32(i)*chorusDetune, sampleRate)
		}
	}
}

// sample produces the next raw sample of the voice's generator.
func (v *Voice) sample() int8 {
	s := v.generate()
	v.sampleTick++
	return s
}

func (v *Voice) generate() int8 {
	switch v.timbre.Kind {
	case timbre.KindWavetable:
		fn := v.timbre.Wave.Func
		if fn == nil {
			return 0
		}
		n := v.oscillators()
		var sum int32
		for i := 0; i < n; i++ {
			sum += int32(fn(v.timbre.Wave.Index, v.osc[i].Phase()))
			v.osc[i].Advance()
		}
		return int8(sum / int32(n))
	case timbre.KindShape:
		n := v.oscillators()
		var sum int32
		for i := 0; i < n; i++ {
			sum += int32(v.osc[i].Sample(v.timbre.Shape))
			v.osc[i].Advance()
		}
		return int8(sum / int32(n))
	case timbre.KindSample:
		return v.samplePCM()
	case timbre.KindPercussion:
		if v.timbre.Drums == nil || v.halted {
			v.halted = true
			return 0
		}
		s, done := v.timbre.Drums.Sample(midi.Percussion(v.key), v.sampleTick, &v.scratch)
		if done {
			v.halted = true
		}
		return s
	}
	return 0
}

func (v *Voice) samplePCM() int8 {
	pcm := &v.timbre.PCM
	n := uint32(len(pcm.Data))
	if n == 0 || v.halted {
		v.halted = true
		return 0
	}
	s := pcm.Data[v.pos]
	frac := v.scratch[0] + v.sampleStep&0xFFFF
	v.pos += v.sampleStep>>16 + frac>>16
	v.scratch[0] = frac & 0xFFFF
	for v.pos >= n {
		v.pos -= n
		if pcm.Loop == 0 {
			continue
		}
		v.scratch[1]--
		if v.scratch[1] == 0 {
			v.halted = true
			v.pos = 0
			break
		}
	}
	return s
}
