// Package synth is the polyphonic voice engine: sixteen MIDI channels
// driving a fixed pool of melodic voices and a smaller pool of percussion
// voices. A Synth is a plain value; copying it snapshots every voice,
// envelope and controller.
package synth

import (
	"math/bits"

	"github.com/cbegin/midisynth-go/internal/envelope"
	"github.com/cbegin/midisynth-go/internal/midi"
	"github.com/cbegin/midisynth-go/internal/timbre"
)

const (
	MelodicVoices    = 24
	PercussionVoices = 8

	// ControlRate is the number of output samples between vibrato updates.
	ControlRate = 64

	// MaxVolume is the full-scale 14-bit global volume.
	MaxVolume = 0x3FFF

	// StealReleaseMs is the wind-down applied to a stolen voice.
	StealReleaseMs = 2
)

// PoolKind selects a voice pool.
type PoolKind uint8

const (
	PoolMelodic PoolKind = iota
	PoolPercussion
	poolCount
)

func (k PoolKind) String() string {
	if k == PoolPercussion {
		return "percussion"
	}
	return "melodic"
}

// Synth owns the channels and both voice pools.
type Synth struct {
	sampleRate int
	library    *timbre.Library
	volume     uint16

	channels   [midi.ChannelCount]Channel
	melodic    [MelodicVoices]Voice
	percussion [PercussionVoices]Voice
	states     [poolCount]VoiceStates
	groups     ExclusiveGroups

	allocSeq    uint32
	controlTick uint32
	stealTicks  uint32
	gm          bool
}

// New returns a synth in General MIDI mode.
func New(sampleRate int, library *timbre.Library) *Synth {
	s := &Synth{
		sampleRate: sampleRate,
		library:    library,
		volume:     MaxVolume,
		stealTicks: uint32(sampleRate * StealReleaseMs / 1000),
		gm:         true,
	}
	s.ResetAll()
	return s
}

// SampleRate returns the output rate the synth was built for.
func (s *Synth) SampleRate() int { return s.sampleRate }

// Library returns the program table.
func (s *Synth) Library() *timbre.Library { return s.library }

// SetVolume sets the 14-bit global volume.
func (s *Synth) SetVolume(v uint16) {
	if v > MaxVolume {
		v = MaxVolume
	}
	s.volume = v
}

// Volume returns the global volume.
func (s *Synth) Volume() uint16 { return s.volume }

// Reset silences every voice and clears pedals. Programs, banks and
// controllers are kept.
func (s *Synth) Reset() {
	s.melodic = [MelodicVoices]Voice{}
	s.percussion = [PercussionVoices]Voice{}
	s.states = [poolCount]VoiceStates{}
	s.groups = NewExclusiveGroups()
	s.controlTick = 0
	for i := range s.channels {
		ch := &s.channels[i]
		ch.voices = [poolCount]Bitset{}
		ch.hold = false
		ch.sustenuto = false
	}
}

// ResetAll silences every voice and restores every channel to its
// power-on state.
func (s *Synth) ResetAll() {
	s.Reset()
	for i := range s.channels {
		s.channels[i].reset(s.library, s.gm && i == midi.PercussionChannel, s.sampleRate)
	}
}

func (s *Synth) pool(k PoolKind) []Voice {
	if k == PoolPercussion {
		return s.percussion[:]
	}
	return s.melodic[:]
}

func (s *Synth) poolFor(ch *Channel) PoolKind {
	if ch.percussion {
		return PoolPercussion
	}
	return PoolMelodic
}

func (s *Synth) nextAge() uint32 {
	s.allocSeq++
	return s.allocSeq
}

// Step renders one output sample: the sum of every sounding voice scaled by
// its envelope, its channel and the global volume.
func (s *Synth) Step() int32 {
	if s.controlTick == 0 {
		s.updateVibrato()
	}
	s.controlTick++
	if s.controlTick == ControlRate {
		s.controlTick = 0
	}
	sum := s.stepPool(PoolMelodic) + s.stepPool(PoolPercussion)
	return int32(int64(sum) * int64(s.volume) >> 14)
}

func (s *Synth) stepPool(k PoolKind) int32 {
	voices := s.pool(k)
	st := &s.states[k]
	var sum int32
	for x := uint32(st.On); x != 0; x &= x - 1 {
		i := bits.TrailingZeros32(x)
		v := &voices[i]
		smp := int32(v.sample())
		sum += smp * int32(v.env.Volume()) * s.channels[v.channel].gain >> 14

		if v.halted && !v.pending.valid && v.env.Phase != envelope.PhaseRelease {
			if k == PoolPercussion {
				s.free(k, i)
				continue
			}
			v.env.Release(v.timbre.Envelope.ReleaseTicks(v.velocity))
		}
		if !v.env.Step(&v.timbre.Envelope, v.velocity) {
			if v.pending.valid {
				s.startPending(k, i)
			} else {
				s.free(k, i)
			}
		}
	}
	return sum
}

func (s *Synth) updateVibrato() {
	for c := range s.channels {
		ch := &s.channels[c]
		if !ch.vibrato.Active() {
			if ch.vibratoCents != 0 {
				ch.vibratoCents = 0
				s.retuneChannel(ch)
			}
			continue
		}
		ch.vibratoCents = ch.vibrato.Advance(ControlRate)
		s.retuneChannel(ch)
	}
}

func (s *Synth) retuneChannel(ch *Channel) {
	for k := PoolKind(0); k < poolCount; k++ {
		voices := s.pool(k)
		for x := uint32(ch.voices[k]); x != 0; x &= x - 1 {
			v := &voices[bits.TrailingZeros32(x)]
			v.retune(ch.pitchCents(v.key), s.sampleRate)
		}
	}
}

// PoolState returns the allocation and phase masks of a pool.
func (s *Synth) PoolState(k PoolKind) PoolState {
	ps := PoolState{VoiceStates: s.states[k]}
	voices := s.pool(k)
	for i := range voices {
		switch voices[i].env.Phase {
		case envelope.PhaseAttack:
			ps.Attack.Set(i)
		case envelope.PhaseDecay:
			ps.Decay.Set(i)
		case envelope.PhaseSustain:
			ps.Sustain.Set(i)
		case envelope.PhaseRelease:
			ps.Release.Set(i)
		}
	}
	return ps
}

// Voice returns a copy of voice i of pool k.
func (s *Synth) Voice(k PoolKind, i int) Voice {
	return s.pool(k)[i]
}

// Active returns the number of allocated voices in both pools.
func (s *Synth) Active() int {
	return s.states[PoolMelodic].On.Count() + s.states[PoolPercussion].On.Count()
}

// ChannelState returns an inspection snapshot of channel c.
func (s *Synth) ChannelState(c uint8) ChannelState {
	return s.channels[c&0x0F].state()
}

// SetIgnore makes channel c drop every event while on.
func (s *Synth) SetIgnore(c uint8, ignore bool) {
	s.channels[c&0x0F].ignore = ignore
}

// SetPercussion moves channel c between the melodic and percussion pools.
// Voices of the channel are silenced.
func (s *Synth) SetPercussion(c uint8, percussion bool) {
	c &= 0x0F
	ch := &s.channels[c]
	if ch.percussion == percussion {
		return
	}
	s.AllSoundOff(c)
	ch.percussion = percussion
	ch.selectProgram(s.library, ch.program)
}
