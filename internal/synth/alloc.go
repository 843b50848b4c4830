package synth

import (
	"math/bits"

	"github.com/cbegin/midisynth-go/internal/envelope"
	"github.com/cbegin/midisynth-go/internal/midi"
)

// NoteOn starts note on channel. Velocity 0 is a note-off.
func (s *Synth) NoteOn(channel, note, velocity uint8) {
	if channel >= midi.ChannelCount {
		return
	}
	note &= 0x7F
	velocity &= 0x7F
	if velocity == 0 {
		s.NoteOff(channel, note, 0)
		return
	}
	ch := &s.channels[channel]
	if ch.ignore {
		return
	}
	k := s.poolFor(ch)
	voices := s.pool(k)
	st := &s.states[k]

	if i := s.find(k, channel, note); i >= 0 {
		v := &voices[i]
		if v.pending.valid {
			v.pending.velocity = velocity
			return
		}
		from := v.env.Volume()
		v.start(&ch.timbre, channel, note, velocity, s.nextAge())
		v.env.TriggerFrom(&v.timbre.Envelope, velocity, from)
		v.retune(ch.pitchCents(note), s.sampleRate)
		st.Held.Clear(i)
		return
	}

	if ch.mono || ch.timbre.IsMono() {
		for x := uint32(ch.voices[k]); x != 0; x &= x - 1 {
			s.release(k, bits.TrailingZeros32(x))
		}
	}

	group, grouped := midi.ExclusiveGroup(0), false
	if k == PoolPercussion {
		group, grouped = midi.Percussion(note).ExclusiveGroup()
		if grouped {
			if occupant, ok := s.groups.Get(group); ok {
				s.free(k, occupant)
			}
		}
	}

	i := st.On.FirstClear(len(voices))
	if i < 0 {
		i = s.victim(k, channel)
		s.steal(k, i, channel, note, velocity)
	} else {
		v := &voices[i]
		v.start(&ch.timbre, channel, note, velocity, s.nextAge())
		v.env.Trigger(&v.timbre.Envelope, velocity)
		v.retune(ch.pitchCents(note), s.sampleRate)
		st.On.Set(i)
		ch.voices[k].Set(i)
	}
	if grouped {
		s.groups.Set(group, i)
	}
}

// NoteOff releases note on channel, or marks it held while a pedal keeps it
// sounding. Percussion ignores note-off.
func (s *Synth) NoteOff(channel, note, velocity uint8) {
	if channel >= midi.ChannelCount {
		return
	}
	ch := &s.channels[channel]
	if ch.ignore || ch.percussion {
		return
	}
	if i := s.find(PoolMelodic, channel, note&0x7F); i >= 0 {
		s.keyUp(PoolMelodic, i)
	}
}

// AfterTouch changes the velocity of a sounding note. The current phase
// re-targets from the present volume.
func (s *Synth) AfterTouch(channel, note, velocity uint8) {
	if channel >= midi.ChannelCount {
		return
	}
	ch := &s.channels[channel]
	if ch.ignore {
		return
	}
	k := s.poolFor(ch)
	if i := s.find(k, channel, note&0x7F); i >= 0 {
		s.touch(&s.pool(k)[i], velocity&0x7F)
	}
}

// ChannelPressure applies after-touch to every note of channel.
func (s *Synth) ChannelPressure(channel, pressure uint8) {
	if channel >= midi.ChannelCount {
		return
	}
	ch := &s.channels[channel]
	if ch.ignore {
		return
	}
	k := s.poolFor(ch)
	voices := s.pool(k)
	for x := uint32(ch.voices[k]); x != 0; x &= x - 1 {
		s.touch(&voices[bits.TrailingZeros32(x)], pressure&0x7F)
	}
}

func (s *Synth) touch(v *Voice, velocity uint8) {
	if v.pending.valid {
		v.pending.velocity = velocity
		return
	}
	v.velocity = velocity
	v.env.Retarget(&v.timbre.Envelope, velocity)
}

// AllSoundOff frees every voice of channel at once, bypassing envelopes.
func (s *Synth) AllSoundOff(channel uint8) {
	ch := &s.channels[channel&0x0F]
	for k := PoolKind(0); k < poolCount; k++ {
		for x := uint32(ch.voices[k]); x != 0; x &= x - 1 {
			s.free(k, bits.TrailingZeros32(x))
		}
	}
}

// AllNotesOff sends a note-off to every sounding note of channel. Pedals
// are respected.
func (s *Synth) AllNotesOff(channel uint8) {
	ch := &s.channels[channel&0x0F]
	if ch.percussion {
		return
	}
	for x := uint32(ch.voices[PoolMelodic]); x != 0; x &= x - 1 {
		s.keyUp(PoolMelodic, bits.TrailingZeros32(x))
	}
}

// find returns the voice of pool k bound to (channel, note), or -1.
func (s *Synth) find(k PoolKind, channel, note uint8) int {
	voices := s.pool(k)
	for x := uint32(s.channels[channel].voices[k]); x != 0; x &= x - 1 {
		i := bits.TrailingZeros32(x)
		if voices[i].note == note {
			return i
		}
	}
	return -1
}

func (s *Synth) keyUp(k PoolKind, i int) {
	v := &s.pool(k)[i]
	st := &s.states[k]
	if v.pending.valid {
		if s.channels[v.channel].hold {
			st.Held.Set(i)
			return
		}
		// The replacement never got to sound; let the wind-down finish.
		v.pending = pendingNote{}
		return
	}
	if v.env.Phase == envelope.PhaseRelease {
		return
	}
	if s.channels[v.channel].hold || st.Sustenuto.Has(i) {
		st.Held.Set(i)
		return
	}
	s.release(k, i)
}

// release starts the natural release of voice i.
func (s *Synth) release(k PoolKind, i int) {
	v := &s.pool(k)[i]
	st := &s.states[k]
	st.Held.Clear(i)
	st.Sustenuto.Clear(i)
	if v.pending.valid {
		// released before the replacement started
		v.pending = pendingNote{}
		return
	}
	if v.env.Phase == envelope.PhaseRelease {
		return
	}
	v.env.Release(v.timbre.Envelope.ReleaseTicks(v.velocity))
	if v.env.Phase == envelope.PhaseOff {
		s.free(k, i)
	}
}

// free returns voice i to its pool.
func (s *Synth) free(k PoolKind, i int) {
	v := &s.pool(k)[i]
	st := &s.states[k]
	s.channels[v.channel].voices[k].Clear(i)
	st.On.Clear(i)
	st.Held.Clear(i)
	st.Sustenuto.Clear(i)
	if k == PoolPercussion {
		s.groups.Release(i)
	}
	v.env.Off()
	v.pending = pendingNote{}
	v.halted = false
}

// victim picks the voice to steal from a full pool.
func (s *Synth) victim(k PoolKind, channel uint8) int {
	voices := s.pool(k)
	best := 0
	for i := 1; i < len(voices); i++ {
		if preferVictim(&voices[i], &voices[best], channel) {
			best = i
		}
	}
	return best
}

// preferVictim reports whether a is a better steal target than b.
func preferVictim(a, b *Voice, channel uint8) bool {
	if a.pending.valid != b.pending.valid {
		return !a.pending.valid
	}
	ar := a.env.Phase == envelope.PhaseRelease
	br := b.env.Phase == envelope.PhaseRelease
	if ar != br {
		return ar
	}
	if av, bv := a.env.Volume(), b.env.Volume(); av != bv {
		return av < bv
	}
	as, bs := a.channel == channel, b.channel == channel
	if as != bs {
		return as
	}
	return int32(a.age-b.age) < 0
}

// steal winds voice i down and rebinds it to (channel, note). The new note
// starts when the wind-down reaches silence.
func (s *Synth) steal(k PoolKind, i int, channel, note, velocity uint8) {
	v := &s.pool(k)[i]
	st := &s.states[k]
	s.channels[v.channel].voices[k].Clear(i)
	st.Held.Clear(i)
	st.Sustenuto.Clear(i)
	if k == PoolPercussion {
		s.groups.Release(i)
	}
	if v.env.Phase != envelope.PhaseRelease || v.env.Ticks > s.stealTicks {
		v.env.Release(s.stealTicks)
	}
	v.channel = channel
	v.note = note
	v.age = s.nextAge()
	v.pending = pendingNote{valid: true, velocity: velocity}
	s.channels[channel].voices[k].Set(i)
	if v.env.Phase == envelope.PhaseOff {
		s.startPending(k, i)
	}
}

func (s *Synth) startPending(k PoolKind, i int) {
	v := &s.pool(k)[i]
	ch := &s.channels[v.channel]
	velocity := v.pending.velocity
	v.start(&ch.timbre, v.channel, v.note, velocity, v.age)
	v.env.Trigger(&v.timbre.Envelope, velocity)
	v.retune(ch.pitchCents(v.note), s.sampleRate)
	s.states[k].On.Set(i)
}
