package synth

import (
	"math/bits"

	"github.com/cbegin/midisynth-go/internal/envelope"
	"github.com/cbegin/midisynth-go/internal/midi"
)

// ControlChange applies controller ctl to channel. Unknown controllers are
// stored for read-back and otherwise ignored.
func (s *Synth) ControlChange(channel uint8, ctl midi.Control, value uint8) {
	if channel >= midi.ChannelCount {
		return
	}
	ctl &= 0x7F
	value &= 0x7F
	ch := &s.channels[channel]
	if ch.ignore {
		return
	}
	ch.controls[ctl] = value
	switch ctl {
	case midi.ControlBankSelect:
		ch.bank = uint16(value)<<7 | ch.bank&0x7F
	case midi.ControlBankSelectLSB:
		ch.bank = ch.bank&^0x7F | uint16(value)
	case midi.ControlVolume:
		ch.controls[midi.ControlVolumeLSB] = 0
		ch.setVolume(uint16(value)<<7, false)
	case midi.ControlVolumeLSB:
		ch.setVolume(ch.volume&^0x7F|uint16(value), false)
	case midi.ControlExpression:
		ch.controls[midi.ControlExpressionLSB] = 0
		ch.setVolume(uint16(value)<<7, true)
	case midi.ControlExpressionLSB:
		ch.setVolume(ch.expression&^0x7F|uint16(value), true)
	case midi.ControlModulation, midi.ControlModulationLSB:
		depth := int32(ch.control14(midi.ControlModulation)) * maxVibratoCents / 0x3FFF
		ch.vibrato.SetDepth(depth)
		if depth == 0 {
			ch.vibrato.Reset()
		}
	case midi.ControlHold:
		s.setHold(channel, midi.SwitchOn(value))
	case midi.ControlSustenuto:
		s.setSustenuto(channel, midi.SwitchOn(value))
	case midi.ControlRPNLSB, midi.ControlRPNMSB:
		ch.rpn = uint16(ch.controls[midi.ControlRPNMSB])<<7 | uint16(ch.controls[midi.ControlRPNLSB])
	case midi.ControlNRPNLSB, midi.ControlNRPNMSB:
		ch.rpn = rpnNull
	case midi.ControlDataEntry, midi.ControlDataEntryLSB:
		s.dataEntry(ch)
	case midi.ControlDataIncrement, midi.ControlDataDecrement:
		if ch.rpn == rpnBendRange {
			step := int32(1)
			if ctl == midi.ControlDataDecrement {
				step = -1
			}
			s.setBendRange(ch, ch.bendRange+step)
		}
	case midi.ControlAllSoundOff:
		s.AllSoundOff(channel)
	case midi.ControlResetAllControllers:
		s.ResetControllers(channel)
	case midi.ControlAllNotesOff, midi.ControlOmniOff, midi.ControlOmniOn:
		s.AllNotesOff(channel)
	case midi.ControlMonoOn:
		s.AllNotesOff(channel)
		ch.mono = true
	case midi.ControlPolyOn:
		s.AllNotesOff(channel)
		ch.mono = false
	}
}

func (s *Synth) dataEntry(ch *Channel) {
	if ch.rpn != rpnBendRange {
		return
	}
	cents := int32(ch.controls[midi.ControlDataEntryLSB])
	if cents > 99 {
		cents = 99
	}
	s.setBendRange(ch, int32(ch.controls[midi.ControlDataEntry])*100+cents)
}

func (s *Synth) setBendRange(ch *Channel, cents int32) {
	if cents < 0 {
		cents = 0
	}
	if cents > 127*100 {
		cents = 127 * 100
	}
	ch.bendRange = cents
	s.retuneChannel(ch)
}

// Sustain sets the hold pedal of channel.
func (s *Synth) Sustain(channel uint8, on bool) {
	var value uint8
	if on {
		value = 127
	}
	s.ControlChange(channel, midi.ControlHold, value)
}

// Sustenuto sets the sustenuto pedal of channel.
func (s *Synth) Sustenuto(channel uint8, on bool) {
	var value uint8
	if on {
		value = 127
	}
	s.ControlChange(channel, midi.ControlSustenuto, value)
}

func (s *Synth) setHold(channel uint8, on bool) {
	ch := &s.channels[channel]
	if ch.hold == on {
		return
	}
	ch.hold = on
	if on {
		return
	}
	st := &s.states[PoolMelodic]
	for x := uint32(ch.voices[PoolMelodic] & st.Held &^ st.Sustenuto); x != 0; x &= x - 1 {
		s.release(PoolMelodic, bits.TrailingZeros32(x))
	}
}

func (s *Synth) setSustenuto(channel uint8, on bool) {
	ch := &s.channels[channel]
	if ch.sustenuto == on {
		return
	}
	ch.sustenuto = on
	k := s.poolFor(ch)
	st := &s.states[k]
	voices := s.pool(k)
	for x := uint32(ch.voices[k]); x != 0; x &= x - 1 {
		i := bits.TrailingZeros32(x)
		if on {
			v := &voices[i]
			if !v.pending.valid && v.env.Phase != envelope.PhaseRelease {
				st.Sustenuto.Set(i)
			}
			continue
		}
		if !st.Sustenuto.Has(i) {
			continue
		}
		st.Sustenuto.Clear(i)
		if st.Held.Has(i) && !ch.hold {
			s.release(k, i)
		}
	}
}

// ResetControllers clears pedal, bend, expression, modulation and RPN state
// of channel. Notes still keyed keep sounding; notes only kept alive by a
// pedal are released.
func (s *Synth) ResetControllers(channel uint8) {
	channel &= 0x0F
	ch := &s.channels[channel]
	s.setSustenuto(channel, false)
	s.setHold(channel, false)
	ch.controls[midi.ControlHold] = 0
	ch.controls[midi.ControlSustenuto] = 0
	ch.resetControllers()
	s.retuneChannel(ch)
}

// ProgramChange selects program from the channel's current bank. Sounding
// notes keep the timbre they started with.
func (s *Synth) ProgramChange(channel, program uint8) {
	if channel >= midi.ChannelCount {
		return
	}
	ch := &s.channels[channel]
	if ch.ignore {
		return
	}
	ch.selectProgram(s.library, program)
}

// PitchWheel sets the 14-bit bend of channel. Sounding notes follow.
func (s *Synth) PitchWheel(channel uint8, value uint16) {
	if channel >= midi.ChannelCount {
		return
	}
	ch := &s.channels[channel]
	if ch.ignore {
		return
	}
	ch.pitchBend = value & 0x3FFF
	s.retuneChannel(ch)
}

// GMOn silences everything and restores General MIDI defaults, with channel
// 10 playing percussion.
func (s *Synth) GMOn() {
	s.gm = true
	s.ResetAll()
}

// GMOff silences everything and resets every channel as melodic.
func (s *Synth) GMOff() {
	s.gm = false
	s.ResetAll()
}

// GM reports whether General MIDI mode is on.
func (s *Synth) GM() bool { return s.gm }

// ControlValue returns the last value written to ctl on channel.
func (s *Synth) ControlValue(channel uint8, ctl midi.Control) uint8 {
	return s.channels[channel&0x0F].controls[ctl&0x7F]
}

// ControlValue14 returns the 14-bit value of ctl. Controllers with an LSB
// pair combine both halves; others return the 7-bit value shifted up.
func (s *Synth) ControlValue14(channel uint8, ctl midi.Control) uint16 {
	ch := &s.channels[channel&0x0F]
	ctl &= 0x7F
	switch {
	case ctl.HasLSB():
		return ch.control14(ctl)
	case ctl == midi.ControlRPNLSB || ctl == midi.ControlRPNMSB:
		return ch.rpn
	}
	return uint16(ch.controls[ctl]) << 7
}

// PitchBend returns the current wheel position of channel.
func (s *Synth) PitchBend(channel uint8) uint16 {
	return s.channels[channel&0x0F].pitchBend
}
