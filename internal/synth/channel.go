package synth

import (
	"github.com/cbegin/midisynth-go/internal/lfo"
	"github.com/cbegin/midisynth-go/internal/midi"
	"github.com/cbegin/midisynth-go/internal/osc"
	"github.com/cbegin/midisynth-go/internal/timbre"
)

const (
	defaultVolume     = 100
	defaultExpression = 127
	defaultPan        = 64
	rpnNull           = 0x3FFF
	rpnBendRange      = 0x0000

	vibratoRateMilliHz = 5500
	maxVibratoCents    = 50
)

// Channel is the controller state of one MIDI channel.
type Channel struct {
	timbre     timbre.Timbre
	program    uint8
	bank       uint16
	volume     uint16
	expression uint16
	gain       int32 // volume * expression, 14-bit
	pitchBend  uint16
	bendRange  int32 // cents
	rpn        uint16

	vibrato      lfo.LFO
	vibratoCents int32

	controls [128]uint8
	// voices holds the allocated voices of each pool.
	voices [poolCount]Bitset

	percussion bool
	hold       bool
	sustenuto  bool
	ignore     bool
	mono       bool
}

// ChannelState is an inspection snapshot of a channel.
type ChannelState struct {
	Program    uint8
	Bank       uint16
	Volume     uint16
	Expression uint16
	PitchBend  uint16
	BendRange  int32
	Percussion bool
	Hold       bool
	Sustenuto  bool
	Ignore     bool
	Mono       bool
	Voices     int
	Timbre     string
}

func (c *Channel) state() ChannelState {
	return ChannelState{
		Program:    c.program,
		Bank:       c.bank,
		Volume:     c.volume,
		Expression: c.expression,
		PitchBend:  c.pitchBend,
		BendRange:  c.bendRange,
		Percussion: c.percussion,
		Hold:       c.hold,
		Sustenuto:  c.sustenuto,
		Ignore:     c.ignore,
		Mono:       c.mono,
		Voices:     c.voices[PoolMelodic].Count() + c.voices[PoolPercussion].Count(),
		Timbre:     c.timbre.Name,
	}
}

// reset restores power-on state. percussion selects the drum kit.
func (c *Channel) reset(lib *timbre.Library, percussion bool, sampleRate int) {
	voices := c.voices
	*c = Channel{voices: voices, percussion: percussion}
	c.resetControllers()
	c.setVolume(defaultVolume<<7, false)
	c.controls[midi.ControlVolume] = defaultVolume
	c.controls[midi.ControlPan] = defaultPan
	c.vibrato.Set(0, vibratoRateMilliHz, lfo.WaveTriangle, sampleRate)
	c.selectProgram(lib, 0)
}

// resetControllers applies "Reset All Controllers": volume, pan, program
// and bank survive.
func (c *Channel) resetControllers() {
	c.expression = defaultExpression<<7 | defaultExpression
	c.controls[midi.ControlExpression] = defaultExpression
	c.controls[midi.ControlExpressionLSB] = defaultExpression
	c.controls[midi.ControlModulation] = 0
	c.controls[midi.ControlModulationLSB] = 0
	c.pitchBend = midi.PitchBendCenter
	c.bendRange = osc.DefaultBendRange
	c.rpn = rpnNull
	c.controls[midi.ControlRPNLSB] = 0x7F
	c.controls[midi.ControlRPNMSB] = 0x7F
	c.vibrato.SetDepth(0)
	c.vibrato.Reset()
	c.vibratoCents = 0
	c.updateGain()
}

func (c *Channel) selectProgram(lib *timbre.Library, program uint8) {
	c.program = program & 0x7F
	if c.percussion {
		c.timbre = lib.Kit(c.program)
	} else {
		c.timbre = lib.Program(c.bank, c.program)
	}
}

func (c *Channel) setVolume(v uint16, expression bool) {
	v &= 0x3FFF
	if expression {
		c.expression = v
	} else {
		c.volume = v
	}
	c.updateGain()
}

func (c *Channel) updateGain() {
	c.gain = int32(uint32(c.volume) * uint32(c.expression) >> 14)
}

// pitchCents returns the pitch of key including bend and vibrato.
func (c *Channel) pitchCents(key uint8) int32 {
	return osc.Cents(key) + osc.BendCents(c.pitchBend, c.bendRange) + c.vibratoCents
}

func (c *Channel) control14(ctl midi.Control) uint16 {
	return uint16(c.controls[ctl])<<7 | uint16(c.controls[ctl+32])
}
