// Package midi holds the event vocabulary shared by the file reader, the live
// input source, the sequencer and the synthesizer.
package midi

// EventType is the status nibble of a channel message, or one of the
// system values SysEx and Meta.
type EventType uint8

const (
	NoteOff         EventType = 0x80
	NoteOn          EventType = 0x90
	AfterTouch      EventType = 0xA0
	ControlChange   EventType = 0xB0
	ProgramChange   EventType = 0xC0
	ChannelPressure EventType = 0xD0
	PitchBend       EventType = 0xE0
	SysEx           EventType = 0xF0
	Meta            EventType = 0xFF
)

func (t EventType) String() string {
	switch t {
	case NoteOff:
		return "note-off"
	case NoteOn:
		return "note-on"
	case AfterTouch:
		return "after-touch"
	case ControlChange:
		return "control-change"
	case ProgramChange:
		return "program-change"
	case ChannelPressure:
		return "channel-pressure"
	case PitchBend:
		return "pitch-bend"
	case SysEx:
		return "sysex"
	case Meta:
		return "meta"
	}
	return "unknown"
}

// MetaType identifies a meta event.
type MetaType uint8

const (
	MetaSequenceNumber MetaType = 0x00
	MetaText           MetaType = 0x01
	MetaCopyright      MetaType = 0x02
	MetaTrackName      MetaType = 0x03
	MetaInstrument     MetaType = 0x04
	MetaLyric          MetaType = 0x05
	MetaMarker         MetaType = 0x06
	MetaCuePoint       MetaType = 0x07
	MetaEndOfTrack     MetaType = 0x2F
	MetaTempo          MetaType = 0x51
	MetaTimeSignature  MetaType = 0x58
	MetaKeySignature   MetaType = 0x59
)

// IsText reports whether the meta event carries a text annotation.
func (m MetaType) IsText() bool {
	return m >= MetaText && m <= MetaCuePoint
}

const (
	ChannelCount = 16
	// PercussionChannel is the zero-based GM drum channel (channel 10).
	PercussionChannel = 9
	// PitchBendCenter is the 14-bit pitch wheel rest position.
	PitchBendCenter = 0x2000
	// DefaultTempo is 120 BPM in microseconds per quarter note.
	DefaultTempo = 500000
)

// Event is one timestamped MIDI message. Tick is absolute from the start of
// the song for file sources and zero for live sources.
type Event struct {
	Tick    uint32
	Type    EventType
	Channel uint8
	// Data1 is the note, controller or program number.
	Data1 uint8
	// Data2 is the velocity, pressure or controller value.
	Data2 uint8
	// Bend is the 14-bit pitch wheel position for PitchBend.
	Bend  uint16
	Meta  MetaType
	Tempo uint32
	Text  string
	Data  []byte
}

// GM system exclusive messages, without the framing F0/F7 bytes.
var (
	sysExGMOn  = []byte{0x7E, 0x7F, 0x09, 0x01}
	sysExGMOff = []byte{0x7E, 0x7F, 0x09, 0x02}
)

// IsGMOn reports whether data is the universal "General MIDI System On"
// message. Leading F0 and trailing F7 are optional.
func IsGMOn(data []byte) bool { return sysExIs(data, sysExGMOn) }

// IsGMOff reports whether data is "General MIDI System Off".
func IsGMOff(data []byte) bool { return sysExIs(data, sysExGMOff) }

func sysExIs(data, want []byte) bool {
	if len(data) > 0 && data[0] == 0xF0 {
		data = data[1:]
	}
	if len(data) > 0 && data[len(data)-1] == 0xF7 {
		data = data[:len(data)-1]
	}
	if len(data) != len(want) {
		return false
	}
	for i := range want {
		// Device ID 0x7F means "all devices"; accept any.
		if i == 1 {
			continue
		}
		if data[i] != want[i] {
			return false
		}
	}
	return true
}

// Decode parses one complete channel or system exclusive message. Running
// status is not accepted. Other system messages report false.
func Decode(raw []byte) (Event, bool) {
	if len(raw) == 0 {
		return Event{}, false
	}
	status := raw[0]
	var e Event
	switch {
	case status == 0xF0 || status == 0xF7:
		e.Type = SysEx
		e.Data = raw
		return e, true
	case status >= 0x80 && status < 0xF0:
		e.Type = EventType(status & 0xF0)
		e.Channel = status & 0x0F
		if len(raw) > 1 {
			e.Data1 = raw[1] & 0x7F
		}
		if len(raw) > 2 {
			e.Data2 = raw[2] & 0x7F
		}
		if e.Type == PitchBend {
			e.Bend = uint16(e.Data2)<<7 | uint16(e.Data1)
		}
		return e, true
	}
	return e, false
}
