package osc

import "math"

const (
	// DefaultBendRange is the GM pitch wheel range: a whole step each way.
	DefaultBendRange = 200
	bendCenter       = 0x2000
)

// Cents returns the pitch of note in cents above MIDI note 0.
func Cents(note uint8) int32 {
	return int32(note) * 100
}

// BendCents maps a 14-bit wheel position to a pitch offset in cents. The
// centre maps to exactly zero, 0x0000 to -rangeCents, and the mapping is
// monotonic.
func BendCents(wheel uint16, rangeCents int32) int32 {
	if wheel > 0x3FFF {
		wheel = 0x3FFF
	}
	return (int32(wheel) - bendCenter) * rangeCents / bendCenter
}

// Frequency returns the frequency in Hz of a pitch given in cents.
func Frequency(cents int32) float64 {
	return 440 * math.Pow(2, float64(cents-6900)/1200)
}

// StepFor returns the accumulator increment that produces freq at sampleRate.
func StepFor(freq float64, sampleRate int) uint32 {
	if freq <= 0 || sampleRate <= 0 {
		return 0
	}
	step := freq * (1 << 32) / float64(sampleRate)
	if step >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(step)
}

// NoteStep returns the accumulator step for a pitch in cents.
func NoteStep(cents int32, sampleRate int) uint32 {
	return StepFor(Frequency(cents), sampleRate)
}

// SampleStep returns the 16.16 playback step for PCM recorded at rate whose
// untransposed pitch is baseNote (a note number with 24 fractional bits).
func SampleStep(cents int32, baseNote uint32, rate uint32, sampleRate int) uint32 {
	if sampleRate <= 0 || rate == 0 {
		return 0
	}
	base := float64(baseNote) / (1 << 24)
	ratio := float64(rate) / float64(sampleRate) * math.Pow(2, (float64(cents)/100-base)/12)
	step := ratio * (1 << 16)
	if step >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(math.Round(step))
}

// NoteQ24 converts a note number to the 8.24 fixed point used for sample
// base notes.
func NoteQ24(note float64) uint32 {
	return uint32(math.Round(note * (1 << 24)))
}
