package sequencer

import (
	"math"
	"math/bits"
)

// TicksToSamples converts a tick span to output samples:
// ticks * tempo * sampleRate / (division * 1e6), rounded down.
func TicksToSamples(ticks uint32, tempo uint32, division uint16, sampleRate int) uint64 {
	if division == 0 || sampleRate <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(ticks)*uint64(tempo), uint64(sampleRate))
	den := uint64(division) * 1_000_000
	if hi >= den {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, den)
	return q
}

// SamplesToTicks converts output samples back to ticks, rounded down.
func SamplesToTicks(samples uint64, tempo uint32, division uint16, sampleRate int) uint32 {
	if tempo == 0 || sampleRate <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(samples, uint64(division)*1_000_000)
	den := uint64(tempo) * uint64(sampleRate)
	if hi >= den {
		return math.MaxUint32
	}
	q, _ := bits.Div64(hi, lo, den)
	if q > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(q)
}

// MsToSamples converts milliseconds to output samples.
func MsToSamples(ms uint32, sampleRate int) uint32 {
	if sampleRate <= 0 {
		return 0
	}
	return uint32(uint64(ms) * uint64(sampleRate) / 1000)
}
