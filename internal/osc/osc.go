// Package osc implements the phase-accumulator oscillators voices sample
// from, and the pitch arithmetic that turns notes into accumulator steps.
package osc

// Shape selects a waveform computed directly from the phase.
type Shape uint8

const (
	ShapeSine Shape = iota
	ShapeSquare
	ShapeSawtooth
	ShapeTriangle
	ShapeNoise
)

func (s Shape) String() string {
	switch s {
	case ShapeSine:
		return "sine"
	case ShapeSquare:
		return "square"
	case ShapeSawtooth:
		return "sawtooth"
	case ShapeTriangle:
		return "triangle"
	case ShapeNoise:
		return "noise"
	}
	return "unknown"
}

const lfsrSeed = 0xACE1

// Oscillator is a 32-bit phase accumulator. One full cycle is 2^32.
type Oscillator struct {
	Acc  uint32
	Step uint32
	lfsr uint16
}

// Reset rewinds the phase and reseeds the noise register.
func (o *Oscillator) Reset() {
	o.Acc = 0
	o.lfsr = lfsrSeed
}

// Advance moves the phase forward by one output sample.
func (o *Oscillator) Advance() {
	next := o.Acc + o.Step
	if next < o.Acc {
		o.clockNoise()
	}
	o.Acc = next
}

// Phase returns the top 8 bits of the accumulator, a wavetable index.
func (o *Oscillator) Phase() uint8 {
	return uint8(o.Acc >> 24)
}

// Sample computes shape at the current phase.
func (o *Oscillator) Sample(shape Shape) int8 {
	switch shape {
	case ShapeSquare:
		if o.Acc < 1<<31 {
			return 127
		}
		return -127
	case ShapeSawtooth:
		return int8(int32(o.Acc>>24) - 128)
	case ShapeTriangle:
		p := int32(o.Acc >> 24)
		switch {
		case p < 64:
			return int8(p * 2)
		case p < 192:
			return int8(255 - p*2)
		default:
			return int8(p*2 - 512)
		}
	case ShapeNoise:
		if o.lfsr == 0 {
			o.lfsr = lfsrSeed
		}
		if o.lfsr&1 == 1 {
			return 127
		}
		return -127
	default:
		return parabolicSine(o.Acc)
	}
}

func (o *Oscillator) clockNoise() {
	if o.lfsr == 0 {
		o.lfsr = lfsrSeed
	}
	bit := (o.lfsr ^ (o.lfsr >> 1)) & 1
	o.lfsr = (o.lfsr >> 1) | (bit << 15)
}

// parabolicSine approximates sin with one parabola per half cycle.
func parabolicSine(acc uint32) int8 {
	p := int64(acc>>16) & 0x7FFF
	y := 127 * 4 * p * (0x8000 - p) >> 30
	if acc >= 1<<31 {
		return int8(-y)
	}
	return int8(y)
}
