// Package lfo provides the low-frequency oscillator behind the modulation
// wheel vibrato.
package lfo

// Waveform selects the LFO shape.
type Waveform uint8

const (
	WaveTriangle Waveform = iota
	WaveSquare
	WaveSaw
)

// LFO is an integer phase accumulator sampled at control rate. Its output is
// a pitch offset in cents in [-depth, +depth].
type LFO struct {
	depth    int32
	step     uint32 // phase increment per output sample
	phase    uint32
	waveform Waveform
}

// Set configures depth in cents and rate in millihertz at sampleRate.
func (l *LFO) Set(depthCents int32, rateMilliHz uint32, waveform Waveform, sampleRate int) {
	l.depth = depthCents
	l.waveform = waveform
	if sampleRate <= 0 {
		l.step = 0
		return
	}
	l.step = uint32(uint64(rateMilliHz) * (1 << 32) / (uint64(sampleRate) * 1000))
}

// SetDepth changes only the depth.
func (l *LFO) SetDepth(depthCents int32) {
	l.depth = depthCents
}

// Depth returns the configured depth in cents.
func (l *LFO) Depth() int32 { return l.depth }

// Active reports whether the LFO would produce a non-zero offset.
func (l *LFO) Active() bool {
	return l.depth != 0 && l.step != 0
}

// Advance moves the phase forward by n output samples and returns the
// offset at the new phase.
func (l *LFO) Advance(n uint32) int32 {
	if !l.Active() {
		return 0
	}
	l.phase += l.step * n
	return l.Value()
}

// Value returns the offset at the current phase without advancing.
func (l *LFO) Value() int32 {
	// w ranges over [-32768, 32767].
	var w int32
	switch l.waveform {
	case WaveSquare:
		if l.phase < 1<<31 {
			w = 32767
		} else {
			w = -32768
		}
	case WaveSaw:
		w = int32(l.phase>>16) - 32768
	default:
		p := int32(l.phase >> 15) // 0..131071
		switch {
		case p < 32768:
			w = p
		case p < 98304:
			w = 65536 - p
		default:
			w = p - 131072
		}
	}
	return w * l.depth / 32768
}

// Reset zeros the phase.
func (l *LFO) Reset() {
	l.phase = 0
}
