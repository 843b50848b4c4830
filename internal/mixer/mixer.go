// Package mixer turns rendered synth samples into biased unsigned 8-bit
// output buffers.
package mixer

const (
	// MaxHeadroom is the full-scale headroom gain.
	MaxHeadroom = 0x7FFF
	// DefaultHeadroom leaves room for several loud voices before clipping.
	DefaultHeadroom = 0x2666
	// MixShift scales headroom-multiplied sums down to 8 bits.
	MixShift = 22

	// Silence is the biased zero level.
	Silence = 0x80
)

// Source is anything that renders one wide sample per call, such as a
// player.
type Source interface {
	// Render advances by one output sample and returns the unscaled mix.
	Render() int32
	// Headroom returns the gain applied before clipping, 0..MaxHeadroom.
	Headroom() uint16
	// Clip records one saturated output sample.
	Clip()
}

// Fill writes len(dst) biased samples from src. Saturated samples are
// clamped and counted on src.
func Fill(src Source, dst []byte) {
	headroom := int64(src.Headroom())
	for i := range dst {
		v := int64(src.Render()) * headroom >> MixShift
		s, clipped := clamp(v)
		if clipped {
			src.Clip()
		}
		dst[i] = byte(int32(s) + Silence)
	}
}

// FillMulti sums every source, each scaled by its own headroom, into one
// stream. Clip counters are left alone.
func FillMulti(srcs []Source, dst []byte) {
	for i := range dst {
		var sum int64
		for _, src := range srcs {
			sum += int64(src.Render()) * int64(src.Headroom())
		}
		s, _ := clamp(sum >> MixShift)
		dst[i] = byte(int32(s) + Silence)
	}
}

func clamp(v int64) (int8, bool) {
	switch {
	case v > 127:
		return 127, true
	case v < -128:
		return -128, true
	}
	return int8(v), false
}
