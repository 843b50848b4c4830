// Package envelope implements the velocity-scaled attack/decay/sustain/release
// volume ramp that every synthesizer voice runs once per output sample.
package envelope

import "math"

// Coef is a signed fixed-point coefficient with 8 fractional bits (q24.8).
type Coef int32

// CoefFromFloat converts f to the nearest representable coefficient.
func CoefFromFloat(f float64) Coef {
	return Coef(math.Round(f * 256))
}

// Float returns the coefficient as a float.
func (c Coef) Float() float64 {
	return float64(c) / 256
}

// Scale returns floor(c * v).
func (c Coef) Scale(v uint8) int32 {
	return (int32(c) * int32(v)) >> 8
}

// Phase is the envelope stage of a voice.
type Phase uint8

const (
	PhaseOff Phase = iota
	PhaseAttack
	PhaseDecay
	PhaseSustain
	PhaseRelease
)

func (p Phase) String() string {
	return [...]string{
		PhaseOff:     "off",
		PhaseAttack:  "attack",
		PhaseDecay:   "decay",
		PhaseSustain: "sustain",
		PhaseRelease: "release",
	}[p]
}

// Envelope describes a timbre's volume contour. Times are in output samples;
// each time and the sustain level gain velocity * coefficient on top of the
// base value.
type Envelope struct {
	AttackTime     uint32
	AttackTimeVel  Coef
	DecayTime      uint32
	DecayTimeVel   Coef
	ReleaseTime    uint32
	ReleaseTimeVel Coef
	SustainVol     uint8
	SustainVolVel  Coef
}

func scaledTicks(base uint32, coef Coef, velocity uint8) uint32 {
	n := int64(base) + int64(coef.Scale(velocity))
	if n < 0 {
		return 0
	}
	if n > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}

// AttackTicks returns the attack duration for a note of the given velocity.
func (e *Envelope) AttackTicks(velocity uint8) uint32 {
	return scaledTicks(e.AttackTime, e.AttackTimeVel, velocity)
}

func (e *Envelope) DecayTicks(velocity uint8) uint32 {
	return scaledTicks(e.DecayTime, e.DecayTimeVel, velocity)
}

func (e *Envelope) ReleaseTicks(velocity uint8) uint32 {
	return scaledTicks(e.ReleaseTime, e.ReleaseTimeVel, velocity)
}

// SustainLevel returns the held volume for a note of the given velocity.
func (e *Envelope) SustainLevel(velocity uint8) uint8 {
	v := int32(e.SustainVol) + e.SustainVolVel.Scale(velocity)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// PeakLevel is the volume reached at the end of the attack.
func PeakLevel(velocity uint8) uint8 {
	if velocity == 0 {
		return 0
	}
	if velocity > 127 {
		velocity = 127
	}
	return velocity<<1 | 1
}
