package synth

import (
	"math/bits"

	"github.com/cbegin/midisynth-go/internal/envelope"
	"github.com/cbegin/midisynth-go/internal/midi"
)

// Bitset has one bit per voice of a pool.
type Bitset uint32

func (b Bitset) Has(i int) bool { return b&(1<<uint(i)) != 0 }
func (b *Bitset) Set(i int)     { *b |= 1 << uint(i) }
func (b *Bitset) Clear(i int)   { *b &^= 1 << uint(i) }
func (b Bitset) Count() int     { return bits.OnesCount32(uint32(b)) }

// FirstClear returns the lowest clear index below n, or -1.
func (b Bitset) FirstClear(n int) int {
	free := ^uint32(b)
	if n < 32 {
		free &= 1<<uint(n) - 1
	}
	if free == 0 {
		return -1
	}
	return bits.TrailingZeros32(free)
}

// Each calls fn for every set index in ascending order.
func (b Bitset) Each(fn func(i int)) {
	for x := uint32(b); x != 0; x &= x - 1 {
		fn(bits.TrailingZeros32(x))
	}
}

// VoiceStates tracks allocation of one pool. A voice's envelope phase lives
// in the voice itself; On covers every phase other than off.
type VoiceStates struct {
	On Bitset
	// Held voices had their key released while a pedal kept them sounding.
	Held Bitset
	// Sustenuto voices were sounding when the sustenuto pedal went down.
	Sustenuto Bitset
}

// PoolState is an inspection snapshot of a pool.
type PoolState struct {
	VoiceStates
	Attack  Bitset
	Decay   Bitset
	Sustain Bitset
	Release Bitset
}

// Phase returns the mask for p.
func (p PoolState) Phase(ph envelope.Phase) Bitset {
	switch ph {
	case envelope.PhaseAttack:
		return p.Attack
	case envelope.PhaseDecay:
		return p.Decay
	case envelope.PhaseSustain:
		return p.Sustain
	case envelope.PhaseRelease:
		return p.Release
	}
	return ^p.On
}

const (
	groupFieldBits = 6
	groupNone      = 1<<groupFieldBits - 1
)

// ExclusiveGroups packs, per exclusive percussion family, the percussion
// voice currently sounding a member of that family (6 bits each, groupNone
// for none).
type ExclusiveGroups uint32

// NewExclusiveGroups returns a mask with every family empty.
func NewExclusiveGroups() ExclusiveGroups {
	var g ExclusiveGroups
	for i := midi.ExclusiveGroup(0); i < midi.ExclusiveGroupCount; i++ {
		g.Clear(i)
	}
	return g
}

func groupShift(g midi.ExclusiveGroup) uint {
	return uint(g) * groupFieldBits
}

// Get returns the voice occupying g.
func (e ExclusiveGroups) Get(g midi.ExclusiveGroup) (int, bool) {
	v := int(uint32(e)>>groupShift(g)) & groupNone
	return v, v != groupNone
}

// Set records voice as the occupant of g.
func (e *ExclusiveGroups) Set(g midi.ExclusiveGroup, voice int) {
	s := groupShift(g)
	*e = ExclusiveGroups(uint32(*e)&^(groupNone<<s) | uint32(voice&groupNone)<<s)
}

// Clear empties g.
func (e *ExclusiveGroups) Clear(g midi.ExclusiveGroup) {
	e.Set(g, groupNone)
}

// Release empties every family occupied by voice.
func (e *ExclusiveGroups) Release(voice int) {
	for g := midi.ExclusiveGroup(0); g < midi.ExclusiveGroupCount; g++ {
		if v, ok := e.Get(g); ok && v == voice {
			e.Clear(g)
		}
	}
}
