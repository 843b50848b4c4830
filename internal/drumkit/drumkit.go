// Package drumkit synthesizes the General MIDI percussion keys from a tone
// oscillator with a pitch sweep, a noise source and a decaying amplitude.
package drumkit

import (
	"github.com/cbegin/midisynth-go/internal/midi"
	"github.com/cbegin/midisynth-go/internal/osc"
)

type recipe struct {
	startHz float64
	endHz   float64
	noise   uint32 // noise share out of 256
	ms      uint32
	ratchet uint32 // amplitude gating rate in Hz, 0 for none
}

var recipes = [midi.LastPercussion - midi.FirstPercussion + 1]recipe{
	midi.AcousticBassDrum - midi.FirstPercussion: {startHz: 120, endHz: 45, noise: 10, ms: 350},
	midi.BassDrum1 - midi.FirstPercussion:        {startHz: 150, endHz: 50, noise: 16, ms: 300},
	midi.SideStick - midi.FirstPercussion:        {startHz: 800, endHz: 600, noise: 120, ms: 40},
	midi.AcousticSnare - midi.FirstPercussion:    {startHz: 220, endHz: 180, noise: 180, ms: 200},
	midi.HandClap - midi.FirstPercussion:         {startHz: 1200, endHz: 1000, noise: 230, ms: 120, ratchet: 90},
	midi.ElectricSnare - midi.FirstPercussion:    {startHz: 260, endHz: 200, noise: 200, ms: 180},
	midi.LowFloorTom - midi.FirstPercussion:      {startHz: 110, endHz: 80, noise: 20, ms: 350},
	midi.ClosedHiHat - midi.FirstPercussion:      {startHz: 8000, endHz: 8000, noise: 250, ms: 60},
	midi.HighFloorTom - midi.FirstPercussion:     {startHz: 130, endHz: 95, noise: 20, ms: 330},
	midi.PedalHiHat - midi.FirstPercussion:       {startHz: 7000, endHz: 7000, noise: 250, ms: 90},
	midi.LowTom - midi.FirstPercussion:           {startHz: 150, endHz: 110, noise: 20, ms: 300},
	midi.OpenHiHat - midi.FirstPercussion:        {startHz: 8000, endHz: 8000, noise: 250, ms: 500},
	midi.LowMidTom - midi.FirstPercussion:        {startHz: 175, endHz: 130, noise: 20, ms: 280},
	midi.HiMidTom - midi.FirstPercussion:         {startHz: 200, endHz: 150, noise: 20, ms: 260},
	midi.CrashCymbal1 - midi.FirstPercussion:     {startHz: 5000, endHz: 4000, noise: 250, ms: 1200},
	midi.HighTom - midi.FirstPercussion:          {startHz: 230, endHz: 175, noise: 20, ms: 240},
	midi.RideCymbal1 - midi.FirstPercussion:      {startHz: 3000, endHz: 3000, noise: 200, ms: 900},
	midi.ChineseCymbal - midi.FirstPercussion:    {startHz: 4000, endHz: 3000, noise: 250, ms: 1000},
	midi.RideBell - midi.FirstPercussion:         {startHz: 2500, endHz: 2500, noise: 80, ms: 700},
	midi.Tambourine - midi.FirstPercussion:       {startHz: 6000, endHz: 6000, noise: 240, ms: 250, ratchet: 40},
	midi.SplashCymbal - midi.FirstPercussion:     {startHz: 6000, endHz: 5000, noise: 250, ms: 600},
	midi.Cowbell - midi.FirstPercussion:          {startHz: 560, endHz: 560, noise: 0, ms: 250},
	midi.CrashCymbal2 - midi.FirstPercussion:     {startHz: 4500, endHz: 3500, noise: 250, ms: 1300},
	midi.Vibraslap - midi.FirstPercussion:        {startHz: 300, endHz: 300, noise: 160, ms: 700, ratchet: 30},
	midi.RideCymbal2 - midi.FirstPercussion:      {startHz: 3200, endHz: 3200, noise: 200, ms: 800},
	midi.HiBongo - midi.FirstPercussion:          {startHz: 420, endHz: 380, noise: 10, ms: 150},
	midi.LowBongo - midi.FirstPercussion:         {startHz: 300, endHz: 260, noise: 10, ms: 180},
	midi.MuteHiConga - midi.FirstPercussion:      {startHz: 380, endHz: 360, noise: 10, ms: 90},
	midi.OpenHiConga - midi.FirstPercussion:      {startHz: 360, endHz: 330, noise: 10, ms: 220},
	midi.LowConga - midi.FirstPercussion:         {startHz: 260, endHz: 230, noise: 10, ms: 250},
	midi.HighTimbale - midi.FirstPercussion:      {startHz: 700, endHz: 650, noise: 40, ms: 200},
	midi.LowTimbale - midi.FirstPercussion:       {startHz: 500, endHz: 460, noise: 40, ms: 230},
	midi.HighAgogo - midi.FirstPercussion:        {startHz: 900, endHz: 900, noise: 0, ms: 220},
	midi.LowAgogo - midi.FirstPercussion:         {startHz: 650, endHz: 650, noise: 0, ms: 240},
	midi.Cabasa - midi.FirstPercussion:           {startHz: 5000, endHz: 5000, noise: 255, ms: 120},
	midi.Maracas - midi.FirstPercussion:          {startHz: 6000, endHz: 6000, noise: 255, ms: 80},
	midi.ShortWhistle - midi.FirstPercussion:     {startHz: 2500, endHz: 2500, noise: 0, ms: 150},
	midi.LongWhistle - midi.FirstPercussion:      {startHz: 2500, endHz: 2500, noise: 0, ms: 600},
	midi.ShortGuiro - midi.FirstPercussion:       {startHz: 400, endHz: 400, noise: 200, ms: 120, ratchet: 60},
	midi.LongGuiro - midi.FirstPercussion:        {startHz: 400, endHz: 400, noise: 200, ms: 400, ratchet: 60},
	midi.Claves - midi.FirstPercussion:           {startHz: 2500, endHz: 2500, noise: 0, ms: 60},
	midi.HiWoodBlock - midi.FirstPercussion:      {startHz: 1800, endHz: 1800, noise: 10, ms: 70},
	midi.LowWoodBlock - midi.FirstPercussion:     {startHz: 1300, endHz: 1300, noise: 10, ms: 80},
	midi.MuteCuica - midi.FirstPercussion:        {startHz: 500, endHz: 700, noise: 30, ms: 120},
	midi.OpenCuica - midi.FirstPercussion:        {startHz: 600, endHz: 400, noise: 30, ms: 300},
	midi.MuteTriangle - midi.FirstPercussion:     {startHz: 4000, endHz: 4000, noise: 0, ms: 100},
	midi.OpenTriangle - midi.FirstPercussion:     {startHz: 4000, endHz: 4000, noise: 0, ms: 900},
}

type drum struct {
	length    uint32
	startStep uint32
	endStep   uint32
	noise     int32
	gate      uint32 // samples per ratchet half period
}

// Kit is the built-in percussion generator. Scratch words hold the tone
// phase (0) and the noise register (1).
type Kit struct {
	drums [len(recipes)]drum
}

// New prepares the kit for sampleRate.
func New(sampleRate int) *Kit {
	k := &Kit{}
	for i, r := range recipes {
		d := drum{
			length:    uint32(uint64(r.ms) * uint64(sampleRate) / 1000),
			startStep: osc.StepFor(r.startHz, sampleRate),
			endStep:   osc.StepFor(r.endHz, sampleRate),
			noise:     int32(r.noise),
		}
		if r.ratchet > 0 {
			d.gate = uint32(sampleRate) / (r.ratchet * 2)
		}
		k.drums[i] = d
	}
	return k
}

// Length returns the duration of drum in samples, 0 for keys outside the
// GM range.
func (k *Kit) Length(key midi.Percussion) uint32 {
	if !key.Valid() {
		return 0
	}
	return k.drums[key-midi.FirstPercussion].length
}

// Sample implements timbre.Percussion.
func (k *Kit) Sample(key midi.Percussion, idx uint32, scratch *[4]uint32) (int8, bool) {
	if !key.Valid() {
		return 0, true
	}
	d := &k.drums[key-midi.FirstPercussion]
	if idx >= d.length {
		return 0, true
	}
	if idx == 0 {
		scratch[0] = 0
		scratch[1] = 0x9E3779B9 ^ uint32(key)
	}
	rem := uint64(d.length - idx)

	step := uint32(int64(d.endStep) + (int64(d.startStep)-int64(d.endStep))*int64(rem)/int64(d.length))
	o := osc.Oscillator{Acc: scratch[0], Step: step}
	tone := int32(o.Sample(osc.ShapeSine))
	o.Advance()
	scratch[0] = o.Acc

	x := scratch[1]
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	scratch[1] = x
	noise := int32(int8(x >> 24))

	mixed := (tone*(256-d.noise) + noise*d.noise) >> 8
	amp := int32(rem * 255 / uint64(d.length))
	amp = amp * amp >> 8
	if d.gate > 0 && (idx/d.gate)&1 == 1 {
		amp >>= 2
	}
	return int8(mixed * amp >> 8), false
}
