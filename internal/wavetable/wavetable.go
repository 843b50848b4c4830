// Package wavetable stores the shared single-cycle waveforms that wavetable
// timbres read from.
package wavetable

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

const (
	// TableSize is the number of samples in one cycle. A phase accumulator's
	// top 8 bits index it directly.
	TableSize = 256
	MaxSlots  = 16
)

// Built-in slots installed by NewBank.
const (
	Sine uint16 = iota
	Square
	Sawtooth
	Triangle
	builtinCount
)

// Table is one cycle of signed 8-bit samples.
type Table [TableSize]int8

// WaveFunc returns the sample of wave index at an 8-bit phase.
type WaveFunc func(index uint16, phase uint8) int8

// Bank holds up to MaxSlots tables. Tables are replaced before playback and
// only read afterwards.
type Bank struct {
	tables [MaxSlots]*Table
}

// NewBank returns a bank with sine, square, sawtooth and triangle installed.
func NewBank() *Bank {
	b := &Bank{}
	var sine, square, saw, tri Table
	for i := 0; i < TableSize; i++ {
		sine[i] = int8(math.Round(127 * math.Sin(2*math.Pi*float64(i)/TableSize)))
		if i < TableSize/2 {
			square[i] = 127
		} else {
			square[i] = -127
		}
		saw[i] = int8(i - 128)
		switch {
		case i < 64:
			tri[i] = int8(i * 2)
		case i < 192:
			tri[i] = int8(255 - i*2)
		default:
			tri[i] = int8(i*2 - 512)
		}
	}
	b.tables[Sine] = &sine
	b.tables[Square] = &square
	b.tables[Sawtooth] = &saw
	b.tables[Triangle] = &tri
	return b
}

var defaultBank = NewBank()

// Default returns the process-wide bank used by the built-in program table.
func Default() *Bank { return defaultBank }

// SetTable loads a single-cycle waveform into slot. samples may hold any
// number of values; they are stretched to TableSize by nearest-neighbour.
func (b *Bank) SetTable(slot int, samples []int8) {
	if slot < 0 || slot >= MaxSlots || len(samples) == 0 {
		return
	}
	t := new(Table)
	for i := range t {
		t[i] = samples[i*len(samples)/TableSize]
	}
	b.tables[slot] = t
}

// Table returns the table in slot, falling back to the sine table.
func (b *Bank) Table(slot uint16) *Table {
	if int(slot) < MaxSlots {
		if t := b.tables[slot]; t != nil {
			return t
		}
	}
	return b.tables[Sine]
}

// Sample is the default WaveFunc.
func (b *Bank) Sample(index uint16, phase uint8) int8 {
	return b.Table(index)[phase]
}

// LoadWAVB installs hex-encoded tables keyed by slot, e.g. "WAVB4" or "4".
// It returns the number of tables loaded.
func (b *Bank) LoadWAVB(defs map[string]string) int {
	n := 0
	for key, body := range defs {
		slotStr := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(key)), "WAVB")
		slot, err := strconv.Atoi(strings.TrimSpace(slotStr))
		if err != nil || slot < int(builtinCount) || slot >= MaxSlots {
			continue
		}
		body = strings.TrimSpace(body)
		if open := strings.IndexByte(body, '{'); open >= 0 {
			if close := strings.IndexByte(body, '}'); close > open {
				body = body[open+1 : close]
			}
		}
		samples := ParseWAVB(strings.TrimSpace(body))
		if len(samples) > 0 {
			b.SetTable(slot, samples)
			n++
		}
	}
	return n
}

// ParseWAVB converts pairs of hex digits, each a signed 8-bit value, into
// samples.
func ParseWAVB(h string) []int8 {
	data, err := hex.DecodeString(h)
	if err != nil {
		return nil
	}
	out := make([]int8, len(data))
	for i, v := range data {
		out[i] = int8(v)
	}
	return out
}
