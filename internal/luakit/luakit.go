// Package luakit builds a percussion kit from a Lua script. The script
// defines
//
//	function drum(key, rate) ... end
//
// returning an array of samples in [-1, 1] for a GM drum key at the given
// sample rate, or nil to keep the built-in sound. Every key is rendered once
// when the kit loads; playback never calls into Lua.
package luakit

import (
	"log/slog"
	"math"

	"github.com/pkg/errors"
	lua "github.com/yuin/gopher-lua"

	"github.com/cbegin/midisynth-go/internal/midi"
	"github.com/cbegin/midisynth-go/internal/timbre"
)

// MaxSeconds bounds the length of a rendered drum.
const MaxSeconds = 4

// Kit plays pre-rendered drums and defers to a fallback generator for keys
// the script left undefined.
type Kit struct {
	drums    [midi.LastPercussion - midi.FirstPercussion + 1][]int8
	fallback timbre.Percussion
}

// LoadFile runs the script at path.
func LoadFile(path string, sampleRate int, fallback timbre.Percussion, logger *slog.Logger) (*Kit, error) {
	L := lua.NewState()
	defer L.Close()
	if err := L.DoFile(path); err != nil {
		return nil, errors.Wrapf(err, "run kit script %s", path)
	}
	return build(L, sampleRate, fallback, logger)
}

// LoadString runs script source src.
func LoadString(src string, sampleRate int, fallback timbre.Percussion, logger *slog.Logger) (*Kit, error) {
	L := lua.NewState()
	defer L.Close()
	if err := L.DoString(src); err != nil {
		return nil, errors.Wrap(err, "run kit script")
	}
	return build(L, sampleRate, fallback, logger)
}

func build(L *lua.LState, sampleRate int, fallback timbre.Percussion, logger *slog.Logger) (*Kit, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fn := L.GetGlobal("drum")
	if fn.Type() != lua.LTFunction {
		return nil, errors.New("kit script must define drum(key, rate)")
	}
	k := &Kit{fallback: fallback}
	limit := MaxSeconds * sampleRate
	defined := 0
	for key := midi.FirstPercussion; key <= midi.LastPercussion; key++ {
		err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LNumber(key), lua.LNumber(sampleRate))
		if err != nil {
			return nil, errors.Wrapf(err, "render %s", key)
		}
		ret := L.Get(-1)
		L.Pop(1)
		tbl, ok := ret.(*lua.LTable)
		if !ok {
			continue
		}
		n := tbl.Len()
		if n > limit {
			n = limit
		}
		buf := make([]int8, n)
		for i := 0; i < n; i++ {
			num, ok := tbl.RawGetInt(i + 1).(lua.LNumber)
			if !ok {
				return nil, errors.Errorf("render %s: sample %d is not a number", key, i+1)
			}
			f := math.Max(-1, math.Min(1, float64(num)))
			buf[i] = int8(math.Round(f * 127))
		}
		k.drums[key-midi.FirstPercussion] = buf
		defined++
	}
	logger.Debug("lua kit loaded", "drums", defined)
	return k, nil
}

// Defined reports whether the script rendered key.
func (k *Kit) Defined(key midi.Percussion) bool {
	return key.Valid() && k.drums[key-midi.FirstPercussion] != nil
}

// Sample implements timbre.Percussion.
func (k *Kit) Sample(key midi.Percussion, idx uint32, scratch *[4]uint32) (int8, bool) {
	if !k.Defined(key) {
		if k.fallback == nil {
			return 0, true
		}
		return k.fallback.Sample(key, idx, scratch)
	}
	buf := k.drums[key-midi.FirstPercussion]
	if idx >= uint32(len(buf)) {
		return 0, true
	}
	return buf[idx], false
}
