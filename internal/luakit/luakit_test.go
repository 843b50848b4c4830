package luakit

import (
	"testing"

	"github.com/cbegin/midisynth-go/internal/midi"
	"github.com/cbegin/midisynth-go/internal/timbre"
)

const script = `
function drum(key, rate)
  if key ~= 36 then
    return nil
  end
  local out = {}
  for i = 1, 4 do
    out[i] = (i % 2 == 0) and 1 or -1
  end
  out[5] = 3 -- clamped
  return out
end
`

func TestScriptedDrumIsPrerendered(t *testing.T) {
	fallbackCalls := 0
	fallback := timbre.PercussionFunc(func(midi.Percussion, uint32, *[4]uint32) (int8, bool) {
		fallbackCalls++
		return 5, false
	})
	k, err := LoadString(script, 8000, fallback, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !k.Defined(midi.BassDrum1) || k.Defined(midi.AcousticSnare) {
		t.Fatal("wrong set of defined drums")
	}
	var scratch [4]uint32
	want := []int8{-127, 127, -127, 127, 127}
	for i, w := range want {
		s, done := k.Sample(midi.BassDrum1, uint32(i), &scratch)
		if done || s != w {
			t.Fatalf("sample %d = %d,%v want %d", i, s, done, w)
		}
	}
	if _, done := k.Sample(midi.BassDrum1, 5, &scratch); !done {
		t.Fatal("scripted drum should end after its samples")
	}
	if s, _ := k.Sample(midi.AcousticSnare, 0, &scratch); s != 5 || fallbackCalls != 1 {
		t.Fatalf("undefined key should use fallback, got %d after %d calls", s, fallbackCalls)
	}
}

func TestScriptErrors(t *testing.T) {
	if _, err := LoadString("x = 1", 8000, nil, nil); err == nil {
		t.Fatal("missing drum function should fail")
	}
	if _, err := LoadString("function drum(", 8000, nil, nil); err == nil {
		t.Fatal("syntax error should fail")
	}
	if _, err := LoadString(`function drum(k, r) return {"a"} end`, 8000, nil, nil); err == nil {
		t.Fatal("non-numeric sample should fail")
	}
	if _, err := LoadString(`function drum(k, r) error("boom") end`, 8000, nil, nil); err == nil {
		t.Fatal("runtime error should fail")
	}
}

func TestNoFallbackIsSilent(t *testing.T) {
	k, err := LoadString(`function drum(k, r) return nil end`, 8000, nil, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var scratch [4]uint32
	if s, done := k.Sample(midi.Claves, 0, &scratch); s != 0 || !done {
		t.Fatalf("got %d,%v", s, done)
	}
}
