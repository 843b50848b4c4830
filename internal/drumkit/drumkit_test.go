package drumkit

import (
	"testing"

	"github.com/cbegin/midisynth-go/internal/midi"
)

func TestEveryKeyFinishes(t *testing.T) {
	k := New(32768)
	for key := midi.FirstPercussion; key <= midi.LastPercussion; key++ {
		t.Run(key.String(), func(t *testing.T) {
			n := k.Length(key)
			if n == 0 {
				t.Fatal("zero length drum")
			}
			var scratch [4]uint32
			loud := false
			for i := uint32(0); i < n; i++ {
				s, done := k.Sample(key, i, &scratch)
				if done {
					t.Fatalf("finished early at %d of %d", i, n)
				}
				if s > 8 || s < -8 {
					loud = true
				}
			}
			if !loud {
				t.Fatal("drum never made a sound")
			}
			if _, done := k.Sample(key, n, &scratch); !done {
				t.Fatal("drum did not report done at its length")
			}
		})
	}
}

func TestOutOfRangeKeyIsSilent(t *testing.T) {
	k := New(32768)
	var scratch [4]uint32
	if s, done := k.Sample(midi.Percussion(20), 0, &scratch); s != 0 || !done {
		t.Fatalf("got %d,%v want 0,true", s, done)
	}
	if k.Length(midi.Percussion(100)) != 0 {
		t.Fatal("out of range length should be 0")
	}
}

func TestDeterministic(t *testing.T) {
	k := New(22050)
	render := func() []int8 {
		var scratch [4]uint32
		out := make([]int8, 0, 512)
		for i := uint32(0); i < 512; i++ {
			s, _ := k.Sample(midi.AcousticSnare, i, &scratch)
			out = append(out, s)
		}
		return out
	}
	a, b := render(), render()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %d vs %d", i, a[i], b[i])
		}
	}
}
