package mixer

import "testing"

type constSource struct {
	value    int32
	headroom uint16
	clips    int
	renders  int
}

func (c *constSource) Render() int32    { c.renders++; return c.value }
func (c *constSource) Headroom() uint16 { return c.headroom }
func (c *constSource) Clip()            { c.clips++ }

func TestZeroHeadroomIsSilent(t *testing.T) {
	src := &constSource{value: 1 << 20, headroom: 0}
	buf := make([]byte, 64)
	Fill(src, buf)
	for i, b := range buf {
		if b != Silence {
			t.Fatalf("buf[%d] = %#x", i, b)
		}
	}
	if src.renders != len(buf) || src.clips != 0 {
		t.Fatalf("renders %d clips %d", src.renders, src.clips)
	}
}

func TestFillScalesAndClips(t *testing.T) {
	// With headroom 1<<12 the output is value >> 10.
	tests := []struct {
		name  string
		value int32
		want  byte
		clips int
	}{
		{"zero", 0, 0x80, 0},
		{"positive", 10 << 10, 0x80 + 10, 0},
		{"negative", -10 << 10, 0x80 - 10, 0},
		{"edge", 127 << 10, 0xFF, 0},
		{"high", 1 << 20, 0xFF, 4},
		{"low", -1 << 20, 0x00, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &constSource{value: tt.value, headroom: 1 << 12}
			buf := make([]byte, 4)
			Fill(src, buf)
			if buf[0] != tt.want || src.clips != tt.clips {
				t.Fatalf("got %#x with %d clips, want %#x with %d", buf[0], src.clips, tt.want, tt.clips)
			}
		})
	}
}

func TestFillMultiSumsWithoutCounting(t *testing.T) {
	a := &constSource{value: 1 << 10, headroom: 1 << 12}
	b := &constSource{value: 1 << 10, headroom: 1 << 12}
	buf := make([]byte, 8)
	FillMulti([]Source{a, b}, buf)
	// Each contributes 2^22 >> 22 = 1.
	if buf[0] != 0x82 {
		t.Fatalf("got %#x, want 0x82", buf[0])
	}
	loud := &constSource{value: 1 << 30, headroom: MaxHeadroom}
	FillMulti([]Source{loud, a}, buf)
	if buf[7] != 0xFF || loud.clips != 0 {
		t.Fatalf("got %#x, clips %d", buf[7], loud.clips)
	}
	if a.renders != 16 {
		t.Fatalf("every source renders once per sample, got %d", a.renders)
	}
}
