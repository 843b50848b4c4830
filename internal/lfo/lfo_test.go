package lfo

import "testing"

func TestLFOTriangleBasicShape(t *testing.T) {
	l := &LFO{}
	l.Set(100, 1000, WaveTriangle, 100) // 1 Hz at 100 samples per second

	if got := l.Value(); got != 0 {
		t.Errorf("triangle at phase 0: got %d, want 0", got)
	}
	if got := l.Advance(25); got < 99 || got > 100 {
		t.Errorf("triangle at phase 0.25: got %d, want 100", got)
	}
	if got := l.Advance(25); got < -1 || got > 1 {
		t.Errorf("triangle at phase 0.5: got %d, want ~0", got)
	}
	if got := l.Advance(25); got < -100 || got > -99 {
		t.Errorf("triangle at phase 0.75: got %d, want -100", got)
	}
}

func TestLFOSquareShape(t *testing.T) {
	l := &LFO{}
	l.Set(50, 1000, WaveSquare, 100)
	if got := l.Advance(1); got != 49 {
		t.Errorf("square first half: got %d, want 49", got)
	}
	if got := l.Advance(50); got != -50 {
		t.Errorf("square second half: got %d, want -50", got)
	}
}

func TestLFOSawShape(t *testing.T) {
	l := &LFO{}
	l.Set(64, 1000, WaveSaw, 100)
	if got := l.Value(); got != -64 {
		t.Errorf("saw at phase 0: got %d, want -64", got)
	}
	if got := l.Advance(50); got < -1 || got > 1 {
		t.Errorf("saw at phase 0.5: got %d, want ~0", got)
	}
}

func TestLFOInactive(t *testing.T) {
	l := &LFO{}
	if l.Active() {
		t.Fatal("zero LFO should be inactive")
	}
	if got := l.Advance(1000); got != 0 {
		t.Fatalf("inactive LFO returned %d", got)
	}
	l.Set(0, 5000, WaveTriangle, 32768)
	if l.Active() {
		t.Fatal("zero depth should be inactive")
	}
	l.SetDepth(20)
	if !l.Active() || l.Depth() != 20 {
		t.Fatal("SetDepth should activate the LFO")
	}
}

func TestLFOReset(t *testing.T) {
	l := &LFO{}
	l.Set(100, 1000, WaveTriangle, 100)
	l.Advance(30)
	l.Reset()
	if got := l.Value(); got != 0 {
		t.Fatalf("after reset got %d, want 0", got)
	}
}
