package stream

import (
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/midisynth-go/internal/midi"
	"github.com/cbegin/midisynth-go/internal/sequencer"
)

func TestQueueDecodesAndOrders(t *testing.T) {
	q := NewQueue(8)
	if !q.Push(gomidi.NoteOn(2, 60, 100)) {
		t.Fatal("note on rejected")
	}
	q.Push(gomidi.ControlChange(2, 7, 90))
	q.Push(gomidi.ProgramChange(2, 12))
	if q.Push(gomidi.Message{0xF8}) {
		t.Fatal("timing clock should be ignored")
	}

	var next sequencer.StreamFunc = q.Next
	e, ok := next()
	if !ok || e.Type != midi.NoteOn || e.Channel != 2 || e.Data1 != 60 || e.Data2 != 100 {
		t.Fatalf("first event = %+v", e)
	}
	e, _ = next()
	if e.Type != midi.ControlChange || e.Data1 != 7 || e.Data2 != 90 {
		t.Fatalf("second event = %+v", e)
	}
	e, _ = next()
	if e.Type != midi.ProgramChange || e.Data1 != 12 {
		t.Fatalf("third event = %+v", e)
	}
	if _, ok := next(); ok {
		t.Fatal("queue should be empty")
	}
}

func TestQueueDropsNewestWhenFull(t *testing.T) {
	q := NewQueue(2)
	q.PushEvent(midi.Event{Type: midi.NoteOn, Data1: 1})
	q.PushEvent(midi.Event{Type: midi.NoteOn, Data1: 2})
	if q.PushEvent(midi.Event{Type: midi.NoteOn, Data1: 3}) {
		t.Fatal("push into full queue succeeded")
	}
	if q.Dropped() != 1 || q.Len() != 2 {
		t.Fatalf("dropped=%d len=%d", q.Dropped(), q.Len())
	}
	e, _ := q.Next()
	if e.Data1 != 1 {
		t.Fatalf("oldest event lost: %+v", e)
	}
}

func TestDefaultQueueSize(t *testing.T) {
	if got := cap(NewQueue(0).ch); got != DefaultQueueSize {
		t.Fatalf("cap = %d", got)
	}
}
