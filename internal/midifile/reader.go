package midifile

import "github.com/cbegin/midisynth-go/internal/midi"

// Reader walks a Song. It is a small value: copying a Reader copies its
// position, and the underlying Song is shared read-only.
type Reader struct {
	song *Song
	pos  int
}

// NewReader returns a reader at the start of song.
func NewReader(song *Song) Reader {
	return Reader{song: song}
}

// Next returns the next event, or false at the end of the song.
func (r *Reader) Next() (midi.Event, bool) {
	if r.song == nil || r.pos >= len(r.song.Events) {
		return midi.Event{}, false
	}
	e := r.song.Events[r.pos]
	r.pos++
	return e, true
}

// Rewind moves back to the first event.
func (r *Reader) Rewind() { r.pos = 0 }

// Division returns ticks per quarter note.
func (r *Reader) Division() uint16 {
	if r.song == nil {
		return 0
	}
	return r.song.Division
}

// Song returns the song being read.
func (r *Reader) Song() *Song { return r.song }

// Valid reports whether the reader has a song.
func (r *Reader) Valid() bool { return r.song != nil }
