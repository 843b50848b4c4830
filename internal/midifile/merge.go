package midifile

import (
	"container/heap"

	"github.com/cbegin/midisynth-go/internal/midi"
)

// cursor is the read position within one track.
type cursor struct {
	track int
	pos   int
}

// mergeQueue orders track cursors by the tick of their next event, then by
// track number.
type mergeQueue struct {
	tracks  [][]midi.Event
	cursors []cursor
}

func (q *mergeQueue) Len() int { return len(q.cursors) }

func (q *mergeQueue) Less(i, j int) bool {
	a, b := q.cursors[i], q.cursors[j]
	ta, tb := q.tracks[a.track][a.pos].Tick, q.tracks[b.track][b.pos].Tick
	if ta != tb {
		return ta < tb
	}
	return a.track < b.track
}

func (q *mergeQueue) Swap(i, j int) { q.cursors[i], q.cursors[j] = q.cursors[j], q.cursors[i] }

func (q *mergeQueue) Push(x any) { q.cursors = append(q.cursors, x.(cursor)) }

func (q *mergeQueue) Pop() any {
	n := len(q.cursors)
	c := q.cursors[n-1]
	q.cursors = q.cursors[:n-1]
	return c
}

// merge interleaves tick-sorted tracks into one tick-sorted list.
func merge(tracks [][]midi.Event) []midi.Event {
	total := 0
	q := &mergeQueue{tracks: tracks}
	for i, tr := range tracks {
		total += len(tr)
		if len(tr) > 0 {
			q.cursors = append(q.cursors, cursor{track: i})
		}
	}
	heap.Init(q)
	out := make([]midi.Event, 0, total+1)
	for q.Len() > 0 {
		c := &q.cursors[0]
		out = append(out, tracks[c.track][c.pos])
		c.pos++
		if c.pos == len(tracks[c.track]) {
			heap.Pop(q)
		} else {
			heap.Fix(q, 0)
		}
	}
	return out
}
