package dac

import "sync/atomic"

// Silence is the biased zero sample the device plays on underrun.
const Silence = 0x80

type descriptor struct {
	buf    []byte
	loaded atomic.Bool
}

// Ring is the set of DMA descriptors shared between the fill side and a
// device. The fill side loads a descriptor only after the device handed it
// back through the completion callback; the device reads descriptors in
// order and hands each back once it is drained. Ownership moves through
// the per-descriptor loaded flag.
type Ring struct {
	descs  []descriptor
	size   int
	notify func(int)

	// Pull side only.
	cur int
	off int

	underruns atomic.Uint64
	recycled  atomic.Uint64
}

// NewRing allocates n descriptors of size bytes. notify runs on the device
// side each time a descriptor has been played.
func NewRing(n, size int, notify func(int)) *Ring {
	r := &Ring{descs: make([]descriptor, n), size: size, notify: notify}
	for i := range r.descs {
		r.descs[i].buf = make([]byte, size)
	}
	return r
}

// Len returns the number of descriptors.
func (r *Ring) Len() int { return len(r.descs) }

// Size returns the bytes per descriptor.
func (r *Ring) Size() int { return r.size }

// Load copies data into descriptor i and hands it to the device.
func (r *Ring) Load(i int, data []byte) {
	d := &r.descs[i]
	n := copy(d.buf, data)
	for ; n < len(d.buf); n++ {
		d.buf[n] = Silence
	}
	d.loaded.Store(true)
}

// Loaded reports whether descriptor i is waiting to be played.
func (r *Ring) Loaded(i int) bool { return r.descs[i].loaded.Load() }

// Read fills p with the next bytes of output. It never blocks: when the
// current descriptor is not loaded the rest of p is silence. An unloaded
// descriptor followed by a loaded one is skipped and notified again.
func (r *Ring) Read(p []byte) int {
	n := 0
	for n < len(p) {
		d := &r.descs[r.cur]
		if !d.loaded.Load() {
			// Loads follow completion order, so a loaded successor means
			// the completion for cur was dropped. Hand it back again.
			if next := (r.cur + 1) % len(r.descs); r.off == 0 && r.descs[next].loaded.Load() {
				lost := r.cur
				r.cur = next
				r.recycled.Add(1)
				if r.notify != nil {
					r.notify(lost)
				}
				continue
			}
			for ; n < len(p); n++ {
				p[n] = Silence
			}
			r.underruns.Add(1)
			break
		}
		c := copy(p[n:], d.buf[r.off:])
		n += c
		r.off += c
		if r.off == r.size {
			done := r.cur
			r.off = 0
			r.cur = (r.cur + 1) % len(r.descs)
			d.loaded.Store(false)
			if r.notify != nil {
				r.notify(done)
			}
		}
	}
	return n
}

// Underruns returns how many reads found no loaded descriptor.
func (r *Ring) Underruns() uint64 { return r.underruns.Load() }

// Recycled returns how many unloaded descriptors were skipped and handed
// back because their completion never reached the fill side.
func (r *Ring) Recycled() uint64 { return r.recycled.Load() }

// reset rewinds the pull side. The device must be stopped.
func (r *Ring) reset() {
	r.cur, r.off = 0, 0
	for i := range r.descs {
		r.descs[i].loaded.Store(false)
	}
}
