// Package midifile loads Standard MIDI Files into a single tick-ordered
// event list the sequencer can walk with a copyable cursor.
package midifile

import (
	"bytes"
	"io"
	"math"
	"os"

	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/midisynth-go/internal/midi"
)

// headerSize covers the MThd chunk id, length and its six-byte body.
const headerSize = 14

// Song is a parsed file. Events from every track are merged by absolute
// tick; ties keep track order. The last event is a single end-of-track meta
// at the end of the longest track. A Song is never modified after loading.
type Song struct {
	Events   []midi.Event
	Division uint16
	Format   uint16
	Tracks   int
	// Name is the first track name found in the file.
	Name string
}

// Length returns the tick of the final event.
func (s *Song) Length() uint32 {
	if len(s.Events) == 0 {
		return 0
	}
	return s.Events[len(s.Events)-1].Tick
}

// Load reads the file at path.
func Load(path string, opts ...Option) (*Song, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read midi file")
	}
	song, err := Parse(data, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return song, nil
}

// Read parses a file from r.
func Read(r io.Reader, opts ...Option) (*Song, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read midi data")
	}
	return Parse(data, opts...)
}

// Parse decodes an in-memory file.
func Parse(data []byte, opts ...Option) (*Song, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if !filetype.Is(data, "mid") {
		return nil, errors.New("not a standard midi file")
	}
	if len(data) < headerSize {
		return nil, errors.New("short midi header")
	}
	if data[12]&0x80 != 0 {
		return nil, errors.Errorf("unsupported SMPTE division %#04x", uint16(data[12])<<8|uint16(data[13]))
	}
	f, err := readContainer(data)
	if err != nil {
		return nil, err
	}
	ticks, ok := f.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, errors.Errorf("unsupported time format %v", f.TimeFormat)
	}
	song := &Song{
		Division: ticks.Resolution(),
		Format:   f.Format(),
		Tracks:   len(f.Tracks),
	}
	if song.Division == 0 {
		return nil, errors.New("zero ticks per quarter note")
	}

	tracks := make([][]midi.Event, len(f.Tracks))
	var end uint32
	for i, tr := range f.Tracks {
		var tick uint32
		for _, ev := range tr {
			tick += ev.Delta
			e, keep := convert(ev.Message, tick, o.decoder)
			if !keep {
				continue
			}
			if e.Type == midi.Meta && e.Meta == midi.MetaTrackName && song.Name == "" {
				song.Name = e.Text
			}
			tracks[i] = append(tracks[i], e)
		}
		if tick > end {
			end = tick
		}
	}
	song.Events = merge(tracks)
	song.Events = append(song.Events, midi.Event{Tick: end, Type: midi.Meta, Meta: midi.MetaEndOfTrack})
	return song, nil
}

// readContainer parses data with smf, turning a panic on corrupt input into
// an error.
func readContainer(data []byte) (f *smf.SMF, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, errors.Errorf("parse midi container: %v", r)
		}
	}()
	f, err = smf.ReadFrom(bytes.NewReader(data))
	return f, errors.Wrap(err, "parse midi container")
}

// convert turns one container message into an event. End-of-track markers
// and unknown messages are dropped.
func convert(msg smf.Message, tick uint32, dec textDecoder) (midi.Event, bool) {
	raw := []byte(msg)
	if len(raw) == 0 {
		return midi.Event{}, false
	}
	e := midi.Event{Tick: tick}
	if raw[0] == 0xFF {
		if len(raw) < 2 {
			return e, false
		}
		e.Type = midi.Meta
		e.Meta = midi.MetaType(raw[1])
		payload := metaPayload(raw)
		switch {
		case e.Meta == midi.MetaEndOfTrack:
			return e, false
		case e.Meta == midi.MetaTempo:
			var bpm float64
			if !msg.GetMetaTempo(&bpm) || bpm <= 0 {
				return e, false
			}
			e.Tempo = uint32(math.Round(60_000_000 / bpm))
		case e.Meta.IsText():
			e.Text = dec(payload)
		default:
			e.Data = payload
		}
		return e, true
	}
	ev, ok := midi.Decode(raw)
	ev.Tick = tick
	return ev, ok
}

// metaPayload strips the FF, type and variable-length size prefix.
func metaPayload(raw []byte) []byte {
	i := 2
	var n int
	for i < len(raw) {
		b := raw[i]
		i++
		n = n<<7 | int(b&0x7F)
		if b&0x80 == 0 {
			break
		}
	}
	if i+n > len(raw) {
		n = len(raw) - i
	}
	if n <= 0 {
		return nil
	}
	return raw[i : i+n]
}
