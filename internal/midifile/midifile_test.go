package midifile

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/cbegin/midisynth-go/internal/midi"
)

func chunk(id string, body []byte) []byte {
	out := append([]byte(id), 0, 0, 0, 0)
	binary.BigEndian.PutUint32(out[4:], uint32(len(body)))
	return append(out, body...)
}

func testFile() []byte {
	header := chunk("MThd", []byte{0, 1, 0, 2, 0, 96})
	conductor := chunk("MTrk", []byte{
		0x00, 0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20, // tempo 500000
		0x00, 0xFF, 0x03, 0x04, 'S', 'o', 'n', 'g',
		0x60, 0xFF, 0x2F, 0x00,
	})
	notes := chunk("MTrk", []byte{
		0x00, 0x90, 0x3C, 0x64,
		0x30, 0x80, 0x3C, 0x40,
		0x00, 0xC0, 0x05,
		0x81, 0x00, 0xE0, 0x00, 0x40,
		0x00, 0xFF, 0x01, 0x01, 0xE9,
		0x00, 0xFF, 0x2F, 0x00,
	})
	data := append(header, conductor...)
	return append(data, notes...)
}

func TestParseMergesTracks(t *testing.T) {
	song, err := Parse(testFile())
	require.NoError(t, err)
	require.Equal(t, uint16(96), song.Division)
	require.Equal(t, uint16(1), song.Format)
	require.Equal(t, 2, song.Tracks)
	require.Equal(t, "Song", song.Name)

	type key struct {
		tick uint32
		typ  midi.EventType
	}
	var got []key
	for _, e := range song.Events {
		got = append(got, key{e.Tick, e.Type})
	}
	require.Equal(t, []key{
		{0, midi.Meta},
		{0, midi.Meta},
		{0, midi.NoteOn},
		{48, midi.NoteOff},
		{48, midi.ProgramChange},
		{176, midi.PitchBend},
		{176, midi.Meta},
		{176, midi.Meta},
	}, got)

	require.Equal(t, uint32(midi.DefaultTempo), song.Events[0].Tempo)
	on := song.Events[2]
	require.Equal(t, uint8(0), on.Channel)
	require.Equal(t, uint8(60), on.Data1)
	require.Equal(t, uint8(100), on.Data2)
	require.Equal(t, uint8(5), song.Events[4].Data1)
	require.Equal(t, uint16(midi.PitchBendCenter), song.Events[5].Bend)
	require.Equal(t, "é", song.Events[6].Text)
	require.Equal(t, midi.MetaEndOfTrack, song.Events[7].Meta)
	require.Equal(t, uint32(176), song.Length())
}

func TestParseRejectsOtherFormats(t *testing.T) {
	_, err := Parse([]byte("RIFF....WAVEfmt "))
	require.Error(t, err)

	_, err = Parse(chunk("MThd", []byte{0, 0, 0, 1, 0xE7, 0x28}))
	require.ErrorContains(t, err, "SMPTE")

	_, err = Parse(chunk("MThd", []byte{0, 0}))
	require.ErrorContains(t, err, "short midi header")

	_, err = Load("testdata/missing.mid")
	require.Error(t, err)
}

func TestReadContainerRecovers(t *testing.T) {
	// smf panics on a timecode division
	f, err := readContainer(chunk("MThd", []byte{0, 0, 0, 1, 0xE7, 0x28}))
	require.Error(t, err)
	require.Nil(t, f)
}

func TestReaderCopiesPosition(t *testing.T) {
	song, err := Parse(testFile())
	require.NoError(t, err)
	r := NewReader(song)
	first, ok := r.Next()
	require.True(t, ok)
	snap := r
	second, _ := r.Next()
	again, _ := snap.Next()
	require.Equal(t, second, again)

	r.Rewind()
	e, _ := r.Next()
	require.Equal(t, first, e)

	var empty Reader
	_, ok = empty.Next()
	require.False(t, ok)
	require.Zero(t, empty.Division())
}

func TestMergeKeepsTrackOrderOnTies(t *testing.T) {
	tracks := [][]midi.Event{
		{{Tick: 0, Data1: 1}, {Tick: 10, Data1: 3}},
		{},
		{{Tick: 0, Data1: 2}, {Tick: 5, Data1: 4}, {Tick: 10, Data1: 5}},
	}
	var order []uint8
	for _, e := range merge(tracks) {
		order = append(order, e.Data1)
	}
	require.Equal(t, []uint8{1, 2, 4, 3, 5}, order)
}

func TestTextEncodings(t *testing.T) {
	require.Equal(t, "abc", decodeAuto([]byte("abc")))
	require.Equal(t, "日本", decodeAuto([]byte{0x93, 0xFA, 0x96, 0x7B}))
	require.Equal(t, charmap.ISO8859_1, TextEncoding("latin1"))
	require.Nil(t, TextEncoding("auto"))

	song, err := Parse(testFile(), WithTextEncoding(charmap.ISO8859_1))
	require.NoError(t, err)
	require.Equal(t, "é", song.Events[6].Text)
}
