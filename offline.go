package midisynth

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/cbegin/midisynth-go/internal/dac"
	"github.com/cbegin/midisynth-go/internal/midifile"
)

// renderDescriptors is the ring depth used when rendering offline.
const renderDescriptors = 2

// RenderSong plays song once through a Player and the DAC pipeline and
// returns the biased 8-bit mono output. Rendering stops when the song has
// ended and every voice has finished, or after maxSeconds.
func RenderSong(song *midifile.Song, sampleRate int, maxSeconds float64, opts ...PlayerOption) ([]byte, error) {
	if song == nil {
		return nil, errors.New("nil song")
	}
	if maxSeconds <= 0 {
		return nil, errors.New("maxSeconds must be positive")
	}
	pl, err := NewPlayer(sampleRate, opts...)
	if err != nil {
		return nil, err
	}
	pl.SetFile(song)
	pl.SetLoop(false)

	dev := &dac.ManualDevice{}
	pipe, err := dac.New(dev, pl.FillBuffer,
		dac.WithBufferSize(dac.DefaultBufferSize),
		dac.WithDescriptors(renderDescriptors),
		dac.WithLogger(pl.logger),
	)
	if err != nil {
		return nil, err
	}
	if err := pipe.Start(); err != nil {
		return nil, err
	}
	defer pipe.Close()

	limit := int(float64(sampleRate) * maxSeconds)
	chunk := make([]byte, dac.DefaultBufferSize)
	out := make([]byte, 0, limit)
	tail := -1
	for len(out) < limit && tail != 0 {
		dev.Pull(chunk)
		out = append(out, chunk...)
		if tail > 0 {
			tail--
			continue
		}
		if pl.Finished() && pl.Active() == 0 {
			// The ring still holds rendered audio.
			tail = renderDescriptors - 1
			continue
		}
		pipe.Poll()
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// EncodeWAVU8 wraps biased 8-bit mono samples in a PCM WAV container.
func EncodeWAVU8(samples []byte, sampleRate int) []byte {
	dataSize := len(samples)
	chunkSize := 36 + dataSize + dataSize&1
	out := make([]byte, 44, 44+dataSize+dataSize&1)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1)
	binary.LittleEndian.PutUint16(out[22:], 1)
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate))
	binary.LittleEndian.PutUint16(out[32:], 1)
	binary.LittleEndian.PutUint16(out[34:], 8)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	out = append(out, samples...)
	if dataSize&1 != 0 {
		out = append(out, 0)
	}
	return out
}
