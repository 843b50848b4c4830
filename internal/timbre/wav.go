package timbre

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// DecodeWAV reads an uncompressed 8- or 16-bit PCM WAV stream and returns
// its samples down-mixed to signed 8-bit mono together with the recording
// rate.
func DecodeWAV(r io.Reader) ([]int8, uint32, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, 0, errors.Wrap(err, "read RIFF header")
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, 0, errors.New("not a RIFF/WAVE stream")
	}
	var (
		channels, bits uint16
		rate           uint32
		haveFmt        bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, 0, errors.Wrap(err, "read chunk header")
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, 0, errors.Wrapf(err, "read %q chunk", id)
		}
		// odd chunks carry a pad byte, often missing at end of file
		if size&1 == 1 && id != "data" {
			var pad [1]byte
			if _, err := io.ReadFull(r, pad[:]); err != nil && err != io.EOF {
				return nil, 0, errors.Wrapf(err, "read %q pad", id)
			}
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, errors.New("short fmt chunk")
			}
			if format := binary.LittleEndian.Uint16(body[0:2]); format != 1 {
				return nil, 0, errors.Errorf("unsupported WAV format %d", format)
			}
			channels = binary.LittleEndian.Uint16(body[2:4])
			rate = binary.LittleEndian.Uint32(body[4:8])
			bits = binary.LittleEndian.Uint16(body[14:16])
			if channels == 0 || (bits != 8 && bits != 16) {
				return nil, 0, errors.Errorf("unsupported WAV layout: %d channels, %d bits", channels, bits)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, errors.New("data chunk before fmt chunk")
			}
			return downmix(body, int(channels), int(bits)), rate, nil
		}
	}
}

func downmix(data []byte, channels, bits int) []int8 {
	width := bits / 8
	frames := len(data) / (width * channels)
	out := make([]int8, frames)
	for i := range out {
		sum := 0
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * width
			if bits == 8 {
				sum += int(data[off]) - 128
			} else {
				sum += int(int16(binary.LittleEndian.Uint16(data[off:]))) >> 8
			}
		}
		out[i] = int8(sum / channels)
	}
	return out
}
