package config

import (
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"github.com/cbegin/midisynth-go/internal/drumkit"
	"github.com/cbegin/midisynth-go/internal/envelope"
	"github.com/cbegin/midisynth-go/internal/luakit"
	"github.com/cbegin/midisynth-go/internal/timbre"
	"github.com/cbegin/midisynth-go/internal/wavetable"
)

// sampleReleaseMs is the release time given to configured sample programs.
const sampleReleaseMs = 150

// Library builds the General MIDI timbre library described by c: the
// built-in wavetables plus configured ones, the synthesized drum kit or a
// Lua kit over it, and WAV samples installed as programs.
func (c *Config) Library(logger *slog.Logger) (*timbre.Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bank := wavetable.Default()
	if len(c.Wavetables) > 0 {
		bank = wavetable.NewBank()
		n := bank.LoadWAVB(c.Wavetables)
		logger.Info("wavetables loaded", "count", n, "configured", len(c.Wavetables))
	}

	var drums timbre.Percussion = drumkit.New(c.SampleRate)
	if c.KitScript != "" {
		kit, err := luakit.LoadFile(c.KitScript, c.SampleRate, drums, logger)
		if err != nil {
			return nil, errors.Wrap(err, "load kit script")
		}
		drums = kit
	}
	lib := timbre.NewGMLibrary(c.SampleRate, bank, drums)

	for _, s := range c.Samples {
		t, err := c.loadSample(s)
		if err != nil {
			return nil, err
		}
		lib.SetProgram(uint16(s.Bank), uint8(s.Program), t)
		logger.Debug("sample program installed", "name", t.Name, "bank", s.Bank, "program", s.Program)
	}
	return lib, nil
}

func (c *Config) loadSample(s Sample) (timbre.Timbre, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return timbre.Timbre{}, errors.Wrapf(err, "open sample %s", s.Path)
	}
	defer f.Close()
	data, rate, err := timbre.DecodeWAV(f)
	if err != nil {
		return timbre.Timbre{}, errors.Wrapf(err, "decode sample %s", s.Path)
	}
	name := s.Name
	if name == "" {
		name = s.Path
	}
	env := envelope.Envelope{
		SustainVol:  255,
		ReleaseTime: uint32(uint64(sampleReleaseMs) * uint64(c.SampleRate) / 1000),
	}
	return timbre.NewSample(name, timbre.Sample{
		Data:     data,
		Rate:     rate,
		BaseNote: uint32(s.BaseNote) << 24,
		Loop:     uint32(s.Loop),
	}, env), nil
}
