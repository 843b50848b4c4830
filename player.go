// Package midisynth is a polyphonic General MIDI software synthesizer that
// renders biased 8-bit mono audio for an interrupt-driven DAC.
package midisynth

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/cbegin/midisynth-go/internal/drumkit"
	"github.com/cbegin/midisynth-go/internal/midi"
	"github.com/cbegin/midisynth-go/internal/midifile"
	"github.com/cbegin/midisynth-go/internal/mixer"
	"github.com/cbegin/midisynth-go/internal/sequencer"
	"github.com/cbegin/midisynth-go/internal/synth"
	"github.com/cbegin/midisynth-go/internal/timbre"
)

// DefaultSampleRate matches the 32 kHz hardware DAC the mixer targets.
const DefaultSampleRate = 32768

type PlayerOption func(*playerConfig)

type playerConfig struct {
	library  *timbre.Library
	loop     bool
	headroom uint16
	logger   *slog.Logger
	onText   func(midi.Event)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{headroom: mixer.DefaultHeadroom}
}

// WithLibrary sets the program table. The default is the built-in General
// MIDI library with the synthesized drum kit.
func WithLibrary(lib *timbre.Library) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.library = lib
	}
}

func WithLoop(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.loop = enabled
	}
}

// WithHeadroom sets the output gain applied before clipping, 0..0x7FFF.
func WithHeadroom(headroom uint16) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.headroom = headroom
	}
}

func WithLogger(logger *slog.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.logger = logger
	}
}

// WithTextHandler installs a callback for text meta events (lyrics,
// markers, ...). It runs on the audio goroutine.
func WithTextHandler(fn func(midi.Event)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.onText = fn
	}
}

// Player is one synthesizer with its sequencer. It is not safe for
// concurrent use: control calls must come from the goroutine that fills
// buffers. A Player is a plain value; copying it snapshots playback.
type Player struct {
	sampleRate int
	synth      synth.Synth
	seq        sequencer.Sequencer
	headroom   uint16
	clipped    uint32
	logger     *slog.Logger
	onText     func(midi.Event)
	onFinished func()
	song       *midifile.Song
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.headroom > mixer.MaxHeadroom {
		return nil, errors.Errorf("headroom %#x exceeds %#x", cfg.headroom, mixer.MaxHeadroom)
	}
	if cfg.library == nil {
		cfg.library = defaultLibrary(sampleRate)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	p := &Player{
		sampleRate: sampleRate,
		synth:      *synth.New(sampleRate, cfg.library),
		seq:        *sequencer.NewWithOptions(sampleRate, sequencer.Options{Loop: cfg.loop}),
		headroom:   cfg.headroom,
		logger:     cfg.logger,
		onText:     cfg.onText,
	}
	p.bind()
	return p, nil
}

// bind points the sequencer callbacks at p.
func (p *Player) bind() {
	p.seq.SetCallbacks(p.handleEvent, p.handleText)
}

func (p *Player) handleEvent(kind sequencer.EventKind) {
	name := ""
	if p.song != nil {
		name = p.song.Name
	}
	switch kind {
	case sequencer.EventLoopCompleted:
		p.logger.Info("song looped", "song", name)
	case sequencer.EventPlaybackEnded:
		p.logger.Info("song finished", "song", name)
		if fn := p.onFinished; fn != nil {
			fn()
		}
	}
}

func (p *Player) handleText(ev midi.Event) {
	if p.onText != nil {
		p.onText(ev)
	}
}

func defaultLibrary(sampleRate int) *timbre.Library {
	return timbre.NewGMLibrary(sampleRate, nil, drumkit.New(sampleRate))
}

func (p *Player) SampleRate() int { return p.sampleRate }

// SetFile plays song from the start. Every channel returns to its General
// MIDI defaults.
func (p *Player) SetFile(song *midifile.Song) {
	p.song = song
	p.onFinished = nil
	p.synth.ResetAll()
	p.seq.SetFile(midifile.NewReader(song))
	p.logger.Info("song started", "song", song.Name, "ticks", song.Length(), "division", song.Division)
}

// SetStream plays live events pulled from fn on every sample.
func (p *Player) SetStream(fn sequencer.StreamFunc) {
	p.song = nil
	p.onFinished = nil
	p.seq.SetStream(fn)
}

// Stop detaches the event source. Sounding voices keep ringing out.
func (p *Player) Stop() {
	p.song = nil
	p.onFinished = nil
	p.seq.Stop()
}

// SetTextHandler replaces the text meta callback.
func (p *Player) SetTextHandler(fn func(midi.Event)) { p.onText = fn }

// SetFinishedHandler sets the callback run once when a non-looping song
// ends. SetFile, SetStream and Stop clear it.
func (p *Player) SetFinishedHandler(fn func()) { p.onFinished = fn }

func (p *Player) Song() *midifile.Song { return p.song }
func (p *Player) Finished() bool       { return p.seq.Finished() }
func (p *Player) Loop() bool           { return p.seq.Loop() }
func (p *Player) SetLoop(loop bool)    { p.seq.SetLoop(loop) }
func (p *Player) Tick() uint32         { return p.seq.Tick() }
func (p *Player) Tempo() uint32        { return p.seq.Tempo() }
func (p *Player) SampleCount() uint64  { return p.seq.SampleCount() }

// Pause freezes playback. A paused player renders silence and its voices
// hold their state.
func (p *Player) Pause(pause bool) { p.seq.SetPaused(pause) }
func (p *Player) Paused() bool     { return p.seq.Paused() }

// SetTempo overrides the tempo in microseconds per quarter note.
func (p *Player) SetTempo(tempo uint32) { p.seq.SetTempo(tempo) }

// Seek moves file playback to tick without sounding the skipped notes.
func (p *Player) Seek(tick uint32) { p.seq.Seek(&p.synth, tick) }

// Rewind restarts file playback from the first event with every channel at
// its defaults.
func (p *Player) Rewind() {
	p.synth.ResetAll()
	p.seq.Rewind()
}

// Reset silences every voice and restores General MIDI channel defaults.
func (p *Player) Reset() {
	p.synth.ResetAll()
	p.clipped = 0
}

func (p *Player) NoteOn(channel, note, velocity uint8) {
	p.synth.NoteOn(channel, note, velocity)
}

func (p *Player) NoteOff(channel, note, velocity uint8) {
	p.synth.NoteOff(channel, note, velocity)
}

func (p *Player) AfterTouch(channel, note, pressure uint8) {
	p.synth.AfterTouch(channel, note, pressure)
}

func (p *Player) ChannelPressure(channel, pressure uint8) {
	p.synth.ChannelPressure(channel, pressure)
}

func (p *Player) SetProgram(channel, program uint8) {
	p.synth.ProgramChange(channel, program)
}

func (p *Player) ControlChange(channel uint8, ctl midi.Control, value uint8) {
	p.synth.ControlChange(channel, ctl, value)
}

func (p *Player) Sustain(channel uint8, on bool)   { p.synth.Sustain(channel, on) }
func (p *Player) Sustenuto(channel uint8, on bool) { p.synth.Sustenuto(channel, on) }

// PitchWheel sets the 14-bit bend of channel; 0x2000 is centred.
func (p *Player) PitchWheel(channel uint8, value uint16) {
	p.synth.PitchWheel(channel, value)
}

func (p *Player) AllSoundOff(channel uint8)      { p.synth.AllSoundOff(channel) }
func (p *Player) AllNotesOff(channel uint8)      { p.synth.AllNotesOff(channel) }
func (p *Player) ResetControllers(channel uint8) { p.synth.ResetControllers(channel) }
func (p *Player) GMOn()                          { p.synth.GMOn() }
func (p *Player) GMOff()                         { p.synth.GMOff() }

func (p *Player) ControlValue(channel uint8, ctl midi.Control) uint8 {
	return p.synth.ControlValue(channel, ctl)
}

func (p *Player) ControlValue14(channel uint8, ctl midi.Control) uint16 {
	return p.synth.ControlValue14(channel, ctl)
}

// SetVolume sets the 14-bit global synth volume.
func (p *Player) SetVolume(v uint16) { p.synth.SetVolume(v) }
func (p *Player) Volume() uint16     { return p.synth.Volume() }

// SetIgnore drops every event for channel while on.
func (p *Player) SetIgnore(channel uint8, ignore bool) { p.synth.SetIgnore(channel, ignore) }

// SetHeadroom sets the gain applied before clipping, capped at 0x7FFF.
func (p *Player) SetHeadroom(h uint16) {
	if h > mixer.MaxHeadroom {
		h = mixer.MaxHeadroom
	}
	p.headroom = h
}

// Headroom implements mixer.Source.
func (p *Player) Headroom() uint16 { return p.headroom }

// Clip implements mixer.Source.
func (p *Player) Clip() { p.clipped++ }

// Clipped returns the number of saturated samples written by FillBuffer.
func (p *Player) Clipped() uint32 { return p.clipped }

// Step dispatches due events and renders one unscaled sample.
func (p *Player) Step() int32 { return p.seq.Advance(&p.synth) }

// Render implements mixer.Source.
func (p *Player) Render() int32 { return p.Step() }

// FillBuffer writes len(dst) biased 8-bit samples. It matches
// dac.FillFunc.
func (p *Player) FillBuffer(dst []byte) { mixer.Fill(p, dst) }

// VoiceStates returns the allocation and phase masks of a voice pool.
func (p *Player) VoiceStates(k synth.PoolKind) synth.PoolState { return p.synth.PoolState(k) }

func (p *Player) ChannelState(channel uint8) synth.ChannelState {
	return p.synth.ChannelState(channel)
}

// Voice returns a copy of voice i of pool k.
func (p *Player) Voice(k synth.PoolKind, i int) synth.Voice { return p.synth.Voice(k, i) }

// Active returns the number of sounding voices.
func (p *Player) Active() int { return p.synth.Active() }
