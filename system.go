package midisynth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/cbegin/midisynth-go/internal/dac"
	"github.com/cbegin/midisynth-go/internal/midifile"
	"github.com/cbegin/midisynth-go/internal/mixer"
	"github.com/cbegin/midisynth-go/internal/timbre"
)

// Track selects one of the system players.
type Track int

const (
	TrackEffects Track = iota
	TrackMusic
	trackCount
)

func (t Track) String() string {
	if t == TrackMusic {
		return "music"
	}
	return "effects"
}

// MaxVolume is the loudest SetVolume step.
const MaxVolume = 13

// volumeTable maps volume steps to headroom. The top step is the default
// headroom.
var volumeTable = [MaxVolume + 1]uint16{0, 365, 480, 632, 832, 1094, 1440, 1894, 2493, 3280, 4315, 5678, 7471, 9830}

// Headroom returns the headroom for a volume step, clamped to 0..MaxVolume.
func Headroom(level int) uint16 {
	if level < 0 {
		level = 0
	}
	if level > MaxVolume {
		level = MaxVolume
	}
	return volumeTable[level]
}

type SystemOption func(*systemConfig)

type systemConfig struct {
	library *timbre.Library
	logger  *slog.Logger
	device  dac.Device
	dacOpts []dac.Option
	volumes [trackCount]int
}

func WithSystemLibrary(lib *timbre.Library) SystemOption {
	return func(cfg *systemConfig) { cfg.library = lib }
}

func WithSystemLogger(logger *slog.Logger) SystemOption {
	return func(cfg *systemConfig) { cfg.logger = logger }
}

// WithDevice sets the output device Start drives.
func WithDevice(dev dac.Device, opts ...dac.Option) SystemOption {
	return func(cfg *systemConfig) {
		cfg.device = dev
		cfg.dacOpts = opts
	}
}

// WithVolumes sets the initial effects and music volume steps.
func WithVolumes(effects, music int) SystemOption {
	return func(cfg *systemConfig) {
		cfg.volumes = [trackCount]int{effects, music}
	}
}

// System is the pair of players behind the global audio output: effects
// on track 0 and music on track 1, mixed into one stream.
type System struct {
	players [trackCount]*Player
	volumes [trackCount]int
	sources []mixer.Source
	logger  *slog.Logger

	device  dac.Device
	dacOpts []dac.Option

	mu       sync.Mutex
	pipeline *dac.Pipeline
}

// Snapshot is a saved copy of both players.
type Snapshot struct {
	players [trackCount]Player
	volumes [trackCount]int
}

func NewSystem(sampleRate int, opts ...SystemOption) (*System, error) {
	cfg := systemConfig{volumes: [trackCount]int{MaxVolume, MaxVolume}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if sampleRate > 0 && cfg.library == nil {
		cfg.library = defaultLibrary(sampleRate)
	}
	s := &System{logger: cfg.logger, device: cfg.device, dacOpts: cfg.dacOpts}
	for t := Track(0); t < trackCount; t++ {
		p, err := NewPlayer(sampleRate,
			WithLibrary(cfg.library),
			WithLogger(cfg.logger.With("track", t.String())),
		)
		if err != nil {
			return nil, err
		}
		s.players[t] = p
		s.sources = append(s.sources, p)
		s.SetVolume(t, cfg.volumes[t])
	}
	return s, nil
}

// Player returns the player for track, or nil for an unknown track.
func (s *System) Player(track Track) *Player {
	if track < 0 || track >= trackCount {
		return nil
	}
	return s.players[track]
}

// PlaySong starts song on track from the beginning.
func (s *System) PlaySong(track Track, song *midifile.Song, loop bool) {
	s.PlaySongFunc(track, song, loop, nil)
}

// PlaySongFunc starts song on track and runs onFinished once when it ends.
// A looping song never finishes.
func (s *System) PlaySongFunc(track Track, song *midifile.Song, loop bool, onFinished func()) {
	p := s.Player(track)
	if p == nil || song == nil {
		return
	}
	p.SetFile(song)
	p.SetLoop(loop)
	p.SetFinishedHandler(onFinished)
	p.Pause(false)
}

// SetVolume sets track to a step of the volume table, 0..MaxVolume.
func (s *System) SetVolume(track Track, level int) {
	p := s.Player(track)
	if p == nil {
		return
	}
	if level < 0 {
		level = 0
	}
	if level > MaxVolume {
		level = MaxVolume
	}
	s.volumes[track] = level
	p.SetHeadroom(volumeTable[level])
}

// Volume returns the volume step of track.
func (s *System) Volume(track Track) int {
	if s.Player(track) == nil {
		return 0
	}
	return s.volumes[track]
}

func (s *System) PauseAll() {
	for _, p := range s.players {
		p.Pause(true)
	}
}

func (s *System) ResumeAll() {
	for _, p := range s.players {
		p.Pause(false)
	}
}

// Stop pauses both players and silences them. With reset, songs also
// return to their beginning.
func (s *System) Stop(reset bool) {
	for _, p := range s.players {
		p.Pause(true)
		if reset {
			p.Rewind()
		} else {
			p.synth.Reset()
		}
	}
}

// Save copies the full playback state and then stops playback.
func (s *System) Save() *Snapshot {
	snap := &Snapshot{volumes: s.volumes}
	for i, p := range s.players {
		snap.players[i] = *p
	}
	s.Stop(false)
	return snap
}

// Restore returns both players to a saved state, resuming whatever was
// playing. A nil snapshot does nothing.
func (s *System) Restore(snap *Snapshot) {
	if snap == nil {
		return
	}
	for i, p := range s.players {
		*p = snap.players[i]
		p.bind()
	}
	s.volumes = snap.volumes
}

// FillBuffer mixes both players into dst. It matches dac.FillFunc.
func (s *System) FillBuffer(dst []byte) {
	mixer.FillMulti(s.sources, dst)
}

// Start builds the delivery pipeline on the configured device and starts
// output.
func (s *System) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipeline == nil {
		if s.device == nil {
			return errors.New("no output device configured")
		}
		opts := append([]dac.Option{dac.WithLogger(s.logger)}, s.dacOpts...)
		pl, err := dac.New(s.device, s.FillBuffer, opts...)
		if err != nil {
			return err
		}
		s.pipeline = pl
	}
	return s.pipeline.Start()
}

// Pipeline returns the delivery pipeline once Start has built it.
func (s *System) Pipeline() *dac.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline
}

// Run services device completions until ctx ends. Control functions sent on
// control run between refills; use it for every call into the players.
func (s *System) Run(ctx context.Context, control <-chan func()) error {
	pl := s.Pipeline()
	if pl == nil {
		return errors.New("system not started")
	}
	return pl.Run(ctx, control)
}

// Close stops output and releases the device. It is safe to call
// repeatedly.
func (s *System) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipeline == nil {
		if s.device != nil {
			err := s.device.Close()
			s.device = nil
			return err
		}
		return nil
	}
	return s.pipeline.Close()
}
