package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"github.com/xlab/closer"

	"github.com/cbegin/midisynth-go"
	"github.com/cbegin/midisynth-go/internal/audio"
	"github.com/cbegin/midisynth-go/internal/config"
	"github.com/cbegin/midisynth-go/internal/dac"
	"github.com/cbegin/midisynth-go/internal/midi"
)

const stateInterval = 100 * time.Millisecond

var commonFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config, c",
		Usage: `Config file (yaml|toml|json)`,
	},
	cli.BoolFlag{
		Name:  "debug, d",
		Usage: `Show debug messages`,
	},
	cli.BoolFlag{
		Name:  "quiet, q",
		Usage: `Suppress information messages`,
	},
}

var outputFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "backend, b",
		Usage: `Audio backend (` + strings.Join(audio.Backends, "|") + `)`,
	},
	cli.StringFlag{
		Name:  "serial-port",
		Usage: `Serial port for the serial backend`,
	},
	cli.BoolFlag{
		Name:  "state, s",
		Usage: `Show state`,
	},
	cli.IntFlag{
		Name:  "volume, v",
		Usage: `Volume (0..13), overrides the config file`,
		Value: -1,
	},
}

func newLogger(ctx *cli.Context, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		level = cfg.Level()
	}
	if ctx.Bool("debug") {
		level = slog.LevelDebug
	} else if ctx.Bool("quiet") {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig reads the config file named by --config and applies command
// line overrides.
func loadConfig(ctx *cli.Context) (*config.Loader, *config.Config, error) {
	loader := config.NewLoader(ctx.String("config"), newLogger(ctx, nil))
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	if b := ctx.String("backend"); b != "" {
		cfg.Audio.Backend = b
	}
	if p := ctx.String("serial-port"); p != "" {
		cfg.Audio.SerialPort = p
	}
	if v := ctx.Int("volume"); v >= 0 {
		cfg.Volume.Effects = v
		cfg.Volume.Music = v
	}
	if ctx.IsSet("loop") {
		cfg.Loop = ctx.Bool("loop")
	}
	return loader, cfg, cfg.Validate()
}

// newSystem builds the two-track system on the configured output device.
func newSystem(cfg *config.Config, logger *slog.Logger) (*midisynth.System, error) {
	lib, err := cfg.Library(logger)
	if err != nil {
		return nil, err
	}
	dev, err := audio.Open(cfg.Audio.Backend, audio.Options{
		SampleRate:  cfg.SampleRate,
		BufferBytes: cfg.Audio.BufferSize,
		SerialPort:  cfg.Audio.SerialPort,
		BaudRate:    cfg.Audio.BaudRate,
	})
	if err != nil {
		return nil, err
	}
	return midisynth.NewSystem(cfg.SampleRate,
		midisynth.WithSystemLibrary(lib),
		midisynth.WithSystemLogger(logger),
		midisynth.WithVolumes(cfg.Volume.Effects, cfg.Volume.Music),
		midisynth.WithDevice(dev,
			dac.WithBufferSize(cfg.Audio.BufferSize),
			dac.WithDescriptors(cfg.Audio.Descriptors),
		),
	)
}

func printText(logger *slog.Logger) func(midi.Event) {
	return func(e midi.Event) {
		logger.Info("text", "kind", metaName(e.Meta), "text", e.Text)
	}
}

func metaName(m midi.MetaType) string {
	switch m {
	case midi.MetaText:
		return "text"
	case midi.MetaCopyright:
		return "copyright"
	case midi.MetaTrackName:
		return "track"
	case midi.MetaInstrument:
		return "instrument"
	case midi.MetaLyric:
		return "lyric"
	case midi.MetaMarker:
		return "marker"
	case midi.MetaCuePoint:
		return "cue"
	}
	return fmt.Sprintf("meta-%02x", uint8(m))
}

type session struct {
	sys     *midisynth.System
	loader  *config.Loader
	cfg     *config.Config
	logger  *slog.Logger
	state   bool
	control chan func()
	ctx     context.Context
	cancel  context.CancelFunc
}

func newSession(sys *midisynth.System, loader *config.Loader, cfg *config.Config, logger *slog.Logger, state bool) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		sys:     sys,
		loader:  loader,
		cfg:     cfg,
		logger:  logger,
		state:   state,
		control: make(chan func()),
		ctx:     ctx,
		cancel:  cancel,
	}
	closer.Bind(func() {
		cancel()
		if err := sys.Close(); err != nil {
			logger.Warn("close output", "err", err)
		}
	})
	return s
}

// run starts output and services it until the session is cancelled.
func (s *session) run() error {
	if err := s.sys.Start(); err != nil {
		return err
	}
	if s.cfg.Watch {
		err := s.loader.Watch(func(c *config.Config) {
			s.post(func() {
				s.sys.SetVolume(midisynth.TrackEffects, c.Volume.Effects)
				s.sys.SetVolume(midisynth.TrackMusic, c.Volume.Music)
			})
		})
		if err != nil {
			s.logger.Warn("config watch disabled", "err", err)
		}
	}
	if s.state {
		go s.showState()
	}
	err := s.sys.Run(s.ctx, s.control)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if cerr := s.sys.Close(); err == nil {
		err = cerr
	}
	return err
}

// post runs fn on the audio goroutine. It gives up once the session ends.
func (s *session) post(fn func()) {
	select {
	case s.control <- fn:
	case <-s.ctx.Done():
	}
}

func (s *session) showState() {
	t := time.NewTicker(stateInterval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			views := make(chan stateView, 1)
			s.post(func() { views <- captureState(s.sys) })
			select {
			case view := <-views:
				view.print(os.Stdout)
			case <-s.ctx.Done():
				return
			}
		}
	}
}

func exitError(err error) error {
	if err == nil {
		return nil
	}
	return cli.NewExitError(err, 1)
}
