package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/cbegin/midisynth-go"
	"github.com/cbegin/midisynth-go/internal/midifile"
	"github.com/cbegin/midisynth-go/internal/sequencer"
	"github.com/cbegin/midisynth-go/internal/stream"
)

// finishGrace lets release tails ring out after a song ends.
const finishGrace = 500 * time.Millisecond

var playCmd = cli.Command{
	Name:      "play",
	Aliases:   []string{"p"},
	Usage:     "Play a Standard MIDI File",
	ArgsUsage: "<file.mid>",
	Flags: append(append([]cli.Flag{
		cli.BoolFlag{
			Name:  "loop, l",
			Usage: `Loop the song until interrupted`,
		},
		cli.StringFlag{
			Name:  "track, t",
			Usage: `Track to play on (music|effects)`,
			Value: "music",
		},
		cli.IntFlag{
			Name:  "seek",
			Usage: `Start position in ticks`,
		},
		cli.StringFlag{
			Name:  "encoding, e",
			Usage: `Text encoding of meta events (auto|utf8|sjis|latin1|cp1252)`,
		},
	}, commonFlags...), outputFlags...),
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 1 {
			cli.ShowCommandHelp(ctx, "play")
			return nil
		}
		return exitError(play(ctx, ctx.Args().First()))
	},
}

func play(ctx *cli.Context, path string) error {
	track, err := parseTrack(ctx.String("track"))
	if err != nil {
		return err
	}
	loader, cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := newLogger(ctx, cfg)

	enc := cfg.MIDI.TextEncoding
	if e := ctx.String("encoding"); e != "" {
		enc = e
	}
	song, err := midifile.Load(path, midifile.WithTextEncoding(midifile.TextEncoding(enc)))
	if err != nil {
		return err
	}
	logger.Info("song loaded", "file", path, "name", song.Name, "tracks", song.Tracks,
		"division", song.Division, "length", song.Length())

	sys, err := newSystem(cfg, logger)
	if err != nil {
		return err
	}
	s := newSession(sys, loader, cfg, logger, ctx.Bool("state"))

	p := sys.Player(track)
	p.SetTextHandler(printText(logger))
	sys.PlaySongFunc(track, song, cfg.Loop, func() {
		time.AfterFunc(finishGrace, s.cancel)
	})
	if seek := ctx.Int("seek"); seek > 0 {
		p.Seek(uint32(seek))
	}
	return s.run()
}

var renderCmd = cli.Command{
	Name:      "render",
	Aliases:   []string{"r"},
	Usage:     "Render a Standard MIDI File to an 8-bit WAV file",
	ArgsUsage: "<file.mid> <out.wav>",
	Flags: append([]cli.Flag{
		cli.Float64Flag{
			Name:  "seconds",
			Usage: `Maximum length in seconds`,
			Value: 600,
		},
		cli.StringFlag{
			Name:  "encoding, e",
			Usage: `Text encoding of meta events`,
		},
	}, commonFlags...),
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 2 {
			cli.ShowCommandHelp(ctx, "render")
			return nil
		}
		return exitError(render(ctx, ctx.Args().Get(0), ctx.Args().Get(1)))
	},
}

func render(ctx *cli.Context, in, out string) error {
	_, cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := newLogger(ctx, cfg)

	enc := cfg.MIDI.TextEncoding
	if e := ctx.String("encoding"); e != "" {
		enc = e
	}
	song, err := midifile.Load(in, midifile.WithTextEncoding(midifile.TextEncoding(enc)))
	if err != nil {
		return err
	}
	lib, err := cfg.Library(logger)
	if err != nil {
		return err
	}
	start := time.Now()
	samples, err := midisynth.RenderSong(song, cfg.SampleRate, ctx.Float64("seconds"),
		midisynth.WithLibrary(lib),
		midisynth.WithHeadroom(cfg.Headroom),
		midisynth.WithLogger(logger),
		midisynth.WithTextHandler(printText(logger)),
	)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, midisynth.EncodeWAVU8(samples, cfg.SampleRate), 0o644); err != nil {
		return errors.Wrap(err, "write wav")
	}
	logger.Info("rendered", "file", out, "samples", len(samples),
		"seconds", float64(len(samples))/float64(cfg.SampleRate), "elapsed", time.Since(start))
	return nil
}

var listenCmd = cli.Command{
	Name:      "listen",
	Aliases:   []string{"l"},
	Usage:     "Play live events from a MIDI input port",
	ArgsUsage: "[port]",
	Flags:     append(append([]cli.Flag{}, commonFlags...), outputFlags...),
	Action: func(ctx *cli.Context) error {
		return exitError(listen(ctx, ctx.Args().First()))
	},
}

func listen(ctx *cli.Context, port string) error {
	loader, cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := newLogger(ctx, cfg)
	if port == "" {
		port = cfg.MIDI.Port
	}
	in, err := stream.Open(port, cfg.MIDI.QueueSize, logger)
	if err != nil {
		return err
	}
	defer in.Close()

	sys, err := newSystem(cfg, logger)
	if err != nil {
		return err
	}
	s := newSession(sys, loader, cfg, logger, ctx.Bool("state"))
	sys.Player(midisynth.TrackMusic).SetStream(sequencer.StreamFunc(in.Next))
	logger.Info("listening", "port", in.Name())
	err = s.run()
	if n := in.Dropped(); n > 0 {
		logger.Warn("input events dropped", "count", n)
	}
	return err
}

var portsCmd = cli.Command{
	Name:  "ports",
	Usage: "List MIDI input ports",
	Action: func(ctx *cli.Context) error {
		ports, err := stream.Ports()
		if err != nil {
			return exitError(err)
		}
		for i, p := range ports {
			fmt.Printf("%2d: %s\n", i, p)
		}
		return nil
	},
}

func parseTrack(name string) (midisynth.Track, error) {
	switch strings.ToLower(name) {
	case "music", "m", "":
		return midisynth.TrackMusic, nil
	case "effects", "e", "fx":
		return midisynth.TrackEffects, nil
	}
	return 0, errors.Errorf("unknown track %q", name)
}
