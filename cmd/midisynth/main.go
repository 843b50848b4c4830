package main

import (
	"os"

	"github.com/urfave/cli"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

var version string

func init() {
	if version == "" {
		version = "unknown"
	}
}

func main() {
	app := cli.NewApp()
	app.Name = "midisynth"
	app.Version = version
	app.Usage = "Plays Standard MIDI Files through an 8-bit software synthesizer"
	app.HelpName = "midisynth"

	app.Commands = []cli.Command{
		playCmd,
		renderCmd,
		listenCmd,
		portsCmd,
	}

	app.Action = func(ctx *cli.Context) error {
		cli.ShowAppHelp(ctx)
		return nil
	}

	app.Run(os.Args)
}
