package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/ahmetalpbalkan/go-cursor"

	"github.com/cbegin/midisynth-go"
	"github.com/cbegin/midisynth-go/internal/midi"
	"github.com/cbegin/midisynth-go/internal/synth"
)

type trackView struct {
	track    midisynth.Track
	volume   int
	tick     uint32
	tempo    uint32
	paused   bool
	finished bool
	clipped  uint32
	pools    [2]synth.PoolState
	channels [midi.ChannelCount]synth.ChannelState
}

type stateView struct {
	tracks []trackView
}

// captureState copies what the state screen shows. It must run on the audio
// goroutine.
func captureState(sys *midisynth.System) stateView {
	var v stateView
	for _, t := range []midisynth.Track{midisynth.TrackEffects, midisynth.TrackMusic} {
		p := sys.Player(t)
		tv := trackView{
			track:    t,
			volume:   sys.Volume(t),
			tick:     p.Tick(),
			tempo:    p.Tempo(),
			paused:   p.Paused(),
			finished: p.Finished(),
			clipped:  p.Clipped(),
		}
		tv.pools[synth.PoolMelodic] = p.VoiceStates(synth.PoolMelodic)
		tv.pools[synth.PoolPercussion] = p.VoiceStates(synth.PoolPercussion)
		for c := range tv.channels {
			tv.channels[c] = p.ChannelState(uint8(c))
		}
		v.tracks = append(v.tracks, tv)
	}
	return v
}

func (v stateView) print(w io.Writer) {
	fmt.Fprint(w, cursor.ClearEntireScreen())
	fmt.Fprint(w, cursor.MoveTo(0, 0))
	for _, t := range v.tracks {
		t.print(w)
	}
}

func (t trackView) print(w io.Writer) {
	status := "playing"
	switch {
	case t.finished:
		status = "finished"
	case t.paused:
		status = "paused"
	}
	fmt.Fprintf(w, "[%s] vol:%2d tick:%8d tempo:%7d clip:%d %s\n",
		t.track, t.volume, t.tick, t.tempo, t.clipped, status)
	fmt.Fprintf(w, "  melodic    %s\n", poolLine(t.pools[synth.PoolMelodic], synth.MelodicVoices))
	fmt.Fprintf(w, "  percussion %s\n", poolLine(t.pools[synth.PoolPercussion], synth.PercussionVoices))
	fmt.Fprintln(w, "  ch prg bank  vol  exp  bend  H S voices timbre")
	for c, ch := range t.channels {
		if ch.Voices == 0 && ch.Program == 0 && ch.Timbre == "" {
			continue
		}
		fmt.Fprintf(w, "  %2d %3d %4d %4d %4d %5d  %s %s %6d %s\n",
			c+1, ch.Program, ch.Bank, ch.Volume>>7, ch.Expression>>7,
			int(ch.PitchBend)-midi.PitchBendCenter,
			flag(ch.Hold), flag(ch.Sustenuto), ch.Voices, ch.Timbre)
	}
}

// poolLine draws one cell per voice: A, D, S or R for the envelope phase,
// lower case when a pedal holds the voice.
func poolLine(p synth.PoolState, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		c := byte('.')
		switch {
		case p.Attack.Has(i):
			c = 'A'
		case p.Decay.Has(i):
			c = 'D'
		case p.Sustain.Has(i):
			c = 'S'
		case p.Release.Has(i):
			c = 'R'
		case p.On.Has(i):
			c = '*'
		}
		if c >= 'A' && c <= 'Z' && (p.Held.Has(i) || p.Sustenuto.Has(i)) {
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

func flag(on bool) string {
	if on {
		return "*"
	}
	return "-"
}
