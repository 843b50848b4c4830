package synth

import (
	"math/rand"
	"testing"

	"github.com/cbegin/midisynth-go/internal/envelope"
	"github.com/cbegin/midisynth-go/internal/midi"
	"github.com/cbegin/midisynth-go/internal/osc"
	"github.com/cbegin/midisynth-go/internal/timbre"
)

const testRate = 32768

var testEnvelope = envelope.Envelope{
	AttackTime:  40,
	DecayTime:   60,
	SustainVol:  100,
	ReleaseTime: 200,
}

// endlessDrums never finishes on its own.
var endlessDrums = timbre.PercussionFunc(func(midi.Percussion, uint32, *[4]uint32) (int8, bool) {
	return 64, false
})

func newTestSynth(t *testing.T, env envelope.Envelope, drums timbre.Percussion) *Synth {
	t.Helper()
	lib := timbre.NewLibrary(
		timbre.NewShape("square", osc.ShapeSquare, env),
		timbre.NewPercussion("kit", drums, envelope.Envelope{SustainVol: 255, ReleaseTime: 10}),
	)
	return New(testRate, lib)
}

func checkPhases(t *testing.T, s *Synth) {
	t.Helper()
	for k := PoolKind(0); k < poolCount; k++ {
		ps := s.PoolState(k)
		phases := []Bitset{ps.Attack, ps.Decay, ps.Sustain, ps.Release}
		var union Bitset
		total := 0
		for _, p := range phases {
			if union&p != 0 {
				t.Fatalf("%s pool: phase sets overlap: %v", k, phases)
			}
			union |= p
			total += p.Count()
		}
		if total > ps.On.Count() {
			t.Fatalf("%s pool: %d voices in a phase but only %d on", k, total, ps.On.Count())
		}
		if union&^ps.On != 0 {
			t.Fatalf("%s pool: voices %b have a phase but are not on", k, union&^ps.On)
		}
	}
}

func run(t *testing.T, s *Synth, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		s.Step()
		checkPhases(t, s)
	}
}

func bound(s *Synth, k PoolKind, channel, note uint8) int {
	return s.find(k, channel, note)
}

func TestNoteOffFreesEveryVoice(t *testing.T) {
	s := newTestSynth(t, testEnvelope, endlessDrums)
	for n := 0; n < MelodicVoices; n++ {
		s.NoteOn(uint8(n%8), uint8(40+n), 100)
		run(t, s, 3)
	}
	if got := s.PoolState(PoolMelodic).On.Count(); got != MelodicVoices {
		t.Fatalf("on = %d, want %d", got, MelodicVoices)
	}
	for n := 0; n < MelodicVoices; n++ {
		s.NoteOff(uint8(n%8), uint8(40+n), 64)
		run(t, s, 5)
	}
	run(t, s, int(testEnvelope.ReleaseTime)+1)
	if on := s.PoolState(PoolMelodic).On; on != 0 {
		t.Fatalf("leaked voices %b", on)
	}
}

func TestRandomTrafficKeepsPhasesExclusive(t *testing.T) {
	s := newTestSynth(t, testEnvelope, endlessDrums)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 4000; i++ {
		ch := uint8(rng.Intn(midi.ChannelCount))
		note := uint8(36 + rng.Intn(48))
		switch rng.Intn(6) {
		case 0, 1:
			s.NoteOn(ch, note, uint8(1+rng.Intn(127)))
		case 2, 3:
			s.NoteOff(ch, note, 0)
		case 4:
			s.ControlChange(ch, midi.ControlHold, uint8(rng.Intn(128)))
		case 5:
			s.ControlChange(ch, midi.ControlSustenuto, uint8(rng.Intn(128)))
		}
		run(t, s, rng.Intn(20))
	}
}

func TestStealPrefersReleasingVoice(t *testing.T) {
	s := newTestSynth(t, testEnvelope, endlessDrums)
	for n := 0; n < MelodicVoices; n++ {
		s.NoteOn(0, uint8(40+n), 100)
	}
	run(t, s, 200)
	released := bound(s, PoolMelodic, 0, 50)
	s.NoteOff(0, 50, 0)
	run(t, s, 10)

	s.NoteOn(1, 90, 100)
	checkPhases(t, s)
	if got := bound(s, PoolMelodic, 1, 90); got != released {
		t.Fatalf("new note on voice %d, want released voice %d", got, released)
	}
	missing := 0
	for n := 0; n < MelodicVoices; n++ {
		if bound(s, PoolMelodic, 0, uint8(40+n)) < 0 {
			missing++
		}
	}
	if missing != 1 {
		t.Fatalf("%d old bindings lost, want exactly 1", missing)
	}
	if on := s.PoolState(PoolMelodic).On.Count(); on != MelodicVoices {
		t.Fatalf("on = %d after steal", on)
	}
}

func TestStealFallsBackToOldest(t *testing.T) {
	flat := envelope.Envelope{SustainVol: 200, ReleaseTime: 100}
	s := newTestSynth(t, flat, endlessDrums)
	for n := 0; n < MelodicVoices; n++ {
		s.NoteOn(0, uint8(40+n), 100)
	}
	s.NoteOn(0, 100, 100)
	if got := bound(s, PoolMelodic, 0, 100); got != 0 {
		t.Fatalf("stole voice %d, want the oldest (0)", got)
	}
	v := s.Voice(PoolMelodic, 0)
	if v.Phase() != envelope.PhaseRelease || !v.pending.valid {
		t.Fatalf("stolen voice should wind down first, phase %s", v.Phase())
	}
	run(t, s, int(s.stealTicks)+1)
	v = s.Voice(PoolMelodic, 0)
	if v.pending.valid || v.key != 100 || v.Phase() == envelope.PhaseRelease {
		t.Fatalf("pending note did not start: key %d phase %s", v.key, v.Phase())
	}
}

func TestStealOrder(t *testing.T) {
	scaled := envelope.Envelope{SustainVolVel: envelope.CoefFromFloat(2), ReleaseTime: 100}
	always := func(v uint8) func(int) uint8 { return func(int) uint8 { return v } }
	cases := []struct {
		name     string
		channel  func(i int) uint8
		velocity func(i int) uint8
		incoming uint8
		want     int
	}{
		{
			name:    "lowest volume",
			channel: always(0),
			velocity: func(i int) uint8 {
				if i == 17 {
					return 20
				}
				return 100
			},
			incoming: 1,
			want:     17,
		},
		{
			name: "oldest on the same channel",
			channel: func(i int) uint8 {
				if i < 12 {
					return 1
				}
				return 0
			},
			velocity: always(100),
			incoming: 0,
			want:     12,
		},
		{
			name:     "oldest overall",
			channel:  always(0),
			velocity: always(100),
			incoming: 1,
			want:     0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSynth(t, scaled, endlessDrums)
			for i := 0; i < MelodicVoices; i++ {
				s.NoteOn(tc.channel(i), uint8(40+i), tc.velocity(i))
			}
			s.NoteOn(tc.incoming, 100, 100)
			checkPhases(t, s)
			if got := bound(s, PoolMelodic, tc.incoming, 100); got != tc.want {
				t.Fatalf("stole voice %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSustainReachedAfterAttackAndDecay(t *testing.T) {
	env := envelope.Envelope{
		AttackTime:    100,
		AttackTimeVel: envelope.CoefFromFloat(0.5),
		DecayTime:     50,
		SustainVol:    80,
		SustainVolVel: envelope.CoefFromFloat(0.25),
		ReleaseTime:   10,
	}
	s := newTestSynth(t, env, endlessDrums)
	const vel = 0x40
	s.NoteOn(0, 69, vel)
	total := int(env.AttackTicks(vel) + env.DecayTicks(vel))
	run(t, s, total-1)
	i := bound(s, PoolMelodic, 0, 69)
	if ph := s.Voice(PoolMelodic, i).Phase(); ph != envelope.PhaseDecay {
		t.Fatalf("phase %s one sample early", ph)
	}
	run(t, s, 1)
	v := s.Voice(PoolMelodic, i)
	if v.Phase() != envelope.PhaseSustain {
		t.Fatalf("phase = %s, want sustain", v.Phase())
	}
	if want := env.SustainLevel(vel); v.Volume() != want || want != 80+16 {
		t.Fatalf("volume = %d, want %d", v.Volume(), want)
	}
}

func TestHoldPedal(t *testing.T) {
	s := newTestSynth(t, testEnvelope, endlessDrums)
	s.ControlChange(2, midi.ControlHold, 127)
	s.NoteOn(2, 60, 100)
	run(t, s, 10)
	s.NoteOff(2, 60, 0)
	run(t, s, 500)
	i := bound(s, PoolMelodic, 2, 60)
	st := s.PoolState(PoolMelodic)
	if i < 0 || !st.On.Has(i) || !st.Held.Has(i) || st.Release.Has(i) {
		t.Fatalf("held voice lost: %+v", st)
	}
	s.ControlChange(2, midi.ControlHold, 0)
	st = s.PoolState(PoolMelodic)
	if !st.Release.Has(i) || st.Held.Has(i) {
		t.Fatalf("pedal off should release: %+v", st)
	}
	run(t, s, int(testEnvelope.ReleaseTime)+1)
	if s.Active() != 0 {
		t.Fatal("voice not freed after release")
	}
}

func TestNoteOffDuringStealWindDown(t *testing.T) {
	flat := envelope.Envelope{SustainVol: 200, ReleaseTime: 100}
	for _, hold := range []bool{false, true} {
		s := newTestSynth(t, flat, endlessDrums)
		if hold {
			s.Sustain(1, true)
		}
		for n := 0; n < MelodicVoices; n++ {
			s.NoteOn(0, uint8(40+n), 100)
		}
		s.NoteOn(1, 100, 100)
		s.NoteOff(1, 100, 0)
		run(t, s, int(s.stealTicks)+1)
		checkPhases(t, s)

		i := bound(s, PoolMelodic, 1, 100)
		if !hold {
			if i >= 0 {
				t.Fatalf("released replacement still bound to voice %d", i)
			}
			continue
		}
		st := s.PoolState(PoolMelodic)
		if i < 0 || !st.Held.Has(i) || !st.Sustain.Has(i) {
			t.Fatalf("pedal should keep the replacement: voice %d %+v", i, st)
		}
		s.Sustain(1, false)
		if !s.PoolState(PoolMelodic).Release.Has(i) {
			t.Fatal("pedal off should release the replacement")
		}
		run(t, s, int(flat.ReleaseTime)+1)
		if bound(s, PoolMelodic, 1, 100) >= 0 {
			t.Fatal("replacement not freed after release")
		}
	}
}

func TestSustenutoLatchesOnlySoundingNotes(t *testing.T) {
	s := newTestSynth(t, testEnvelope, endlessDrums)
	s.NoteOn(0, 60, 100)
	s.Sustenuto(0, true)
	s.NoteOn(0, 64, 100)
	s.NoteOff(0, 60, 0)
	s.NoteOff(0, 64, 0)
	st := s.PoolState(PoolMelodic)
	a, b := bound(s, PoolMelodic, 0, 60), bound(s, PoolMelodic, 0, 64)
	if !st.Held.Has(a) || st.Release.Has(a) {
		t.Fatal("latched note should be held")
	}
	if !st.Release.Has(b) {
		t.Fatal("note played after the pedal should release")
	}
	s.Sustenuto(0, false)
	if st := s.PoolState(PoolMelodic); !st.Release.Has(a) {
		t.Fatal("sustenuto off should release the latched note")
	}
}

func TestPitchWheel(t *testing.T) {
	s := newTestSynth(t, testEnvelope, endlessDrums)
	s.NoteOn(0, 69, 100)
	i := bound(s, PoolMelodic, 0, 69)
	step := func() uint32 { return s.melodic[i].osc[0].Step }

	s.PitchWheel(0, midi.PitchBendCenter)
	if got, want := step(), osc.NoteStep(osc.Cents(69), testRate); got != want {
		t.Fatalf("centre step %d, want %d", got, want)
	}
	var prev uint32
	for _, w := range []uint16{0, 0x800, 0x1000, 0x2000, 0x3000, 0x3FFF} {
		s.PitchWheel(0, w)
		if step() <= prev {
			t.Fatalf("step not monotonic at wheel %#x", w)
		}
		prev = step()
	}
	if hi := osc.NoteStep(osc.Cents(69)+osc.DefaultBendRange, testRate); prev > hi {
		t.Fatalf("max bend %d exceeds +2 semitones %d", prev, hi)
	}
	s.PitchWheel(0, 0)
	if lo := osc.NoteStep(osc.Cents(69)-osc.DefaultBendRange, testRate); step() != lo {
		t.Fatalf("min bend %d, want %d", step(), lo)
	}
}

func TestBendRangeRPN(t *testing.T) {
	s := newTestSynth(t, testEnvelope, endlessDrums)
	s.ControlChange(0, midi.ControlRPNMSB, 0)
	s.ControlChange(0, midi.ControlRPNLSB, 0)
	s.ControlChange(0, midi.ControlDataEntry, 12)
	if got := s.ChannelState(0).BendRange; got != 1200 {
		t.Fatalf("bend range %d, want 1200", got)
	}
	s.ControlChange(0, midi.ControlNRPNMSB, 1)
	s.ControlChange(0, midi.ControlDataEntry, 2)
	if got := s.ChannelState(0).BendRange; got != 1200 {
		t.Fatal("data entry after NRPN must not change the bend range")
	}
	s.ControlChange(0, midi.ControlResetAllControllers, 0)
	if got := s.ChannelState(0).BendRange; got != osc.DefaultBendRange {
		t.Fatalf("reset left bend range %d", got)
	}
}

func TestSampleLoopsThenReleases(t *testing.T) {
	data := []int8{10, 20, 30, 40}
	pcm := timbre.Sample{Data: data, Rate: testRate, BaseNote: osc.NoteQ24(60), Loop: 2}
	env := envelope.Envelope{SustainVol: 255, ReleaseTime: 50}
	lib := timbre.NewLibrary(timbre.NewSample("loop", pcm, env), timbre.Timbre{})
	s := New(testRate, lib)

	var v Voice
	tb := lib.Program(0, 0)
	v.start(&tb, 0, 60, 127, 1)
	v.retune(osc.Cents(60), testRate)
	for pass := 0; pass < 2; pass++ {
		for j, want := range data {
			if v.halted {
				t.Fatalf("halted early in pass %d", pass)
			}
			if got := v.sample(); got != want {
				t.Fatalf("pass %d sample %d = %d, want %d", pass, j, got, want)
			}
		}
	}
	if !v.halted || v.sample() != 0 {
		t.Fatal("sample should stop after two passes")
	}

	s.NoteOn(0, 60, 127)
	i := bound(s, PoolMelodic, 0, 60)
	run(t, s, 2*len(data)-1)
	if ph := s.Voice(PoolMelodic, i).Phase(); ph != envelope.PhaseSustain {
		t.Fatalf("phase %s before the last pass ended", ph)
	}
	run(t, s, 1)
	if ph := s.Voice(PoolMelodic, i).Phase(); ph != envelope.PhaseRelease {
		t.Fatalf("phase %s, want auto-release", ph)
	}
}

func TestPercussionExclusiveGroup(t *testing.T) {
	s := newTestSynth(t, testEnvelope, endlessDrums)
	ch := uint8(midi.PercussionChannel)
	s.NoteOn(ch, uint8(midi.ClosedHiHat), 100)
	s.NoteOn(ch, uint8(midi.AcousticSnare), 100)
	s.NoteOn(ch, uint8(midi.OpenHiHat), 100)
	if bound(s, PoolPercussion, ch, uint8(midi.ClosedHiHat)) >= 0 {
		t.Fatal("closed hi-hat should be cut by the open hi-hat")
	}
	if s.PoolState(PoolPercussion).On.Count() != 2 {
		t.Fatalf("on = %b", s.PoolState(PoolPercussion).On)
	}
	open := bound(s, PoolPercussion, ch, uint8(midi.OpenHiHat))
	if got, ok := s.groups.Get(midi.GroupHiHat); !ok || got != open {
		t.Fatalf("group slot %d,%v want %d", got, ok, open)
	}
	if s.PoolState(PoolMelodic).On != 0 {
		t.Fatal("percussion channel used the melodic pool")
	}
}

func TestPercussionIgnoresNoteOffAndEndsWhenDone(t *testing.T) {
	short := timbre.PercussionFunc(func(_ midi.Percussion, idx uint32, _ *[4]uint32) (int8, bool) {
		return 50, idx >= 9
	})
	s := newTestSynth(t, testEnvelope, short)
	ch := uint8(midi.PercussionChannel)
	s.NoteOn(ch, uint8(midi.AcousticSnare), 100)
	s.NoteOff(ch, uint8(midi.AcousticSnare), 0)
	run(t, s, 9)
	if s.PoolState(PoolPercussion).On.Count() != 1 {
		t.Fatal("drum ended early")
	}
	run(t, s, 1)
	if s.Active() != 0 {
		t.Fatal("drum should free when the generator is done")
	}
}

func TestRepeatedNoteRetriggers(t *testing.T) {
	s := newTestSynth(t, testEnvelope, endlessDrums)
	s.NoteOn(3, 60, 100)
	run(t, s, 100)
	s.NoteOn(3, 60, 50)
	st := s.PoolState(PoolMelodic)
	if st.On.Count() != 1 || !st.Attack.Has(0) {
		t.Fatalf("retrigger should reuse the voice: %+v", st)
	}
}

func TestAllSoundOffAndAllNotesOff(t *testing.T) {
	s := newTestSynth(t, testEnvelope, endlessDrums)
	s.NoteOn(0, 60, 100)
	s.NoteOn(0, 62, 100)
	s.NoteOn(1, 60, 100)
	s.ControlChange(0, midi.ControlAllSoundOff, 0)
	if s.ChannelState(0).Voices != 0 || s.ChannelState(1).Voices != 1 {
		t.Fatal("all sound off must free only its channel")
	}

	s.Sustain(1, true)
	s.ControlChange(1, midi.ControlAllNotesOff, 0)
	if st := s.PoolState(PoolMelodic); st.Held.Count() != 1 || st.Release != 0 {
		t.Fatalf("all notes off must respect the pedal: %+v", st)
	}
	s.ResetControllers(1)
	if st := s.PoolState(PoolMelodic); st.Release.Count() != 1 {
		t.Fatal("reset controllers should let pedal-held notes go")
	}
}

func TestMonoChannel(t *testing.T) {
	s := newTestSynth(t, testEnvelope, endlessDrums)
	s.ControlChange(4, midi.ControlMonoOn, 0)
	s.NoteOn(4, 60, 100)
	s.NoteOn(4, 67, 100)
	st := s.PoolState(PoolMelodic)
	if st.Release.Count() != 1 || st.Attack.Count() != 1 {
		t.Fatalf("mono channel should release the previous note: %+v", st)
	}
}

func TestControllerReadBack(t *testing.T) {
	s := newTestSynth(t, testEnvelope, endlessDrums)
	if got := s.ControlValue14(0, midi.ControlVolume); got != 100<<7 {
		t.Fatalf("default volume %#x", got)
	}
	s.ControlChange(0, midi.ControlExpression, 0x40)
	s.ControlChange(0, midi.ControlExpressionLSB, 0x11)
	if got := s.ControlValue14(0, midi.ControlExpression); got != 0x40<<7|0x11 {
		t.Fatalf("expression %#x", got)
	}
	if s.ChannelState(0).Expression != 0x40<<7|0x11 {
		t.Fatal("expression not applied")
	}
	s.ControlChange(0, 85, 9)
	if s.ControlValue(0, 85) != 9 {
		t.Fatal("unknown controller not stored")
	}
}

func TestIgnoredChannelAndGMOff(t *testing.T) {
	s := newTestSynth(t, testEnvelope, endlessDrums)
	s.SetIgnore(5, true)
	s.NoteOn(5, 60, 100)
	if s.Active() != 0 {
		t.Fatal("ignored channel played")
	}
	s.GMOff()
	if s.ChannelState(midi.PercussionChannel).Percussion {
		t.Fatal("GM off should leave channel 10 melodic")
	}
	s.GMOn()
	if !s.ChannelState(midi.PercussionChannel).Percussion {
		t.Fatal("GM on should restore the drum channel")
	}
}

func TestCopyIsSnapshot(t *testing.T) {
	s := newTestSynth(t, testEnvelope, endlessDrums)
	s.NoteOn(0, 60, 100)
	run(t, s, 10)
	snap := *s
	run(t, s, 300)
	s.NoteOff(0, 60, 0)
	v := snap.Voice(PoolMelodic, 0)
	if v.Phase() != envelope.PhaseAttack || v.env.Ticks != testEnvelope.AttackTime-10 {
		t.Fatalf("snapshot changed: %+v", v.env)
	}
	if out := snap.Step(); out == 0 {
		t.Fatal("restored snapshot should keep sounding")
	}
}
