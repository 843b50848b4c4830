package envelope

// State is the per-voice ramp. Volume moves linearly from StartVol to
// TargetVol while Ticks counts down from Total to zero.
type State struct {
	Phase     Phase
	Ticks     uint32
	Total     uint32
	StartVol  uint8
	TargetVol uint8
}

// Volume returns the current interpolated level.
func (s *State) Volume() uint8 {
	if s.Total == 0 || s.Ticks == 0 {
		return s.TargetVol
	}
	start := int64(s.StartVol)
	target := int64(s.TargetVol)
	return uint8(target + (start-target)*int64(s.Ticks)/int64(s.Total))
}

// Trigger starts the attack of a new note from silence.
func (s *State) Trigger(env *Envelope, velocity uint8) {
	s.TriggerFrom(env, velocity, 0)
}

// TriggerFrom starts the attack ramp at the given level.
func (s *State) TriggerFrom(env *Envelope, velocity uint8, from uint8) {
	s.Phase = PhaseAttack
	s.ramp(from, PeakLevel(velocity), env.AttackTicks(velocity))
	if s.Ticks == 0 {
		s.advance(env, velocity)
	}
}

// Release moves to the release phase, ramping from the current level to
// silence over ticks samples. A zero duration turns the voice off at once.
func (s *State) Release(ticks uint32) {
	s.Phase = PhaseRelease
	s.ramp(s.Volume(), 0, ticks)
	if ticks == 0 {
		s.Off()
	}
}

// Off silences the voice immediately.
func (s *State) Off() {
	*s = State{}
}

// Retarget recomputes the target of the running phase for a new velocity
// and restarts the interpolation from the current level.
func (s *State) Retarget(env *Envelope, velocity uint8) {
	var target uint8
	switch s.Phase {
	case PhaseAttack:
		target = PeakLevel(velocity)
	case PhaseDecay, PhaseSustain:
		target = env.SustainLevel(velocity)
	default:
		return
	}
	if s.Ticks == 0 {
		s.StartVol, s.TargetVol = target, target
		return
	}
	s.ramp(s.Volume(), target, s.Ticks)
}

// Step advances the ramp by one output sample and reports whether the voice
// is still sounding.
func (s *State) Step(env *Envelope, velocity uint8) bool {
	switch s.Phase {
	case PhaseOff:
		return false
	case PhaseSustain:
		return true
	}
	if s.Ticks > 0 {
		s.Ticks--
	}
	if s.Ticks == 0 {
		s.advance(env, velocity)
	}
	return s.Phase != PhaseOff
}

func (s *State) advance(env *Envelope, velocity uint8) {
	for s.Ticks == 0 {
		switch s.Phase {
		case PhaseAttack:
			s.Phase = PhaseDecay
			s.ramp(s.TargetVol, env.SustainLevel(velocity), env.DecayTicks(velocity))
		case PhaseDecay:
			level := env.SustainLevel(velocity)
			s.Phase = PhaseSustain
			s.ramp(level, level, 0)
			return
		case PhaseRelease:
			s.Off()
			return
		default:
			return
		}
	}
}

func (s *State) ramp(from, to uint8, ticks uint32) {
	s.StartVol = from
	s.TargetVol = to
	s.Ticks = ticks
	s.Total = ticks
}
