package midi

// Control is a MIDI controller number.
type Control uint8

const (
	ControlBankSelect          Control = 0
	ControlModulation          Control = 1
	ControlBreath              Control = 2
	ControlFoot                Control = 4
	ControlPortamentoTime      Control = 5
	ControlDataEntry           Control = 6
	ControlVolume              Control = 7
	ControlBalance             Control = 8
	ControlPan                 Control = 10
	ControlExpression          Control = 11
	ControlEffect1             Control = 12
	ControlEffect2             Control = 13
	ControlGeneralPurpose1     Control = 16
	ControlGeneralPurpose2     Control = 17
	ControlGeneralPurpose3     Control = 18
	ControlGeneralPurpose4     Control = 19
	ControlBankSelectLSB       Control = 32
	ControlModulationLSB       Control = 33
	ControlDataEntryLSB        Control = 38
	ControlVolumeLSB           Control = 39
	ControlPanLSB              Control = 42
	ControlExpressionLSB       Control = 43
	ControlHold                Control = 64
	ControlPortamento          Control = 65
	ControlSustenuto           Control = 66
	ControlSoft                Control = 67
	ControlLegato              Control = 68
	ControlHold2               Control = 69
	ControlSoundVariation      Control = 70
	ControlTimbre              Control = 71
	ControlReleaseTime         Control = 72
	ControlAttackTime          Control = 73
	ControlBrightness          Control = 74
	ControlGeneralPurpose5     Control = 80
	ControlGeneralPurpose6     Control = 81
	ControlGeneralPurpose7     Control = 82
	ControlGeneralPurpose8     Control = 83
	ControlPortamentoSource    Control = 84
	ControlReverbDepth         Control = 91
	ControlTremoloDepth        Control = 92
	ControlChorusDepth         Control = 93
	ControlDetuneDepth         Control = 94
	ControlPhaserDepth         Control = 95
	ControlDataIncrement       Control = 96
	ControlDataDecrement       Control = 97
	ControlNRPNLSB             Control = 98
	ControlNRPNMSB             Control = 99
	ControlRPNLSB              Control = 100
	ControlRPNMSB              Control = 101
	ControlAllSoundOff         Control = 120
	ControlResetAllControllers Control = 121
	ControlLocalKeyboard       Control = 122
	ControlAllNotesOff         Control = 123
	ControlOmniOff             Control = 124
	ControlOmniOn              Control = 125
	ControlMonoOn              Control = 126
	ControlPolyOn              Control = 127
)

// SwitchThreshold is the lowest value a switch controller reads as "on".
const SwitchThreshold = 64

// IsSwitch reports whether c is an on/off controller.
func (c Control) IsSwitch() bool {
	switch {
	case c >= ControlHold && c <= ControlHold2:
		return true
	case c >= ControlGeneralPurpose5 && c <= ControlGeneralPurpose8:
		return true
	case c == ControlLocalKeyboard:
		return true
	}
	return false
}

// HasLSB reports whether c is the coarse half of a 14-bit controller pair,
// whose fine half is c+32.
func (c Control) HasLSB() bool {
	return c < 32
}

// IsChannelMode reports whether c is a channel mode message (120-127).
func (c Control) IsChannelMode() bool {
	return c >= ControlAllSoundOff
}

// SwitchOn reports whether a switch controller value reads as pressed.
func SwitchOn(value uint8) bool {
	return value >= SwitchThreshold
}
