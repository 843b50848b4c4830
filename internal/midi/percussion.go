package midi

import "strconv"

// Percussion is a General MIDI drum key on the percussion channel.
type Percussion uint8

const (
	AcousticBassDrum Percussion = iota + 35
	BassDrum1
	SideStick
	AcousticSnare
	HandClap
	ElectricSnare
	LowFloorTom
	ClosedHiHat
	HighFloorTom
	PedalHiHat
	LowTom
	OpenHiHat
	LowMidTom
	HiMidTom
	CrashCymbal1
	HighTom
	RideCymbal1
	ChineseCymbal
	RideBell
	Tambourine
	SplashCymbal
	Cowbell
	CrashCymbal2
	Vibraslap
	RideCymbal2
	HiBongo
	LowBongo
	MuteHiConga
	OpenHiConga
	LowConga
	HighTimbale
	LowTimbale
	HighAgogo
	LowAgogo
	Cabasa
	Maracas
	ShortWhistle
	LongWhistle
	ShortGuiro
	LongGuiro
	Claves
	HiWoodBlock
	LowWoodBlock
	MuteCuica
	OpenCuica
	MuteTriangle
	OpenTriangle
)

const (
	FirstPercussion = AcousticBassDrum
	LastPercussion  = OpenTriangle
)

var percussionNames = [...]string{
	"Acoustic Bass Drum", "Bass Drum 1", "Side Stick", "Acoustic Snare",
	"Hand Clap", "Electric Snare", "Low Floor Tom", "Closed Hi-Hat",
	"High Floor Tom", "Pedal Hi-Hat", "Low Tom", "Open Hi-Hat",
	"Low-Mid Tom", "Hi-Mid Tom", "Crash Cymbal 1", "High Tom",
	"Ride Cymbal 1", "Chinese Cymbal", "Ride Bell", "Tambourine",
	"Splash Cymbal", "Cowbell", "Crash Cymbal 2", "Vibraslap",
	"Ride Cymbal 2", "Hi Bongo", "Low Bongo", "Mute Hi Conga",
	"Open Hi Conga", "Low Conga", "High Timbale", "Low Timbale",
	"High Agogo", "Low Agogo", "Cabasa", "Maracas",
	"Short Whistle", "Long Whistle", "Short Guiro", "Long Guiro",
	"Claves", "Hi Wood Block", "Low Wood Block", "Mute Cuica",
	"Open Cuica", "Mute Triangle", "Open Triangle",
}

// Valid reports whether p is inside the GM percussion key range.
func (p Percussion) Valid() bool {
	return p >= FirstPercussion && p <= LastPercussion
}

func (p Percussion) String() string {
	if !p.Valid() {
		return "Percussion(" + strconv.Itoa(int(p)) + ")"
	}
	return percussionNames[p-FirstPercussion]
}

// ExclusiveGroup is a family of drum keys that cut each other off, such as
// an open hi-hat silenced by the closed one.
type ExclusiveGroup uint8

const (
	GroupHiHat ExclusiveGroup = iota
	GroupWhistle
	GroupGuiro
	GroupCuica
	GroupTriangle
	ExclusiveGroupCount
)

// ExclusiveGroup returns the family p belongs to, if any.
func (p Percussion) ExclusiveGroup() (ExclusiveGroup, bool) {
	switch p {
	case ClosedHiHat, PedalHiHat, OpenHiHat:
		return GroupHiHat, true
	case ShortWhistle, LongWhistle:
		return GroupWhistle, true
	case ShortGuiro, LongGuiro:
		return GroupGuiro, true
	case MuteCuica, OpenCuica:
		return GroupCuica, true
	case MuteTriangle, OpenTriangle:
		return GroupTriangle, true
	}
	return 0, false
}
