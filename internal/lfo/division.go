package lfo

// Division is a tempo-synced musical time division.
type Division struct {
	Note NoteValue
	Feel Feel
}

// NoteValue is the undotted length of a division.
type NoteValue int

const (
	Whole NoteValue = iota
	Half
	Quarter
	Eighth
	Sixteenth
	ThirtySecond
	SixtyFourth
	TwoBars
	FourBars
)

// Feel modifies a note value.
type Feel int

const (
	Straight Feel = iota
	Dotted
	Triplet
)

// Beats returns the division length in quarter-note beats.
func (d Division) Beats() float64 {
	var beats float64
	switch d.Note {
	case FourBars:
		beats = 16
	case TwoBars:
		beats = 8
	case Whole:
		beats = 4
	case Half:
		beats = 2
	case Quarter:
		beats = 1
	case Eighth:
		beats = 0.5
	case Sixteenth:
		beats = 0.25
	case ThirtySecond:
		beats = 0.125
	case SixtyFourth:
		beats = 0.0625
	default:
		beats = 1
	}
	switch d.Feel {
	case Dotted:
		beats *= 1.5
	case Triplet:
		beats *= 2.0 / 3.0
	}
	return beats
}

// CycleSeconds returns the duration of one cycle at the given tempo, or 0
// when bpm is not positive.
func (d Division) CycleSeconds(bpm float64) float64 {
	if bpm <= 0 {
		return 0
	}
	return d.Beats() / (bpm / 60)
}
