package band

import "strings"

// Label is one of the six ordered prosperity bands.
type Label string

const (
	VeryWeak        Label = "VERY WEAK"
	Weak            Label = "WEAK"
	ModeratelyWeak  Label = "MODERATELY WEAK"
	ModeratelySolid Label = "MODERATELY SOLID"
	Solid           Label = "SOLID"
	VerySolid       Label = "VERY SOLID"
)

var ranks = map[Label]int{
	VeryWeak:        0,
	Weak:            1,
	ModeratelyWeak:  2,
	ModeratelySolid: 3,
	Solid:           4,
	VerySolid:       5,
}

// Rank orders labels from VERY WEAK (0) to VERY SOLID (5). Unknown labels rank -1.
func (l Label) Rank() int {
	if r, ok := ranks[l]; ok {
		return r
	}
	return -1
}

// Banding selects which threshold table maps a score to a label.
type Banding string

const (
	BandingDefault Banding = "default"
	BandingShelter Banding = "shelter"
)

// ParseBanding accepts "", "default" and "shelter".
func ParseBanding(s string) (Banding, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(BandingDefault):
		return BandingDefault, true
	case string(BandingShelter):
		return BandingShelter, true
	default:
		return "", false
	}
}

// Apply labels s using the selected table.
func (b Banding) Apply(s float64) Label {
	if b == BandingShelter {
		return Shelter(s)
	}
	return Band(s)
}

// Band is used for indicators, sub-dimensions, dimensions and the index.
func Band(s float64) Label {
	switch {
	case s >= 80:
		return VerySolid
	case s >= 70:
		return Solid
	case s >= 60:
		return ModeratelySolid
	case s >= 50:
		return ModeratelyWeak
	case s >= 40:
		return Weak
	default:
		return VeryWeak
	}
}

// Shelter is the Improved Shelter override, shifted ten points up.
func Shelter(s float64) Label {
	switch {
	case s >= 90:
		return VerySolid
	case s >= 80:
		return Solid
	case s >= 70:
		return ModeratelySolid
	case s >= 60:
		return ModeratelyWeak
	case s >= 50:
		return Weak
	default:
		return VeryWeak
	}
}
