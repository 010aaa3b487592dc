package sequence

import "fmt"

// Scale maps an abstract scale index to a frequency relative to a root note.
// Exactly one of Degrees or Ratios is populated: Degrees are semitone offsets
// added to the root's MIDI number, Ratios are multipliers applied to the
// root's frequency.
type Scale struct {
	Name    string    `yaml:"name"`
	Degrees []int     `yaml:"degrees,flow,omitempty"`
	Ratios  []float64 `yaml:"ratios,flow,omitempty"`
}

// MajorScale spans two octaves of the major scale in semitone steps.
func MajorScale() Scale {
	return Scale{
		Name:    "major",
		Degrees: []int{0, 2, 4, 5, 7, 9, 11, 12, 14, 16, 17, 19, 21, 23},
	}
}

// HarmonicScale uses fixed whole-number-ish frequency ratios over the root,
// giving an overtone-flavored run regardless of temperament.
func HarmonicScale() Scale {
	return Scale{
		Name:   "harmonic",
		Ratios: []float64{1, 1.25, 1.5, 2, 2.5, 3, 4, 5},
	}
}

// ScaleByName resolves a named preset. Unknown names fall back to major.
func ScaleByName(name string) Scale {
	switch name {
	case "harmonic":
		return HarmonicScale()
	default:
		return MajorScale()
	}
}

func (s Scale) Len() int {
	if len(s.Ratios) > 0 {
		return len(s.Ratios)
	}
	return len(s.Degrees)
}

// NoteAt maps index (already wrapped to [0, Len)) to a concrete Note.
func (s Scale) NoteAt(root Note, index int) Note {
	if s.Len() == 0 || index < 0 || index >= s.Len() {
		return root
	}
	if len(s.Ratios) > 0 {
		return Note{
			Name: fmt.Sprintf("%s*%d", root.Name, index),
			Freq: root.Freq * s.Ratios[index],
		}
	}
	midi := MIDIForName(root.Name)
	if midi < 0 {
		return root
	}
	midi += s.Degrees[index]
	if midi > 127 {
		midi = 127
	}
	return NoteForMIDI(midi)
}
