package sequence

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Note is a pitch. Name is used only as a bookkeeping key for active-voice
// lookup; Freq is the audible identity.
type Note struct {
	Name string
	Freq float64
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// MIDIToFreq converts a MIDI note number to Hz (A4 = 69 = 440 Hz).
func MIDIToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

// NoteForMIDI builds a Note for a MIDI note number, clamped to [0, 127].
func NoteForMIDI(note int) Note {
	if note < 0 {
		note = 0
	}
	if note > 127 {
		note = 127
	}
	octave := note/12 - 1
	return Note{
		Name: fmt.Sprintf("%s%d", noteNames[note%12], octave),
		Freq: MIDIToFreq(note),
	}
}

// NoteForName parses names like "C4", "F#3" or "A#-1" back into a Note.
func NoteForName(name string) (Note, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Note{}, false
	}
	i := 1
	if len(name) > 1 && name[1] == '#' {
		i = 2
	}
	pitch := -1
	for idx, n := range noteNames {
		if strings.EqualFold(n, name[:i]) {
			pitch = idx
			break
		}
	}
	if pitch < 0 {
		return Note{}, false
	}
	octave, err := strconv.Atoi(name[i:])
	if err != nil {
		return Note{}, false
	}
	midi := (octave+1)*12 + pitch
	if midi < 0 || midi > 127 {
		return Note{}, false
	}
	return NoteForMIDI(midi), true
}

// MIDIForName returns the MIDI note number for a name, or -1 when unknown.
func MIDIForName(name string) int {
	n, ok := NoteForName(name)
	if !ok {
		return -1
	}
	return int(math.Round(69 + 12*math.Log2(n.Freq/440)))
}

// NormalizeVelocity maps a MIDI velocity [0,127] to a [0,1] amplitude factor.
func NormalizeVelocity(v int) float64 {
	if v < 0 {
		v = 0
	}
	if v > 127 {
		v = 127
	}
	return float64(v) / 127.0
}
