package sequence

import (
	"math"
	"testing"
)

func TestNoteForMIDIReferencePitches(t *testing.T) {
	a4 := NoteForMIDI(69)
	if a4.Name != "A4" {
		t.Fatalf("midi 69 name = %q, want A4", a4.Name)
	}
	if math.Abs(a4.Freq-440) > 1e-9 {
		t.Fatalf("midi 69 freq = %v, want 440", a4.Freq)
	}
	c4 := NoteForMIDI(60)
	if c4.Name != "C4" {
		t.Fatalf("midi 60 name = %q, want C4", c4.Name)
	}
	if math.Abs(c4.Freq-261.625) > 0.01 {
		t.Fatalf("midi 60 freq = %v, want ~261.63", c4.Freq)
	}
}

func TestNoteForNameRoundTrip(t *testing.T) {
	for _, midi := range []int{0, 21, 60, 69, 100, 127} {
		n := NoteForMIDI(midi)
		back, ok := NoteForName(n.Name)
		if !ok {
			t.Fatalf("NoteForName(%q) failed", n.Name)
		}
		if math.Abs(back.Freq-n.Freq) > 1e-9 {
			t.Fatalf("round trip %q: freq %v != %v", n.Name, back.Freq, n.Freq)
		}
	}
	if _, ok := NoteForName("H4"); ok {
		t.Fatal("H4 should not parse")
	}
	if _, ok := NoteForName(""); ok {
		t.Fatal("empty name should not parse")
	}
}

func TestScaleNoteAt(t *testing.T) {
	root, _ := NoteForName("C4")
	major := MajorScale()
	second := major.NoteAt(root, 1)
	if second.Name != "D4" {
		t.Fatalf("major degree 1 from C4 = %q, want D4", second.Name)
	}
	harm := HarmonicScale()
	fifth := harm.NoteAt(root, 2)
	if math.Abs(fifth.Freq-root.Freq*1.5) > 1e-9 {
		t.Fatalf("harmonic index 2 freq = %v, want %v", fifth.Freq, root.Freq*1.5)
	}
	// Out-of-range index degrades to the root rather than faulting.
	if got := major.NoteAt(root, 99); got.Freq != root.Freq {
		t.Fatalf("out-of-range index should return root, got %v", got)
	}
}

func TestModelSnapshotIsIndependent(t *testing.T) {
	m := NewModel(2)
	m.SetCell(0, 0, Cell{Tuplets: 3, Root: "E4"})
	snap := m.Snapshot()
	m.SetCell(0, 0, Cell{Tuplets: 7})
	if got := snap.Cell(0, 0); got.Tuplets != 3 || got.Root != "E4" {
		t.Fatalf("snapshot mutated: %+v", got)
	}
}

func TestModelSetCellClampsTuplets(t *testing.T) {
	m := NewModel(1)
	m.SetCell(0, 0, Cell{Tuplets: 99})
	if got := m.Cell(0, 0).Tuplets; got != MaxTuplets {
		t.Fatalf("tuplets = %d, want %d", got, MaxTuplets)
	}
	m.SetCell(0, 0, Cell{Tuplets: -4})
	if got := m.Cell(0, 0).Tuplets; got != 0 {
		t.Fatalf("tuplets = %d, want 0", got)
	}
	// Out-of-range writes are ignored; out-of-range reads are silent.
	m.SetCell(42, 0, Cell{Tuplets: 1})
	if got := m.Cell(42, 0); got.Tuplets != 0 {
		t.Fatalf("expected silent cell, got %+v", got)
	}
}

func TestNormalizePadsAndClamps(t *testing.T) {
	m := Model{Steps: []Step{{Cells: []Cell{{Tuplets: 12}}}}}
	m.Normalize(2)
	if len(m.Steps) != StepCount {
		t.Fatalf("steps = %d, want %d", len(m.Steps), StepCount)
	}
	for i, st := range m.Steps {
		if len(st.Cells) != 2 {
			t.Fatalf("step %d has %d cells, want 2", i, len(st.Cells))
		}
	}
	if got := m.Cell(0, 0).Tuplets; got != MaxTuplets {
		t.Fatalf("tuplets = %d, want clamped %d", got, MaxTuplets)
	}
}

func TestTrackGain(t *testing.T) {
	cfg := DefaultTrackConfig("t")
	cfg.VolumeDB = 0
	if g := cfg.Gain(); math.Abs(g-1) > 1e-9 {
		t.Fatalf("0 dB gain = %v, want 1", g)
	}
	cfg.VolumeDB = -6
	if g := cfg.Gain(); math.Abs(g-0.5011872) > 1e-4 {
		t.Fatalf("-6 dB gain = %v", g)
	}
	cfg.Mute = true
	if cfg.Gain() != 0 {
		t.Fatal("mute should silence track")
	}
	cfg.Mute = false
	cfg.VolumeDB = math.Inf(-1)
	if cfg.Gain() != 0 {
		t.Fatal("-inf dB should silence track")
	}
}

func TestNormalizeVelocity(t *testing.T) {
	if v := NormalizeVelocity(127); v != 1 {
		t.Fatalf("velocity 127 = %v, want 1", v)
	}
	if v := NormalizeVelocity(-5); v != 0 {
		t.Fatalf("velocity -5 = %v, want 0", v)
	}
	if v := NormalizeVelocity(200); v != 1 {
		t.Fatalf("velocity 200 = %v, want 1", v)
	}
}
