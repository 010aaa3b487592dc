package sequence

const (
	// StepCount is the fixed loop length; index 0 is the loop start.
	StepCount = 8
	// MaxTuplets bounds the per-step subdivision count.
	MaxTuplets = 8
)

// Cell is one track's content within a step. Tuplets 0 means the track is
// silent for this step. Root optionally overrides the track's root note.
type Cell struct {
	Tuplets int    `yaml:"tuplets"`
	Root    string `yaml:"root,omitempty"`
}

// Step is one beat-slot holding a cell per track.
type Step struct {
	Cells []Cell `yaml:"cells,flow"`
}

// Model is the arrangement grid: StepCount steps by a fixed number of tracks.
// It is a plain value; Snapshot returns a deep copy so the scheduler can
// iterate a stable view while an editor mutates the original.
type Model struct {
	Steps []Step `yaml:"steps"`
}

// NewModel creates an empty grid for the given track count.
func NewModel(tracks int) Model {
	if tracks < 1 {
		tracks = 1
	}
	m := Model{Steps: make([]Step, StepCount)}
	for i := range m.Steps {
		m.Steps[i].Cells = make([]Cell, tracks)
	}
	return m
}

// Len returns the number of steps (StepCount unless the model is malformed).
func (m Model) Len() int {
	return len(m.Steps)
}

// Cell returns the cell at (step, track), or a silent cell when out of range.
func (m Model) Cell(step, track int) Cell {
	if step < 0 || step >= len(m.Steps) {
		return Cell{}
	}
	cells := m.Steps[step].Cells
	if track < 0 || track >= len(cells) {
		return Cell{}
	}
	return cells[track]
}

// SetCell writes a cell, clamping the tuplet count into [0, MaxTuplets].
// Out-of-range coordinates are ignored.
func (m *Model) SetCell(step, track int, c Cell) {
	if step < 0 || step >= len(m.Steps) {
		return
	}
	cells := m.Steps[step].Cells
	if track < 0 || track >= len(cells) {
		return
	}
	if c.Tuplets < 0 {
		c.Tuplets = 0
	}
	if c.Tuplets > MaxTuplets {
		c.Tuplets = MaxTuplets
	}
	cells[track] = c
}

// Snapshot deep-copies the grid.
func (m Model) Snapshot() Model {
	out := Model{Steps: make([]Step, len(m.Steps))}
	for i, st := range m.Steps {
		out.Steps[i].Cells = make([]Cell, len(st.Cells))
		copy(out.Steps[i].Cells, st.Cells)
	}
	return out
}

// Normalize clamps every cell into valid range and pads short steps so each
// step has a cell for every track. Used after deserializing untrusted input.
func (m *Model) Normalize(tracks int) {
	if len(m.Steps) == 0 {
		*m = NewModel(tracks)
		return
	}
	if len(m.Steps) > StepCount {
		m.Steps = m.Steps[:StepCount]
	}
	for len(m.Steps) < StepCount {
		m.Steps = append(m.Steps, Step{})
	}
	for i := range m.Steps {
		for len(m.Steps[i].Cells) < tracks {
			m.Steps[i].Cells = append(m.Steps[i].Cells, Cell{})
		}
		if len(m.Steps[i].Cells) > tracks {
			m.Steps[i].Cells = m.Steps[i].Cells[:tracks]
		}
		for j := range m.Steps[i].Cells {
			c := &m.Steps[i].Cells[j]
			if c.Tuplets < 0 {
				c.Tuplets = 0
			}
			if c.Tuplets > MaxTuplets {
				c.Tuplets = MaxTuplets
			}
		}
	}
}
