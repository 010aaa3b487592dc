// Package pattern produces the pitches sounded within one step: a stateful
// arpeggiating random walk over a scale, continuous across calls so
// successive steps form coherent runs instead of independent noise.
package pattern

import (
	"math/rand"
	"time"

	"github.com/stepgrid/stepgrid/internal/sequence"
)

// Config tunes the walk/jump continuation policy.
type Config struct {
	Scale sequence.Scale
	// WalkProbability is the chance of continuing the arpeggio walk instead
	// of jumping to a random scale index.
	WalkProbability float64
	// MaxStride bounds the per-note walk distance (stride drawn from
	// [1, MaxStride]).
	MaxStride int
}

// DefaultConfig walks 70% of the time with strides up to 3 over a major scale.
func DefaultConfig() Config {
	return Config{
		Scale:           sequence.MajorScale(),
		WalkProbability: 0.7,
		MaxStride:       3,
	}
}

type trackState struct {
	index     int
	direction int
}

// Generator holds per-track continuation state. It is not safe for concurrent
// use; the scheduler is its only caller during playback.
type Generator struct {
	cfg    Config
	rng    *rand.Rand
	states map[int]*trackState
}

// New creates a Generator. A nil rng falls back to a time-seeded source;
// tests pass a fixed-seed rand.New to pin the sequence.
func New(cfg Config, rng *rand.Rand) *Generator {
	if cfg.Scale.Len() == 0 {
		cfg.Scale = sequence.MajorScale()
	}
	if cfg.WalkProbability <= 0 || cfg.WalkProbability > 1 {
		cfg.WalkProbability = 0.7
	}
	if cfg.MaxStride < 1 {
		cfg.MaxStride = 3
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{cfg: cfg, rng: rng, states: make(map[int]*trackState)}
}

// Scale returns the configured scale.
func (g *Generator) Scale() sequence.Scale {
	return g.cfg.Scale
}

// Notes returns n pitches for one step of the given track, advancing the
// track's walk state. Each note either steps the scale index by a stride in
// the current direction (wrapping modulo scale length) or, with probability
// 1-WalkProbability, jumps to a uniformly random index and rerolls direction.
func (g *Generator) Notes(track int, root sequence.Note, n int) []sequence.Note {
	if n <= 0 {
		return nil
	}
	st := g.states[track]
	if st == nil {
		st = &trackState{index: 0, direction: 1}
		if g.rng.Intn(2) == 0 {
			st.direction = -1
		}
		g.states[track] = st
	}
	length := g.cfg.Scale.Len()
	out := make([]sequence.Note, n)
	for i := 0; i < n; i++ {
		if g.rng.Float64() < g.cfg.WalkProbability {
			stride := 1 + g.rng.Intn(g.cfg.MaxStride)
			st.index = mod(st.index+stride*st.direction, length)
		} else {
			st.index = g.rng.Intn(length)
			if g.rng.Intn(2) == 0 {
				st.direction = -st.direction
			}
		}
		out[i] = g.cfg.Scale.NoteAt(root, st.index)
	}
	return out
}

// Reset clears all per-track continuation state so the next run starts fresh.
func (g *Generator) Reset() {
	g.states = make(map[int]*trackState)
}

func mod(v, m int) int {
	if m <= 0 {
		return 0
	}
	v %= m
	if v < 0 {
		v += m
	}
	return v
}
