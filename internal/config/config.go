// Package config persists a session as YAML: tempo and playback settings,
// the step grid, and per-track instrument definitions.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stepgrid/stepgrid/internal/sequence"
)

// Session is the serialized project state.
type Session struct {
	Tempo        float64                `yaml:"tempo"`
	Metronome    bool                   `yaml:"metronome"`
	Velocity     float64                `yaml:"velocity"`
	Scale        string                 `yaml:"scale"`
	MasterVolume float64                `yaml:"master_volume"`
	Sequence     sequence.Model         `yaml:"sequence"`
	Tracks       []sequence.TrackConfig `yaml:"tracks"`
}

// Default returns a two-track session with a sparse demo groove.
func Default() Session {
	s := Session{
		Tempo:        120,
		Metronome:    false,
		Velocity:     0.9,
		Scale:        "major",
		MasterVolume: 0.8,
		Tracks: []sequence.TrackConfig{
			sequence.HarmonicTrackConfig("keys"),
			sequence.DefaultTrackConfig("lead"),
		},
	}
	s.Sequence = sequence.NewModel(len(s.Tracks))
	for step := 0; step < s.Sequence.Len(); step += 2 {
		s.Sequence.SetCell(step, 0, sequence.Cell{Tuplets: 1})
	}
	s.Sequence.SetCell(0, 1, sequence.Cell{Tuplets: 2})
	s.Sequence.SetCell(3, 1, sequence.Cell{Tuplets: 3})
	s.Sequence.SetCell(6, 1, sequence.Cell{Tuplets: 2, Root: "E4"})
	return s
}

// Load reads a session file. A missing file is not an error: the default
// session is returned so a fresh checkout plays something.
func Load(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	s.normalize()
	return s, nil
}

// Save writes the session to path, creating or truncating it.
func (s Session) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// normalize repairs a hand-edited file into playable shape rather than
// rejecting it.
func (s *Session) normalize() {
	if s.Tempo <= 0 {
		s.Tempo = 120
	}
	if s.Velocity <= 0 || s.Velocity > 1 {
		s.Velocity = 0.9
	}
	if s.Scale == "" {
		s.Scale = "major"
	}
	if s.MasterVolume <= 0 || s.MasterVolume > 2 {
		s.MasterVolume = 0.8
	}
	if len(s.Tracks) == 0 {
		s.Tracks = []sequence.TrackConfig{sequence.DefaultTrackConfig("track 1")}
	}
	for i := range s.Tracks {
		if s.Tracks[i].Name == "" {
			s.Tracks[i].Name = fmt.Sprintf("track %d", i+1)
		}
		if s.Tracks[i].Root == "" {
			s.Tracks[i].Root = "A3"
		}
		if s.Tracks[i].Amp.Attack <= 0 && s.Tracks[i].Amp.Release <= 0 {
			s.Tracks[i].Amp = sequence.DefaultTrackConfig(s.Tracks[i].Name).Amp
		}
	}
	s.Sequence.Normalize(len(s.Tracks))
}
