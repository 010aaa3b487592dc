// Package stepgrid is a step-sequenced polyphonic synthesizer: an 8-step
// grid of tuplet cells drives a scale-walking pattern generator, scheduled
// ahead of a sample-accurate mixer of oscillator/envelope voices.
package stepgrid

import (
	"errors"
	"log"
	"math"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	intaudio "github.com/stepgrid/stepgrid/internal/audio"
	"github.com/stepgrid/stepgrid/internal/config"
	intmix "github.com/stepgrid/stepgrid/internal/mixer"
	"github.com/stepgrid/stepgrid/internal/pattern"
	intsched "github.com/stepgrid/stepgrid/internal/scheduler"
	"github.com/stepgrid/stepgrid/internal/sequence"
)

// ErrNoInstrument is returned when an operation names a track that does not
// exist.
var ErrNoInstrument = intmix.ErrNoInstrument

// ErrUnknownNote is returned for note names that do not parse (e.g. "H9").
var ErrUnknownNote = errors.New("stepgrid: unknown note name")

// EventKind tags entries on the Watch channel.
type EventKind int

const (
	// EventStep fires at each step boundary with the step index.
	EventStep EventKind = iota
	EventStarted
	EventStopped
)

// Event carries playback notifications from Watch().
type Event struct {
	Kind EventKind
	Step int
}

type Option func(*playerConfig)

type playerConfig struct {
	sampleRate int
	seed       int64
	hasSeed    bool
	logger     *log.Logger
	tap        func(l, r float32)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{sampleRate: 48000}
}

func WithSampleRate(rate int) Option {
	return func(cfg *playerConfig) { cfg.sampleRate = rate }
}

// WithRandSeed pins the pattern generator's random source, making the walk
// reproducible across runs.
func WithRandSeed(seed int64) Option {
	return func(cfg *playerConfig) {
		cfg.seed = seed
		cfg.hasSeed = true
	}
}

func WithLogger(l *log.Logger) Option {
	return func(cfg *playerConfig) { cfg.logger = l }
}

// WithSampleTap installs a per-frame listener on the post-EQ master signal.
// It runs on the audio thread; keep it brief and non-blocking.
func WithSampleTap(tap func(l, r float32)) Option {
	return func(cfg *playerConfig) { cfg.tap = tap }
}

// Player is the top-level facade tying the grid, scheduler, mixer, and audio
// device together. All methods are safe for concurrent use.
type Player struct {
	mu         sync.Mutex
	sampleRate int
	mixer      *intmix.Mixer
	sched      *intsched.Scheduler
	model      sequence.Model
	tracks     []sequence.TrackConfig
	out        *intaudio.Output

	eventCh   chan Event
	eventChMu sync.Mutex
}

// sinkAdapter converts the scheduler's seconds-based plan to the mixer's
// sample positions.
type sinkAdapter struct {
	m    *intmix.Mixer
	rate float64
}

func (s sinkAdapter) samples(at float64) int64 {
	return int64(math.Round(at * s.rate))
}

func (s sinkAdapter) ScheduleTrigger(at float64, track int, note sequence.Note, velocity float64) error {
	return s.m.ScheduleTrigger(s.samples(at), track, note, velocity)
}

func (s sinkAdapter) ScheduleRelease(at float64, track int, key string) error {
	return s.m.ScheduleRelease(s.samples(at), track, key)
}

func (s sinkAdapter) ScheduleClick(at float64, accent bool) {
	s.m.ScheduleClick(s.samples(at), accent)
}

func (s sinkAdapter) ScheduleStep(at float64, step int) {
	s.m.ScheduleStep(s.samples(at), step)
}

func (s sinkAdapter) Silence() { s.m.Silence() }

// NewPlayer builds a player from a session. The audio device is not opened
// until the first Start, so construction works headless.
func NewPlayer(session config.Session, opts ...Option) (*Player, error) {
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sampleRate <= 0 {
		return nil, errors.New("stepgrid: sample rate must be positive")
	}
	if len(session.Tracks) == 0 {
		return nil, errors.New("stepgrid: session has no tracks")
	}

	p := &Player{
		sampleRate: cfg.sampleRate,
		tracks:     append([]sequence.TrackConfig(nil), session.Tracks...),
	}
	p.model = session.Sequence.Snapshot()
	p.model.Normalize(len(p.tracks))

	p.mixer = intmix.New(cfg.sampleRate, p.tracks)
	p.mixer.SetMasterGain(session.MasterVolume)
	p.mixer.SetOnStep(func(step int) {
		p.sendEvent(Event{Kind: EventStep, Step: step})
	})
	if cfg.tap != nil {
		p.mixer.SetTap(cfg.tap)
	}

	var rng *rand.Rand
	if cfg.hasSeed {
		rng = rand.New(rand.NewSource(cfg.seed))
	}
	patCfg := pattern.DefaultConfig()
	patCfg.Scale = sequence.ScaleByName(session.Scale)

	p.sched = intsched.New(intsched.Options{
		Clock:    p.mixer,
		Sink:     sinkAdapter{m: p.mixer, rate: float64(cfg.sampleRate)},
		Pattern:  pattern.New(patCfg, rng),
		Snapshot: p.snapshot,
		Logger:   cfg.logger,
	})
	p.sched.SetTempo(session.Tempo)
	p.sched.SetMetronome(session.Metronome)
	p.sched.SetVelocity(session.Velocity)
	return p, nil
}

// snapshot hands the scheduler a stable copy of the grid and track configs.
func (p *Player) snapshot() (sequence.Model, []sequence.TrackConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model.Snapshot(), append([]sequence.TrackConfig(nil), p.tracks...)
}

// Start opens the audio device on first use and begins playback from step
// zero. Starting while playing is a no-op.
func (p *Player) Start() error {
	if p.sched.IsPlaying() {
		return nil
	}
	p.mu.Lock()
	if p.out == nil {
		out, err := intaudio.NewOutput(p.sampleRate, p.mixer)
		if err != nil {
			p.mu.Unlock()
			return err
		}
		p.out = out
	}
	p.out.Play()
	p.mu.Unlock()

	p.sched.Start()
	p.sendEvent(Event{Kind: EventStarted})
	return nil
}

// Stop halts playback immediately: pending triggers are dropped and sounding
// voices are cut. Tempo and instrument settings persist for the next Start.
func (p *Player) Stop() {
	if !p.sched.IsPlaying() {
		return
	}
	p.sched.Stop()
	p.mu.Lock()
	if p.out != nil {
		p.out.Pause()
	}
	p.mu.Unlock()
	p.sendEvent(Event{Kind: EventStopped})
}

func (p *Player) IsPlaying() bool { return p.sched.IsPlaying() }

// Close stops playback and releases the audio device.
func (p *Player) Close() error {
	p.Stop()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out == nil {
		return nil
	}
	err := p.out.Close()
	p.out = nil
	return err
}

func (p *Player) SampleRate() int { return p.sampleRate }

// SetTempo sets the target tempo; the effective tempo glides there over the
// following steps. Out-of-range values are clamped.
func (p *Player) SetTempo(bpm float64) { p.sched.SetTempo(bpm) }

func (p *Player) Tempo() float64 { return p.sched.Tempo() }

func (p *Player) SetMetronome(on bool) { p.sched.SetMetronome(on) }

func (p *Player) Metronome() bool { return p.sched.Metronome() }

// SetVelocity sets the trigger velocity for sequenced notes, clamped to [0, 1].
func (p *Player) SetVelocity(v float64) { p.sched.SetVelocity(v) }

// SetMIDIVelocity sets the trigger velocity from a MIDI value in [0, 127].
func (p *Player) SetMIDIVelocity(v int) {
	p.sched.SetVelocity(sequence.NormalizeVelocity(v))
}

func (p *Player) Velocity() float64 { return p.sched.Velocity() }

// SetSequence replaces the whole grid. The model is normalized to the track
// count; playback picks up the change at the next planned step.
func (p *Player) SetSequence(m sequence.Model) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m = m.Snapshot()
	m.Normalize(len(p.tracks))
	p.model = m
}

// Sequence returns a copy of the current grid.
func (p *Player) Sequence() sequence.Model {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model.Snapshot()
}

// SetCell edits one cell in place.
func (p *Player) SetCell(step, track int, cell sequence.Cell) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model.SetCell(step, track, cell)
}

func (p *Player) Cell(step, track int) sequence.Cell {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model.Cell(step, track)
}

// SetTrackConfig replaces one track's instrument. Sounding voices keep their
// timbre; subsequent triggers use the new settings.
func (p *Player) SetTrackConfig(track int, cfg sequence.TrackConfig) error {
	p.mu.Lock()
	if track < 0 || track >= len(p.tracks) {
		p.mu.Unlock()
		return ErrNoInstrument
	}
	p.tracks[track] = cfg
	p.mu.Unlock()
	return p.mixer.SetTrackConfig(track, cfg)
}

func (p *Player) TrackConfig(track int) (sequence.TrackConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if track < 0 || track >= len(p.tracks) {
		return sequence.TrackConfig{}, ErrNoInstrument
	}
	return p.tracks[track], nil
}

func (p *Player) TrackCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tracks)
}

// TriggerNote sounds a note immediately on the given track, outside the
// sequence, and returns the voice's ID. Used for previewing an instrument
// while editing.
func (p *Player) TriggerNote(track int, name string, velocity float64) (uuid.UUID, error) {
	note, ok := sequence.NoteForName(name)
	if !ok {
		return uuid.Nil, ErrUnknownNote
	}
	return p.mixer.Trigger(track, note, velocity)
}

// ReleaseNote releases the oldest held preview of the named note.
func (p *Player) ReleaseNote(track int, name string) error {
	return p.mixer.Release(track, name)
}

// ReleaseNoteID releases the exact voice a TriggerNote call returned, so
// overlapping previews of the same note end independently.
func (p *Player) ReleaseNoteID(track int, id uuid.UUID) error {
	return p.mixer.ReleaseID(track, id)
}

// SetMasterVolume sets the output gain. 0.8 is the session default; values
// clamp to [0, 2].
func (p *Player) SetMasterVolume(gain float64) { p.mixer.SetMasterGain(gain) }

func (p *Player) MasterVolume() float64 { return p.mixer.MasterGain() }

// SetEQBand sets one master EQ band (0-4), unity = 1. Takes effect
// immediately on the audio thread.
func (p *Player) SetEQBand(band int, gain float64) { p.mixer.SetEQGain(band, gain) }

func (p *Player) EQBand(band int) float64 { return p.mixer.EQGain(band) }

// Watch returns a buffered channel of playback events. Events are dropped
// rather than blocking the audio thread when the receiver falls behind. Only
// the most recent Watch channel receives events.
func (p *Player) Watch() <-chan Event {
	ch := make(chan Event, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

func (p *Player) sendEvent(ev Event) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
		}
	}
}
