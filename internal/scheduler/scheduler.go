// Package scheduler drives playback: a lookahead loop that wakes on a coarse
// wall timer, reads the sequence grid, and plans note triggers, releases, and
// metronome clicks slightly ahead of the audio clock so the render side can
// fire them sample-accurately.
package scheduler

import (
	"log"
	"sync"
	"time"

	"github.com/stepgrid/stepgrid/internal/pattern"
	"github.com/stepgrid/stepgrid/internal/sequence"
)

const (
	DefaultTempo = 120.0
	MinTempo     = 20.0
	MaxTempo     = 240.0

	// DefaultLookahead is how often the planning loop wakes.
	DefaultLookahead = 100 * time.Millisecond
	// DefaultScheduleAhead is how far past the audio clock each wake plans.
	// It must comfortably exceed the wake interval so jitter never starves
	// the queue.
	DefaultScheduleAhead = 0.2

	// tempoGlide is the fraction of the remaining tempo distance applied per
	// step, giving an exponential approach to the target.
	tempoGlide = 0.1

	// maxGate caps note length; fast tuplets shorten it further so notes
	// never overlap their successor.
	maxGate = 0.1
)

// Clock reports the audio timeline position in seconds.
type Clock interface {
	Now() float64
}

// Sink receives planned events at absolute audio-clock times.
type Sink interface {
	ScheduleTrigger(at float64, track int, note sequence.Note, velocity float64) error
	ScheduleRelease(at float64, track int, key string) error
	ScheduleClick(at float64, accent bool)
	ScheduleStep(at float64, step int)
	Silence()
}

// Options configures a Scheduler. Clock, Sink, Pattern, and Snapshot are
// required.
type Options struct {
	Clock   Clock
	Sink    Sink
	Pattern *pattern.Generator
	// Snapshot returns a consistent copy of the grid and track configs.
	Snapshot func() (sequence.Model, []sequence.TrackConfig)

	Lookahead     time.Duration
	ScheduleAhead float64
	// Manual disables the internal timer; the owner calls Tick directly.
	// Used for offline rendering and tests.
	Manual bool
	Logger *log.Logger
}

// Scheduler owns the playback cursor and tempo state. All methods are safe
// for concurrent use.
type Scheduler struct {
	mu sync.Mutex

	clock         Clock
	sink          Sink
	pat           *pattern.Generator
	snapshot      func() (sequence.Model, []sequence.TrackConfig)
	lookahead     time.Duration
	scheduleAhead float64
	manual        bool
	logger        *log.Logger

	playing      bool
	cursor       int
	nextStepTime float64
	tempo        float64
	targetTempo  float64
	velocity     float64
	metronome    bool

	stop chan struct{}
}

func New(opts Options) *Scheduler {
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	if opts.ScheduleAhead <= 0 {
		opts.ScheduleAhead = DefaultScheduleAhead
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Scheduler{
		clock:         opts.Clock,
		sink:          opts.Sink,
		pat:           opts.Pattern,
		snapshot:      opts.Snapshot,
		lookahead:     opts.Lookahead,
		scheduleAhead: opts.ScheduleAhead,
		manual:        opts.Manual,
		logger:        opts.Logger,
		tempo:         DefaultTempo,
		targetTempo:   DefaultTempo,
		velocity:      1,
	}
}

// Start begins playback from step zero. Tempo settings carry over from any
// previous run. Starting while playing is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = true
	s.cursor = 0
	s.nextStepTime = s.clock.Now()
	s.fillWindowLocked()
	if !s.manual {
		s.stop = make(chan struct{})
		go s.run(s.stop)
	}
	s.mu.Unlock()
}

// Stop halts playback immediately: the timer is cancelled, every queued
// event is dropped, and sounding voices are cut with no release tail. The
// cursor and walk state reset so the next Start begins fresh; tempo is kept.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.cursor = 0
	s.pat.Reset()
	s.mu.Unlock()
	s.sink.Silence()
}

func (s *Scheduler) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// SetTempo sets the target tempo in BPM, clamped to [MinTempo, MaxTempo].
// The effective tempo glides toward it over the following steps.
func (s *Scheduler) SetTempo(bpm float64) {
	if bpm < MinTempo {
		bpm = MinTempo
	}
	if bpm > MaxTempo {
		bpm = MaxTempo
	}
	s.mu.Lock()
	s.targetTempo = bpm
	if !s.playing {
		// No steps to glide over; take effect immediately.
		s.tempo = bpm
	}
	s.mu.Unlock()
}

// Tempo reports the current effective tempo.
func (s *Scheduler) Tempo() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo
}

func (s *Scheduler) TargetTempo() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetTempo
}

func (s *Scheduler) SetMetronome(on bool) {
	s.mu.Lock()
	s.metronome = on
	s.mu.Unlock()
}

func (s *Scheduler) Metronome() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metronome
}

// SetVelocity sets the trigger velocity for planned notes, clamped to [0, 1].
func (s *Scheduler) SetVelocity(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.mu.Lock()
	s.velocity = v
	s.mu.Unlock()
}

func (s *Scheduler) Velocity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.velocity
}

func (s *Scheduler) run(stop chan struct{}) {
	t := time.NewTicker(s.lookahead)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.Tick()
		}
	}
}

// Tick plans all steps falling inside the lookahead window. It is called by
// the internal timer, or directly by the owner in manual mode.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.fillWindowLocked()
}

func (s *Scheduler) fillWindowLocked() {
	now := s.clock.Now()
	horizon := now + s.scheduleAhead
	for s.nextStepTime < horizon {
		s.planStepLocked(s.nextStepTime, now)
		s.advanceLocked()
	}
}

// advanceLocked moves the cursor one step and glides the tempo toward its
// target. The glide applies per step so a tempo change spreads over roughly
// two bars instead of jumping.
func (s *Scheduler) advanceLocked() {
	s.nextStepTime += 60.0 / s.tempo
	s.tempo += (s.targetTempo - s.tempo) * tempoGlide
	if diff := s.targetTempo - s.tempo; diff < 0.01 && diff > -0.01 {
		s.tempo = s.targetTempo
	}
	model, _ := s.snapshot()
	if n := model.Len(); n > 0 {
		s.cursor = (s.cursor + 1) % n
	}
}

// planStepLocked plans one step's events. After a timer stall, triggers whose
// time has already passed are dropped individually rather than fired late in
// a bunch; a step whose whole span is behind the clock is dropped outright.
func (s *Scheduler) planStepLocked(at, now float64) {
	model, cfgs := s.snapshot()
	step := s.cursor
	interval := 60.0 / s.tempo

	if at+interval <= now {
		s.logger.Printf("scheduler: dropping late step %d (%.3fs behind)", step, now-at)
		return
	}

	s.sink.ScheduleStep(at, step)
	if s.metronome {
		if at >= now {
			s.sink.ScheduleClick(at, step%4 == 0)
		}
		if half := at + interval/2; half >= now {
			s.sink.ScheduleClick(half, false)
		}
	}

	for track := range cfgs {
		cell := model.Cell(step, track)
		if cell.Tuplets <= 0 {
			continue
		}
		rootName := cell.Root
		if rootName == "" {
			rootName = cfgs[track].Root
		}
		root, ok := sequence.NoteForName(rootName)
		if !ok {
			s.logger.Printf("scheduler: track %d: unknown root note %q", track, rootName)
			continue
		}
		notes := s.pat.Notes(track, root, cell.Tuplets)
		sub := interval / float64(cell.Tuplets)
		gate := maxGate
		if half := sub / 2; half < gate {
			gate = half
		}
		for i, note := range notes {
			t := at + float64(i)*sub
			if t < now {
				s.logger.Printf("scheduler: track %d: dropping late trigger at step %d (%.3fs behind)", track, step, now-t)
				continue
			}
			if err := s.sink.ScheduleTrigger(t, track, note, s.velocity); err != nil {
				s.logger.Printf("scheduler: trigger track %d: %v", track, err)
				continue
			}
			if err := s.sink.ScheduleRelease(t+gate, track, note.Name); err != nil {
				s.logger.Printf("scheduler: release track %d: %v", track, err)
			}
		}
	}
}
