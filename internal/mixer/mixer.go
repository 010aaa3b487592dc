// Package mixer owns the audio-rate side of playback: per-track voice pools,
// a sample-indexed event queue, the metronome, and the master bus. The
// scheduler plans events ahead of time against the mixer's sample clock; the
// mixer fires them sample-accurately while filling the output buffer.
package mixer

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/viterin/vek/vek32"

	"github.com/stepgrid/stepgrid/internal/effects"
	"github.com/stepgrid/stepgrid/internal/sequence"
	"github.com/stepgrid/stepgrid/internal/voice"
)

// ErrNoInstrument is returned when a trigger names a track index with no pool.
var ErrNoInstrument = errors.New("mixer: no instrument for track")

type eventKind int

const (
	eventTrigger eventKind = iota
	eventRelease
	eventClick
	eventStep
)

type event struct {
	at       int64 // sample position
	kind     eventKind
	track    int
	note     sequence.Note
	velocity float64
	accent   bool
	step     int
}

// Mixer mixes all track pools into interleaved stereo. It implements the
// audio stream's SampleSource; everything else talks to it through the
// schedule/trigger methods under its lock.
type Mixer struct {
	mu         sync.Mutex
	sampleRate int
	pools      []*voice.Pool
	events     []event
	clicks     clickBank
	onStep     func(step int)
	tap        func(l, r float32)

	samplePos  atomic.Int64
	masterGain atomic.Uint32
	eq         *effects.MasterEQ
}

func New(sampleRate int, cfgs []sequence.TrackConfig) *Mixer {
	m := &Mixer{
		sampleRate: sampleRate,
		pools:      make([]*voice.Pool, len(cfgs)),
		clicks:     clickBank{sampleRate: float64(sampleRate)},
		eq:         effects.NewMasterEQ(sampleRate),
	}
	for i, cfg := range cfgs {
		m.pools[i] = voice.NewPool(sampleRate, cfg)
	}
	m.SetMasterGain(0.8)
	return m
}

func (m *Mixer) SampleRate() int { return m.sampleRate }

func (m *Mixer) TrackCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pools)
}

// Now reports the audio clock in seconds: how much audio has been rendered.
// Safe to call from any goroutine without blocking the render path.
func (m *Mixer) Now() float64 {
	return float64(m.samplePos.Load()) / float64(m.sampleRate)
}

// NowSamples reports the audio clock in samples.
func (m *Mixer) NowSamples() int64 {
	return m.samplePos.Load()
}

// SetTrackConfig replaces one track's instrument settings. Sounding voices
// keep their old timbre; new triggers pick up the change.
func (m *Mixer) SetTrackConfig(track int, cfg sequence.TrackConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if track < 0 || track >= len(m.pools) {
		return ErrNoInstrument
	}
	m.pools[track].SetConfig(cfg)
	return nil
}

func (m *Mixer) TrackConfig(track int) (sequence.TrackConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if track < 0 || track >= len(m.pools) {
		return sequence.TrackConfig{}, ErrNoInstrument
	}
	return m.pools[track].Config(), nil
}

// ScheduleTrigger queues a note-on at an absolute sample position. Positions
// already in the past fire on the next rendered frame.
func (m *Mixer) ScheduleTrigger(at int64, track int, note sequence.Note, velocity float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if track < 0 || track >= len(m.pools) {
		return ErrNoInstrument
	}
	m.insert(event{at: at, kind: eventTrigger, track: track, note: note, velocity: velocity})
	return nil
}

// ScheduleRelease queues a note-off for the given note name.
func (m *Mixer) ScheduleRelease(at int64, track int, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if track < 0 || track >= len(m.pools) {
		return ErrNoInstrument
	}
	m.insert(event{at: at, kind: eventRelease, track: track, note: sequence.Note{Name: key}})
	return nil
}

// ScheduleClick queues a metronome tick.
func (m *Mixer) ScheduleClick(at int64, accent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insert(event{at: at, kind: eventClick, accent: accent})
}

// ScheduleStep queues a step-boundary notification for the UI/event stream.
func (m *Mixer) ScheduleStep(at int64, step int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insert(event{at: at, kind: eventStep, step: step})
}

// Trigger starts a note immediately, bypassing the queue, and returns the
// new voice's ID. Used for previewing a cell outside of playback.
func (m *Mixer) Trigger(track int, note sequence.Note, velocity float64) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if track < 0 || track >= len(m.pools) {
		return uuid.Nil, ErrNoInstrument
	}
	return m.pools[track].Trigger(m.samplePos.Load(), note, velocity), nil
}

// Release releases an immediately-triggered note by its note name.
func (m *Mixer) Release(track int, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if track < 0 || track >= len(m.pools) {
		return ErrNoInstrument
	}
	m.pools[track].Release(m.samplePos.Load(), key)
	return nil
}

// ReleaseID releases the exact voice a Trigger call returned. Useful when
// the same note is previewed on overlapping key presses.
func (m *Mixer) ReleaseID(track int, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if track < 0 || track >= len(m.pools) {
		return ErrNoInstrument
	}
	m.pools[track].ReleaseByID(m.samplePos.Load(), id)
	return nil
}

// Silence drops every queued event and cuts all voices with no release tail.
// The sample clock keeps running so a subsequent start schedules forward.
func (m *Mixer) Silence() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = m.events[:0]
	for _, p := range m.pools {
		p.CutAll()
	}
	m.clicks.reset()
	m.eq.Reset()
}

// SetOnStep registers the step-boundary callback. It is invoked from the
// render goroutine and must not call back into the mixer.
func (m *Mixer) SetOnStep(fn func(step int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStep = fn
}

// SetTap registers a per-frame listener on the post-EQ stereo signal.
func (m *Mixer) SetTap(fn func(l, r float32)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tap = fn
}

// SetMasterGain sets the output gain, clamped to [0, 2].
func (m *Mixer) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	if gain > 2 {
		gain = 2
	}
	m.masterGain.Store(math.Float32bits(float32(gain)))
}

func (m *Mixer) MasterGain() float64 {
	return float64(math.Float32frombits(m.masterGain.Load()))
}

// SetEQGain sets one master EQ band, in linear gain.
func (m *Mixer) SetEQGain(band int, gain float64) { m.eq.SetGain(band, float32(gain)) }

func (m *Mixer) EQGain(band int) float64 { return float64(m.eq.Gain(band)) }

// ActiveVoices reports the total voice count across all tracks.
func (m *Mixer) ActiveVoices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.pools {
		n += p.ActiveVoices()
	}
	return n
}

// insert keeps the queue ordered by sample position. The queue is nearly
// sorted already since the scheduler plans monotonically, so insertion from
// the tail beats a full sort.
func (m *Mixer) insert(ev event) {
	m.events = append(m.events, ev)
	for i := len(m.events) - 1; i > 0 && m.events[i-1].at > m.events[i].at; i-- {
		m.events[i-1], m.events[i] = m.events[i], m.events[i-1]
	}
}

func (m *Mixer) fireDue(pos int64) {
	fired := 0
	for _, ev := range m.events {
		if ev.at > pos {
			break
		}
		switch ev.kind {
		case eventTrigger:
			m.pools[ev.track].Trigger(pos, ev.note, ev.velocity)
		case eventRelease:
			m.pools[ev.track].Release(pos, ev.note.Name)
		case eventClick:
			m.clicks.strike(ev.accent)
		case eventStep:
			if m.onStep != nil {
				m.onStep(ev.step)
			}
		}
		fired++
	}
	if fired > 0 {
		m.events = m.events[:copy(m.events, m.events[fired:])]
	}
}

// Process fills dst with interleaved stereo, firing queued events at their
// exact sample positions. It implements audio.SampleSource.
func (m *Mixer) Process(dst []float32) {
	m.mu.Lock()
	frames := len(dst) / 2
	pos := m.samplePos.Load()
	for f := 0; f < frames; f++ {
		m.fireDue(pos)
		var l, r float32
		for _, p := range m.pools {
			pl, pr := p.RenderFrame(pos)
			l += pl
			r += pr
		}
		c := m.clicks.render()
		l, r = m.eq.Process(l+c, r+c)
		if m.tap != nil {
			m.tap(l, r)
		}
		dst[f*2] = l
		dst[f*2+1] = r
		pos++
	}
	m.samplePos.Store(pos)
	m.mu.Unlock()

	vek32.MulNumber_Inplace(dst, math.Float32frombits(m.masterGain.Load()))
	for i, s := range dst {
		if s > 1 {
			dst[i] = 1
		} else if s < -1 {
			dst[i] = -1
		}
	}
}
