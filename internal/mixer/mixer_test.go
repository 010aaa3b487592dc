package mixer

import (
	"math"
	"testing"

	"github.com/stepgrid/stepgrid/internal/sequence"
)

const testRate = 48000

func testConfigs() []sequence.TrackConfig {
	return []sequence.TrackConfig{
		sequence.HarmonicTrackConfig("a"),
		sequence.DefaultTrackConfig("b"),
	}
}

func renderEnergy(m *Mixer, frames int) float64 {
	buf := make([]float32, frames*2)
	m.Process(buf)
	var e float64
	for _, s := range buf {
		e += math.Abs(float64(s))
	}
	return e
}

func TestImmediateTriggerProducesAudio(t *testing.T) {
	m := New(testRate, testConfigs())
	if _, err := m.Trigger(0, sequence.NoteForMIDI(60), 1); err != nil {
		t.Fatal(err)
	}
	if e := renderEnergy(m, 4800); e < 0.01 {
		t.Fatalf("energy = %v, want audible output", e)
	}
}

func TestReleaseIDEndsSpecificVoice(t *testing.T) {
	m := New(testRate, testConfigs())
	note := sequence.NoteForMIDI(64)
	id, err := m.Trigger(1, note, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.ReleaseID(1, id); err != nil {
		t.Fatal(err)
	}
	renderEnergy(m, testRate) // a full second covers the release tail
	if n := m.ActiveVoices(); n != 0 {
		t.Fatalf("%d voices after release tail, want 0", n)
	}
	if err := m.ReleaseID(9, id); err != ErrNoInstrument {
		t.Fatalf("err = %v, want ErrNoInstrument", err)
	}
}

func TestTriggerUnknownTrack(t *testing.T) {
	m := New(testRate, testConfigs())
	if _, err := m.Trigger(2, sequence.NoteForMIDI(60), 1); err != ErrNoInstrument {
		t.Fatalf("err = %v, want ErrNoInstrument", err)
	}
	if _, err := m.Trigger(-1, sequence.NoteForMIDI(60), 1); err != ErrNoInstrument {
		t.Fatalf("err = %v, want ErrNoInstrument", err)
	}
	if err := m.ScheduleTrigger(0, 99, sequence.NoteForMIDI(60), 1); err != ErrNoInstrument {
		t.Fatalf("schedule err = %v, want ErrNoInstrument", err)
	}
}

func TestScheduledTriggerFiresAtSamplePosition(t *testing.T) {
	m := New(testRate, testConfigs())
	const at = 1000
	if err := m.ScheduleTrigger(at, 0, sequence.NoteForMIDI(69), 1); err != nil {
		t.Fatal(err)
	}
	var onset int64 = -1
	var pos int64
	m.SetTap(func(l, r float32) {
		if onset < 0 && (l != 0 || r != 0) {
			onset = pos
		}
		pos++
	})
	buf := make([]float32, 4000*2)
	m.Process(buf)
	if onset < at {
		t.Fatalf("audio before scheduled position: onset at sample %d", onset)
	}
	// The envelope needs a few frames to climb above zero, but not many.
	if onset > at+64 {
		t.Fatalf("onset at sample %d, want within a few frames of %d", onset, at)
	}
}

func TestScheduledReleaseEndsNote(t *testing.T) {
	m := New(testRate, testConfigs())
	note := sequence.NoteForMIDI(64)
	m.ScheduleTrigger(0, 1, note, 1)
	m.ScheduleRelease(2400, 1, note.Name)
	buf := make([]float32, testRate*2)
	m.Process(buf) // a full second covers the release tail
	if n := m.ActiveVoices(); n != 0 {
		t.Fatalf("%d voices after release tail, want 0", n)
	}
}

func TestStepCallbackFiresInOrder(t *testing.T) {
	m := New(testRate, testConfigs())
	var steps []int
	m.SetOnStep(func(step int) { steps = append(steps, step) })
	m.ScheduleStep(0, 0)
	m.ScheduleStep(500, 1)
	m.ScheduleStep(1000, 2)
	buf := make([]float32, 2000*2)
	m.Process(buf)
	if len(steps) != 3 || steps[0] != 0 || steps[1] != 1 || steps[2] != 2 {
		t.Fatalf("steps = %v, want [0 1 2]", steps)
	}
}

func TestSilenceDropsQueueAndVoices(t *testing.T) {
	m := New(testRate, testConfigs())
	m.Trigger(0, sequence.NoteForMIDI(60), 1)
	m.ScheduleTrigger(100, 0, sequence.NoteForMIDI(72), 1)
	m.ScheduleClick(200, true)
	m.Silence()
	if e := renderEnergy(m, 4800); e != 0 {
		t.Fatalf("energy after Silence = %v, want 0", e)
	}
	if n := m.ActiveVoices(); n != 0 {
		t.Fatalf("%d active voices after Silence", n)
	}
}

func TestMetronomeClickDecays(t *testing.T) {
	m := New(testRate, testConfigs())
	m.ScheduleClick(0, false)
	if e := renderEnergy(m, 2400); e < 0.01 { // 50ms window
		t.Fatalf("click energy = %v, want audible", e)
	}
	// Well past the click length only negligible EQ ringing remains.
	if e := renderEnergy(m, 2400); e > 1e-3 {
		t.Fatalf("residual energy = %v after click decay", e)
	}
}

func TestMasterGainZeroMutesOutput(t *testing.T) {
	m := New(testRate, testConfigs())
	m.SetMasterGain(0)
	m.Trigger(0, sequence.NoteForMIDI(60), 1)
	if e := renderEnergy(m, 4800); e != 0 {
		t.Fatalf("energy = %v with zero master gain", e)
	}
}

func TestMasterGainClamped(t *testing.T) {
	m := New(testRate, testConfigs())
	m.SetMasterGain(5)
	if g := m.MasterGain(); g != 2 {
		t.Fatalf("gain = %v, want clamp to 2", g)
	}
	m.SetMasterGain(-1)
	if g := m.MasterGain(); g != 0 {
		t.Fatalf("gain = %v, want clamp to 0", g)
	}
}

func TestClockAdvancesWithRenderedAudio(t *testing.T) {
	m := New(testRate, testConfigs())
	if m.Now() != 0 {
		t.Fatalf("fresh clock = %v", m.Now())
	}
	buf := make([]float32, testRate/2*2)
	m.Process(buf)
	if got := m.Now(); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("clock = %v after 0.5s of audio", got)
	}
	if m.NowSamples() != testRate/2 {
		t.Fatalf("sample clock = %d", m.NowSamples())
	}
}

func TestOutputIsClipped(t *testing.T) {
	m := New(testRate, testConfigs())
	m.SetMasterGain(2)
	for i := 0; i < 16; i++ {
		m.Trigger(1, sequence.NoteForMIDI(40+i), 1)
	}
	buf := make([]float32, 9600*2)
	m.Process(buf)
	for i, s := range buf {
		if s > 1 || s < -1 {
			t.Fatalf("sample %d = %v outside [-1, 1]", i, s)
		}
	}
}

func TestSetTrackConfigAffectsNewTriggers(t *testing.T) {
	m := New(testRate, testConfigs())
	cfg := sequence.DefaultTrackConfig("b")
	cfg.Mute = true
	if err := m.SetTrackConfig(1, cfg); err != nil {
		t.Fatal(err)
	}
	m.Trigger(1, sequence.NoteForMIDI(60), 1)
	if e := renderEnergy(m, 4800); e != 0 {
		t.Fatalf("muted reconfigured track produced energy %v", e)
	}
	if err := m.SetTrackConfig(7, cfg); err != ErrNoInstrument {
		t.Fatalf("err = %v, want ErrNoInstrument", err)
	}
}
