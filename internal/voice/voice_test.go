package voice

import (
	"math"
	"testing"

	"github.com/stepgrid/stepgrid/internal/sequence"
)

func TestEnvelopeStageProgression(t *testing.T) {
	e := newEnvelope(sequence.EnvelopeConfig{Attack: 0.01, Decay: 0.01, Sustain: 0.5, Release: 0.02})
	sr := 48000.0
	// Attack: reaches 1 within 0.01s.
	var peak float64
	for i := 0; i < 480; i++ {
		if l := e.advance(sr); l > peak {
			peak = l
		}
	}
	if peak < 0.999 {
		t.Fatalf("attack peak = %v, want ~1", peak)
	}
	// Decay settles at sustain.
	for i := 0; i < 960; i++ {
		e.advance(sr)
	}
	if e.stage != stageSustain || math.Abs(e.level-0.5) > 1e-9 {
		t.Fatalf("after decay stage=%v level=%v, want sustain 0.5", e.stage, e.level)
	}
	// Sustain holds indefinitely.
	for i := 0; i < 48000; i++ {
		e.advance(sr)
	}
	if e.level != 0.5 {
		t.Fatalf("sustain drifted to %v", e.level)
	}
	// Release decays below the floor and parks at off.
	e.release(sr)
	for i := 0; i < 48000; i++ {
		e.advance(sr)
	}
	if !e.done() || e.level != 0 {
		t.Fatalf("release did not complete: stage=%v level=%v", e.stage, e.level)
	}
}

func TestEnvelopeReleaseFromMidAttack(t *testing.T) {
	e := newEnvelope(sequence.EnvelopeConfig{Attack: 1, Decay: 0.1, Sustain: 0.8, Release: 0.01})
	sr := 48000.0
	for i := 0; i < 4800; i++ { // 0.1s into a 1s attack
		e.advance(sr)
	}
	if e.level < 0.05 || e.level > 0.2 {
		t.Fatalf("mid-attack level = %v", e.level)
	}
	e.release(sr)
	for i := 0; i < 960; i++ {
		e.advance(sr)
	}
	if !e.done() {
		t.Fatal("release from mid-attack should complete")
	}
}

func TestVoicesGenerateSignalAndDecay(t *testing.T) {
	sr := 48000.0
	for _, tc := range []struct {
		name string
		cfg  sequence.TrackConfig
	}{
		{"harmonic", sequence.HarmonicTrackConfig("h")},
		{"dual", sequence.DefaultTrackConfig("d")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			v := NewVoice(sr, tc.cfg, 220, 1)
			var maxAbs float64
			for i := 0; i < 4800; i++ {
				if a := math.Abs(v.Render(flatModulation)); a > maxAbs {
					maxAbs = a
				}
			}
			if maxAbs < 0.001 {
				t.Fatal("expected audible output")
			}
			v.Release()
			for i := 0; i < 48000; i++ {
				v.Render(flatModulation)
			}
			if !v.Done() {
				t.Fatal("voice should be silent after release tail")
			}
			if v.Render(flatModulation) != 0 {
				t.Fatal("done voice must render silence")
			}
		})
	}
}

func TestVoiceCutIsImmediate(t *testing.T) {
	v := NewVoice(48000, sequence.DefaultTrackConfig("d"), 330, 1)
	for i := 0; i < 1000; i++ {
		v.Render(flatModulation)
	}
	v.Cut()
	if v.Level() != 0 || !v.Done() {
		t.Fatalf("cut voice level = %v done = %v", v.Level(), v.Done())
	}
}

func TestPoolCeilingForcesOldestRelease(t *testing.T) {
	p := NewPool(48000, sequence.DefaultTrackConfig("t"))
	for i := 0; i < DefaultPolyphony; i++ {
		p.Trigger(int64(i), sequence.NoteForMIDI(60+i%12), 1)
	}
	if got := p.HeldVoices(); got != DefaultPolyphony {
		t.Fatalf("held = %d, want %d", got, DefaultPolyphony)
	}
	p.Trigger(int64(DefaultPolyphony), sequence.NoteForMIDI(72), 1)
	// Exactly one voice was evicted to admit the newcomer.
	if got := p.HeldVoices(); got != DefaultPolyphony {
		t.Fatalf("held after overflow = %d, want %d", got, DefaultPolyphony)
	}
	if got := p.ActiveVoices(); got != DefaultPolyphony {
		t.Fatalf("active after overflow = %d, want %d", got, DefaultPolyphony)
	}
}

func TestPoolAllocationStaysBounded(t *testing.T) {
	cfg := sequence.DefaultTrackConfig("t")
	cfg.Amp.Release = 2 // long tails never get a chance to decay
	p := NewPool(48000, cfg)
	for i := 0; i < DefaultPolyphony+64; i++ {
		p.Trigger(int64(i), sequence.NoteForMIDI(60+i%12), 1)
		if got := p.ActiveVoices(); got > DefaultPolyphony {
			t.Fatalf("trigger %d: %d voices allocated, ceiling is %d", i, got, DefaultPolyphony)
		}
	}
	if got := p.HeldVoices(); got != DefaultPolyphony {
		t.Fatalf("held = %d, want %d", got, DefaultPolyphony)
	}
}

func TestPoolReleaseByID(t *testing.T) {
	p := NewPool(48000, sequence.DefaultTrackConfig("t"))
	note := sequence.NoteForMIDI(69)
	first := p.Trigger(0, note, 1)
	second := p.Trigger(1, note, 1)
	p.ReleaseByID(2, second)
	if got := p.HeldVoices(); got != 1 {
		t.Fatalf("held = %d after releasing one of two", got)
	}
	// The survivor is the first voice; releasing it by ID empties the pool.
	p.ReleaseByID(3, second) // already released: no-op
	if got := p.HeldVoices(); got != 1 {
		t.Fatalf("held = %d after repeat release", got)
	}
	p.ReleaseByID(4, first)
	if got := p.HeldVoices(); got != 0 {
		t.Fatalf("held = %d, want 0", got)
	}
}

func TestPoolReleaseUnknownKeyIsNoOp(t *testing.T) {
	p := NewPool(48000, sequence.DefaultTrackConfig("t"))
	p.Release(0, "G9")
	if p.ActiveVoices() != 0 {
		t.Fatal("no voices expected")
	}
}

func TestPoolReclaimsAfterReleaseAndGuard(t *testing.T) {
	cfg := sequence.DefaultTrackConfig("t")
	cfg.Amp.Release = 0.05
	p := NewPool(48000, cfg)
	note := sequence.NoteForMIDI(69)
	p.Trigger(0, note, 1)
	p.Release(0, note.Name)
	// Render past release + guard; the voice must be reclaimed.
	for i := int64(1); i < 48000/2; i++ {
		p.RenderFrame(i)
	}
	if p.ActiveVoices() != 0 {
		t.Fatalf("voice not reclaimed, %d active", p.ActiveVoices())
	}
}

func TestPoolCutAllSilencesImmediately(t *testing.T) {
	p := NewPool(48000, sequence.DefaultTrackConfig("t"))
	p.Trigger(0, sequence.NoteForMIDI(60), 1)
	p.Trigger(0, sequence.NoteForMIDI(64), 1)
	for i := int64(0); i < 2000; i++ {
		p.RenderFrame(i)
	}
	p.CutAll()
	if p.ActiveVoices() != 0 {
		t.Fatal("CutAll should drop all voices")
	}
	l, r := p.RenderFrame(2001)
	if l != 0 || r != 0 {
		t.Fatalf("expected silence after CutAll, got %v %v", l, r)
	}
}

func TestPoolMutedTrackIsSilent(t *testing.T) {
	cfg := sequence.DefaultTrackConfig("t")
	cfg.Mute = true
	p := NewPool(48000, cfg)
	p.Trigger(0, sequence.NoteForMIDI(60), 1)
	var energy float64
	for i := int64(0); i < 4800; i++ {
		l, _ := p.RenderFrame(i)
		energy += math.Abs(float64(l))
	}
	if energy != 0 {
		t.Fatalf("muted track produced energy %v", energy)
	}
}
