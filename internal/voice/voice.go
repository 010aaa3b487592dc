// Package voice implements the synthesis engine: oscillator banks shaped by
// ADSR envelopes and a resonant filter, and the per-track pool that manages
// voice lifecycles from trigger to reclamation.
package voice

import "github.com/stepgrid/stepgrid/internal/sequence"

// Modulation carries per-frame LFO routing computed once per track.
type Modulation struct {
	PitchMul  float64 // frequency multiplier, 1 = no vibrato
	AmpMul    float64 // amplitude factor, 1 = no tremolo
	CutoffAdd float64 // Hz added to the filter cutoff
}

var flatModulation = Modulation{PitchMul: 1, AmpMul: 1}

// Voice is one sounding note instance. A Voice is triggered by construction,
// renders until silent, and is owned by exactly one Pool slot.
type Voice interface {
	// Render produces the next mono sample.
	Render(mod Modulation) float64
	// Release starts the envelope release stages.
	Release()
	// Cut silences the voice immediately with no release tail.
	Cut()
	// Level reports the current amplitude-envelope level.
	Level() float64
	// Done reports whether the voice has fully decayed.
	Done() bool
}

// velocityFloor keeps even velocity-0 triggers faintly audible, matching how
// the rest of the gain staging was tuned.
const velocityFloor = 0.2

// HarmonicStackVoice approximates a piano-like timbre with a fundamental
// plus four whole-number harmonics at decreasing amplitudes.
type HarmonicStackVoice struct {
	sampleRate float64
	partials   [5]osc
	amp        envelope
	filter     svf
	cutoff     float64
	velocity   float64
}

var harmonicAmps = [5]float64{1.0, 0.52, 0.30, 0.14, 0.08}

func NewHarmonicStack(sampleRate float64, cfg sequence.TrackConfig, freq, velocity float64) *HarmonicStackVoice {
	v := &HarmonicStackVoice{
		sampleRate: sampleRate,
		amp:        newEnvelope(cfg.Amp),
		filter:     newSVF(sampleRate, cfg.Filter.Kind, cfg.Filter.Resonance),
		cutoff:     cfg.Filter.Cutoff,
		velocity:   velocity,
	}
	for i := range v.partials {
		v.partials[i] = osc{
			freq: freq * float64(i+1),
			wave: sequence.WaveSine,
			amp:  harmonicAmps[i],
		}
	}
	return v
}

func (v *HarmonicStackVoice) Render(mod Modulation) float64 {
	if v.amp.done() {
		return 0
	}
	level := v.amp.advance(v.sampleRate)
	var sum float64
	for i := range v.partials {
		sum += v.partials[i].next(v.sampleRate, mod.PitchMul)
	}
	sum = v.filter.process(sum*0.5, v.cutoff+mod.CutoffAdd)
	return sum * level * (velocityFloor + v.velocity*(1-velocityFloor)) * mod.AmpMul
}

func (v *HarmonicStackVoice) Release()       { v.amp.release(v.sampleRate) }
func (v *HarmonicStackVoice) Cut()           { v.amp.cut() }
func (v *HarmonicStackVoice) Level() float64 { return v.amp.level }
func (v *HarmonicStackVoice) Done() bool     { return v.amp.done() }

// DualOscillatorVoice mixes two detunable oscillators and adds a dedicated
// filter envelope with its own release constant.
type DualOscillatorVoice struct {
	sampleRate float64
	osc1, osc2 osc
	amp        envelope
	filterEnv  envelope
	filter     svf
	cutoff     float64
	envAmount  float64
	velocity   float64
}

func NewDualOscillator(sampleRate float64, cfg sequence.TrackConfig, freq, velocity float64) *DualOscillatorVoice {
	mix := cfg.OscMix
	if mix < 0 {
		mix = 0
	}
	if mix > 1 {
		mix = 1
	}
	v := &DualOscillatorVoice{
		sampleRate: sampleRate,
		osc1:       osc{freq: freq, wave: cfg.Wave1, amp: 1 - mix},
		osc2:       osc{freq: freq * detuneRatio(cfg.DetuneCents), wave: cfg.Wave2, amp: mix},
		amp:        newEnvelope(cfg.Amp),
		filterEnv: newEnvelope(sequence.EnvelopeConfig{
			Attack:  cfg.Filter.EnvAttack,
			Decay:   cfg.Filter.EnvDecay,
			Sustain: cfg.Filter.EnvSustain,
			Release: cfg.Filter.EnvRelease,
		}),
		filter:    newSVF(sampleRate, cfg.Filter.Kind, cfg.Filter.Resonance),
		cutoff:    cfg.Filter.Cutoff,
		envAmount: cfg.Filter.EnvAmount,
		velocity:  velocity,
	}
	return v
}

func (v *DualOscillatorVoice) Render(mod Modulation) float64 {
	if v.amp.done() {
		return 0
	}
	level := v.amp.advance(v.sampleRate)
	fLevel := v.filterEnv.advance(v.sampleRate)
	s := v.osc1.next(v.sampleRate, mod.PitchMul) + v.osc2.next(v.sampleRate, mod.PitchMul)
	s = v.filter.process(s, v.cutoff+fLevel*v.envAmount+mod.CutoffAdd)
	return s * level * (velocityFloor + v.velocity*(1-velocityFloor)) * mod.AmpMul
}

// Release starts the amplitude and filter releases concurrently; each runs
// on its own time constant.
func (v *DualOscillatorVoice) Release() {
	v.amp.release(v.sampleRate)
	v.filterEnv.release(v.sampleRate)
}

func (v *DualOscillatorVoice) Cut() {
	v.amp.cut()
	v.filterEnv.cut()
}

func (v *DualOscillatorVoice) Level() float64 { return v.amp.level }
func (v *DualOscillatorVoice) Done() bool     { return v.amp.done() }

// NewVoice builds the variant selected by the track config.
func NewVoice(sampleRate float64, cfg sequence.TrackConfig, freq, velocity float64) Voice {
	if cfg.Mode == sequence.OscHarmonic {
		return NewHarmonicStack(sampleRate, cfg, freq, velocity)
	}
	return NewDualOscillator(sampleRate, cfg, freq, velocity)
}
