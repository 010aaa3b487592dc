package sequence

import "math"

// Oscillator waveforms shared by voices and LFOs.
const (
	WaveSine = iota
	WaveSaw
	WaveTriangle
	WaveSquare
	WavePulse25
)

// Voice construction modes.
type OscMode string

const (
	// OscHarmonic builds a fixed harmonic stack (piano-ish timbre).
	OscHarmonic OscMode = "harmonic"
	// OscDual builds two independently detunable oscillators.
	OscDual OscMode = "dual"
)

// EnvelopeConfig is a four-stage amplitude/parameter curve. Times in seconds,
// Sustain is a level in [0,1].
type EnvelopeConfig struct {
	Attack  float64 `yaml:"attack"`
	Decay   float64 `yaml:"decay"`
	Sustain float64 `yaml:"sustain"`
	Release float64 `yaml:"release"`
}

// FilterConfig configures the per-voice resonant filter and its own envelope.
// EnvAmount is the cutoff excursion in Hz added at full envelope level;
// EnvRelease times the filter envelope independently of the amp envelope.
type FilterConfig struct {
	Kind       string  `yaml:"kind"` // lowpass | bandpass | highpass
	Cutoff     float64 `yaml:"cutoff"`
	Resonance  float64 `yaml:"resonance"`
	EnvAmount  float64 `yaml:"env_amount,omitempty"`
	EnvAttack  float64 `yaml:"env_attack,omitempty"`
	EnvDecay   float64 `yaml:"env_decay,omitempty"`
	EnvSustain float64 `yaml:"env_sustain,omitempty"`
	EnvRelease float64 `yaml:"env_release,omitempty"`
}

// LFOConfig routes one low-frequency oscillator into pitch (semitones),
// amplitude (0-1 factor) and filter cutoff (Hz).
type LFOConfig struct {
	RateHz       float64 `yaml:"rate_hz"`
	Waveform     int     `yaml:"waveform"`
	PitchAmount  float64 `yaml:"pitch_amount,omitempty"`
	AmpAmount    float64 `yaml:"amp_amount,omitempty"`
	FilterAmount float64 `yaml:"filter_amount,omitempty"`
}

// TrackConfig is the per-track timbre and FX setup read at every trigger.
// Changing it affects only subsequently triggered voices.
type TrackConfig struct {
	Name        string         `yaml:"name"`
	Mode        OscMode        `yaml:"mode"`
	Wave1       int            `yaml:"wave1"`
	Wave2       int            `yaml:"wave2,omitempty"`
	DetuneCents float64        `yaml:"detune_cents,omitempty"`
	OscMix      float64        `yaml:"osc_mix,omitempty"` // 0 = osc1 only, 1 = osc2 only
	Root        string         `yaml:"root"`
	Amp         EnvelopeConfig `yaml:"amp"`
	Filter      FilterConfig   `yaml:"filter"`
	LFO         LFOConfig      `yaml:"lfo,omitempty"`
	Drive       float64        `yaml:"drive,omitempty"`
	DelayWet    float64        `yaml:"delay_wet,omitempty"`
	DelayTimeMs float64        `yaml:"delay_time_ms,omitempty"`
	ReverbWet   float64        `yaml:"reverb_wet,omitempty"`
	ReverbSize  float64        `yaml:"reverb_size,omitempty"`
	VolumeDB    float64        `yaml:"volume_db"`
	Mute        bool           `yaml:"mute,omitempty"`
}

// Gain converts VolumeDB to a linear factor. Mute or -Inf dB yields silence.
func (c TrackConfig) Gain() float64 {
	if c.Mute || math.IsInf(c.VolumeDB, -1) {
		return 0
	}
	return math.Pow(10, c.VolumeDB/20)
}

// DefaultTrackConfig returns a playable dual-oscillator track.
func DefaultTrackConfig(name string) TrackConfig {
	return TrackConfig{
		Name:        name,
		Mode:        OscDual,
		Wave1:       WaveSaw,
		Wave2:       WaveSquare,
		DetuneCents: 6,
		OscMix:      0.5,
		Root:        "A3",
		Amp:         EnvelopeConfig{Attack: 0.004, Decay: 0.09, Sustain: 0.6, Release: 0.08},
		Filter: FilterConfig{
			Kind:       "lowpass",
			Cutoff:     2400,
			Resonance:  0.4,
			EnvAmount:  1800,
			EnvAttack:  0.002,
			EnvDecay:   0.1,
			EnvSustain: 0.3,
			EnvRelease: 0.12,
		},
		DelayTimeMs: 250,
		ReverbSize:  0.5,
		VolumeDB:    -6,
	}
}

// HarmonicTrackConfig returns a harmonic-stack track with a softer envelope.
func HarmonicTrackConfig(name string) TrackConfig {
	cfg := DefaultTrackConfig(name)
	cfg.Mode = OscHarmonic
	cfg.Wave1 = WaveSine
	cfg.Root = "C3"
	cfg.Amp = EnvelopeConfig{Attack: 0.002, Decay: 0.25, Sustain: 0.35, Release: 0.18}
	cfg.Filter.Cutoff = 5200
	cfg.Filter.EnvAmount = 0
	return cfg
}
