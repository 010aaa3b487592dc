// Package lfo provides the per-track low-frequency oscillator whose output
// is routed into voice pitch, amplitude and filter cutoff.
package lfo

import (
	"math"

	"github.com/stepgrid/stepgrid/internal/sequence"
)

// LFO is a phase-accumulating modulation source. Sample returns a raw value
// in [-1, 1]; callers scale it by their routing amounts.
type LFO struct {
	rateHz   float64
	waveform int
	phase    float64
}

// Set configures rate and waveform (sequence.Wave* constants; unknown
// waveforms fall back to sine).
func (l *LFO) Set(rateHz float64, waveform int) {
	if rateHz < 0 {
		rateHz = 0
	}
	l.rateHz = rateHz
	l.waveform = waveform
}

// Active reports whether Sample will produce non-zero modulation.
func (l *LFO) Active() bool {
	return l.rateHz > 0
}

// Sample advances the oscillator by one frame and returns its value.
func (l *LFO) Sample(sampleRate float64) float64 {
	if l.rateHz <= 0 || sampleRate <= 0 {
		return 0
	}
	var v float64
	switch l.waveform {
	case sequence.WaveSaw:
		v = 1 - 2*l.phase
	case sequence.WaveTriangle:
		if l.phase < 0.5 {
			v = 4*l.phase - 1
		} else {
			v = 3 - 4*l.phase
		}
	case sequence.WaveSquare:
		if l.phase < 0.5 {
			v = 1
		} else {
			v = -1
		}
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}
	l.phase += l.rateHz / sampleRate
	for l.phase >= 1 {
		l.phase -= 1
	}
	return v
}

// Reset rewinds the phase so retriggered playback starts from a known point.
func (l *LFO) Reset() {
	l.phase = 0
}
