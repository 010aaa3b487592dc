package voice

import "math"

type svfKind int

const (
	svfLowpass svfKind = iota
	svfBandpass
	svfHighpass
)

func svfKindFor(name string) svfKind {
	switch name {
	case "bandpass":
		return svfBandpass
	case "highpass":
		return svfHighpass
	default:
		return svfLowpass
	}
}

// svf is a Chamberlin state-variable filter, one per voice, so resonance and
// the filter envelope act on each note independently.
type svf struct {
	kind       svfKind
	sampleRate float64
	damp       float64
	low, band  float64
}

func newSVF(sampleRate float64, kind string, resonance float64) svf {
	if resonance < 0 {
		resonance = 0
	}
	if resonance > 0.95 {
		resonance = 0.95
	}
	return svf{
		kind:       svfKindFor(kind),
		sampleRate: sampleRate,
		damp:       2 * (1 - resonance),
	}
}

func (f *svf) process(in, cutoffHz float64) float64 {
	if cutoffHz < 20 {
		cutoffHz = 20
	}
	if max := f.sampleRate * 0.22; cutoffHz > max {
		// Chamberlin topology goes unstable near Nyquist; cap well below.
		cutoffHz = max
	}
	g := 2 * math.Sin(math.Pi*cutoffHz/f.sampleRate)
	high := in - f.low - f.damp*f.band
	f.band += g * high
	f.low += g * f.band
	switch f.kind {
	case svfBandpass:
		return f.band
	case svfHighpass:
		return high
	default:
		return f.low
	}
}
