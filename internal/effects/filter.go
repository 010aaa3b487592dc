package effects

import "math"

type filterKind int

const (
	filterLowpass filterKind = iota
	filterBandpass
	filterHighpass
)

// Filter is the track-bus filter: a one-pole design whose highpass and
// bandpass responses are derived from the lowpass state.
type Filter struct {
	kind       filterKind
	alpha      float32
	lpL, lpR   float32
	bpL, bpR   float32
}

// NewFilter builds a bus filter. kind is "lowpass", "bandpass" or "highpass";
// unknown kinds fall back to lowpass. Cutoff is clamped below Nyquist.
func NewFilter(sampleRate int, kind string, cutoffHz float64) *Filter {
	if cutoffHz < 20 {
		cutoffHz = 20
	}
	if max := float64(sampleRate) * 0.45; cutoffHz > max {
		cutoffHz = max
	}
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sampleRate)
	f := &Filter{alpha: float32(dt / (rc + dt))}
	switch kind {
	case "bandpass":
		f.kind = filterBandpass
	case "highpass":
		f.kind = filterHighpass
	default:
		f.kind = filterLowpass
	}
	return f
}

func (f *Filter) Process(l, r float32) (float32, float32) {
	f.lpL += f.alpha * (l - f.lpL)
	f.lpR += f.alpha * (r - f.lpR)
	switch f.kind {
	case filterHighpass:
		return l - f.lpL, r - f.lpR
	case filterBandpass:
		f.bpL += f.alpha * (f.lpL - f.bpL)
		f.bpR += f.alpha * (f.lpR - f.bpR)
		return f.lpL - f.bpL, f.lpR - f.bpR
	default:
		return f.lpL, f.lpR
	}
}

func (f *Filter) Reset() {
	f.lpL, f.lpR, f.bpL, f.bpR = 0, 0, 0, 0
}
