package voice

import (
	"math"

	"github.com/stepgrid/stepgrid/internal/sequence"
)

const twoPi = 2 * math.Pi

// osc is a single phase-accumulating oscillator.
type osc struct {
	phase float64
	freq  float64
	wave  int
	amp   float64
}

// next renders one sample and advances the phase. pitchMul scales the
// frequency for LFO vibrato.
func (o *osc) next(sampleRate, pitchMul float64) float64 {
	s := waveSample(o.phase, o.wave) * o.amp
	o.phase += twoPi * o.freq * pitchMul / sampleRate
	if o.phase > twoPi {
		o.phase -= twoPi
	}
	return s
}

func waveSample(phase float64, wave int) float64 {
	switch wave {
	case sequence.WaveSaw:
		return 1 - 2*math.Mod(phase, twoPi)/twoPi
	case sequence.WaveTriangle:
		return 2*math.Abs(2*math.Mod(phase, twoPi)/twoPi-1) - 1
	case sequence.WaveSquare:
		if math.Mod(phase, twoPi) < math.Pi {
			return 1
		}
		return -1
	case sequence.WavePulse25:
		if math.Mod(phase, twoPi) < math.Pi/2 {
			return 1
		}
		return -1
	default:
		return math.Sin(phase)
	}
}

// detuneRatio converts cents to a frequency multiplier.
func detuneRatio(cents float64) float64 {
	if cents == 0 {
		return 1
	}
	return math.Pow(2, cents/1200)
}
