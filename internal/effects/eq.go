package effects

import (
	"math"
	"sync/atomic"
)

// EQBands is the number of master EQ bands.
const EQBands = 5

var eqCrossovers = [EQBands - 1]float64{200, 800, 2500, 8000}

// MasterEQ is a 5-band equalizer for the output bus. Gains are stored as
// float32 bit patterns so the UI thread can adjust them while the audio
// thread reads lock-free.
type MasterEQ struct {
	gains  [EQBands]atomic.Uint32
	alphas [EQBands - 1]float32
	lpL    [EQBands - 1]float32
	lpR    [EQBands - 1]float32
}

func NewMasterEQ(sampleRate int) *MasterEQ {
	eq := &MasterEQ{}
	dt := 1.0 / float64(sampleRate)
	for i, freq := range eqCrossovers {
		rc := 1.0 / (2 * math.Pi * freq)
		eq.alphas[i] = float32(dt / (rc + dt))
	}
	for i := range eq.gains {
		eq.gains[i].Store(math.Float32bits(1))
	}
	return eq
}

// SetGain sets a band gain (1.0 = unity, 2.0 = +6 dB). Out-of-range bands
// are ignored.
func (eq *MasterEQ) SetGain(band int, gain float32) {
	if band >= 0 && band < EQBands {
		eq.gains[band].Store(math.Float32bits(gain))
	}
}

func (eq *MasterEQ) Gain(band int) float32 {
	if band >= 0 && band < EQBands {
		return math.Float32frombits(eq.gains[band].Load())
	}
	return 1
}

func (eq *MasterEQ) Process(l, r float32) (float32, float32) {
	// Peel bands off bottom-up with cascaded one-pole crossovers; the
	// residue above the last crossover is the top band.
	remL, remR := l, r
	var outL, outR float32
	for i := 0; i < EQBands-1; i++ {
		eq.lpL[i] += eq.alphas[i] * (remL - eq.lpL[i])
		eq.lpR[i] += eq.alphas[i] * (remR - eq.lpR[i])
		g := math.Float32frombits(eq.gains[i].Load())
		outL += eq.lpL[i] * g
		outR += eq.lpR[i] * g
		remL -= eq.lpL[i]
		remR -= eq.lpR[i]
	}
	g := math.Float32frombits(eq.gains[EQBands-1].Load())
	return outL + remL*g, outR + remR*g
}

func (eq *MasterEQ) Reset() {
	for i := range eq.lpL {
		eq.lpL[i] = 0
		eq.lpR[i] = 0
	}
}
