package effects

// Delay is a stereo feedback delay with a fixed amount of cross-channel
// bleed for width.
type Delay struct {
	bufL, bufR []float32
	pos        int
	feedback   float32
	cross      float32
	wet        float32
}

const delayCross = 0.25

// NewDelay builds a delay line. timeMs is the delay time, wet the mix 0..1.
func NewDelay(sampleRate int, timeMs float64, feedback, wet float64) *Delay {
	samples := int(timeMs * float64(sampleRate) / 1000.0)
	if samples < 1 {
		samples = 1
	}
	return &Delay{
		bufL:     make([]float32, samples),
		bufR:     make([]float32, samples),
		feedback: clamp(float32(feedback), 0, 0.95),
		cross:    delayCross,
		wet:      clamp(float32(wet), 0, 1),
	}
}

func (d *Delay) Process(l, r float32) (float32, float32) {
	outL := d.bufL[d.pos]
	outR := d.bufR[d.pos]
	d.bufL[d.pos] = l + outL*d.feedback*(1-d.cross) + outR*d.feedback*d.cross
	d.bufR[d.pos] = r + outR*d.feedback*(1-d.cross) + outL*d.feedback*d.cross
	d.pos++
	if d.pos >= len(d.bufL) {
		d.pos = 0
	}
	return l*(1-d.wet) + outL*d.wet, r*(1-d.wet) + outR*d.wet
}

func (d *Delay) Reset() {
	for i := range d.bufL {
		d.bufL[i] = 0
		d.bufR[i] = 0
	}
	d.pos = 0
}
