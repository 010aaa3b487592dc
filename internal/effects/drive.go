package effects

import "math"

// Drive is a tanh waveshaper. Amount 0..1 maps to pre-gain 1..10 with
// compensating post-gain so louder drive settings don't just get louder.
type Drive struct {
	preGain  float32
	postGain float32
}

func NewDrive(amount float64) *Drive {
	if amount < 0 {
		amount = 0
	}
	if amount > 1 {
		amount = 1
	}
	pre := float32(1 + amount*9)
	return &Drive{
		preGain:  pre,
		postGain: 1 / float32(math.Tanh(float64(pre))),
	}
}

func (d *Drive) Process(l, r float32) (float32, float32) {
	l = float32(math.Tanh(float64(l*d.preGain))) * d.postGain
	r = float32(math.Tanh(float64(r*d.preGain))) * d.postGain
	return l, r
}

func (d *Drive) Reset() {}
