package effects

// Reverb is a Schroeder-style unit: four parallel comb filters into two
// serial allpass filters. size 0..1 scales the delay-line lengths, wet the
// mix. Decay follows size.
type Reverb struct {
	combs   [4]delayLine
	allpass [2]delayLine
	wet     float32
}

// delayLine serves both comb and allpass roles.
type delayLine struct {
	buf []float32
	pos int
	fb  float32
}

func NewReverb(sampleRate int, size, wet float64) *Reverb {
	if size < 0 {
		size = 0
	}
	if size > 1 {
		size = 1
	}
	base := int(float64(sampleRate) * size * 0.05)
	if base < 10 {
		base = 10
	}
	fb := clamp(float32(0.6+size*0.3), 0, 0.95)
	r := &Reverb{wet: clamp(float32(wet), 0, 1)}
	// Mutually prime-ish length ratios avoid metallic resonances.
	combLens := [4]int{base, base * 1117 / 1000, base * 1271 / 1000, base * 1437 / 1000}
	for i := range r.combs {
		r.combs[i] = delayLine{buf: make([]float32, combLens[i]), fb: fb}
	}
	apLens := [2]int{base * 347 / 1000, base * 213 / 1000}
	for i := range r.allpass {
		n := apLens[i]
		if n < 1 {
			n = 1
		}
		r.allpass[i] = delayLine{buf: make([]float32, n), fb: 0.5}
	}
	return r
}

func (r *Reverb) Process(l, r2 float32) (float32, float32) {
	mono := (l + r2) * 0.5
	var out float32
	for i := range r.combs {
		out += r.combs[i].comb(mono)
	}
	out *= 0.25
	for i := range r.allpass {
		out = r.allpass[i].allpassStage(out)
	}
	return l*(1-r.wet) + out*r.wet, r2*(1-r.wet) + out*r.wet
}

func (r *Reverb) Reset() {
	for i := range r.combs {
		r.combs[i].zero()
	}
	for i := range r.allpass {
		r.allpass[i].zero()
	}
}

func (d *delayLine) comb(in float32) float32 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in + out*d.fb
	d.advance()
	return out
}

func (d *delayLine) allpassStage(in float32) float32 {
	buffered := d.buf[d.pos]
	d.buf[d.pos] = in + buffered*d.fb
	d.advance()
	return buffered - in
}

func (d *delayLine) advance() {
	d.pos++
	if d.pos >= len(d.buf) {
		d.pos = 0
	}
}

func (d *delayLine) zero() {
	for i := range d.buf {
		d.buf[i] = 0
	}
	d.pos = 0
}
