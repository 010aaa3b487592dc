package mixer

import "math"

const (
	clickFreq       = 880
	clickAccentFreq = 1760
	clickLength     = 0.03 // seconds
	clickGain       = 0.35
)

type click struct {
	phase float64
	step  float64
	amp   float64
	decay float64
}

// clickBank renders metronome ticks as short decaying sine bursts. Accented
// beats strike an octave higher. A handful of clicks can overlap at fast
// tempos, so they are kept in a small pool.
type clickBank struct {
	sampleRate float64
	active     []click
}

func (b *clickBank) strike(accent bool) {
	freq := float64(clickFreq)
	if accent {
		freq = clickAccentFreq
	}
	b.active = append(b.active, click{
		step:  2 * math.Pi * freq / b.sampleRate,
		amp:   clickGain,
		decay: clickGain / (clickLength * b.sampleRate),
	})
}

func (b *clickBank) render() float32 {
	if len(b.active) == 0 {
		return 0
	}
	var sum float64
	kept := b.active[:0]
	for i := range b.active {
		c := &b.active[i]
		sum += math.Sin(c.phase) * c.amp
		c.phase += c.step
		c.amp -= c.decay
		if c.amp > 0 {
			kept = append(kept, *c)
		}
	}
	b.active = kept
	return float32(sum)
}

func (b *clickBank) reset() {
	b.active = b.active[:0]
}
