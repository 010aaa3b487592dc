package voice

import "github.com/stepgrid/stepgrid/internal/sequence"

// AmpFloor is the level below which a released voice counts as silent and
// becomes reclaimable.
const AmpFloor = 0.001

type envStage int

const (
	stageAttack envStage = iota
	stageDecay
	stageSustain
	stageRelease
	stageOff
)

// envelope evaluates a four-stage ADSR curve one sample at a time.
type envelope struct {
	cfg         sequence.EnvelopeConfig
	stage       envStage
	level       float64
	releaseStep float64
}

func newEnvelope(cfg sequence.EnvelopeConfig) envelope {
	if cfg.Sustain < 0 {
		cfg.Sustain = 0
	}
	if cfg.Sustain > 1 {
		cfg.Sustain = 1
	}
	return envelope{cfg: cfg}
}

func (e *envelope) advance(sampleRate float64) float64 {
	switch e.stage {
	case stageAttack:
		step := 1.0
		if e.cfg.Attack > 0 {
			step = 1 / (e.cfg.Attack * sampleRate)
		}
		e.level += step
		if e.level >= 1 {
			e.level = 1
			e.stage = stageDecay
		}
	case stageDecay:
		step := 1.0
		if e.cfg.Decay > 0 {
			step = (1 - e.cfg.Sustain) / (e.cfg.Decay * sampleRate)
		}
		e.level -= step
		if e.level <= e.cfg.Sustain {
			e.level = e.cfg.Sustain
			e.stage = stageSustain
		}
	case stageSustain:
	case stageRelease:
		e.level -= e.releaseStep
		if e.level <= AmpFloor {
			e.level = 0
			e.stage = stageOff
		}
	case stageOff:
		e.level = 0
	}
	return e.level
}

// release starts the release stage from the current level, so releasing
// during attack or decay ramps down from wherever the curve got to.
func (e *envelope) release(sampleRate float64) {
	if e.stage == stageRelease || e.stage == stageOff {
		return
	}
	e.stage = stageRelease
	if e.cfg.Release > 0 {
		e.releaseStep = e.level / (e.cfg.Release * sampleRate)
	} else {
		e.releaseStep = 1
	}
}

// cut silences the envelope immediately, bypassing the release tail.
func (e *envelope) cut() {
	e.stage = stageOff
	e.level = 0
}

func (e *envelope) done() bool {
	return e.stage == stageOff
}
