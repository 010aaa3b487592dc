package voice

import (
	"math"

	"github.com/google/uuid"

	"github.com/stepgrid/stepgrid/internal/effects"
	"github.com/stepgrid/stepgrid/internal/lfo"
	"github.com/stepgrid/stepgrid/internal/sequence"
)

const (
	// DefaultPolyphony is the per-track voice ceiling. Generous headroom is
	// preferred over clever stealing.
	DefaultPolyphony = 128
	// reclaimGuard delays the silence check past the nominal release time,
	// since the envelope is only asymptotically zero there.
	reclaimGuard = 0.05
)

type slot struct {
	id        uuid.UUID
	key       string
	v         Voice
	startedAt int64
	released  bool
	reclaimAt int64
}

// Pool is one track's instrument: it allocates a Voice per trigger, tracks
// active voices by note key, enforces the polyphony ceiling, applies the
// track LFO and FX chain, and reclaims voices once silent.
type Pool struct {
	sampleRate float64
	cfg        sequence.TrackConfig
	gain       float64
	ceiling    int
	voices     []*slot
	mod        lfo.LFO
	chain      *effects.Chain
}

func NewPool(sampleRate int, cfg sequence.TrackConfig) *Pool {
	p := &Pool{
		sampleRate: float64(sampleRate),
		ceiling:    DefaultPolyphony,
	}
	p.SetConfig(cfg)
	return p
}

// SetConfig swaps the track configuration. Only subsequently triggered
// voices pick up the new timbre; the FX chain is rebuilt, which clears
// delay/reverb tails.
func (p *Pool) SetConfig(cfg sequence.TrackConfig) {
	p.cfg = cfg
	p.gain = cfg.Gain()
	p.mod.Set(cfg.LFO.RateHz, cfg.LFO.Waveform)
	sr := int(p.sampleRate)
	chain := effects.NewChain()
	if cfg.Drive > 0 {
		chain.Add(effects.NewDrive(cfg.Drive))
	}
	chain.Add(effects.NewFilter(sr, cfg.Filter.Kind, cfg.Filter.Cutoff))
	if cfg.DelayWet > 0 {
		chain.Add(effects.NewDelay(sr, cfg.DelayTimeMs, 0.45, cfg.DelayWet))
	}
	if cfg.ReverbWet > 0 {
		chain.Add(effects.NewReverb(sr, cfg.ReverbSize, cfg.ReverbWet))
	}
	p.chain = chain
}

// Config returns the live track configuration.
func (p *Pool) Config() sequence.TrackConfig {
	return p.cfg
}

// Trigger starts a new voice for the note at the given sample position and
// returns its ID. At the ceiling the oldest held voice is forcibly released
// and the stalest ringing slot is cut outright, so the newest note always
// sounds and the allocation never exceeds the ceiling.
func (p *Pool) Trigger(now int64, note sequence.Note, velocity float64) uuid.UUID {
	for len(p.voices) >= p.ceiling {
		p.evictOldest(now)
	}
	s := &slot{
		id:        uuid.New(),
		key:       note.Name,
		v:         NewVoice(p.sampleRate, p.cfg, note.Freq, clamp01(velocity)),
		startedAt: now,
	}
	p.voices = append(p.voices, s)
	return s.id
}

// Release releases the oldest still-held voice with the given note key.
// No matching voice is a no-op.
func (p *Pool) Release(now int64, key string) {
	for _, s := range p.voices {
		if !s.released && s.key == key {
			p.releaseSlot(now, s)
			return
		}
	}
}

// ReleaseByID releases the voice started by the Trigger call that returned
// id. Unknown or already-released IDs are a no-op.
func (p *Pool) ReleaseByID(now int64, id uuid.UUID) {
	for _, s := range p.voices {
		if !s.released && s.id == id {
			p.releaseSlot(now, s)
			return
		}
	}
}

// evictOldest frees exactly one slot: the oldest held voice is put into
// release, then the stalest already-released slot is cut and removed. When
// everything is held those are the same slot.
func (p *Pool) evictOldest(now int64) {
	var oldest *slot
	for _, s := range p.voices {
		if s.released {
			continue
		}
		if oldest == nil || s.startedAt < oldest.startedAt {
			oldest = s
		}
	}
	if oldest != nil {
		p.releaseSlot(now, oldest)
	}
	idx := -1
	for i, s := range p.voices {
		if s.released && (idx < 0 || s.startedAt < p.voices[idx].startedAt) {
			idx = i
		}
	}
	if idx < 0 {
		return
	}
	p.voices[idx].v.Cut()
	p.voices = append(p.voices[:idx], p.voices[idx+1:]...)
}

func (p *Pool) releaseSlot(now int64, s *slot) {
	s.v.Release()
	s.released = true
	s.reclaimAt = now + int64((p.cfg.Amp.Release+reclaimGuard)*p.sampleRate)
}

// CutAll silences every voice immediately (no release tail) and resets the
// FX chain and LFO phase.
func (p *Pool) CutAll() {
	for _, s := range p.voices {
		s.v.Cut()
	}
	p.voices = p.voices[:0]
	p.chain.Reset()
	p.mod.Reset()
}

// RenderFrame mixes all voices through the track FX chain, reclaiming any
// voice whose release has decayed below the amplitude floor.
func (p *Pool) RenderFrame(now int64) (float32, float32) {
	mod := flatModulation
	if p.mod.Active() {
		raw := p.mod.Sample(p.sampleRate)
		if p.cfg.LFO.PitchAmount != 0 {
			mod.PitchMul = math.Pow(2, raw*p.cfg.LFO.PitchAmount/12)
		}
		if p.cfg.LFO.AmpAmount != 0 {
			mod.AmpMul = 1 + raw*p.cfg.LFO.AmpAmount
			if mod.AmpMul < 0 {
				mod.AmpMul = 0
			}
		}
		mod.CutoffAdd = raw * p.cfg.LFO.FilterAmount
	}
	var sum float64
	kept := p.voices[:0]
	for _, s := range p.voices {
		sum += s.v.Render(mod)
		reclaimable := s.v.Done() ||
			(s.released && now >= s.reclaimAt && s.v.Level() < AmpFloor)
		if !reclaimable {
			kept = append(kept, s)
		}
	}
	p.voices = kept
	sum *= p.gain
	return p.chain.Process(float32(sum), float32(sum))
}

// ActiveVoices reports how many voices are currently allocated.
func (p *Pool) ActiveVoices() int {
	return len(p.voices)
}

// HeldVoices reports voices that have not yet been released.
func (p *Pool) HeldVoices() int {
	n := 0
	for _, s := range p.voices {
		if !s.released {
			n++
		}
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
