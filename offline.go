package stepgrid

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/stepgrid/stepgrid/internal/config"
	intmix "github.com/stepgrid/stepgrid/internal/mixer"
	"github.com/stepgrid/stepgrid/internal/pattern"
	intsched "github.com/stepgrid/stepgrid/internal/scheduler"
	"github.com/stepgrid/stepgrid/internal/sequence"
)

// renderBlock is how much audio each offline iteration renders between
// scheduler ticks. It must stay under the scheduler's planning horizon.
const renderBlock = 4800

// RenderSamples plays the session offline and returns interleaved stereo
// samples: the same scheduler and mixer as live playback, driven faster than
// real time with no audio device. Pass WithRandSeed for reproducible output.
func RenderSamples(session config.Session, seconds float64, opts ...Option) ([]float32, error) {
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sampleRate <= 0 {
		return nil, errors.New("stepgrid: sample rate must be positive")
	}
	if seconds <= 0 {
		return nil, errors.New("stepgrid: render duration must be positive")
	}
	if len(session.Tracks) == 0 {
		return nil, errors.New("stepgrid: session has no tracks")
	}

	model := session.Sequence.Snapshot()
	model.Normalize(len(session.Tracks))
	tracks := append([]sequence.TrackConfig(nil), session.Tracks...)

	m := intmix.New(cfg.sampleRate, tracks)
	m.SetMasterGain(session.MasterVolume)
	if cfg.tap != nil {
		m.SetTap(cfg.tap)
	}

	var rng *rand.Rand
	if cfg.hasSeed {
		rng = rand.New(rand.NewSource(cfg.seed))
	}
	patCfg := pattern.DefaultConfig()
	patCfg.Scale = sequence.ScaleByName(session.Scale)

	sched := intsched.New(intsched.Options{
		Clock:   m,
		Sink:    sinkAdapter{m: m, rate: float64(cfg.sampleRate)},
		Pattern: pattern.New(patCfg, rng),
		Snapshot: func() (sequence.Model, []sequence.TrackConfig) {
			return model, tracks
		},
		Manual: true,
		Logger: cfg.logger,
	})
	sched.SetTempo(session.Tempo)
	sched.SetMetronome(session.Metronome)
	sched.SetVelocity(session.Velocity)
	sched.Start()
	defer sched.Stop()

	frames := int(float64(cfg.sampleRate) * seconds)
	out := make([]float32, frames*2)
	for rendered := 0; rendered < frames; {
		n := renderBlock
		if rest := frames - rendered; rest < n {
			n = rest
		}
		sched.Tick()
		m.Process(out[rendered*2 : (rendered+n)*2])
		rendered += n
	}
	return out, nil
}

// WriteWAV encodes interleaved stereo samples as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf.Data[i] = int(s * 32767)
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("stepgrid: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("stepgrid: finalize wav: %w", err)
	}
	return nil
}

// RenderWAVFile renders the session and writes it to a WAV file.
func RenderWAVFile(path string, session config.Session, seconds float64, opts ...Option) error {
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	samples, err := RenderSamples(session, seconds, opts...)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("stepgrid: create %s: %w", path, err)
	}
	if err := WriteWAV(f, samples, cfg.sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
