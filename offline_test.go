package stepgrid

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/mjibson/go-dsp/fft"

	"github.com/stepgrid/stepgrid/internal/config"
	"github.com/stepgrid/stepgrid/internal/sequence"
)

func TestRenderSamplesLengthAndEnergy(t *testing.T) {
	samples, err := RenderSamples(config.Default(), 2, WithRandSeed(1))
	if err != nil {
		t.Fatal(err)
	}
	if want := 2 * 48000 * 2; len(samples) != want {
		t.Fatalf("len = %d, want %d", len(samples), want)
	}
	var energy float64
	for _, s := range samples {
		energy += math.Abs(float64(s))
	}
	if energy < 1 {
		t.Fatalf("energy = %v, want audible output", energy)
	}
	for i, s := range samples {
		if s > 1 || s < -1 {
			t.Fatalf("sample %d = %v outside [-1, 1]", i, s)
		}
	}
}

func TestRenderIsDeterministicWithSeed(t *testing.T) {
	a, err := RenderSamples(config.Default(), 1, WithRandSeed(42))
	if err != nil {
		t.Fatal(err)
	}
	b, err := RenderSamples(config.Default(), 1, WithRandSeed(42))
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("renders diverge at sample %d: %v vs %v", i, a[i], b[i])
		}
	}
}

// The pattern walk stays within two octaves above the cell root, so the
// spectral peak of a rendered note must land in that band.
func TestRenderSpectralPeakWithinWalkRange(t *testing.T) {
	session := config.Session{
		Tempo:        120,
		Velocity:     1,
		Scale:        "major",
		MasterVolume: 0.8,
		Tracks:       []sequence.TrackConfig{sequence.HarmonicTrackConfig("solo")},
	}
	session.Sequence = sequence.NewModel(1)
	session.Sequence.SetCell(0, 0, sequence.Cell{Tuplets: 1, Root: "C4"})

	const rate = 48000
	samples, err := RenderSamples(session, 1, WithRandSeed(5))
	if err != nil {
		t.Fatal(err)
	}
	mono := make([]float64, len(samples)/2)
	for i := range mono {
		mono[i] = float64(samples[2*i]) + float64(samples[2*i+1])
	}
	spectrum := fft.FFTReal(mono)

	binHz := float64(rate) / float64(len(mono))
	peakBin, peakMag := 0, 0.0
	for bin := int(20 / binHz); bin < len(mono)/2; bin++ {
		if mag := cmplxAbs(spectrum[bin]); mag > peakMag {
			peakBin, peakMag = bin, mag
		}
	}
	peakHz := float64(peakBin) * binHz

	low, _ := sequence.NoteForName("C4")
	high := sequence.NoteForMIDI(sequence.MIDIForName("C4") + 24)
	if peakHz < low.Freq*0.95 || peakHz > high.Freq*1.05 {
		t.Fatalf("spectral peak at %.1f Hz, want within walk range [%.1f, %.1f]",
			peakHz, low.Freq, high.Freq)
	}
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	const seconds = 0.5
	if err := RenderWAVFile(path, config.Default(), seconds, WithRandSeed(1)); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("decoder rejected rendered file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if buf.Format.NumChannels != 2 || buf.Format.SampleRate != 48000 {
		t.Fatalf("format = %+v", buf.Format)
	}
	if want := int(seconds * 48000 * 2); len(buf.Data) != want {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), want)
	}
	var energy float64
	for _, v := range buf.Data {
		if v > math.MaxInt16 || v < math.MinInt16 {
			t.Fatalf("sample %d outside 16-bit range", v)
		}
		energy += math.Abs(float64(v))
	}
	if energy == 0 {
		t.Fatal("decoded file is silent")
	}
}

func TestRenderRejectsBadArguments(t *testing.T) {
	if _, err := RenderSamples(config.Default(), 0); err == nil {
		t.Fatal("expected error for zero duration")
	}
	if _, err := RenderSamples(config.Session{}, 1); err == nil {
		t.Fatal("expected error for empty session")
	}
}
