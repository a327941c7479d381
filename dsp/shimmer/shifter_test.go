package shimmer

import (
	"math"
	"testing"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

const testSampleRate = 44100.0

func newTestShifter(t *testing.T) *Shifter {
	t.Helper()
	s, err := NewShifter(testSampleRate)
	if err != nil {
		t.Fatalf("NewShifter: %v", err)
	}
	return s
}

func TestZeroAmountIsSilent(t *testing.T) {
	s := newTestShifter(t)
	for i := 0; i < 10000; i++ {
		if out := s.ProcessSample(math.Sin(float64(i)/5), 0); out != 0 {
			t.Fatalf("sample %d: got %v want 0", i, out)
		}
	}
}

// A pure sinusoid at f must come out with its dominant component near 2f.
func TestShiftsUpOneOctave(t *testing.T) {
	const (
		inputHz = 440.0
		fftSize = 32768
		warmup  = bufferLength
	)

	s := newTestShifter(t)

	phase := 0.0
	inc := inputHz / testSampleRate
	next := func() float64 {
		v := math.Sin(phase * 2 * math.Pi)
		phase += inc
		if phase >= 1 {
			phase -= 1
		}
		return v
	}

	for i := 0; i < warmup; i++ {
		s.ProcessSample(next(), 1)
	}

	buf := make([]complex128, fftSize)
	for i := 0; i < fftSize; i++ {
		out := s.ProcessSample(next(), 1)
		// Hann analysis window against spectral leakage.
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(fftSize-1))
		buf[i] = complex(out*w, 0)
	}

	spec := make([]complex128, fftSize)
	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		t.Fatalf("NewPlan64: %v", err)
	}
	if err := plan.Forward(spec, buf); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	half := fftSize / 2
	re := make([]float64, half)
	im := make([]float64, half)
	for i := 0; i < half; i++ {
		re[i] = real(spec[i])
		im[i] = imag(spec[i])
	}
	mags := make([]float64, half)
	vecmath.Magnitude(mags, re, im)

	binHz := testSampleRate / fftSize
	peakBin, peakMag := 0, 0.0
	for i := int(100 / binHz); i < half; i++ {
		if mags[i] > peakMag {
			peakMag = mags[i]
			peakBin = i
		}
	}

	peakHz := float64(peakBin) * binHz
	if math.Abs(peakHz-2*inputHz) > 40 {
		t.Fatalf("dominant component at %.1f Hz, want ~%.1f Hz", peakHz, 2*inputHz)
	}
}

func TestOutputIsContinuous(t *testing.T) {
	s := newTestShifter(t)

	prev := 0.0
	for i := 0; i < 4*bufferLength; i++ {
		out := s.ProcessSample(math.Sin(2*math.Pi*220*float64(i)/testSampleRate), 1)
		if math.Abs(out-prev) > 0.5 {
			t.Fatalf("sample %d: discontinuity %v -> %v", i, prev, out)
		}
		prev = out
	}
}

func TestResetYieldsSilence(t *testing.T) {
	s := newTestShifter(t)
	for i := 0; i < bufferLength; i++ {
		s.ProcessSample(1, 1)
	}

	s.Reset()
	for i := 0; i < bufferLength; i++ {
		if out := s.ProcessSample(0, 1); out != 0 {
			t.Fatalf("sample %d after reset: got %v want 0", i, out)
		}
	}
}
