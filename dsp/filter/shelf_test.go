package filter

import (
	"math"
	"math/cmplx"
	"testing"
)

// magnitudeAt evaluates |H(e^{jw})| for one section.
func magnitudeAt(c Coefficients, freqHz, sampleRate float64) float64 {
	w := 2 * math.Pi * freqHz / sampleRate
	z := cmplx.Exp(complex(0, -w))
	num := complex(c.B0, 0) + complex(c.B1, 0)*z + complex(c.B2, 0)*z*z
	den := complex(1, 0) + complex(c.A1, 0)*z + complex(c.A2, 0)*z*z
	return cmplx.Abs(num / den)
}

func TestLowShelfBoostsBassOnly(t *testing.T) {
	const sr = 44100.0
	c, err := LowShelf(sr, 200, 12, 0.7)
	if err != nil {
		t.Fatalf("LowShelf: %v", err)
	}

	lowGain := 20 * math.Log10(magnitudeAt(c, 20, sr))
	highGain := 20 * math.Log10(magnitudeAt(c, 8000, sr))

	if lowGain < 11 || lowGain > 13 {
		t.Fatalf("low band gain: got %.2f dB want ~12 dB", lowGain)
	}
	if math.Abs(highGain) > 1 {
		t.Fatalf("high band gain: got %.2f dB want ~0 dB", highGain)
	}
}

func TestHighShelfCutsTrebleOnly(t *testing.T) {
	const sr = 44100.0
	c, err := HighShelf(sr, 3000, -12, 0.7)
	if err != nil {
		t.Fatalf("HighShelf: %v", err)
	}

	lowGain := 20 * math.Log10(magnitudeAt(c, 100, sr))
	highGain := 20 * math.Log10(magnitudeAt(c, 15000, sr))

	if math.Abs(lowGain) > 1 {
		t.Fatalf("low band gain: got %.2f dB want ~0 dB", lowGain)
	}
	if highGain > -11 || highGain < -13 {
		t.Fatalf("high band gain: got %.2f dB want ~-12 dB", highGain)
	}
}

func TestZeroGainIsPassThrough(t *testing.T) {
	c, err := LowShelf(48000, 200, 0, 0.7)
	if err != nil {
		t.Fatalf("LowShelf: %v", err)
	}

	s := NewSection(c)
	for i, x := range []float64{1, -0.5, 0.25, 0} {
		if got := s.ProcessSample(x); got != x {
			t.Fatalf("sample %d: got %v want %v", i, got, x)
		}
	}
}

func TestShelfRejectsBadParams(t *testing.T) {
	if _, err := LowShelf(0, 200, 6, 0.7); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
	if _, err := HighShelf(44100, 30000, 6, 0.7); err == nil {
		t.Fatalf("expected error for freq above Nyquist")
	}
	if _, err := LowShelf(44100, 200, 6, 0); err == nil {
		t.Fatalf("expected error for zero Q")
	}
}

func TestSectionResetClearsState(t *testing.T) {
	c, err := LowShelf(44100, 200, 6, 0.7)
	if err != nil {
		t.Fatalf("LowShelf: %v", err)
	}
	s := NewSection(c)

	out1 := make([]float64, 64)
	for i := range out1 {
		x := 0.0
		if i == 0 {
			x = 1
		}
		out1[i] = s.ProcessSample(x)
	}

	s.Reset()
	for i := range out1 {
		x := 0.0
		if i == 0 {
			x = 1
		}
		if got := s.ProcessSample(x); math.Abs(got-out1[i]) > 1e-12 {
			t.Fatalf("sample %d after reset: got %v want %v", i, got, out1[i])
		}
	}
}
