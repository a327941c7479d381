// Package shimmer implements a granular +1-octave pitch shifter intended
// for the reverb feedback loop.
//
// Two overlapping grains read a circular buffer at twice the write rate.
// The grains are offset by half a grain cycle and Hann-windowed from
// their phase relative to the write head, so one grain always fades in
// while the other fades out and the output stays gap-free.
package shimmer

import (
	"fmt"
	"math"

	"github.com/laurentcbn/obstaclespaceecho/dsp/delay"
)

const (
	// GrainLength is the grain window in samples (~93 ms at 44.1 kHz),
	// long enough for smooth crossfades.
	GrainLength = 4096

	bufferLength = GrainLength * 4

	readRate = 2.0 // 2x write speed = +1 octave

	minAmount = 0.001

	twoPi = 2 * math.Pi
)

// Shifter is a mono granular pitch shifter.
type Shifter struct {
	line *delay.Line
	wPos int
	r1   float64
	r2   float64
}

// NewShifter creates a pitch shifter. The grain length is fixed in
// samples, so the crossfade period scales with sample rate.
func NewShifter(sampleRate float64) (*Shifter, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("shimmer sample rate must be > 0: %f", sampleRate)
	}

	line, err := delay.New(bufferLength)
	if err != nil {
		return nil, err
	}

	s := &Shifter{line: line}
	s.resetCursors()
	return s, nil
}

// Reset clears the grain buffer and restores the cursor offsets.
func (s *Shifter) Reset() {
	s.line.Reset()
	s.resetCursors()
}

// ProcessSample returns the pitch-shifted (+1 octave) version of x,
// scaled by amount in [0,1].
func (s *Shifter) ProcessSample(x, amount float64) float64 {
	if amount < minAmount {
		return 0
	}

	s.line.Write(x)

	w1 := hannWindow(s.grainPhase(s.r1))
	w2 := hannWindow(s.grainPhase(s.r2))

	s1 := s.line.ReadLinear(float64(s.wPos) - s.r1)
	s2 := s.line.ReadLinear(float64(s.wPos) - s.r2)

	out := s1*w1 + s2*w2

	s.r1 += readRate
	s.r2 += readRate
	s.wPos++

	// A cursor that catches the write head restarts a grain behind it.
	if s.r1 >= float64(s.wPos) {
		s.r1 = float64(s.wPos) - GrainLength
	}
	if s.r2 >= float64(s.wPos) {
		s.r2 = float64(s.wPos) - GrainLength
	}

	return out * amount
}

// grainPhase maps cursor position to [0,1] over the grain span behind the
// write head.
func (s *Shifter) grainPhase(r float64) float64 {
	phase := (r - float64(s.wPos) + GrainLength) / GrainLength
	if phase < 0 {
		return 0
	}
	if phase > 1 {
		return 1
	}
	return phase
}

func (s *Shifter) resetCursors() {
	s.wPos = 0
	s.r1 = -GrainLength
	s.r2 = -GrainLength * 0.5
}

func hannWindow(phase float64) float64 {
	return 0.5 - 0.5*math.Cos(phase*twoPi)
}
