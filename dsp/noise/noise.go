// Package noise generates band-limited tape hiss.
package noise

import (
	"fmt"
	"math"

	"github.com/laurentcbn/obstaclespaceecho/dsp/rng"
)

const (
	hissLowpassHz  = 8000.0
	hissHighpassHz = 200.0

	// Output scale keeps the hiss subtle at moderate amounts.
	hissGain = 0.04

	minAmount = 0.001
)

// Generator is a filtered pseudo-random hiss source. White noise from a
// xorshift generator is lowpassed at ~8 kHz, then a trailing ~200 Hz
// highpass tracker is subtracted to leave the classic tape-hiss band.
type Generator struct {
	lpCoeff float64
	hpCoeff float64
	lpState float64
	hpState float64
	rand    *rng.XorShift32
}

// NewGenerator creates a hiss generator for the given sample rate.
func NewGenerator(sampleRate float64) (*Generator, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("noise sample rate must be > 0: %f", sampleRate)
	}

	return &Generator{
		lpCoeff: math.Exp(-2 * math.Pi * hissLowpassHz / sampleRate),
		hpCoeff: math.Exp(-2 * math.Pi * hissHighpassHz / sampleRate),
		rand:    rng.New(0),
	}, nil
}

// ProcessSample returns one hiss sample scaled by amount in [0,1].
// Amounts below a small threshold produce exact silence.
func (g *Generator) ProcessSample(amount float64) float64 {
	if amount < minAmount {
		return 0
	}

	n := g.rand.Bipolar()

	g.lpState = g.lpCoeff*g.lpState + (1-g.lpCoeff)*n

	band := g.lpState - g.hpState
	g.hpState = g.hpCoeff*g.hpState + (1-g.hpCoeff)*g.lpState

	return band * amount * hissGain
}

// Reset clears filter memory. The generator sequence is left running so
// hiss does not repeat after transport restarts.
func (g *Generator) Reset() {
	g.lpState = 0
	g.hpState = 0
}
