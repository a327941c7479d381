// Package spring implements a Schroeder-style reverberator tuned for
// spring character: short mutually-prime comb lengths for metallic
// density, damping inside the comb loops, series allpass diffusion, and a
// resonant "boing" stage that rings at the spring's mechanical resonance.
package spring

import (
	"fmt"
	"math"

	"github.com/laurentcbn/obstaclespaceecho/dsp/delay"
)

const (
	numCombs    = 8
	numAllpass  = 4
	twoPi       = 2 * math.Pi
	preDelayMs  = 8.0
	allpassGain = 0.5

	// Feedback gain is 0.70 + size*0.27, damping coefficient damping*0.45.
	feedbackBase  = 0.70
	feedbackRange = 0.27
	dampingScale  = 0.45

	combOutputScale = 0.7

	boingFreqHz    = 1200.0
	boingDecaySec  = 0.200
	boingMixAmount = 0.08
)

// combDelayMs holds spring-tuned, mutually prime comb delay times.
var combDelayMs = [numCombs]float64{25.31, 26.94, 28.96, 30.75, 32.25, 33.84, 35.28, 36.80}

// allpassDelayMs holds the series diffusion stage delay times.
var allpassDelayMs = [numAllpass]float64{5.10, 7.73, 10.00, 12.61}

// Reverb is a mono spring reverberator.
type Reverb struct {
	preDelay *delay.Line

	combs     [numCombs]*delay.Line
	combState [numCombs]float64

	allpasses [numAllpass]*delay.Line

	feedback float64
	damp     float64

	// Boing resonator: y[n] = a1*y[n-1] + a2*y[n-2] + b0*x[n], poles at
	// r*e^{±jw0} with r from the target decay time, b0 normalized for
	// unity peak gain at resonance.
	boingA1 float64
	boingA2 float64
	boingB0 float64
	boingY1 float64
	boingY2 float64
}

// NewReverb creates a spring reverb for the given sample rate with size
// and damping at 0.5.
func NewReverb(sampleRate float64) (*Reverb, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("spring sample rate must be > 0: %f", sampleRate)
	}

	r := &Reverb{}

	var err error
	if r.preDelay, err = delay.New(msToSamples(preDelayMs, sampleRate)); err != nil {
		return nil, err
	}
	for i := range r.combs {
		if r.combs[i], err = delay.New(msToSamples(combDelayMs[i], sampleRate)); err != nil {
			return nil, err
		}
	}
	for i := range r.allpasses {
		if r.allpasses[i], err = delay.New(msToSamples(allpassDelayMs[i], sampleRate)); err != nil {
			return nil, err
		}
	}

	bw := 1 / (math.Pi * boingDecaySec)
	pr := math.Exp(-math.Pi * bw / sampleRate)
	w0 := twoPi * boingFreqHz / sampleRate
	r.boingA1 = 2 * pr * math.Cos(w0)
	r.boingA2 = -(pr * pr)
	r.boingB0 = 2 * (1 - pr) * math.Sin(w0)

	if err := r.SetSize(0.5); err != nil {
		return nil, err
	}
	if err := r.SetDamping(0.5); err != nil {
		return nil, err
	}

	return r, nil
}

// SetSize sets decay time; size in [0,1].
func (r *Reverb) SetSize(size float64) error {
	if size < 0 || size > 1 || math.IsNaN(size) {
		return fmt.Errorf("spring size must be in [0,1]: %f", size)
	}
	r.feedback = feedbackBase + size*feedbackRange
	return nil
}

// SetDamping sets high-frequency damping; damping in [0,1].
func (r *Reverb) SetDamping(damping float64) error {
	if damping < 0 || damping > 1 || math.IsNaN(damping) {
		return fmt.Errorf("spring damping must be in [0,1]: %f", damping)
	}
	r.damp = damping * dampingScale
	return nil
}

// Reset clears all delay and filter state.
func (r *Reverb) Reset() {
	r.preDelay.Reset()
	for i := range r.combs {
		r.combs[i].Reset()
		r.combState[i] = 0
	}
	for i := range r.allpasses {
		r.allpasses[i].Reset()
	}
	r.boingY1 = 0
	r.boingY2 = 0
}

// ProcessSample runs one sample through the reverberator.
func (r *Reverb) ProcessSample(input float64) float64 {
	// Pre-delay decouples the dry input from the comb network.
	delayed := r.preDelay.Read(r.preDelay.Len() - 1)
	r.preDelay.Write(input)

	// Parallel combs with a lowpass tracker in each feedback loop.
	combSum := 0.0
	for i := range r.combs {
		line := r.combs[i]
		d := line.Read(line.Len() - 1)
		r.combState[i] = d*(1-r.damp) + r.combState[i]*r.damp
		line.Write(delayed + r.combState[i]*r.feedback)
		combSum += d
	}
	out := combSum * (1.0 / numCombs) * combOutputScale

	// Series allpass lattice for diffusion.
	for i := range r.allpasses {
		line := r.allpasses[i]
		d := line.Read(line.Len() - 1)
		v := out + d*-allpassGain
		line.Write(out + d*allpassGain)
		out = d + v*-allpassGain
	}

	// The boing stage is driven by the undiffused pre-delayed input, so
	// the metallic attack transient is independent of the comb decay.
	boing := r.boingA1*r.boingY1 + r.boingA2*r.boingY2 + delayed*r.boingB0
	r.boingY2 = r.boingY1
	r.boingY1 = boing

	return out + boing*boingMixAmount
}

// ProcessInPlace applies the reverb to buf in place.
func (r *Reverb) ProcessInPlace(buf []float64) {
	for i := range buf {
		buf[i] = r.ProcessSample(buf[i])
	}
}

func msToSamples(ms, sampleRate float64) int {
	return int(ms*0.001*sampleRate) + 1
}
