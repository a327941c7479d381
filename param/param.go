// Package param carries control values from a UI or automation thread to
// the audio thread. A Value is a wait-free single-writer scalar slot; a
// Smoother ramps the audio-thread copy to avoid zipper noise.
package param

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Value is a lock-free float64 slot. The control thread stores, the audio
// thread loads; neither side ever blocks. The zero value reads as 0.
type Value struct {
	bits atomic.Uint64
}

// Store publishes v. Safe to call from any goroutine.
func (p *Value) Store(v float64) {
	p.bits.Store(math.Float64bits(v))
}

// Load returns the most recently published value.
func (p *Value) Load() float64 {
	return math.Float64frombits(p.bits.Load())
}

// Flag is a lock-free boolean slot with the same single-writer contract.
type Flag struct {
	v atomic.Bool
}

// Store publishes v.
func (f *Flag) Store(v bool) {
	f.v.Store(v)
}

// Load returns the most recently published value.
func (f *Flag) Load() bool {
	return f.v.Load()
}

// Smoother ramps a parameter linearly toward its target over a fixed
// time, advanced once per sample on the audio thread.
type Smoother struct {
	current   float64
	target    float64
	step      float64
	remaining int

	rampSamples int
}

// NewSmoother creates a smoother with the given ramp time.
func NewSmoother(sampleRate, rampSeconds float64) (*Smoother, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("smoother sample rate must be > 0: %f", sampleRate)
	}
	if rampSeconds < 0 || math.IsNaN(rampSeconds) || math.IsInf(rampSeconds, 0) {
		return nil, fmt.Errorf("smoother ramp must be >= 0 s: %f", rampSeconds)
	}

	ramp := int(rampSeconds * sampleRate)
	if ramp < 1 {
		ramp = 1
	}
	return &Smoother{rampSamples: ramp}, nil
}

// SetTarget starts a ramp from the current value to target. Re-setting
// the target already being ramped to is a no-op.
func (s *Smoother) SetTarget(target float64) {
	if target == s.target {
		return
	}
	s.target = target
	s.step = (target - s.current) / float64(s.rampSamples)
	s.remaining = s.rampSamples
}

// SetCurrentAndTarget jumps to v without ramping.
func (s *Smoother) SetCurrentAndTarget(v float64) {
	s.current = v
	s.target = v
	s.step = 0
	s.remaining = 0
}

// Next advances one sample and returns the smoothed value.
func (s *Smoother) Next() float64 {
	if s.remaining > 0 {
		s.current += s.step
		s.remaining--
		if s.remaining == 0 {
			s.current = s.target
		}
	}
	return s.current
}

// Current returns the value without advancing.
func (s *Smoother) Current() float64 {
	return s.current
}
