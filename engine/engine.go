// Package engine orchestrates the per-sample signal path of the space
// echo: two tape delay channels, spring reverbs with a granular shimmer
// feedback loop, tape hiss, shelving EQ inside the echo feedback path,
// and a soft output limiter.
package engine

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/laurentcbn/obstaclespaceecho/dsp/filter"
	"github.com/laurentcbn/obstaclespaceecho/dsp/noise"
	"github.com/laurentcbn/obstaclespaceecho/dsp/shimmer"
	"github.com/laurentcbn/obstaclespaceecho/dsp/spring"
	"github.com/laurentcbn/obstaclespaceecho/dsp/tape"
	"github.com/laurentcbn/obstaclespaceecho/param"
)

// Parameter ranges. Control values are clamped to these on entry; the
// audio path never validates.
const (
	MinRepeatMs  = 20.0
	MaxRepeatMs  = 500.0
	MaxIntensity = 0.95
	MaxEQGainDB  = 12.0
)

// ScopeSize is the length of the oscilloscope ring buffer.
const ScopeSize = 512

const (
	smoothingRampSec = 0.020

	bassShelfHz   = 200.0
	trebleShelfHz = 3000.0
	shelfQ        = 0.7

	// Fixed reverb voicing.
	reverbSize    = 0.65
	reverbDamping = 0.35

	echoIntoReverb      = 0.15
	shimmerFeedbackGain = 0.8

	// Stereo spread: the right tape transport starts with its wow LFO a
	// fraction of a cycle ahead of the left.
	rightWowSeedPhase = 0.37

	toneFreqHz      = 440.0
	toneFreq2Hz     = 554.0
	tonePulseSec    = 1.5
	toneAttackSteps = 4.0
	toneDecayRate   = 5.0
	toneLevel       = 0.4

	eqUnsetSentinel = 9999.0
)

// Engine is a stereo space-echo processor. One goroutine (the audio
// thread) calls ProcessBlock; any other goroutine may call the Set*
// methods and the metering accessors concurrently.
type Engine struct {
	sampleRate float64

	tapeL, tapeR       *tape.Delay
	springL, springR   *spring.Reverb
	noiseL, noiseR     *noise.Generator
	shimmerL, shimmerR *shimmer.Shifter

	// Shelving EQ inside the feedback path, so its coloration compounds
	// on every repeat.
	bassL, bassR     filter.Section
	trebleL, trebleR filter.Section
	cachedBassDB     float64
	cachedTrebleDB   float64

	feedbackL, feedbackR float64
	shimFeedL, shimFeedR float64

	// Control-thread slots.
	inputGain     param.Value
	repeatMs      param.Value
	intensity     param.Value
	bassDB        param.Value
	trebleDB      param.Value
	echoLevel     param.Value
	reverbLevel   param.Value
	wowFlutter    param.Value
	saturation    param.Value
	noiseAmount   param.Value
	shimmerAmount param.Value
	mode          atomic.Int32
	frozen        param.Flag
	pingPong      param.Flag
	testTone      param.Flag

	smInputGain   *param.Smoother
	smIntensity   *param.Smoother
	smEchoLevel   *param.Smoother
	smReverbLevel *param.Smoother
	smWowFlutter  *param.Smoother
	smSaturation  *param.Smoother
	smNoise       *param.Smoother
	smShimmer     *param.Smoother

	tonePhase   float64
	tonePhase2  float64
	toneTrigger float64

	inputLevel  param.Value
	outputLevel param.Value

	scope    [ScopeSize]float64
	scopePos atomic.Int32
}

// New allocates and prepares an engine for the given sample rate. All
// buffers are sized here; nothing allocates after New returns.
func New(sampleRate float64) (*Engine, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("engine sample rate must be > 0: %f", sampleRate)
	}

	e := &Engine{
		sampleRate:     sampleRate,
		cachedBassDB:   eqUnsetSentinel,
		cachedTrebleDB: eqUnsetSentinel,
	}

	var err error
	if e.tapeL, err = tape.NewDelay(sampleRate, MaxRepeatMs, 0); err != nil {
		return nil, err
	}
	if e.tapeR, err = tape.NewDelay(sampleRate, MaxRepeatMs, rightWowSeedPhase); err != nil {
		return nil, err
	}
	if e.springL, err = spring.NewReverb(sampleRate); err != nil {
		return nil, err
	}
	if e.springR, err = spring.NewReverb(sampleRate); err != nil {
		return nil, err
	}
	if e.noiseL, err = noise.NewGenerator(sampleRate); err != nil {
		return nil, err
	}
	if e.noiseR, err = noise.NewGenerator(sampleRate); err != nil {
		return nil, err
	}
	if e.shimmerL, err = shimmer.NewShifter(sampleRate); err != nil {
		return nil, err
	}
	if e.shimmerR, err = shimmer.NewShifter(sampleRate); err != nil {
		return nil, err
	}

	for _, r := range []*spring.Reverb{e.springL, e.springR} {
		if err := r.SetSize(reverbSize); err != nil {
			return nil, err
		}
		if err := r.SetDamping(reverbDamping); err != nil {
			return nil, err
		}
	}

	// Factory defaults.
	e.inputGain.Store(0.70)
	e.repeatMs.Store(150)
	e.intensity.Store(0.40)
	e.echoLevel.Store(0.70)
	e.reverbLevel.Store(0.50)
	e.wowFlutter.Store(0.30)
	e.saturation.Store(0.30)
	e.noiseAmount.Store(0.15)

	newSmoother := func() (*param.Smoother, error) {
		return param.NewSmoother(sampleRate, smoothingRampSec)
	}
	for _, sm := range []struct {
		dst **param.Smoother
		v   *param.Value
	}{
		{&e.smInputGain, &e.inputGain},
		{&e.smIntensity, &e.intensity},
		{&e.smEchoLevel, &e.echoLevel},
		{&e.smReverbLevel, &e.reverbLevel},
		{&e.smWowFlutter, &e.wowFlutter},
		{&e.smSaturation, &e.saturation},
		{&e.smNoise, &e.noiseAmount},
		{&e.smShimmer, &e.shimmerAmount},
	} {
		s, err := newSmoother()
		if err != nil {
			return nil, err
		}
		s.SetCurrentAndTarget(sm.v.Load())
		*sm.dst = s
	}

	e.updateEQ(e.bassDB.Load(), e.trebleDB.Load())

	return e, nil
}

// Reset clears stored samples and filter memory without resizing any
// buffer. Safe to call between process calls, idempotent.
func (e *Engine) Reset() {
	e.tapeL.Reset()
	e.tapeR.Reset()
	e.springL.Reset()
	e.springR.Reset()
	e.noiseL.Reset()
	e.noiseR.Reset()
	e.shimmerL.Reset()
	e.shimmerR.Reset()

	e.bassL.Reset()
	e.bassR.Reset()
	e.trebleL.Reset()
	e.trebleR.Reset()

	e.feedbackL, e.feedbackR = 0, 0
	e.shimFeedL, e.shimFeedR = 0, 0
	e.tonePhase, e.tonePhase2, e.toneTrigger = 0, 0, 0

	e.inputLevel.Store(0)
	e.outputLevel.Store(0)

	for i := range e.scope {
		e.scope[i] = 0
	}
	e.scopePos.Store(0)
}

// Release tears down stream state after playback stops. Buffers are kept
// for the next prepare-free restart.
func (e *Engine) Release() {
	e.Reset()
}

// SampleRate returns the prepared sample rate in Hz.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// SetInputGain sets input gain in [0,1].
func (e *Engine) SetInputGain(v float64) { e.inputGain.Store(clamp(v, 0, 1)) }

// SetRepeatRate sets the head-1 delay time in milliseconds.
func (e *Engine) SetRepeatRate(ms float64) { e.repeatMs.Store(clamp(ms, MinRepeatMs, MaxRepeatMs)) }

// SetIntensity sets echo feedback intensity in [0,0.95]. The ceiling
// below unity keeps the feedback loop convergent.
func (e *Engine) SetIntensity(v float64) { e.intensity.Store(clamp(v, 0, MaxIntensity)) }

// SetBass sets the low-shelf gain in dB, clamped to ±12.
func (e *Engine) SetBass(db float64) { e.bassDB.Store(clamp(db, -MaxEQGainDB, MaxEQGainDB)) }

// SetTreble sets the high-shelf gain in dB, clamped to ±12.
func (e *Engine) SetTreble(db float64) { e.trebleDB.Store(clamp(db, -MaxEQGainDB, MaxEQGainDB)) }

// SetEchoLevel sets the echo mix level in [0,1].
func (e *Engine) SetEchoLevel(v float64) { e.echoLevel.Store(clamp(v, 0, 1)) }

// SetReverbLevel sets the reverb mix level in [0,1].
func (e *Engine) SetReverbLevel(v float64) { e.reverbLevel.Store(clamp(v, 0, 1)) }

// SetWowFlutter sets pitch modulation depth in [0,1].
func (e *Engine) SetWowFlutter(v float64) { e.wowFlutter.Store(clamp(v, 0, 1)) }

// SetSaturation sets record-head drive in [0,1].
func (e *Engine) SetSaturation(v float64) { e.saturation.Store(clamp(v, 0, 1)) }

// SetTapeNoise sets hiss amount in [0,1].
func (e *Engine) SetTapeNoise(v float64) { e.noiseAmount.Store(clamp(v, 0, 1)) }

// SetShimmer sets the pitch-shifted reverb feedback amount in [0,1].
func (e *Engine) SetShimmer(v float64) { e.shimmerAmount.Store(clamp(v, 0, 1)) }

// SetMode selects the head/reverb combination, clamped to [0,11].
func (e *Engine) SetMode(index int) {
	if index < 0 {
		index = 0
	}
	if index >= NumModes {
		index = NumModes - 1
	}
	e.mode.Store(int32(index))
}

// SetFrozen suspends tape recording so the loop repeats indefinitely.
func (e *Engine) SetFrozen(frozen bool) { e.frozen.Store(frozen) }

// SetPingPong routes each channel's echo into the opposite channel's
// feedback path.
func (e *Engine) SetPingPong(enabled bool) { e.pingPong.Store(enabled) }

// SetTestTone enables the built-in tuning pulse.
func (e *Engine) SetTestTone(enabled bool) { e.testTone.Store(enabled) }

// TestToneEnabled reports whether the tuning pulse is active.
func (e *Engine) TestToneEnabled() bool { return e.testTone.Load() }

// InputLevel returns the running mean absolute input level of the last
// processed block.
func (e *Engine) InputLevel() float64 { return e.inputLevel.Load() }

// OutputLevel returns the running mean absolute output level of the last
// processed block.
func (e *Engine) OutputLevel() float64 { return e.outputLevel.Load() }

// ScopeWritePos returns the current oscilloscope write index.
func (e *Engine) ScopeWritePos() int { return int(e.scopePos.Load()) }

// CopyScope fills dst (up to ScopeSize samples) with the most recent
// output samples, oldest first. The buffer is written concurrently with
// reads; consumers poll at low rate and tolerate the last sample racing.
func (e *Engine) CopyScope(dst []float64) {
	n := len(dst)
	if n > ScopeSize {
		n = ScopeSize
	}
	wp := int(e.scopePos.Load())
	for i := 0; i < n; i++ {
		dst[i] = e.scope[(wp-n+i+ScopeSize)%ScopeSize]
	}
}

// updateEQ rebuilds the shelving sections only when the gains changed.
// Coefficients are swapped under running state so retuning is click-free.
func (e *Engine) updateEQ(bassDB, trebleDB float64) {
	if bassDB == e.cachedBassDB && trebleDB == e.cachedTrebleDB {
		return
	}
	e.cachedBassDB = bassDB
	e.cachedTrebleDB = trebleDB

	if c, err := filter.LowShelf(e.sampleRate, bassShelfHz, bassDB, shelfQ); err == nil {
		e.bassL.SetCoefficients(c)
		e.bassR.SetCoefficients(c)
	}
	if c, err := filter.HighShelf(e.sampleRate, trebleShelfHz, trebleDB, shelfQ); err == nil {
		e.trebleL.SetCoefficients(c)
		e.trebleR.SetCoefficients(c)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
