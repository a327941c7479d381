// Package tape implements a three-head modulated tape delay loop with
// wear artifacts: wow/flutter, record-head saturation, dropouts,
// print-through, head-gap filtering, head bump, and adjacent-head
// crosstalk.
package tape

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-approx"

	"github.com/laurentcbn/obstaclespaceecho/dsp/delay"
	"github.com/laurentcbn/obstaclespaceecho/dsp/rng"
)

// NumHeads is the number of playback heads.
const NumHeads = 3

// headRatios are the physical head spacing ratios relative to head 1.
var headRatios = [NumHeads]float64{1.0, 1.475, 2.625}

// headGapBaseHz is the per-head head-gap lowpass cutoff at the reference
// delay. Heads further along the loop read a slightly more worn section
// of tape and sit a touch darker.
var headGapBaseHz = [NumHeads]float64{6000, 5200, 4400}

const (
	twoPi = 2 * math.Pi

	bufferMargin = 4096

	wowRateHz      = 0.4
	flutterRateHz  = 8.0
	flutter2RateHz = 13.7
	driftRateHz    = 0.05

	flutter2SeedPhase = 0.37

	wowDepth      = 0.0042
	flutterDepth  = 0.0009
	flutter2Depth = 0.0002
	organicDepth  = 0.0012
	driftDepth    = 0.0001

	organicFilterHz = 5.0

	dcHighpassHz = 30.0

	referenceDelayMs = 150.0
	minHeadGapHz     = 1500.0
	maxHeadGapHz     = 7500.0

	bumpHighTrackerHz = 270.0
	bumpLowTrackerHz  = 85.0
	bumpMix           = 0.25

	printThroughRatio = 0.92
	printThroughGain  = 0.018 // ~-35 dB adjacent-layer bleed

	crosstalkGain = 0.015

	dropoutMinGain      = 0.25
	dropoutGainSpread   = 0.25
	dropoutMinSeconds   = 0.030
	dropoutMaxSeconds   = 0.075
	dropoutMinWaitSec   = 15.0
	dropoutMaxWaitSec   = 35.0
	dropoutRecoveryStep = 0.0005

	minSaturationAmount = 0.001
)

// headState holds the per-head one-pole filter memory.
type headState struct {
	lp     float64 // head-gap lowpass
	dc     float64 // DC-removal tracker
	bumpHi float64 // 270 Hz tracker
	bumpLo float64 // 85 Hz tracker
}

// dropoutState is a small state machine: Idle -> Active -> recovering.
type dropoutState struct {
	countdown int
	remaining int
	gain      float64
}

// Delay simulates one channel of the tape loop. Stereo processing uses two
// instances with different wow seed phases for natural spread; instances
// share no mutable state.
type Delay struct {
	sampleRate float64
	line       *delay.Line

	wowPhase      float64
	wowInc        float64
	flutterPhase  float64
	flutterInc    float64
	flutter2Phase float64
	flutter2Inc   float64
	driftPhase    float64
	driftInc      float64

	organic      float64
	organicCoeff float64

	heads    [NumHeads]headState
	dcCoeff  float64
	bumpHiCo float64
	bumpLoCo float64

	dropout dropoutState
	rand    *rng.XorShift32
}

// HeadRatios returns the head spacing ratios relative to the base delay.
func HeadRatios() [NumHeads]float64 {
	return headRatios
}

// NewDelay creates a tape delay channel. maxDelayMs bounds the base delay
// of head 1; the buffer is sized to hold head 3's delay at that setting
// plus an interpolation margin. lfoSeedPhase offsets the wow LFO so stereo
// channels drift apart.
func NewDelay(sampleRate, maxDelayMs, lfoSeedPhase float64) (*Delay, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("tape sample rate must be > 0: %f", sampleRate)
	}
	if maxDelayMs <= 0 || math.IsNaN(maxDelayMs) || math.IsInf(maxDelayMs, 0) {
		return nil, fmt.Errorf("tape max delay must be > 0 ms: %f", maxDelayMs)
	}
	lfoSeedPhase = math.Mod(math.Abs(lfoSeedPhase), 1)

	capacity := int(maxDelayMs/1000*sampleRate*headRatios[NumHeads-1]) + bufferMargin
	line, err := delay.New(capacity)
	if err != nil {
		return nil, err
	}

	d := &Delay{
		sampleRate:    sampleRate,
		line:          line,
		wowPhase:      lfoSeedPhase,
		wowInc:        wowRateHz / sampleRate,
		flutterInc:    flutterRateHz / sampleRate,
		flutter2Phase: flutter2SeedPhase,
		flutter2Inc:   flutter2RateHz / sampleRate,
		driftInc:      driftRateHz / sampleRate,
		organicCoeff:  math.Exp(-twoPi * organicFilterHz / sampleRate),
		dcCoeff:       1 - twoPi*dcHighpassHz/sampleRate,
		bumpHiCo:      math.Exp(-twoPi * bumpHighTrackerHz / sampleRate),
		bumpLoCo:      math.Exp(-twoPi * bumpLowTrackerHz / sampleRate),
		rand:          rng.New(uint32(1 + lfoSeedPhase*4096)),
	}
	d.dropout.gain = 1
	d.dropout.countdown = d.nextDropoutWait()

	return d, nil
}

// SetFrozen suspends (true) or resumes (false) the record head. Playback
// keeps looping over previously recorded content.
func (d *Delay) SetFrozen(frozen bool) {
	d.line.SetFrozen(frozen)
}

// LoopLength returns the loop length in samples, which is the period of
// the repeating output while frozen.
func (d *Delay) LoopLength() int {
	return d.line.Len()
}

// Reset clears tape content and filter memory. LFO phases and the dropout
// schedule keep running so a transport restart does not re-align channels.
func (d *Delay) Reset() {
	d.line.Reset()
	for h := range d.heads {
		d.heads[h] = headState{}
	}
	d.organic = 0
}

// ProcessSample runs one sample through the loop and returns the three
// head outputs. baseDelaySamples is the head-1 delay; heads 2 and 3 are
// scaled by the spacing ratios. The caller supplies the feedback sample
// from the previous step.
func (d *Delay) ProcessSample(input, baseDelaySamples, feedback, wowFlutter, saturation float64) [NumHeads]float64 {
	mod := d.advanceModulation(wowFlutter)
	playbackGain := d.advanceDropout()

	d.line.Write(Saturate(input+feedback, saturation))

	var out [NumHeads]float64
	for h := 0; h < NumHeads; h++ {
		delaySamples := baseDelaySamples * headRatios[h] * (1 + mod)

		raw := d.line.ReadCubic(delaySamples)
		raw += d.line.ReadCubic(delaySamples*printThroughRatio) * printThroughGain
		raw *= playbackGain

		out[h] = d.heads[h].filter(d, h, raw, delaySamples)
	}

	// Head-to-head magnetic crosstalk between physically adjacent heads.
	pre := out
	out[0] += pre[1] * crosstalkGain
	out[1] += (pre[0] + pre[2]) * crosstalkGain
	out[2] += pre[1] * crosstalkGain

	return out
}

// filter applies the head-gap lowpass, DC removal, and head bump.
func (s *headState) filter(d *Delay, h int, x, delaySamples float64) float64 {
	delayMs := delaySamples / d.sampleRate * 1000
	if delayMs < 1 {
		delayMs = 1
	}

	// Head-gap cutoff tracks tape speed: longer delay reads darker.
	cutoff := headGapBaseHz[h] * referenceDelayMs / delayMs
	if cutoff < minHeadGapHz {
		cutoff = minHeadGapHz
	} else if cutoff > maxHeadGapHz {
		cutoff = maxHeadGapHz
	}
	lpCoeff := float64(approx.FastExp(float32(-twoPi * cutoff / d.sampleRate)))

	s.lp = s.lp*lpCoeff + x*(1-lpCoeff)
	x = s.lp

	y := x - s.dc
	s.dc = s.dc*d.dcCoeff + x*(1-d.dcCoeff)

	s.bumpHi = s.bumpHi*d.bumpHiCo + y*(1-d.bumpHiCo)
	s.bumpLo = s.bumpLo*d.bumpLoCo + y*(1-d.bumpLoCo)

	return y + (s.bumpHi-s.bumpLo)*bumpMix
}

func (d *Delay) advanceModulation(amount float64) float64 {
	wow := math.Sin(d.wowPhase * twoPi)
	advancePhase(&d.wowPhase, d.wowInc)

	flt1 := math.Sin(d.flutterPhase * twoPi)
	advancePhase(&d.flutterPhase, d.flutterInc)

	flt2 := math.Sin(d.flutter2Phase * twoPi)
	advancePhase(&d.flutter2Phase, d.flutter2Inc)

	drift := math.Sin(d.driftPhase * twoPi)
	advancePhase(&d.driftPhase, d.driftInc)

	// Non-periodic transport irregularity: white noise lowpassed to ~5 Hz.
	d.organic = d.organic*d.organicCoeff + d.rand.Bipolar()*(1-d.organicCoeff)

	periodic := wow*wowDepth + flt1*flutterDepth + flt2*flutter2Depth + d.organic*organicDepth

	return periodic*amount + drift*driftDepth
}

func (d *Delay) advanceDropout() float64 {
	switch {
	case d.dropout.remaining > 0:
		d.dropout.remaining--
	case d.dropout.gain < 1:
		d.dropout.gain += dropoutRecoveryStep
		if d.dropout.gain > 1 {
			d.dropout.gain = 1
		}
	default:
		d.dropout.countdown--
		if d.dropout.countdown <= 0 {
			d.dropout.gain = dropoutMinGain + dropoutGainSpread*d.rand.Uniform()
			durSec := dropoutMinSeconds + (dropoutMaxSeconds-dropoutMinSeconds)*d.rand.Uniform()
			d.dropout.remaining = int(durSec * d.sampleRate)
			d.dropout.countdown = d.nextDropoutWait()
		}
	}

	return d.dropout.gain
}

func (d *Delay) nextDropoutWait() int {
	waitSec := dropoutMinWaitSec + (dropoutMaxWaitSec-dropoutMinWaitSec)*d.rand.Uniform()
	return int(waitSec * d.sampleRate)
}

// Saturate is the record-head soft clipper. The asymmetric transfer curve
// synthesizes a dominant second harmonic; output is normalized by the
// drive factor so small signals pass near unity gain.
func Saturate(x, amount float64) float64 {
	if amount < minSaturationAmount {
		return x
	}

	drive := 1 + amount*5
	driven := x * drive

	var y float64
	if driven >= 0 {
		y = driven / (1 + 1.12*driven)
	} else {
		y = driven / (1 - 0.88*driven)
	}

	return y / drive
}

func advancePhase(phase *float64, inc float64) {
	*phase += inc
	if *phase >= 1 {
		*phase -= 1
	}
}
