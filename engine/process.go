package engine

import (
	"math"

	"github.com/laurentcbn/obstaclespaceecho/dsp/tape"
)

// softClip is the output limiter: approximately unity for small signals,
// saturating smoothly toward ±1/0.9.
func softClip(x float64) float64 {
	return math.Tanh(x*0.9) / 0.9
}

// ProcessBlock renders one block in place. Passing nil for right runs
// the engine in mono on left. Block-rate parameters (mode, freeze,
// ping-pong, EQ) take effect at the block boundary; level-like
// parameters are smoothed per sample.
func (e *Engine) ProcessBlock(left, right []float64) {
	n := len(left)
	if n == 0 {
		return
	}
	if right == nil {
		right = left
	}
	mono := &right[0] == &left[0]

	e.smInputGain.SetTarget(e.inputGain.Load())
	e.smIntensity.SetTarget(e.intensity.Load())
	e.smEchoLevel.SetTarget(e.echoLevel.Load())
	e.smReverbLevel.SetTarget(e.reverbLevel.Load())
	e.smWowFlutter.SetTarget(e.wowFlutter.Load())
	e.smSaturation.SetTarget(e.saturation.Load())
	e.smNoise.SetTarget(e.noiseAmount.Load())
	e.smShimmer.SetTarget(e.shimmerAmount.Load())

	mode := ModeAt(int(e.mode.Load()))
	frozen := e.frozen.Load()
	pingPong := e.pingPong.Load() && !mono
	tone := e.testTone.Load()
	e.tapeL.SetFrozen(frozen)
	e.tapeR.SetFrozen(frozen)
	e.updateEQ(e.bassDB.Load(), e.trebleDB.Load())

	baseDelay := e.repeatMs.Load() * 0.001 * e.sampleRate
	activeHeads := mode.ActiveHeads()

	var inSum, outSum float64
	scopePos := int(e.scopePos.Load())

	for i := 0; i < n; i++ {
		gain := e.smInputGain.Next()
		intensity := e.smIntensity.Next()
		echoLv := e.smEchoLevel.Next()
		revLv := e.smReverbLevel.Next()
		wow := e.smWowFlutter.Next()
		sat := e.smSaturation.Next()
		hiss := e.smNoise.Next()
		shim := e.smShimmer.Next()

		inL := left[i] * gain
		inR := inL
		if !mono {
			inR = right[i] * gain
		}

		if tone {
			t := e.nextToneSample()
			inL += t
			inR += t
		}

		inSum += math.Abs(inL)

		inL += e.noiseL.ProcessSample(hiss)
		if !mono {
			inR += e.noiseR.ProcessSample(hiss)
		}

		headsL := e.tapeL.ProcessSample(inL, baseDelay, e.feedbackL, wow, sat)
		var headsR [tape.NumHeads]float64
		if !mono {
			headsR = e.tapeR.ProcessSample(inR, baseDelay, e.feedbackR, wow, sat)
		}

		var echoL, echoR float64
		if activeHeads > 0 {
			for h, on := range mode.Heads {
				if !on {
					continue
				}
				echoL += headsL[h]
				if !mono {
					echoR += headsR[h]
				}
			}
			inv := 1.0 / float64(activeHeads)
			echoL *= inv
			echoR *= inv
		}
		if mono {
			echoR = echoL
		}

		// The shelves live inside the loop: every repeat passes through
		// them again, so boosted bands bloom and cut bands thin out.
		echoL = e.trebleL.ProcessSample(e.bassL.ProcessSample(echoL))
		if !mono {
			echoR = e.trebleR.ProcessSample(e.bassR.ProcessSample(echoR))
		}

		if pingPong {
			e.feedbackL = echoR * intensity
			e.feedbackR = echoL * intensity
		} else {
			e.feedbackL = echoL * intensity
			e.feedbackR = echoR * intensity
		}

		var revL, revR float64
		if mode.Reverb {
			revL = e.springL.ProcessSample(inL + echoL*echoIntoReverb + e.shimFeedL)
			e.shimFeedL = e.shimmerL.ProcessSample(revL, shim) * shimmerFeedbackGain
			if mono {
				revR = revL
			} else {
				revR = e.springR.ProcessSample(inR + echoR*echoIntoReverb + e.shimFeedR)
				e.shimFeedR = e.shimmerR.ProcessSample(revR, shim) * shimmerFeedbackGain
			}
		} else {
			e.shimFeedL, e.shimFeedR = 0, 0
		}

		outL := softClip(inL + echoL*echoLv + revL*revLv)
		outR := outL
		if !mono {
			outR = softClip(inR + echoR*echoLv + revR*revLv)
		}

		left[i] = outL
		if !mono {
			right[i] = outR
		}

		outSum += math.Abs(outL)

		e.scope[scopePos] = outL
		scopePos = (scopePos + 1) % ScopeSize
	}

	e.scopePos.Store(int32(scopePos))
	e.inputLevel.Store(inSum / float64(n))
	e.outputLevel.Store(outSum / float64(n))
}

// nextToneSample advances the built-in tuning pulse: a 1.5 s gated
// two-partial tone with a short attack and exponential decay.
func (e *Engine) nextToneSample() float64 {
	pulseLen := e.sampleRate * tonePulseSec

	var env float64
	if e.toneTrigger < toneAttackSteps {
		env = 0.25
	} else {
		env = math.Exp(-toneDecayRate * e.toneTrigger / e.sampleRate)
	}

	s := math.Sin(e.tonePhase)*0.6 + math.Sin(e.tonePhase2)*0.4

	twoPi := 2 * math.Pi
	e.tonePhase += twoPi * toneFreqHz / e.sampleRate
	e.tonePhase2 += twoPi * toneFreq2Hz / e.sampleRate
	if e.tonePhase >= twoPi {
		e.tonePhase -= twoPi
	}
	if e.tonePhase2 >= twoPi {
		e.tonePhase2 -= twoPi
	}

	e.toneTrigger++
	if e.toneTrigger >= pulseLen {
		e.toneTrigger = 0
	}

	return s * env * toneLevel
}
