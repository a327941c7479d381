package engine

import (
	"math"
	"testing"

	"github.com/laurentcbn/obstaclespaceecho/dsp/tape"
)

const testSampleRate = 48000.0

// settle runs enough silent samples for every parameter smoother to
// reach its target.
func settle(e *Engine) {
	buf := make([]float64, 4096)
	e.ProcessBlock(buf, nil)
}

func newQuietEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(testSampleRate)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e.SetTapeNoise(0)
	e.SetWowFlutter(0)
	e.SetSaturation(0)
	e.SetShimmer(0)
	settle(e)
	e.Reset()
	return e
}

func TestNewRejectsInvalidSampleRate(t *testing.T) {
	for _, sr := range []float64{0, -48000, math.NaN(), math.Inf(1)} {
		if _, err := New(sr); err == nil {
			t.Errorf("New(%f) should have failed", sr)
		}
	}
}

func TestModeTable(t *testing.T) {
	cases := []struct {
		heads  [tape.NumHeads]bool
		reverb bool
	}{
		{[3]bool{true, false, false}, false},
		{[3]bool{false, true, false}, false},
		{[3]bool{false, false, true}, false},
		{[3]bool{true, true, false}, false},
		{[3]bool{true, false, true}, false},
		{[3]bool{false, true, true}, false},
		{[3]bool{true, true, true}, false},
		{[3]bool{true, false, false}, true},
		{[3]bool{false, true, false}, true},
		{[3]bool{false, false, true}, true},
		{[3]bool{true, true, true}, true},
		{[3]bool{false, false, false}, true},
	}
	if len(cases) != NumModes {
		t.Fatalf("expected %d selector positions", NumModes)
	}
	for i, c := range cases {
		m := ModeAt(i)
		if m.Heads != c.heads || m.Reverb != c.reverb {
			t.Errorf("mode %d: got %+v, expected heads %v reverb %v", i, m, c.heads, c.reverb)
		}
	}

	if ModeAt(-3) != ModeAt(0) {
		t.Error("negative index should clamp to first mode")
	}
	if ModeAt(99) != ModeAt(NumModes-1) {
		t.Error("out-of-range index should clamp to last mode")
	}
}

func TestActiveHeads(t *testing.T) {
	if n := ModeAt(6).ActiveHeads(); n != 3 {
		t.Errorf("mode 6 should drive all 3 heads, got %d", n)
	}
	if n := ModeAt(11).ActiveHeads(); n != 0 {
		t.Errorf("mode 11 should drive no heads, got %d", n)
	}
}

func TestSoftClipBounds(t *testing.T) {
	limit := 1.0 / 0.9
	for _, x := range []float64{-100, -5, -1, 0, 1, 5, 100} {
		y := softClip(x)
		if math.Abs(y) >= limit {
			t.Errorf("softClip(%f) = %f exceeds +-%f", x, y, limit)
		}
	}
	// Near-unity for small signals.
	for _, x := range []float64{-0.05, 0.01, 0.05} {
		y := softClip(x)
		if math.Abs(y-x) > 0.001 {
			t.Errorf("softClip(%f) = %f, expected approximately linear", x, y)
		}
	}
	if softClip(0) != 0 {
		t.Error("softClip(0) should be 0")
	}
}

func TestSilenceInSilenceOut(t *testing.T) {
	e := newQuietEngine(t)

	buf := make([]float64, 2048)
	e.ProcessBlock(buf, nil)
	for i, v := range buf {
		if math.Abs(v) > 1e-12 {
			t.Fatalf("sample %d: expected silence, got %g", i, v)
		}
	}
}

func TestEchoArrivesAtHeadOneDelay(t *testing.T) {
	e := newQuietEngine(t)
	e.SetMode(0)
	e.SetRepeatRate(100)
	e.SetIntensity(0)
	e.SetEchoLevel(1)
	e.SetInputGain(1)
	settle(e)
	e.Reset()

	delay := int(100 * 0.001 * testSampleRate)
	buf := make([]float64, delay*2)
	buf[0] = 1
	e.ProcessBlock(buf, nil)

	peakIdx, peakVal := 0, 0.0
	for i := delay / 2; i < len(buf); i++ {
		if a := math.Abs(buf[i]); a > peakVal {
			peakVal = a
			peakIdx = i
		}
	}
	if peakVal < 0.05 {
		t.Fatalf("no echo found, peak %f", peakVal)
	}
	if peakIdx < delay-8 || peakIdx > delay+8 {
		t.Errorf("echo peak at sample %d, expected near %d", peakIdx, delay)
	}
}

func TestPingPongCrossesChannels(t *testing.T) {
	run := func(pingPong bool) float64 {
		e := newQuietEngine(t)
		e.SetMode(0)
		e.SetRepeatRate(50)
		e.SetIntensity(0.8)
		e.SetEchoLevel(1)
		e.SetInputGain(1)
		e.SetPingPong(pingPong)
		settle(e)
		e.Reset()

		delay := int(50 * 0.001 * testSampleRate)
		left := make([]float64, delay*4)
		right := make([]float64, delay*4)
		left[0] = 1
		e.ProcessBlock(left, right)

		sum := 0.0
		for _, v := range right {
			sum += math.Abs(v)
		}
		return sum
	}

	if crossed := run(true); crossed < 1e-3 {
		t.Errorf("ping-pong should leak the left echo into the right channel, got %g", crossed)
	}
	if straight := run(false); straight > 1e-9 {
		t.Errorf("without ping-pong the right channel should stay silent, got %g", straight)
	}
}

func TestTestToneProducesOutput(t *testing.T) {
	e := newQuietEngine(t)
	e.SetTestTone(true)
	if !e.TestToneEnabled() {
		t.Fatal("test tone flag did not latch")
	}

	buf := make([]float64, 2048)
	e.ProcessBlock(buf, nil)

	sum := 0.0
	for _, v := range buf {
		sum += math.Abs(v)
	}
	if sum/float64(len(buf)) < 0.01 {
		t.Errorf("test tone too quiet, mean level %f", sum/float64(len(buf)))
	}
	if e.OutputLevel() < 0.01 {
		t.Errorf("output meter should follow the tone, got %f", e.OutputLevel())
	}
}

func TestFreezeHoldsLoopAgainstNewInput(t *testing.T) {
	e := newQuietEngine(t)
	e.SetMode(0)
	e.SetRepeatRate(50)
	e.SetIntensity(0.9)
	e.SetEchoLevel(1)
	settle(e)
	e.Reset()

	delay := int(50 * 0.001 * testSampleRate)

	// Capture an impulse, then freeze and feed fresh input.
	buf := make([]float64, delay)
	buf[0] = 1
	e.ProcessBlock(buf, nil)

	e.SetFrozen(true)
	loop := make([]float64, delay*3)
	e.ProcessBlock(loop, nil)

	// The frozen tape keeps playing the captured impulse with no input.
	sum := 0.0
	for _, v := range loop {
		sum += math.Abs(v)
	}
	if sum < 1e-3 {
		t.Errorf("frozen loop should keep producing echoes, got energy %g", sum)
	}
}

func TestMeteringTracksInput(t *testing.T) {
	e := newQuietEngine(t)
	e.SetInputGain(1)
	settle(e)
	e.Reset()

	buf := make([]float64, 1024)
	for i := range buf {
		buf[i] = 0.5
	}
	e.ProcessBlock(buf, nil)

	if in := e.InputLevel(); math.Abs(in-0.5) > 0.05 {
		t.Errorf("input meter: got %f, expected near 0.5", in)
	}
	if e.OutputLevel() <= 0 {
		t.Error("output meter should be positive for non-silent input")
	}
}

func TestScopeCapturesRecentOutput(t *testing.T) {
	e := newQuietEngine(t)
	e.SetTestTone(true)

	buf := make([]float64, ScopeSize*2)
	e.ProcessBlock(buf, nil)

	scope := make([]float64, ScopeSize)
	e.CopyScope(scope)
	for i := 0; i < ScopeSize; i++ {
		if scope[i] != buf[len(buf)-ScopeSize+i] {
			t.Fatalf("scope sample %d does not match the latest output", i)
		}
	}
}

func TestResetSilencesTail(t *testing.T) {
	e := newQuietEngine(t)
	e.SetMode(6)
	e.SetIntensity(0.9)
	settle(e)

	buf := make([]float64, 4096)
	buf[0] = 1
	e.ProcessBlock(buf, nil)

	e.Reset()
	tail := make([]float64, 4096)
	e.ProcessBlock(tail, nil)
	for i, v := range tail {
		if math.Abs(v) > 1e-12 {
			t.Fatalf("sample %d after reset: got %g, expected silence", i, v)
		}
	}
}

func TestParameterClamping(t *testing.T) {
	e := newQuietEngine(t)

	e.SetRepeatRate(10000)
	if v := e.repeatMs.Load(); v != MaxRepeatMs {
		t.Errorf("repeat rate should clamp to %f, got %f", MaxRepeatMs, v)
	}
	e.SetRepeatRate(1)
	if v := e.repeatMs.Load(); v != MinRepeatMs {
		t.Errorf("repeat rate should clamp to %f, got %f", MinRepeatMs, v)
	}
	e.SetIntensity(2)
	if v := e.intensity.Load(); v != MaxIntensity {
		t.Errorf("intensity should clamp to %f, got %f", MaxIntensity, v)
	}
	e.SetBass(100)
	if v := e.bassDB.Load(); v != MaxEQGainDB {
		t.Errorf("bass should clamp to %f dB, got %f", MaxEQGainDB, v)
	}
	e.SetTreble(-100)
	if v := e.trebleDB.Load(); v != -MaxEQGainDB {
		t.Errorf("treble should clamp to %f dB, got %f", -MaxEQGainDB, v)
	}
}
