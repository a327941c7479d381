package delay

import (
	"fmt"
	"math"

	"github.com/laurentcbn/obstaclespaceecho/dsp/interp"
)

// minReadOffset and the 4-sample tail margin keep every fractional read
// inside the region where a 4-point kernel has valid neighbors.
const minReadOffset = 1.0

// Line is a fixed-capacity circular delay line with clamped indexing.
//
// Write always advances the cursor; when the line is frozen the store is
// suppressed, so previously recorded content keeps looping under the read
// heads. A delay of 0 addresses the most recently written sample.
type Line struct {
	buffer   []float64
	writePos int
	frozen   bool
}

// New returns a delay line holding capacity samples.
func New(capacity int) (*Line, error) {
	if capacity < 8 {
		return nil, fmt.Errorf("delay capacity must be >= 8: %d", capacity)
	}
	return &Line{buffer: make([]float64, capacity)}, nil
}

// Len returns the line capacity in samples.
func (d *Line) Len() int {
	return len(d.buffer)
}

// SetFrozen suspends (true) or resumes (false) recording.
func (d *Line) SetFrozen(frozen bool) {
	d.frozen = frozen
}

// Frozen reports whether recording is suspended.
func (d *Line) Frozen() bool {
	return d.frozen
}

// Write records one sample and advances the cursor. While frozen the
// cursor still advances but the buffer content is left untouched.
func (d *Line) Write(sample float64) {
	if !d.frozen {
		d.buffer[d.writePos] = sample
	}
	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}
}

// Read reads an integer delay in samples. Delay 0 is the sample passed to
// the latest Write call; out-of-range delays are clamped.
func (d *Line) Read(delay int) float64 {
	size := len(d.buffer)
	if delay < 0 {
		delay = 0
	}
	if delay > size-1 {
		delay = size - 1
	}
	idx := d.writePos - 1 - delay
	if idx < 0 {
		idx += size
	}
	return d.buffer[idx]
}

// ReadCubic reads a fractional delay with 4-point Catmull-Rom
// interpolation. The delay is clamped to [1, Len()-4].
func (d *Line) ReadCubic(delay float64) float64 {
	delay = d.clampFractional(delay)

	p := int(math.Floor(delay))
	t := delay - float64(p)

	xm1 := d.Read(p - 1)
	x0 := d.Read(p)
	x1 := d.Read(p + 1)
	x2 := d.Read(p + 2)
	return interp.Hermite4(t, xm1, x0, x1, x2)
}

// ReadLinear reads a fractional delay with 2-point linear interpolation.
// The delay is clamped to [0, Len()-2].
func (d *Line) ReadLinear(delay float64) float64 {
	if delay < 0 {
		delay = 0
	}
	maxDelay := float64(len(d.buffer) - 2)
	if delay > maxDelay {
		delay = maxDelay
	}

	p := int(math.Floor(delay))
	t := delay - float64(p)
	return interp.Linear(t, d.Read(p), d.Read(p+1))
}

// Reset clears the buffer and the cursor. The freeze flag is left as set.
func (d *Line) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}
	d.writePos = 0
}

func (d *Line) clampFractional(delay float64) float64 {
	if delay < minReadOffset {
		return minReadOffset
	}
	maxDelay := float64(len(d.buffer) - 4)
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}
