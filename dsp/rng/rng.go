// Package rng provides a tiny deterministic generator for audio-rate noise
// and event scheduling. Each DSP voice owns its own instance, so two engine
// channels never share generator state.
package rng

const defaultSeed = 0xDEAD1337

// XorShift32 is a 32-bit xorshift generator. The zero value is not usable;
// construct with New.
type XorShift32 struct {
	state uint32
}

// New returns a generator. A zero seed falls back to a fixed default.
func New(seed uint32) *XorShift32 {
	if seed == 0 {
		seed = defaultSeed
	}
	return &XorShift32{state: seed}
}

// Next advances the generator and returns the raw 32-bit state.
func (r *XorShift32) Next() uint32 {
	r.state ^= r.state << 13
	r.state ^= r.state >> 17
	r.state ^= r.state << 5
	return r.state
}

// Bipolar returns a sample uniformly distributed in [-1, 1).
func (r *XorShift32) Bipolar() float64 {
	return float64(int32(r.Next())) * 4.6566e-10
}

// Uniform returns a sample uniformly distributed in [0, 1).
func (r *XorShift32) Uniform() float64 {
	return float64(r.Next()) * (1.0 / 4294967296.0)
}

// Reseed restores the generator to a known state.
func (r *XorShift32) Reseed(seed uint32) {
	if seed == 0 {
		seed = defaultSeed
	}
	r.state = seed
}
