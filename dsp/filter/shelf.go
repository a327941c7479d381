// Package filter provides the biquad section and shelving designs used in
// the echo feedback path.
package filter

import (
	"errors"
	"math"
)

// ErrInvalidParams is returned when shelf parameters are out of range.
var ErrInvalidParams = errors.New("filter: invalid parameters")

// LowShelf designs a second-order low-shelving filter (RBJ cookbook).
//
// freqHz is the shelf corner in Hz, gainDB the shelf gain (positive boost,
// negative cut), q the shelf slope (0.7 gives the gentle tone-control
// shape). A zero gain yields pass-through coefficients.
func LowShelf(sampleRate, freqHz, gainDB, q float64) (Coefficients, error) {
	if err := validateShelf(sampleRate, freqHz, q); err != nil {
		return Coefficients{}, err
	}
	if gainDB == 0 {
		return Identity(), nil
	}

	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freqHz / sampleRate
	cosw0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	beta := 2 * math.Sqrt(a) * alpha

	b0 := a * ((a + 1) - (a-1)*cosw0 + beta)
	b1 := 2 * a * ((a - 1) - (a+1)*cosw0)
	b2 := a * ((a + 1) - (a-1)*cosw0 - beta)
	a0 := (a + 1) + (a-1)*cosw0 + beta
	a1 := -2 * ((a - 1) + (a+1)*cosw0)
	a2 := (a + 1) + (a-1)*cosw0 - beta

	return normalize(b0, b1, b2, a0, a1, a2), nil
}

// HighShelf designs a second-order high-shelving filter (RBJ cookbook).
func HighShelf(sampleRate, freqHz, gainDB, q float64) (Coefficients, error) {
	if err := validateShelf(sampleRate, freqHz, q); err != nil {
		return Coefficients{}, err
	}
	if gainDB == 0 {
		return Identity(), nil
	}

	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freqHz / sampleRate
	cosw0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	beta := 2 * math.Sqrt(a) * alpha

	b0 := a * ((a + 1) + (a-1)*cosw0 + beta)
	b1 := -2 * a * ((a - 1) + (a+1)*cosw0)
	b2 := a * ((a + 1) + (a-1)*cosw0 - beta)
	a0 := (a + 1) - (a-1)*cosw0 + beta
	a1 := 2 * ((a - 1) - (a+1)*cosw0)
	a2 := (a + 1) - (a-1)*cosw0 - beta

	return normalize(b0, b1, b2, a0, a1, a2), nil
}

func validateShelf(sampleRate, freqHz, q float64) error {
	if sampleRate <= 0 || freqHz <= 0 || q <= 0 {
		return ErrInvalidParams
	}
	if freqHz >= sampleRate*0.5 {
		return ErrInvalidParams
	}
	return nil
}

func normalize(b0, b1, b2, a0, a1, a2 float64) Coefficients {
	inv := 1 / a0
	return Coefficients{
		B0: b0 * inv,
		B1: b1 * inv,
		B2: b2 * inv,
		A1: a1 * inv,
		A2: a2 * inv,
	}
}
