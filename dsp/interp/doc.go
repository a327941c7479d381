// Package interp provides the interpolation kernels used by delay-based
// DSP blocks.
//
//   - [Linear]:   2-point linear interpolation (shimmer grain reads)
//   - [Hermite4]: 4-point cubic Catmull-Rom (tape head reads)
package interp
