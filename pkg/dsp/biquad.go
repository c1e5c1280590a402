package dsp

import (
	"errors"
	"fmt"
	"math"
)

/*
 * Returned when a filter cutoff lies outside (0, nyquist).
 */
var ErrInvalidCutoff = errors.New("cutoff frequency must lie between zero and the nyquist frequency")

/*
 * Quality factor of a second-order Butterworth section.
 */
const ButterworthQ = 1.0 / math.Sqrt2

/*
 * Kind of a biquad section.
 */
type FilterType int

const (
	LOWPASS FilterType = iota
	HIGHPASS
)

func (t FilterType) String() string {
	switch t {
	case LOWPASS:
		return "lowpass"
	case HIGHPASS:
		return "highpass"
	default:
		return fmt.Sprintf("FilterType(%d)", int(t))
	}
}

/*
 * Second-order IIR section in transposed direct form II.
 *
 * Not safe for concurrent use. A biquad belongs to exactly one stream.
 */
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

/*
 * Creates a biquad using the audio EQ cookbook coefficients.
 */
func NewBiquad(kind FilterType, cutoff float64, sampleRate float64, q float64) (*Biquad, error) {
	nyquist := 0.5 * sampleRate

	if !(cutoff > 0) || !(cutoff < nyquist) {
		return nil, fmt.Errorf("%s at %g Hz (sample rate %g Hz): %w", kind, cutoff, sampleRate, ErrInvalidCutoff)
	}

	if !(q > 0) {
		q = ButterworthQ
	}

	w0 := 2.0 * math.Pi * cutoff / sampleRate
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2.0 * q)
	a0 := 1.0 + alpha
	f := Biquad{
		a1: (-2.0 * cosW0) / a0,
		a2: (1.0 - alpha) / a0,
	}

	switch kind {
	case LOWPASS:
		f.b0 = 0.5 * (1.0 - cosW0) / a0
		f.b1 = (1.0 - cosW0) / a0
		f.b2 = f.b0
	case HIGHPASS:
		f.b0 = 0.5 * (1.0 + cosW0) / a0
		f.b1 = -(1.0 + cosW0) / a0
		f.b2 = f.b0
	default:
		return nil, fmt.Errorf("unknown filter type %s", kind)
	}

	return &f, nil
}

/*
 * Filter a single sample.
 */
func (f *Biquad) Tick(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	return y
}

/*
 * Clear the filter state.
 */
func (f *Biquad) Reset() {
	f.z1 = 0
	f.z2 = 0
}
