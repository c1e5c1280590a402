package pitch

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/andrepxx/go-dsp-guitar/fft"
)

var (
	ErrWindowSize = errors.New("window length does not match detector size")
	ErrSampleRate = errors.New("sample rate must be positive")
)

/*
 * Estimates the fundamental frequency of a window of samples in [-1, 1].
 *
 * When no pitch is found, implementations report a low clarity instead of
 * an error. Errors are reserved for contract violations such as a window of
 * the wrong length.
 */
type Estimator interface {
	Estimate(window []float64, sampleRate float64) (frequency float64, clarity float64, err error)
}

/*
 * Adapts a plain function to an Estimator.
 */
type EstimatorFunc func(window []float64, sampleRate float64) (float64, float64, error)

func (f EstimatorFunc) Estimate(window []float64, sampleRate float64) (float64, float64, error) {
	return f(window, sampleRate)
}

/*
 * Fraction of the highest normalized correlation peak a candidate must reach
 * to be picked. Picking the first such peak avoids octave errors.
 */
const DEFAULT_CUTOFF = 0.93

/*
 * Pitch detector based on the normalized square difference function
 * (McLeod pitch method). The autocorrelation is computed in the frequency
 * domain.
 */
type Detector struct {
	mutex             sync.Mutex
	size              int
	minFrequency      float64
	maxFrequency      float64
	minVolumeDecibels float64
	cutoff            float64
	fourierTransform  fft.FourierTransform
	bufCorrelation    []float64
	bufFFT            []complex128
	nsdf              []float64
}

/*
 * Detector option.
 */
type Option func(*Detector)

/*
 * Restrict detection to the given band.
 */
func WithRange(minFrequency float64, maxFrequency float64) Option {
	return func(d *Detector) {
		d.minFrequency = minFrequency
		d.maxFrequency = maxFrequency
	}
}

/*
 * Report zero clarity for windows quieter than this RMS level in dBFS.
 */
func WithMinVolumeDecibels(db float64) Option {
	return func(d *Detector) {
		d.minVolumeDecibels = db
	}
}

func WithCutoff(cutoff float64) Option {
	return func(d *Detector) {
		d.cutoff = cutoff
	}
}

/*
 * Creates a detector for windows of exactly size samples.
 */
func NewDetector(size int, opts ...Option) *Detector {
	twoN := uint64(2 * size)
	fftSize, _ := fft.NextPowerOfTwo(twoN)

	d := Detector{
		size:              size,
		minFrequency:      0,
		maxFrequency:      math.Inf(1),
		minVolumeDecibels: math.Inf(-1),
		cutoff:            DEFAULT_CUTOFF,
		fourierTransform:  fft.CreateFourierTransform(),
		bufCorrelation:    make([]float64, fftSize),
		bufFFT:            make([]complex128, fftSize),
		nsdf:              make([]float64, size),
	}

	for _, opt := range opts {
		opt(&d)
	}

	return &d
}

/*
 * Window length this detector accepts.
 */
func (d *Detector) Size() int {
	return d.size
}

/*
 * Root mean square level of a window in dBFS.
 */
func Decibels(window []float64) float64 {
	sum := 0.0

	for _, x := range window {
		sum += x * x
	}

	rms := math.Sqrt(sum / float64(len(window)))
	return 20.0 * math.Log10(rms)
}

/*
 * Estimate the fundamental frequency of window.
 */
func (d *Detector) Estimate(window []float64, sampleRate float64) (float64, float64, error) {
	n := len(window)

	if n != d.size {
		return 0, 0, fmt.Errorf("got %d samples, want %d: %w", n, d.size, ErrWindowSize)
	}

	if !(sampleRate > 0) {
		return 0, 0, fmt.Errorf("%g: %w", sampleRate, ErrSampleRate)
	}

	/*
	 * Too quiet, or silent, to say anything.
	 */
	if Decibels(window) < d.minVolumeDecibels || n < 4 {
		return 0, 0, nil
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()
	err := d.normalizedSquareDifference(window)

	if err != nil {
		return 0, 0, err
	}

	lowIdx := 2
	highIdx := n - 2

	/*
	 * Translate the frequency band into a lag band.
	 */
	if d.maxFrequency > 0 && !math.IsInf(d.maxFrequency, 1) {
		lowIdx = max(lowIdx, int(sampleRate/d.maxFrequency))
	}

	if d.minFrequency > 0 {
		highIdx = min(highIdx, int(math.Ceil(sampleRate/d.minFrequency)))
	}

	if lowIdx >= highIdx {
		return 0, 0, nil
	}

	tau, value := d.pickPeak(lowIdx, highIdx)

	if tau <= 0 || value <= 0 {
		return 0, 0, nil
	}

	clarity := math.Min(1.0, value)
	frequency := sampleRate / tau
	return frequency, clarity, nil
}

/*
 * Fill d.nsdf with the normalized square difference of window.
 *
 * nsdf(tau) = 2 r(tau) / m(tau), where r is the autocorrelation and
 * m(tau) = sum of x[j]^2 + x[j+tau]^2 over the overlapping part.
 */
func (d *Detector) normalizedSquareDifference(window []float64) error {
	n := len(window)
	bufCorrelation := d.bufCorrelation
	bufFFT := d.bufFFT
	fftSize := len(bufCorrelation)
	ft := d.fourierTransform
	copy(bufCorrelation, window)
	tailBuffer := bufCorrelation[n:fftSize]
	fft.ZeroFloat(tailBuffer)
	err := ft.RealFourier(bufCorrelation, bufFFT, fft.SCALING_DEFAULT)

	if err != nil {
		return fmt.Errorf("failed to calculate forward FFT: %w", err)
	}

	/*
	 * Multiply each element of the spectrum with its complex conjugate.
	 */
	for i, elem := range bufFFT {
		bufFFT[i] = elem * cmplx.Conj(elem)
	}

	err = ft.RealInverseFourier(bufFFT, bufCorrelation, fft.SCALING_DEFAULT)

	if err != nil {
		return fmt.Errorf("failed to calculate inverse FFT: %w", err)
	}

	/*
	 * Energy at lag zero, computed directly so the result does not depend
	 * on the scaling convention of the transform.
	 */
	energy := 0.0

	for _, x := range window {
		energy += x * x
	}

	nsdf := d.nsdf

	if energy == 0 || bufCorrelation[0] == 0 {
		clear(nsdf)
		return nil
	}

	scale := energy / bufCorrelation[0]
	m := 2.0 * energy

	for tau := 0; tau < n; tau++ {

		if tau > 0 {
			head := window[tau-1]
			tail := window[n-tau]
			m -= head*head + tail*tail
		}

		if m > 0 {
			nsdf[tau] = 2.0 * scale * bufCorrelation[tau] / m
		} else {
			nsdf[tau] = 0
		}

	}

	return nil
}

/*
 * Select the first key maximum within [lowIdx, highIdx] that reaches the
 * cutoff fraction of the highest key maximum and refine its position by
 * parabolic interpolation.
 */
func (d *Detector) pickPeak(lowIdx int, highIdx int) (float64, float64) {
	nsdf := d.nsdf
	keyIdx := []int{}
	bestIdx := -1
	bestVal := math.Inf(-1)

	/*
	 * Skip the main lobe around lag zero.
	 */
	start := 1

	for start < highIdx && nsdf[start] > 0 {
		start++
	}

	start = max(start, lowIdx)

	/*
	 * Key maxima: the highest point between a positive going and a
	 * negative going zero crossing.
	 */
	for tau := start; tau <= highIdx; {

		for tau <= highIdx && nsdf[tau] <= 0 {
			tau++
		}

		localIdx := -1
		localVal := math.Inf(-1)

		for tau <= highIdx && nsdf[tau] > 0 {

			if nsdf[tau] > localVal {
				localVal = nsdf[tau]
				localIdx = tau
			}

			tau++
		}

		if localIdx >= 0 {
			keyIdx = append(keyIdx, localIdx)

			if localVal > bestVal {
				bestVal = localVal
				bestIdx = localIdx
			}

		}

	}

	if bestIdx < 0 {
		return 0, 0
	}

	threshold := d.cutoff * bestVal
	idx := bestIdx

	for _, candidate := range keyIdx {

		if nsdf[candidate] >= threshold {
			idx = candidate
			break
		}

	}

	return interpolate(nsdf, idx)
}

/*
 * Parabolic interpolation around idx. Returns the refined lag and height.
 */
func interpolate(buf []float64, idx int) (float64, float64) {
	idxDown := max(idx-1, 0)
	idxUp := min(idx+1, len(buf)-1)
	valueLeft := buf[idxDown]
	valueMid := buf[idx]
	valueRight := buf[idxUp]
	denominator := valueLeft - 2.0*valueMid + valueRight

	if denominator == 0 || idxDown == idx || idxUp == idx {
		return float64(idx), valueMid
	}

	shiftEstimation := 0.5 * (valueLeft - valueRight) / denominator

	/*
	 * Limit shift estimation to plus/minus half a sample.
	 */
	if shiftEstimation < -0.5 {
		shiftEstimation = -0.5
	} else if shiftEstimation > 0.5 {
		shiftEstimation = 0.5
	}

	height := valueMid - 0.25*(valueLeft-valueRight)*shiftEstimation
	return float64(idx) + shiftEstimation, height
}
