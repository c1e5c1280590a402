package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/andrepxx/go-dsp-guitar/fft"
)

/*
 * Default decibel range mapped onto byte magnitudes.
 */
const (
	DEFAULT_MIN_DECIBELS = -100.0
	DEFAULT_MAX_DECIBELS = -30.0
)

/*
 * Anything that can hand out a copy of an analysis window.
 */
type Source interface {
	Snapshot(dst []float64) error
	Size() int
}

/*
 * Spectral magnitude view of a window, for visualizers.
 *
 * The analyser copies the window out of its source and keeps its own
 * smoothing state. The source is never written to.
 */
type Analyser struct {
	mutex            sync.Mutex
	source           Source
	smoothing        float64
	minDecibels      float64
	maxDecibels      float64
	fourierTransform fft.FourierTransform
	blackman         []float64
	bufSignal        []float64
	bufFFT           []complex128
	smoothed         []float64
}

/*
 * Creates an analyser over src. The smoothing time constant is clamped to
 * [0, 1]; zero disables smoothing.
 */
func NewAnalyser(src Source, smoothing float64) *Analyser {
	n := src.Size()
	smoothing = math.Max(0, math.Min(1, smoothing))

	a := Analyser{
		source:           src,
		smoothing:        smoothing,
		minDecibels:      DEFAULT_MIN_DECIBELS,
		maxDecibels:      DEFAULT_MAX_DECIBELS,
		fourierTransform: fft.CreateFourierTransform(),
		blackman:         blackmanWindow(n),
		bufSignal:        make([]float64, n),
		bufFFT:           make([]complex128, n),
		smoothed:         make([]float64, n/2),
	}

	return &a
}

/*
 * Blackman window coefficients.
 */
func blackmanWindow(n int) []float64 {
	w := make([]float64, n)
	nf := float64(n)

	for i := range w {
		x := float64(i) / nf
		w[i] = 0.42 - 0.5*math.Cos(2.0*math.Pi*x) + 0.08*math.Cos(4.0*math.Pi*x)
	}

	return w
}

/*
 * Number of frequency bins, half the window length.
 */
func (a *Analyser) FrequencyBinCount() int {
	return len(a.smoothed)
}

/*
 * Center frequency of a bin in Hz.
 */
func (a *Analyser) FrequencyForBin(bin int, sampleRate float64) float64 {
	return float64(bin) * sampleRate / float64(len(a.bufSignal))
}

/*
 * Recompute the smoothed magnitude spectrum from a fresh snapshot.
 *
 * Caller must hold the mutex.
 */
func (a *Analyser) update() error {
	signal := a.bufSignal
	err := a.source.Snapshot(signal)

	if err != nil {
		return fmt.Errorf("failed to retrieve analysis window: %w", err)
	}

	for i := range signal {
		signal[i] *= a.blackman[i]
	}

	err = a.fourierTransform.RealFourier(signal, a.bufFFT, fft.SCALING_DEFAULT)

	if err != nil {
		return fmt.Errorf("failed to calculate forward FFT: %w", err)
	}

	n := float64(len(signal))
	tau := a.smoothing

	for k := range a.smoothed {
		magnitude := cmplx.Abs(a.bufFFT[k]) / n
		a.smoothed[k] = tau*a.smoothed[k] + (1.0-tau)*magnitude
	}

	return nil
}

/*
 * Write the spectrum in decibels into dst and return the number of bins
 * written.
 */
func (a *Analyser) FloatFrequencyData(dst []float64) (int, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	err := a.update()

	if err != nil {
		return 0, err
	}

	n := copy(dst, a.smoothed)

	for i := 0; i < n; i++ {
		dst[i] = 20.0 * math.Log10(dst[i])
	}

	return n, nil
}

/*
 * Write the spectrum scaled from [minDecibels, maxDecibels] onto [0, 255]
 * into dst and return the number of bins written.
 */
func (a *Analyser) ByteFrequencyData(dst []uint8) (int, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	err := a.update()

	if err != nil {
		return 0, err
	}

	n := min(len(dst), len(a.smoothed))
	span := a.maxDecibels - a.minDecibels

	for i := 0; i < n; i++ {
		db := 20.0 * math.Log10(a.smoothed[i])
		scaled := 255.0 * (db - a.minDecibels) / span

		/*
		 * Clip to byte range. Silence yields -Inf and ends up at zero.
		 */
		if scaled < 0 || math.IsNaN(scaled) {
			scaled = 0
		} else if scaled > 255 {
			scaled = 255
		}

		dst[i] = uint8(scaled)
	}

	return n, nil
}
