package dsp

import (
	"errors"
	"fmt"

	"github.com/metalblueberry/tuner/pkg/circular"
)

var (
	ErrInvalidRange = errors.New("minimum frequency must be below maximum frequency")
	ErrBufferSize   = errors.New("buffer size must be a positive power of two")
)

/*
 * Parameters of a signal conditioning chain.
 */
type PipelineConfig struct {
	SampleRate   float64
	MinFrequency float64
	MaxFrequency float64
	BufferSize   int
}

/*
 * Band-limits incoming audio and keeps the most recent analysis window.
 *
 * high-pass(MinFrequency) -> low-pass(MaxFrequency) -> window(BufferSize)
 *
 * Process is meant to be called from the audio callback and only ever
 * touches the filters and the window. Snapshot may be called concurrently
 * from any goroutine.
 */
type Pipeline struct {
	sampleRate float64
	highpass   *Biquad
	lowpass    *Biquad
	window     *circular.Buffer[float64]
	scratch    []float64
}

/*
 * Checks whether n is a positive power of two.
 */
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

/*
 * Creates a pipeline with an empty (zeroed) window.
 */
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {

	if !IsPowerOfTwo(cfg.BufferSize) {
		return nil, fmt.Errorf("%d: %w", cfg.BufferSize, ErrBufferSize)
	}

	if !(cfg.MinFrequency < cfg.MaxFrequency) {
		return nil, fmt.Errorf("%g Hz >= %g Hz: %w", cfg.MinFrequency, cfg.MaxFrequency, ErrInvalidRange)
	}

	highpass, err := NewBiquad(HIGHPASS, cfg.MinFrequency, cfg.SampleRate, ButterworthQ)

	if err != nil {
		return nil, err
	}

	lowpass, err := NewBiquad(LOWPASS, cfg.MaxFrequency, cfg.SampleRate, ButterworthQ)

	if err != nil {
		return nil, err
	}

	p := Pipeline{
		sampleRate: cfg.SampleRate,
		highpass:   highpass,
		lowpass:    lowpass,
		window:     circular.CreateBuffer[float64](cfg.BufferSize),
		scratch:    make([]float64, 0, cfg.BufferSize),
	}

	return &p, nil
}

/*
 * Filter a block of raw samples and append it to the window.
 *
 * Blocks longer than the window are processed in window-sized chunks so the
 * audio callback never allocates.
 */
func (p *Pipeline) Process(in []float32) {

	for len(in) > 0 {
		n := min(len(in), cap(p.scratch))
		out := p.scratch[:n]

		for i, sample := range in[:n] {
			out[i] = p.lowpass.Tick(p.highpass.Tick(float64(sample)))
		}

		p.window.Enqueue(out...)
		in = in[n:]
	}

}

/*
 * Copy the current window into dst, oldest sample first.
 */
func (p *Pipeline) Snapshot(dst []float64) error {
	return p.window.Retrieve(dst)
}

/*
 * Length of the analysis window.
 */
func (p *Pipeline) Size() int {
	return p.window.Length()
}

/*
 * Number of samples received so far, capped at the window length.
 */
func (p *Pipeline) Filled() int {
	return p.window.Filled()
}

func (p *Pipeline) SampleRate() float64 {
	return p.sampleRate
}
