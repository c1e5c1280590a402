package dsp

import "math"

/*
 * Length of the linear fade applied at both ends of a tone, in seconds.
 */
const FADE_SECONDS = 0.01

/*
 * Sine generator producing a fixed number of samples with a short fade in and
 * fade out, so that starting and stopping a tone does not click.
 */
type Oscillator struct {
	frequency  float64
	sampleRate float64
	amplitude  float64
	total      int
	position   int
	fade       int
}

/*
 * Creates an oscillator producing n samples.
 */
func NewOscillator(frequency float64, sampleRate float64, amplitude float64, n int) *Oscillator {
	fade := min(int(FADE_SECONDS*sampleRate), n/2)

	o := Oscillator{
		frequency:  frequency,
		sampleRate: sampleRate,
		amplitude:  amplitude,
		total:      n,
		fade:       fade,
	}

	return &o
}

/*
 * Fill buf with the next samples and return how many were written. Zero
 * means the tone has ended.
 */
func (o *Oscillator) Read(buf []float64) int {
	n := min(len(buf), o.total-o.position)

	for i := 0; i < n; i++ {
		idx := o.position + i
		gain := o.amplitude

		if o.fade > 0 {
			gain *= math.Min(1.0, math.Min(float64(idx), float64(o.total-1-idx))/float64(o.fade))
		}

		phase := 2.0 * math.Pi * o.frequency * float64(idx) / o.sampleRate
		buf[i] = gain * math.Sin(phase)
	}

	o.position += n
	return n
}

/*
 * Samples left to produce.
 */
func (o *Oscillator) Remaining() int {
	return o.total - o.position
}
