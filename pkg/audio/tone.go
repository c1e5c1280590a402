package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/hajimehoshi/oto/v2"

	"github.com/metalblueberry/tuner/pkg/dsp"
)

/*
 * Tone plays reference pitches. Only one Tone may exist per process.
 */
type Tone struct {
	ctx        *oto.Context
	sampleRate int
}

/*
 * NewTone opens the default output device.
 */
func NewTone(sampleRate int) (*Tone, error) {
	ctx, ready, err := oto.NewContext(sampleRate, 1, oto.FormatSignedInt16LE)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	<-ready

	return &Tone{ctx: ctx, sampleRate: sampleRate}, nil
}

/*
 * Play sounds a sine at frequency for d and blocks until it has finished or
 * ctx is done.
 */
func (t *Tone) Play(ctx context.Context, frequency float64, d time.Duration) error {
	n := int(d.Seconds() * float64(t.sampleRate))
	src := newPCMReader(dsp.NewOscillator(frequency, float64(t.sampleRate), 0.5, n))

	player := t.ctx.NewPlayer(src)
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}

/*
 * pcmReader encodes oscillator output as signed 16 bit little endian.
 */
type pcmReader struct {
	osc *dsp.Oscillator
	buf []float64
}

func newPCMReader(osc *dsp.Oscillator) *pcmReader {
	return &pcmReader{osc: osc}
}

func (r *pcmReader) Read(p []byte) (int, error) {
	frames := len(p) / 2
	if frames == 0 {
		return 0, nil
	}

	if cap(r.buf) < frames {
		r.buf = make([]float64, frames)
	}

	n := r.osc.Read(r.buf[:frames])
	if n == 0 {
		return 0, io.EOF
	}

	for i, v := range r.buf[:n] {
		s := int16(math.Max(-1, math.Min(1, v)) * math.MaxInt16)
		binary.LittleEndian.PutUint16(p[2*i:], uint16(s))
	}

	return 2 * n, nil
}
