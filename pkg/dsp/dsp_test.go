package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 44100.0

func sine(freq float64, n int, amplitude float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/testRate))
	}
	return out
}

func peak(buf []float64) float64 {
	p := 0.0
	for _, v := range buf {
		p = math.Max(p, math.Abs(v))
	}
	return p
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(PipelineConfig{
		SampleRate:   testRate,
		MinFrequency: 73.42,
		MaxFrequency: 1084,
		BufferSize:   2048,
	})
	require.NoError(t, err)
	return p
}

func TestNewPipelineValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     PipelineConfig
		wantErr error
	}{
		{"not power of two", PipelineConfig{SampleRate: testRate, MinFrequency: 50, MaxFrequency: 1000, BufferSize: 1000}, ErrBufferSize},
		{"zero buffer", PipelineConfig{SampleRate: testRate, MinFrequency: 50, MaxFrequency: 1000}, ErrBufferSize},
		{"inverted range", PipelineConfig{SampleRate: testRate, MinFrequency: 1000, MaxFrequency: 50, BufferSize: 1024}, ErrInvalidRange},
		{"equal range", PipelineConfig{SampleRate: testRate, MinFrequency: 440, MaxFrequency: 440, BufferSize: 1024}, ErrInvalidRange},
		{"above nyquist", PipelineConfig{SampleRate: 8000, MinFrequency: 50, MaxFrequency: 5000, BufferSize: 1024}, ErrInvalidCutoff},
		{"zero low cutoff", PipelineConfig{SampleRate: testRate, MinFrequency: 0, MaxFrequency: 1000, BufferSize: 1024}, ErrInvalidCutoff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline(tt.cfg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPipelineStartsEmpty(t *testing.T) {
	p := newTestPipeline(t)
	window := make([]float64, p.Size())
	require.NoError(t, p.Snapshot(window))
	assert.Zero(t, peak(window))
	assert.Zero(t, p.Filled())
	assert.Equal(t, testRate, p.SampleRate())
}

func TestPipelineBandLimits(t *testing.T) {
	tests := []struct {
		name     string
		freq     float64
		min, max float64
	}{
		{"in band passes", 440, 0.85, 1.1},
		{"above band is cut", 6000, 0, 0.1},
		{"below band is cut", 20, 0, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t)
			signal := sine(tt.freq, 4*int(testRate), 1)

			for i := 0; i < len(signal); i += 512 {
				p.Process(signal[i:min(i+512, len(signal))])
			}

			window := make([]float64, p.Size())
			require.NoError(t, p.Snapshot(window))
			got := peak(window)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestPipelineRemovesDC(t *testing.T) {
	p := newTestPipeline(t)
	dc := make([]float32, int(testRate))
	for i := range dc {
		dc[i] = 0.5
	}
	p.Process(dc)

	window := make([]float64, p.Size())
	require.NoError(t, p.Snapshot(window))
	assert.Less(t, peak(window), 1e-3)
}

func TestPipelineLongBlocks(t *testing.T) {
	signal := sine(440, 3*2048+100, 0.8)

	whole := newTestPipeline(t)
	whole.Process(signal)

	chunked := newTestPipeline(t)
	for i := 0; i < len(signal); i += 512 {
		chunked.Process(signal[i:min(i+512, len(signal))])
	}

	want := make([]float64, chunked.Size())
	got := make([]float64, whole.Size())
	require.NoError(t, chunked.Snapshot(want))
	require.NoError(t, whole.Snapshot(got))
	assert.Equal(t, want, got)

	allocs := testing.AllocsPerRun(10, func() {
		whole.Process(signal)
	})
	assert.Zero(t, allocs)
}

type staticSource []float64

func (s staticSource) Snapshot(dst []float64) error {
	copy(dst, s)
	return nil
}

func (s staticSource) Size() int {
	return len(s)
}

func TestAnalyserPeakBin(t *testing.T) {
	const n = 2048
	src := make(staticSource, n)
	for i := range src {
		src[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/testRate)
	}
	original := append([]float64(nil), src...)

	a := NewAnalyser(src, 0)
	require.Equal(t, n/2, a.FrequencyBinCount())

	data := make([]float64, a.FrequencyBinCount())
	written, err := a.FloatFrequencyData(data)
	require.NoError(t, err)
	require.Equal(t, n/2, written)

	best := 0
	for i := range data {
		if data[i] > data[best] {
			best = i
		}
	}
	assert.InDelta(t, 440, a.FrequencyForBin(best, testRate), 2*testRate/n)
	assert.Equal(t, original, []float64(src), "analysis must not modify the source window")
}

func TestAnalyserByteRange(t *testing.T) {
	silent := make(staticSource, 256)
	a := NewAnalyser(silent, 0.9)

	bytes := make([]uint8, 64)
	written, err := a.ByteFrequencyData(bytes)
	require.NoError(t, err)
	assert.Equal(t, 64, written)
	for _, b := range bytes {
		assert.Zero(t, b)
	}
}

func TestAnalyserSmoothingDoesNotTouchWindow(t *testing.T) {
	p := newTestPipeline(t)
	p.Process(sine(440, 4096, 0.8))

	before := make([]float64, p.Size())
	require.NoError(t, p.Snapshot(before))

	for _, tau := range []float64{0, 0.5, 0.99} {
		a := NewAnalyser(p, tau)
		_, err := a.ByteFrequencyData(make([]uint8, a.FrequencyBinCount()))
		require.NoError(t, err)
	}

	after := make([]float64, p.Size())
	require.NoError(t, p.Snapshot(after))
	assert.Equal(t, before, after)
}

func TestFilterTypeString(t *testing.T) {
	assert.Equal(t, "lowpass", LOWPASS.String())
	assert.Equal(t, "highpass", HIGHPASS.String())
	assert.Equal(t, "FilterType(7)", FilterType(7).String())
}

func TestOscillator(t *testing.T) {
	o := NewOscillator(441, testRate, 0.5, 4410)
	buf := make([]float64, 1000)
	total := 0
	p := 0.0

	for {
		n := o.Read(buf)
		if n == 0 {
			break
		}
		if total == 0 {
			assert.Zero(t, buf[0], "tone fades in from silence")
		}
		total += n
		p = math.Max(p, peak(buf[:n]))
	}

	assert.Equal(t, 4410, total)
	assert.Zero(t, o.Remaining())
	assert.InDelta(t, 0.5, p, 0.01)
}
