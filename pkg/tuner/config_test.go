package tuner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestResolveDefaults(t *testing.T) {
	cfg := Resolve()
	assert.NotNil(t, cfg.Logger)
	cfg.Logger = nil
	assert.Equal(t, Defaults, cfg)
}

func TestResolveOverride(t *testing.T) {
	cfg := Resolve(WithA4(432))

	want := Defaults
	want.A4 = 432
	want.Logger = cfg.Logger
	assert.Equal(t, want, cfg)
}

func TestResolveAllOptions(t *testing.T) {
	called := false
	log := zap.NewExample()

	cfg := Resolve(
		WithA4(442),
		WithClarityThreshold(0),
		WithMinVolumeDecibels(-60),
		WithBufferSize(4096),
		WithSmoothingTimeConstant(0),
		WithFrequencyRange(30, 4000),
		WithUpdateInterval(20*time.Millisecond),
		WithSampleRate(48000),
		WithOnNote(func(Note) { called = true }),
		WithLogger(log),
		nil,
	)

	assert.Equal(t, 442.0, cfg.A4)
	assert.Zero(t, cfg.ClarityThreshold, "explicit zero must override the default")
	assert.Equal(t, -60.0, cfg.MinVolumeDecibels)
	assert.Equal(t, 4096, cfg.BufferSize)
	assert.Zero(t, cfg.SmoothingTimeConstant)
	assert.Equal(t, 30.0, cfg.MinFrequency)
	assert.Equal(t, 4000.0, cfg.MaxFrequency)
	assert.Equal(t, 20*time.Millisecond, cfg.UpdateInterval)
	assert.Equal(t, 48000.0, cfg.SampleRate)
	assert.Same(t, log, cfg.Logger)

	cfg.OnNote(Note{})
	assert.True(t, called)
}

func TestResolveLaterOptionWins(t *testing.T) {
	cfg := Resolve(WithA4(432), WithA4(444))
	assert.Equal(t, 444.0, cfg.A4)
}

func TestResolveDoesNotMutateDefaults(t *testing.T) {
	_ = Resolve(WithA4(1), WithBufferSize(8))
	assert.Equal(t, 440.0, Defaults.A4)
	assert.Equal(t, 2048, Defaults.BufferSize)
}
