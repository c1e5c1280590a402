package tuner

import (
	"time"

	"go.uber.org/zap"
)

/*
 * Config is the fully resolved configuration of an Engine. It is copied into
 * the engine at construction and never changes afterwards.
 */
type Config struct {
	A4                    float64       // Reference pitch in Hz.
	ClarityThreshold      float64       // Notes are emitted only when clarity is strictly above this.
	MinVolumeDecibels     float64       // Windows quieter than this (dBFS) report no pitch.
	BufferSize            int           // Analysis window length in samples, a power of two.
	SmoothingTimeConstant float64       // Spectrum smoothing for visualizers only.
	MinFrequency          float64       // High-pass cutoff and lowest detectable pitch, Hz.
	MaxFrequency          float64       // Low-pass cutoff and highest detectable pitch, Hz.
	UpdateInterval        time.Duration // Detection tick period.
	SampleRate            float64       // Requested capture rate in Hz.
	OnNote                func(Note)    // Receives qualifying detections.
	Logger                *zap.Logger
}

/*
 * Defaults is the documented defaults table.
 */
var Defaults = Config{
	A4:                    440,
	ClarityThreshold:      0.95,
	MinVolumeDecibels:     -100,
	BufferSize:            2048,
	SmoothingTimeConstant: 0.9,
	MinFrequency:          73.42,  // D2
	MaxFrequency:          1084.0, // C6
	UpdateInterval:        50 * time.Millisecond,
	SampleRate:            44100,
}

/*
 * Option overrides a single field of the defaults table.
 */
type Option func(*Config)

/*
 * Resolve applies opts over a copy of Defaults. Later options win.
 */
func Resolve(opts ...Option) Config {
	cfg := Defaults

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return cfg
}

/*
 * WithA4 sets the reference pitch.
 */
func WithA4(hz float64) Option {
	return func(cfg *Config) {
		cfg.A4 = hz
	}
}

/*
 * WithClarityThreshold sets the emission gate.
 */
func WithClarityThreshold(threshold float64) Option {
	return func(cfg *Config) {
		cfg.ClarityThreshold = threshold
	}
}

/*
 * WithMinVolumeDecibels sets the silence floor.
 */
func WithMinVolumeDecibels(db float64) Option {
	return func(cfg *Config) {
		cfg.MinVolumeDecibels = db
	}
}

/*
 * WithBufferSize sets the analysis window length.
 */
func WithBufferSize(samples int) Option {
	return func(cfg *Config) {
		cfg.BufferSize = samples
	}
}

/*
 * WithSmoothingTimeConstant sets spectrum smoothing for visualizers.
 */
func WithSmoothingTimeConstant(tau float64) Option {
	return func(cfg *Config) {
		cfg.SmoothingTimeConstant = tau
	}
}

/*
 * WithFrequencyRange sets the band-pass range.
 */
func WithFrequencyRange(minHz, maxHz float64) Option {
	return func(cfg *Config) {
		cfg.MinFrequency = minHz
		cfg.MaxFrequency = maxHz
	}
}

/*
 * WithUpdateInterval sets the detection tick period.
 */
func WithUpdateInterval(d time.Duration) Option {
	return func(cfg *Config) {
		cfg.UpdateInterval = d
	}
}

/*
 * WithSampleRate sets the requested capture rate.
 */
func WithSampleRate(hz float64) Option {
	return func(cfg *Config) {
		cfg.SampleRate = hz
	}
}

/*
 * WithOnNote registers the note subscriber.
 */
func WithOnNote(fn func(Note)) Option {
	return func(cfg *Config) {
		cfg.OnNote = fn
	}
}

/*
 * WithLogger sets the logger.
 */
func WithLogger(l *zap.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}
