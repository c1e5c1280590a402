package tuner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/metalblueberry/tuner/pkg/dsp"
	"github.com/metalblueberry/tuner/pkg/pitch"
)

var (
	/*
	 * ErrAlreadyCapturing is returned by Start while a session is active.
	 */
	ErrAlreadyCapturing = errors.New("already capturing audio")
	/*
	 * ErrNotCapturing is returned by Stop and the spectrum accessors when no
	 * session is active. Stop has no other effect in that case.
	 */
	ErrNotCapturing = errors.New("not capturing audio")
)

/*
 * State is the lifecycle state of an Engine.
 */
type State int32

const (
	Idle State = iota
	Capturing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

/*
 * Engine listens to a capture stream and reports the notes it hears.
 *
 * An engine owns at most one capture session at a time. Start and Stop are
 * serialized; every other method is safe to call from any goroutine.
 */
type Engine struct {
	cfg       Config
	platform  Platform
	estimator pitch.Estimator
	log       *zap.Logger

	/*
	 * busy is shared by the schedulers of all sessions so that estimator
	 * calls never overlap, not even across a Stop/Start boundary.
	 */
	busy  *semaphore.Weighted
	stats counters

	lifecycle sync.Mutex

	mu      sync.RWMutex
	state   State
	session *session
}

type session struct {
	id         uuid.UUID
	capture    Capture
	pipeline   *dsp.Pipeline
	analyser   *dsp.Analyser
	estimator  pitch.Estimator
	scheduler  *Scheduler
	sampleRate float64
	window     []float64
	cancel     context.CancelFunc
	done       chan struct{}

	/*
	 * deliver makes the stopped check and the OnNote call one step with
	 * respect to Stop. delivering is set while OnNote runs so that a Stop
	 * issued from the callback does not wait for itself.
	 */
	deliver    sync.Mutex
	stopped    atomic.Bool
	delivering atomic.Bool
}

/*
 * New creates an idle engine. A nil estimator selects a pitch.Detector
 * configured from the resolved config.
 */
func New(platform Platform, estimator pitch.Estimator, opts ...Option) *Engine {
	cfg := Resolve(opts...)

	return &Engine{
		cfg:       cfg,
		platform:  platform,
		estimator: estimator,
		log:       cfg.Logger,
		busy:      semaphore.NewWeighted(1),
		state:     Idle,
	}
}

/*
 * Config returns the resolved configuration.
 */
func (e *Engine) Config() Config {
	return e.cfg
}

/*
 * State returns the current lifecycle state.
 */
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

/*
 * Stats returns counters accumulated over all sessions.
 */
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

/*
 * SampleRate returns the rate of the active session.
 */
func (e *Engine) SampleRate() (float64, error) {
	s, err := e.active()

	if err != nil {
		return 0, err
	}

	return s.sampleRate, nil
}

func (e *Engine) active() (*session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state != Capturing {
		return nil, ErrNotCapturing
	}

	return e.session, nil
}

/*
 * Start opens a capture stream, wires it into a fresh pipeline and starts
 * detection. On failure everything opened so far is released and the engine
 * stays idle.
 */
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.State() != Idle {
		return ErrAlreadyCapturing
	}

	s, err := e.open(ctx)

	if err != nil {
		e.log.Warn("failed to start capture", zap.Error(err))
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	e.mu.Lock()
	e.session = s
	e.state = Capturing
	e.mu.Unlock()

	go func() {
		defer close(s.done)
		s.scheduler.Run(runCtx, func(ctx context.Context) {
			e.detect(ctx, s)
		})
	}()

	e.log.Info("capture started",
		zap.Stringer("session", s.id),
		zap.Float64("sampleRate", s.sampleRate),
		zap.Int("bufferSize", e.cfg.BufferSize),
		zap.Duration("updateInterval", e.cfg.UpdateInterval),
	)

	return nil
}

/*
 * open acquires the capture resource and builds the session around it.
 */
func (e *Engine) open(ctx context.Context) (s *session, err error) {
	cfg := e.cfg
	var wired atomic.Pointer[dsp.Pipeline]

	capture, err := e.platform.OpenCapture(ctx, CaptureRequest{
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.BufferSize / 4,
	}, func(in []float32) {
		if p := wired.Load(); p != nil {
			p.Process(in)
		}
	})

	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	defer func() {
		if err != nil {
			if closeErr := capture.Close(); closeErr != nil {
				e.log.Warn("failed to release capture after aborted start", zap.Error(closeErr))
			}
		}
	}()

	sampleRate := capture.SampleRate()

	pipeline, err := dsp.NewPipeline(dsp.PipelineConfig{
		SampleRate:   sampleRate,
		MinFrequency: cfg.MinFrequency,
		MaxFrequency: cfg.MaxFrequency,
		BufferSize:   cfg.BufferSize,
	})

	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	scheduler, err := newScheduler(cfg.UpdateInterval, e.busy, e.log, &e.stats)

	if err != nil {
		return nil, err
	}

	estimator := e.estimator

	if estimator == nil {
		estimator = pitch.NewDetector(cfg.BufferSize,
			pitch.WithRange(cfg.MinFrequency, cfg.MaxFrequency),
			pitch.WithMinVolumeDecibels(cfg.MinVolumeDecibels),
		)
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	wired.Store(pipeline)

	if err = capture.Start(); err != nil {
		return nil, fmt.Errorf("start capture: %w", err)
	}

	return &session{
		id:         uuid.New(),
		capture:    capture,
		pipeline:   pipeline,
		analyser:   dsp.NewAnalyser(pipeline, cfg.SmoothingTimeConstant),
		estimator:  estimator,
		scheduler:  scheduler,
		sampleRate: sampleRate,
		window:     make([]float64, cfg.BufferSize),
	}, nil
}

/*
 * Stop cancels detection and releases the capture resource. Ticks that are
 * already running finish their estimator call but their results are
 * discarded. No note reaches OnNote once Stop returns. Stop does not wait for
 * a callback that is already running, so it may be called from the callback.
 */
func (e *Engine) Stop() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	s, err := e.active()

	if err != nil {
		return err
	}

	s.cancel()
	s.stopped.Store(true)

	if !s.delivering.Load() {
		s.deliver.Lock()
		s.deliver.Unlock()
	}

	<-s.done

	e.mu.Lock()
	e.session = nil
	e.state = Idle
	e.mu.Unlock()

	err = s.capture.Close()
	e.log.Info("capture stopped", zap.Stringer("session", s.id), zap.Error(err))

	if err != nil {
		return fmt.Errorf("close capture: %w", err)
	}

	return nil
}

/*
 * detect runs one tick against session s.
 */
func (e *Engine) detect(ctx context.Context, s *session) {
	log := e.log.With(zap.Stringer("session", s.id))
	err := s.pipeline.Snapshot(s.window)

	if err != nil {
		e.stats.failed.Add(1)
		log.Warn("failed to snapshot analysis window", zap.Error(err))
		return
	}

	frequency, clarity, err := s.estimator.Estimate(s.window, s.sampleRate)

	if ctx.Err() != nil {
		e.stats.discarded.Add(1)
		log.Debug("discarding detection of stopped session")
		return
	}

	if err != nil {
		e.stats.failed.Add(1)
		log.Warn("pitch estimation failed", zap.Error(err))
		return
	}

	if !(clarity > e.cfg.ClarityThreshold) {
		e.stats.suppressed.Add(1)
		return
	}

	note, err := NoteFromFrequency(frequency, clarity, e.cfg.A4)

	if err != nil {
		e.stats.failed.Add(1)
		log.Warn("failed to map frequency", zap.Float64("frequency", frequency), zap.Error(err))
		return
	}

	log.Debug("note", zap.Stringer("note", note), zap.Float64("frequency", frequency), zap.Float64("clarity", clarity))
	e.emit(ctx, s, note, log)
}

/*
 * emit hands note to OnNote unless s has been stopped in the meantime.
 */
func (e *Engine) emit(ctx context.Context, s *session, note Note, log *zap.Logger) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	if s.stopped.Load() || ctx.Err() != nil {
		e.stats.discarded.Add(1)
		log.Debug("discarding note of stopped session", zap.Stringer("note", note))
		return
	}

	e.stats.emitted.Add(1)

	if e.cfg.OnNote == nil {
		return
	}

	s.delivering.Store(true)
	defer s.delivering.Store(false)
	e.cfg.OnNote(note)
}

/*
 * FrequencyBinCount is the number of spectrum bins, half the buffer size.
 */
func (e *Engine) FrequencyBinCount() int {
	return e.cfg.BufferSize / 2
}

/*
 * ByteFrequencyData fills dst with the smoothed spectrum of the current
 * window scaled to bytes. It is meant for visualizers and has no effect on
 * detection.
 */
func (e *Engine) ByteFrequencyData(dst []uint8) (int, error) {
	s, err := e.active()

	if err != nil {
		return 0, err
	}

	return s.analyser.ByteFrequencyData(dst)
}

/*
 * FloatFrequencyData fills dst with the smoothed spectrum in decibels.
 */
func (e *Engine) FloatFrequencyData(dst []float64) (int, error) {
	s, err := e.active()

	if err != nil {
		return 0, err
	}

	return s.analyser.FloatFrequencyData(dst)
}
