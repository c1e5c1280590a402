package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/metalblueberry/tuner/pkg/audio"
	"github.com/metalblueberry/tuner/pkg/tuner"
)

func main() {
	d := tuner.Defaults
	a4 := flag.Float64("a4", d.A4, "reference pitch in Hz")
	threshold := flag.Float64("clarity", d.ClarityThreshold, "minimum clarity to report a note")
	minVolume := flag.Float64("min-volume", d.MinVolumeDecibels, "silence floor in dBFS")
	bufferSize := flag.Int("buffer", d.BufferSize, "analysis window in samples, a power of two")
	minFrequency := flag.Float64("min", d.MinFrequency, "lowest frequency in Hz")
	maxFrequency := flag.Float64("max", d.MaxFrequency, "highest frequency in Hz")
	interval := flag.Duration("interval", d.UpdateInterval, "detection period")
	sampleRate := flag.Float64("rate", d.SampleRate, "capture sample rate in Hz")
	device := flag.String("device", "", "substring of the input device name, default device when empty")
	tone := flag.String("tone", "", "play a reference note such as A4 instead of listening")
	duration := flag.Duration("duration", 2*time.Second, "reference note length")
	debug := flag.Bool("debug", false, "verbose development logging")
	flag.Parse()

	log := newLogger(*debug)
	defer log.Sync()

	ctx, done := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		log.Info("interrupted")
		done()
	}()

	if *tone != "" {
		if err := playTone(ctx, *tone, *a4, *duration); err != nil {
			log.Fatal("failed to play reference tone", zap.Error(err))
		}
		return
	}

	previous := ""
	engine := tuner.New(&audio.Platform{Device: *device, Log: log}, nil,
		tuner.WithA4(*a4),
		tuner.WithClarityThreshold(*threshold),
		tuner.WithMinVolumeDecibels(*minVolume),
		tuner.WithBufferSize(*bufferSize),
		tuner.WithFrequencyRange(*minFrequency, *maxFrequency),
		tuner.WithUpdateInterval(*interval),
		tuner.WithSampleRate(*sampleRate),
		tuner.WithLogger(log),
		tuner.WithOnNote(func(n tuner.Note) {
			// Ticks never overlap, so previous needs no lock.
			label := fmt.Sprintf("%s%d", n.Name, n.Octave)
			if label != previous {
				fmt.Println(n)
				previous = label
			}
		}),
	)

	if err := engine.Start(ctx); err != nil {
		log.Fatal("failed to start tuner", zap.Error(err))
	}

	<-ctx.Done()

	if err := engine.Stop(); err != nil {
		log.Error("failed to stop tuner", zap.Error(err))
	}

	st := engine.Stats()
	log.Info("done",
		zap.Uint64("ticks", st.Ticks),
		zap.Uint64("dropped", st.Dropped),
		zap.Uint64("emitted", st.Emitted),
		zap.Uint64("suppressed", st.Suppressed),
		zap.Uint64("failed", st.Failed),
		zap.Uint64("discarded", st.Discarded),
	)
}

func playTone(ctx context.Context, name string, a4 float64, d time.Duration) error {
	value, err := tuner.ParseNote(name)
	if err != nil {
		return err
	}

	t, err := audio.NewTone(44100)
	if err != nil {
		return err
	}

	frequency := tuner.FrequencyOf(value, a4)
	fmt.Printf("%s %.2f Hz\n", name, frequency)
	return t.Play(ctx, frequency, d)
}

func newLogger(debug bool) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)

	if debug {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}

	if err != nil {
		return zap.NewNop()
	}

	return log
}
