// Copyright 2016 Hajime Hoshi
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"go.uber.org/zap"

	"github.com/metalblueberry/tuner/pkg/audio"
	"github.com/metalblueberry/tuner/pkg/tuner"
)

const (
	screenWidth  = 640
	screenHeight = 480
)

type Game struct {
	ctx    context.Context
	engine *tuner.Engine
	log    *zap.Logger

	spectrum []uint8
	bars     []float64

	noteLock sync.Mutex
	note     *tuner.Note
}

func (g *Game) setNote(n tuner.Note) {
	g.noteLock.Lock()
	defer g.noteLock.Unlock()
	g.note = &n
}

func (g *Game) currentNote() *tuner.Note {
	g.noteLock.Lock()
	defer g.noteLock.Unlock()
	return g.note
}

func (g *Game) Update() error {
	return g.ctx.Err()
}

func (g *Game) Draw(screen *ebiten.Image) {
	n, err := g.engine.ByteFrequencyData(g.spectrum)
	if err != nil && !errors.Is(err, tuner.ErrNotCapturing) {
		g.log.Warn("failed to read spectrum", zap.Error(err))
	}

	// Only the low end of the spectrum is interesting for a tuner.
	display := min(n, int(math.Sqrt(float64(len(g.spectrum)))*2))
	g.bars = g.bars[:0]
	for _, v := range g.spectrum[:display] {
		g.bars = append(g.bars, float64(v))
	}

	up := screen.SubImage(image.Rect(0, 0, screen.Bounds().Dx(), screen.Bounds().Dy()/2)).(*ebiten.Image)
	down := screen.SubImage(image.Rect(0, screen.Bounds().Dy()/2, screen.Bounds().Dx(), screen.Bounds().Dy())).(*ebiten.Image)

	if note := g.currentNote(); note != nil {
		ebitenutil.DebugPrint(up, fmt.Sprintf("%s\n%.2f Hz\nclarity %.3f", note, note.Frequency, note.Clarity))
	} else {
		ebitenutil.DebugPrint(up, "listening...")
	}

	drawBars(down, g.bars, 255)
}

// drawBars draws one filled bar per value rising from the bottom of screen,
// size being the value that reaches the top. Taller bars are brighter.
func drawBars(screen *ebiten.Image, data []float64, size float64) {
	if len(data) == 0 {
		return
	}

	bounds := screen.Bounds()
	bottom := float32(bounds.Max.Y)
	left := float32(bounds.Min.X)
	barWidth := float32(bounds.Dx()) / float32(len(data))
	scale := float64(bounds.Dy()) / size

	for i, v := range data {
		height := float32(v * scale)
		if height <= 0 {
			continue
		}

		blue := uint8(min(float64(height)+50, 255))
		vector.DrawFilledRect(screen, left+float32(i)*barWidth, bottom-height, barWidth, height, color.RGBA{60, 20, blue, 255})
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

func main() {
	device := flag.String("device", "", "substring of the input device name")
	a4 := flag.Float64("a4", tuner.Defaults.A4, "reference pitch in Hz")
	flag.Parse()

	log, err := zap.NewDevelopment()
	chk(err)
	defer log.Sync()

	ctx, done := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		log.Info("done")
		done()
		<-time.After(5 * time.Second)
		log.Error("TIMEOUT")
		os.Exit(1)
	}()

	g := &Game{
		ctx: ctx,
		log: log,
	}
	g.engine = tuner.New(&audio.Platform{Device: *device, Log: log}, nil,
		tuner.WithA4(*a4),
		tuner.WithLogger(log),
		tuner.WithOnNote(g.setNote),
	)
	g.spectrum = make([]uint8, g.engine.FrequencyBinCount())

	chk(g.engine.Start(ctx))
	defer g.engine.Stop()

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("Tuner")
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("game stopped", zap.Error(err))
	}
}

func chk(err error) {
	if err != nil {
		panic(err)
	}
}
