/*
 * Package audio connects the tuner to real sound hardware: microphone capture
 * through PortAudio and reference tone playback through oto.
 */
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/metalblueberry/tuner/pkg/tuner"
)

/*
 * ErrNoDevice is returned when no input device matches.
 */
var ErrNoDevice = errors.New("no matching input device")

/*
 * Platform opens mono PortAudio input streams.
 */
type Platform struct {
	/*
	 * Device selects the first input device whose name contains it. Empty
	 * selects the default input device.
	 */
	Device string
	Log    *zap.Logger
}

var _ tuner.Platform = (*Platform)(nil)

/*
 * OpenCapture implements tuner.Platform. Each capture holds its own
 * PortAudio initialization and releases it on Close.
 */
func (p *Platform) OpenCapture(ctx context.Context, req tuner.CaptureRequest, process func(in []float32)) (tuner.Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	device, err := p.inputDevice()
	if err != nil {
		return nil, multierr.Append(err, portaudio.Terminate())
	}

	params := portaudio.HighLatencyParameters(device, nil)
	params.Input.Channels = 1
	if req.SampleRate > 0 {
		params.SampleRate = req.SampleRate
	}
	if req.FramesPerBuffer > 0 {
		params.FramesPerBuffer = req.FramesPerBuffer
	}

	stream, err := portaudio.OpenStream(params, process)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("open %q: %w", device.Name, err), portaudio.Terminate())
	}

	rate := params.SampleRate
	if info := stream.Info(); info != nil && info.SampleRate > 0 {
		rate = info.SampleRate
	}

	log.Info("opened input stream",
		zap.String("device", device.Name),
		zap.Float64("sampleRate", rate),
		zap.Int("framesPerBuffer", params.FramesPerBuffer),
	)

	return &capture{stream: stream, sampleRate: rate}, nil
}

func (p *Platform) inputDevice() (*portaudio.DeviceInfo, error) {
	if p.Device == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	for _, device := range devices {
		if device.MaxInputChannels > 0 && strings.Contains(device.Name, p.Device) {
			return device, nil
		}
	}

	return nil, fmt.Errorf("%q: %w", p.Device, ErrNoDevice)
}

type capture struct {
	stream     *portaudio.Stream
	sampleRate float64
	started    bool
}

func (c *capture) SampleRate() float64 {
	return c.sampleRate
}

func (c *capture) Start() error {
	if err := c.stream.Start(); err != nil {
		return err
	}
	c.started = true
	return nil
}

func (c *capture) Close() error {
	var err error
	if c.started {
		err = multierr.Append(err, c.stream.Stop())
		c.started = false
	}
	err = multierr.Append(err, c.stream.Close())
	return multierr.Append(err, portaudio.Terminate())
}

/*
 * InputDevice describes a capture-capable device.
 */
type InputDevice struct {
	Name              string
	HostAPI           string
	Channels          int
	DefaultSampleRate float64
	Default           bool
}

/*
 * InputDevices lists the devices that can record.
 */
func InputDevices() ([]InputDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil {
		defaultName = def.Name
	}

	var out []InputDevice
	for _, device := range devices {
		if device.MaxInputChannels == 0 {
			continue
		}

		hostAPI := ""
		if device.HostApi != nil {
			hostAPI = device.HostApi.Name
		}

		out = append(out, InputDevice{
			Name:              device.Name,
			HostAPI:           hostAPI,
			Channels:          device.MaxInputChannels,
			DefaultSampleRate: device.DefaultSampleRate,
			Default:           device.Name == defaultName,
		})
	}

	return out, nil
}
