package tuner

import "context"

/*
 * CaptureRequest describes the stream an Engine asks a Platform for.
 */
type CaptureRequest struct {
	SampleRate      float64 // Requested rate; the capture reports the rate it got.
	FramesPerBuffer int     // Preferred callback block size, zero lets the platform pick.
}

/*
 * Platform opens microphone capture streams.
 *
 * OpenCapture may block while the user is asked for permission and fails
 * when access is denied or no device is available. The process callback runs
 * on the platform's real-time audio thread once the capture is started and
 * receives mono samples in [-1, 1].
 */
type Platform interface {
	OpenCapture(ctx context.Context, req CaptureRequest, process func(in []float32)) (Capture, error)
}

/*
 * Capture is an opened capture stream exclusively owned by one Engine.
 */
type Capture interface {
	SampleRate() float64
	Start() error
	/*
	 * Close stops the stream and releases the device.
	 */
	Close() error
}
