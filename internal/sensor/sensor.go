// Package sensor adapts a face-detecting camera into a stream of boolean
// smile samples.
//
// The camera is a black box: it delivers Frames on its own goroutine at its
// native rate, each carrying the faces it found and a smile confidence per
// face. A Sampler sits between the camera and the score aggregator; it
// decimates frames, thresholds smile confidence, and guarantees that once
// Deactivate returns no further sample is delivered.
package sensor

import (
	"errors"
	"time"
)

// ErrSensorUnavailable is returned when the device has no usable capture input.
var ErrSensorUnavailable = errors.New("sensor unavailable")

// Frame is one raw camera frame after face detection.
type Frame struct {
	// Seq is the frame sequence number assigned by the camera.
	Seq uint64 `json:"seq"`

	// Timestamp is when the frame was captured.
	Timestamp time.Time `json:"timestamp"`

	// Faces holds every face detected in the frame.
	Faces []Face `json:"faces"`
}

// Face is a detected face and its smile confidence in [0,1].
type Face struct {
	Smile float64 `json:"smile"`
}

// Sensor is a camera that can be started and stopped.
//
// StartSampling begins delivering frames to fn from the sensor's own
// goroutine. StopSampling halts delivery and releases the device; it must be
// safe to call when not sampling.
type Sensor interface {
	StartSampling(fn func(Frame)) error
	StopSampling()
}
