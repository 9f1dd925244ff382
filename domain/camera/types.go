// Package camera acquires live video streams and exposes their latest frame.
package camera

import (
	"context"
	"errors"
	"image"
	"time"
)

var (
	// ErrPermissionDenied reports that the platform refused access to the device.
	ErrPermissionDenied = errors.New("camera: permission denied")
	// ErrNoDevice reports that no device satisfying the constraints is available.
	ErrNoDevice = errors.New("camera: no device available")
	// ErrStopped is returned by stream operations after the stream was stopped.
	ErrStopped = errors.New("camera: stream stopped")
	// ErrEndOfStream is returned by a grab when the source will not produce
	// any more frames, e.g. a remote peer closed the connection.
	ErrEndOfStream = errors.New("camera: end of stream")
)

// FacingMode is the preferred camera direction.
type FacingMode string

const (
	FacingEnvironment FacingMode = "environment"
	FacingUser        FacingMode = "user"
	FacingAny         FacingMode = ""
)

// Constraints narrow which device Acquire opens.
type Constraints struct {
	FacingMode FacingMode
	Device     string // exact device id; empty means any
	Width      int    // preferred capture width, 0 for driver default
	Height     int
}

// Snapshot carries the latest captured frame and metadata.
type Snapshot struct {
	Image      image.Image
	CapturedAt time.Time
	Sequence   uint64
}

// Stats summarises track capture behaviour for instrumentation.
type Stats struct {
	Captures       uint64
	Skipped        uint64
	AvgCapture     time.Duration
	LastCapture    time.Time
	LatestFrameAge time.Duration
	Sequence       uint64
}

// Track is one media track owned by a stream. Stop releases the underlying
// device and is safe to call in any state, any number of times.
type Track interface {
	ID() string
	Kind() string
	Label() string
	Live() bool
	Stop() error
}

// Stream is a live, continuously updating image feed.
//
// Metadata blocks until the intrinsic frame size is known, the stream stops,
// or ctx is done. CurrentFrame never blocks; ok is false until the first frame.
type Stream interface {
	ID() string
	Tracks() []Track
	Metadata(ctx context.Context) (image.Point, error)
	CurrentFrame() (snap Snapshot, ok bool)
}

// Acquirer opens a stream satisfying the constraints.
type Acquirer interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// Device describes something a Driver can open.
type Device struct {
	ID     string
	Label  string
	Facing FacingMode
}

// Driver enumerates and opens devices of one kind (v4l2, screen, file, ...).
type Driver interface {
	Name() string
	Devices(ctx context.Context) ([]Device, error)
	Open(ctx context.Context, d Device, c Constraints) (Stream, error)
}
