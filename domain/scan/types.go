// Package scan samples a live camera stream at a fixed cadence and decodes
// each sample into a code payload.
package scan

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/soocke/qrscan-go/domain/camera"
)

// State enumerates the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateScanning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateScanning:
		return "scanning"
	default:
		return "unknown"
	}
}

var (
	// ErrSessionActive rejects StartStream while a session is acquiring or scanning.
	ErrSessionActive = errors.New("scan: session already active")
	// ErrClosed is returned by StartStream after Close.
	ErrClosed = errors.New("scan: controller closed")
)

// Reason classifies why acquisition failed.
type Reason string

const (
	ReasonDenied      Reason = "denied"
	ReasonUnavailable Reason = "unavailable"
	ReasonPlatform    Reason = "platform"
	ReasonSizing      Reason = "sizing"
	ReasonCanceled    Reason = "canceled"
)

// AcquisitionError is the only failure StartStream reports. A sizing failure
// (unusable source dimensions) is an AcquisitionError with ReasonSizing.
type AcquisitionError struct {
	Reason Reason
	Err    error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("scan: acquisition failed (%s)", e.Reason)
	}
	return fmt.Sprintf("scan: acquisition failed (%s): %v", e.Reason, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// IsSizing reports whether err is a sizing failure.
func IsSizing(err error) bool {
	var ae *AcquisitionError
	return errors.As(err, &ae) && ae.Reason == ReasonSizing
}

// Result is the externally visible decoded payload.
type Result struct {
	Text      string
	Format    string
	SessionID string
	At        time.Time
	// Repeat is set when the same payload was decoded recently.
	Repeat bool
}

// Stats summarises the current (or most recent) session.
type Stats struct {
	SessionID  string
	State      State
	Started    time.Time
	BufferSize image.Point
	Ticks      uint64
	Found      uint64
	NotFound   uint64
	Errors     uint64
	Skipped    uint64 // ticks without a frame from the source
	Abandoned  uint64 // outcomes discarded because the session stopped
	AvgDecode  time.Duration
	LastDecode time.Duration
	Camera     camera.Stats
}

// VideoSink renders the live stream. Attach is called once the stream is
// acquired and Detach when the session ends; both must not block.
type VideoSink interface {
	Attach(s camera.Stream)
	Detach()
}

// StateListener is called after each state transition.
type StateListener func(prev, next State)

// ResultListener is called for every Found outcome of a live session.
type ResultListener func(Result)
