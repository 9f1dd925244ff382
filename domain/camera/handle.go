package camera

import (
	"errors"
	"sync"
)

// StreamHandle owns an acquired stream and every track it carries. Stopping
// the handle stops all tracks regardless of their individual state, so the
// handle is either fully live or fully stopped.
type StreamHandle struct {
	mu      sync.Mutex
	stream  Stream
	stopped bool
}

// NewStreamHandle takes ownership of s.
func NewStreamHandle(s Stream) *StreamHandle { return &StreamHandle{stream: s} }

// Stream returns the owned stream.
func (h *StreamHandle) Stream() Stream {
	if h == nil {
		return nil
	}
	return h.stream
}

// Stop stops every owned track. It is idempotent; errors from individual
// tracks are joined but never prevent the remaining tracks from stopping.
func (h *StreamHandle) Stop() error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped || h.stream == nil {
		h.stopped = true
		return nil
	}
	h.stopped = true
	var errs []error
	for _, tr := range h.stream.Tracks() {
		if tr == nil {
			continue
		}
		if err := tr.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ActiveTracks counts tracks that are still live.
func (h *StreamHandle) ActiveTracks() int {
	if h == nil || h.stream == nil {
		return 0
	}
	n := 0
	for _, tr := range h.stream.Tracks() {
		if tr != nil && tr.Live() {
			n++
		}
	}
	return n
}

// Ended reports whether the source finished on its own: the handle was not
// stopped, yet it carries tracks and none of them is live.
func (h *StreamHandle) Ended() bool {
	if h == nil || h.stream == nil {
		return false
	}
	h.mu.Lock()
	stopped := h.stopped
	h.mu.Unlock()
	if stopped {
		return false
	}
	tracks := h.stream.Tracks()
	return len(tracks) > 0 && h.ActiveTracks() == 0
}
