package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	captureStatsLogInterval = 5 * time.Second
	stopTimeout             = 3 * time.Second
	grabErrorBackoff        = 50 * time.Millisecond
)

// GrabFunc produces the next frame. A nil image with a nil error means no
// frame was ready (e.g. a driver poll timed out). An error wrapping
// ErrEndOfStream ends the track; other errors are retried.
type GrabFunc func() (image.Image, error)

// liveOptions describes the device behind a live track.
type liveOptions struct {
	kind      string
	label     string
	grab      GrabFunc
	interval  time.Duration // pause between grabs, 0 for back-to-back
	interrupt func()        // unblocks a pending grab; optional
	release   func() error  // closes the device; called once after the loop exits
}

// liveTrack acquires frames on its own goroutine and exposes the latest one
// alongside instrumentation data. A liveTrack is also a single-track Stream.
type liveTrack struct {
	id      string
	opts    liveOptions
	logger  *slog.Logger
	running atomic.Bool
	latest  atomic.Pointer[Snapshot]

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	exited    chan struct{}
	stopOnce  sync.Once
	stopErr   error
	ended     chan struct{}
	endOnce   sync.Once
	endErr    error

	captures     atomic.Uint64
	skipped      atomic.Uint64
	captureNanos atomic.Uint64
	sequence     atomic.Uint64
}

// newLiveTrack starts the capture loop immediately.
func newLiveTrack(logger *slog.Logger, opts liveOptions) *liveTrack {
	if opts.kind == "" {
		opts.kind = "video"
	}
	t := &liveTrack{
		id:     uuid.NewString(),
		opts:   opts,
		logger: logger,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		ended:  make(chan struct{}),
	}
	t.running.Store(true)
	go t.loop()
	return t
}

func (t *liveTrack) ID() string      { return t.id }
func (t *liveTrack) Kind() string    { return t.opts.kind }
func (t *liveTrack) Label() string   { return t.opts.label }
func (t *liveTrack) Live() bool      { return t.running.Load() }
func (t *liveTrack) Tracks() []Track { return []Track{t} }

func (t *liveTrack) CurrentFrame() (Snapshot, bool) {
	snap := t.latest.Load()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}

func (t *liveTrack) Metadata(ctx context.Context) (image.Point, error) {
	select {
	case <-t.ready:
		snap := t.latest.Load()
		if snap == nil || snap.Image == nil {
			// Only end clears the frame once ready is closed.
			return image.Point{}, t.endErr
		}
		return snap.Image.Bounds().Size(), nil
	case <-t.done:
		return image.Point{}, ErrStopped
	case <-t.ended:
		return image.Point{}, t.endErr
	case <-ctx.Done():
		return image.Point{}, ctx.Err()
	}
}

// Stop halts the capture loop and releases the device. It waits for an
// in-progress grab for up to stopTimeout before releasing anyway.
func (t *liveTrack) Stop() error {
	t.stopOnce.Do(func() {
		t.running.Store(false)
		close(t.done)
		if t.opts.interrupt != nil {
			t.opts.interrupt()
		}
		select {
		case <-t.exited:
		case <-time.After(stopTimeout):
			if t.logger != nil {
				t.logger.Warn("camera track stop timed out", "track", t.id, "label", t.opts.label)
			}
		}
		if t.opts.release != nil {
			t.stopErr = t.opts.release()
		}
		if t.logger != nil {
			t.logger.Debug("camera track stopped", "track", t.id, "label", t.opts.label)
		}
	})
	return t.stopErr
}

func (t *liveTrack) Stats() Stats {
	captures := t.captures.Load()
	total := t.captureNanos.Load()
	var avg time.Duration
	if captures > 0 && total > 0 {
		avg = time.Duration(total / captures)
	}
	snap, _ := t.CurrentFrame()
	age := time.Duration(0)
	if !snap.CapturedAt.IsZero() {
		age = time.Since(snap.CapturedAt)
	}
	return Stats{
		Captures:       captures,
		Skipped:        t.skipped.Load(),
		AvgCapture:     avg,
		LastCapture:    snap.CapturedAt,
		LatestFrameAge: age,
		Sequence:       snap.Sequence,
	}
}

func (t *liveTrack) loop() {
	defer close(t.exited)
	defer func() {
		if r := recover(); r != nil {
			if t.logger != nil {
				t.logger.Error("camera loop panic", "error", r, "stack", string(debug.Stack()))
			}
			t.end(fmt.Errorf("%w: capture panic: %v", ErrEndOfStream, r))
		}
	}()
	logTicker := time.NewTicker(captureStatsLogInterval)
	defer logTicker.Stop()
	for t.running.Load() {
		start := time.Now()
		img, err := t.opts.grab()
		if !t.running.Load() {
			return
		}
		if errors.Is(err, ErrEndOfStream) {
			t.end(err)
			return
		}
		if err != nil || img == nil {
			t.skipped.Add(1)
			wait := time.Millisecond
			if err != nil {
				wait = grabErrorBackoff
				if t.logger != nil {
					t.logger.Error("camera grab", "label", t.opts.label, "error", err)
				}
			}
			if !t.sleep(wait) {
				return
			}
			continue
		}

		elapsed := time.Since(start)
		t.captureNanos.Add(uint64(elapsed.Nanoseconds()))
		t.captures.Add(1)
		seq := t.sequence.Add(1)
		t.latest.Store(&Snapshot{Image: img, CapturedAt: time.Now(), Sequence: seq})
		t.readyOnce.Do(func() { close(t.ready) })

		select {
		case <-logTicker.C:
			t.logStats()
		default:
		}

		if t.opts.interval > 0 && !t.sleep(t.opts.interval) {
			return
		}
	}
}

// end marks the track finished by its source: it is no longer live and
// its last frame is dropped so nothing decodes stale pixels. Stop still
// releases the device.
func (t *liveTrack) end(err error) {
	t.endOnce.Do(func() {
		t.endErr = err
		t.running.Store(false)
		t.latest.Store(nil)
		close(t.ended)
		if t.logger != nil {
			t.logger.Warn("camera stream ended", "track", t.id, "label", t.opts.label, "error", err)
		}
	})
}

// sleep waits for d or until the track stops; it reports whether to keep going.
func (t *liveTrack) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-t.done:
		return false
	}
}

func (t *liveTrack) logStats() {
	if t.logger == nil {
		return
	}
	stats := t.Stats()
	t.logger.Debug("camera.stats",
		"label", t.opts.label,
		"captures", stats.Captures,
		"skipped", stats.Skipped,
		"avg_capture", stats.AvgCapture,
		"age", stats.LatestFrameAge,
	)
}

// StatsOf returns capture statistics for streams produced by this package.
func StatsOf(s Stream) (Stats, bool) {
	if t, ok := s.(*liveTrack); ok {
		return t.Stats(), true
	}
	return Stats{}, false
}
