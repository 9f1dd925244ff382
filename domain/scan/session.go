package scan

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/qrscan-go/domain/camera"
	"github.com/soocke/qrscan-go/domain/decode"
	"github.com/soocke/qrscan-go/domain/frame"
)

// session is one start/stop cycle. Fields other than the counters are
// written under Controller.mu; buf is released by the loop goroutine on exit.
type session struct {
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	handle   *camera.StreamHandle
	buf      *frame.Buffer
	ticker   *time.Ticker
	attached bool
	stopped  bool
	started  time.Time
	done     chan struct{}

	ticks       atomic.Uint64
	found       atomic.Uint64
	notFound    atomic.Uint64
	errors      atomic.Uint64
	skipped     atomic.Uint64
	abandoned   atomic.Uint64
	decodeNanos atomic.Uint64
	lastDecode  atomic.Int64
}

func newSession(ctx context.Context, cancel context.CancelFunc) *session {
	return &session{id: uuid.NewString(), ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (s *session) stats() Stats {
	decoded := s.found.Load() + s.notFound.Load() + s.errors.Load() + s.abandoned.Load()
	var avg time.Duration
	if decoded > 0 {
		avg = time.Duration(s.decodeNanos.Load() / decoded)
	}
	st := Stats{
		SessionID:  s.id,
		Started:    s.started,
		Ticks:      s.ticks.Load(),
		Found:      s.found.Load(),
		NotFound:   s.notFound.Load(),
		Errors:     s.errors.Load(),
		Skipped:    s.skipped.Load(),
		Abandoned:  s.abandoned.Load(),
		AvgDecode:  avg,
		LastDecode: time.Duration(s.lastDecode.Load()),
	}
	if s.buf != nil {
		st.BufferSize = s.buf.Bounds().Size()
	}
	if s.handle != nil {
		if cs, ok := camera.StatsOf(s.handle.Stream()); ok {
			st.Camera = cs
		}
	}
	return st
}

// run drives ticks for s until it is stopped. Ticks never overlap: a tick
// that outlasts the period makes the ticker drop the ticks it missed.
func (c *Controller) run(s *session) {
	defer close(s.done)
	defer s.buf.Release()
	var statsC <-chan time.Time
	if c.statsInterval > 0 {
		t := time.NewTicker(c.statsInterval)
		defer t.Stop()
		statsC = t.C
	}
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.ticker.C:
			if s.ctx.Err() != nil {
				return
			}
			c.tick(s)
		case <-statsC:
			c.logStats(s)
		}
	}
}

// tick copies the current frame into the buffer, decodes it and classifies
// the outcome. Nothing escapes a tick.
func (c *Controller) tick(s *session) {
	if s.handle.Ended() {
		c.logger.Warn("scan.stream_ended", "session", s.id)
		c.endSession(s, "stream ended")
		return
	}
	s.ticks.Add(1)
	start := time.Now()
	out, skipped := c.attempt(s)
	if skipped {
		s.skipped.Add(1)
		c.logger.Debug("scan.no_frame", "session", s.id)
		return
	}
	elapsed := time.Since(start)
	s.decodeNanos.Add(uint64(elapsed.Nanoseconds()))
	s.lastDecode.Store(int64(elapsed))
	c.classify(s, out, elapsed)
}

// attempt runs steps that may fail or panic and folds every failure into a
// DecodeError outcome. skipped is true when the source has no frame yet.
func (c *Controller) attempt(s *session) (out decode.Outcome, skipped bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("scan tick panic", "session", s.id, "error", r, "stack", string(debug.Stack()))
			out, skipped = decode.Failed(fmt.Errorf("scan: tick panic: %v", r)), false
		}
	}()
	snap, ok := s.handle.Stream().CurrentFrame()
	if !ok || snap.Image == nil {
		return decode.Absent(), true
	}
	if err := s.buf.Draw(snap.Image); err != nil {
		return decode.Failed(fmt.Errorf("scan: copy frame: %w", err)), false
	}
	return c.decoder.Decode(s.ctx, s.buf.Image()), false
}

func (c *Controller) classify(s *session, out decode.Outcome, elapsed time.Duration) {
	switch out.Kind {
	case decode.Found:
		r, ok := c.publish(s, out)
		if !ok {
			s.abandoned.Add(1)
			c.logger.Debug("scan.abandoned", "session", s.id, "outcome", out.Kind.String())
			return
		}
		s.found.Add(1)
		c.logger.Info("scan.found", "session", s.id, "text", r.Text, "format", r.Format, "repeat", r.Repeat, "decode", elapsed)
		c.notifyResult(r)
	case decode.NotFound:
		if s.ctx.Err() != nil {
			s.abandoned.Add(1)
			return
		}
		s.notFound.Add(1)
		c.logger.Debug("scan.not_found", "session", s.id, "decode", elapsed)
	default:
		if s.ctx.Err() != nil {
			s.abandoned.Add(1)
			return
		}
		err := out.Err
		if out.Kind != decode.Error {
			err = fmt.Errorf("scan: unknown outcome %v", out.Kind)
		}
		s.errors.Add(1)
		c.logger.Error("scan.decode_error", "session", s.id, "error", err, "decode", elapsed)
	}
}

// publish makes a Found outcome the current result unless the session has
// already been stopped.
func (c *Controller) publish(s *session, out decode.Outcome) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.stopped || c.session != s {
		return Result{}, false
	}
	now := time.Now()
	r := Result{Text: out.Text, Format: out.Format, SessionID: s.id, At: now}
	if c.recent != nil {
		r.Repeat, _ = c.recent.ContainsOrAdd(out.Text, now)
		if r.Repeat {
			c.recent.Add(out.Text, now)
		}
	}
	c.result.Store(&r)
	return r, true
}

func (c *Controller) logStats(s *session) {
	st := s.stats()
	c.logger.Info("scan.stats",
		"session", s.id,
		"ticks", st.Ticks,
		"found", st.Found,
		"not_found", st.NotFound,
		"errors", st.Errors,
		"skipped", st.Skipped,
		"avg_decode", st.AvgDecode,
		"camera_captures", st.Camera.Captures,
		"frame_age", st.Camera.LatestFrameAge,
	)
}
