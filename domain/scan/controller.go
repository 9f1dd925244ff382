package scan

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/soocke/qrscan-go/domain/camera"
	"github.com/soocke/qrscan-go/domain/decode"
	"github.com/soocke/qrscan-go/domain/frame"
)

const (
	DefaultPeriod          = 300 * time.Millisecond
	DefaultMetadataTimeout = 5 * time.Second
	DefaultStatsInterval   = 5 * time.Second
	DefaultRecentResults   = 32
)

// Option configures a Controller.
type Option func(*Controller)

// WithPeriod sets the tick period.
func WithPeriod(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.period = d
		}
	}
}

// WithMaxWidth caps the frame buffer width.
func WithMaxWidth(w int) Option {
	return func(c *Controller) {
		if w > 0 {
			c.maxWidth = w
		}
	}
}

// WithMetadataTimeout bounds how long StartStream waits for the source size.
func WithMetadataTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.metadataTimeout = d
		}
	}
}

// WithStatsInterval sets how often session statistics are logged; 0 disables.
func WithStatsInterval(d time.Duration) Option {
	return func(c *Controller) { c.statsInterval = d }
}

// WithSink attaches a video sink for live rendering.
func WithSink(s VideoSink) Option { return func(c *Controller) { c.sink = s } }

// WithConstraints overrides the camera request. The default asks for an
// environment-facing camera.
func WithConstraints(cons camera.Constraints) Option {
	return func(c *Controller) { c.constraints = cons }
}

// WithRecentResults sizes the repeat-detection window; 0 disables it.
func WithRecentResults(n int) Option {
	return func(c *Controller) { c.recentSize = n }
}

// Controller owns at most one scan session and exposes the start/stop API.
type Controller struct {
	acquirer        camera.Acquirer
	decoder         decode.Decoder
	logger          *slog.Logger
	sink            VideoSink
	constraints     camera.Constraints
	period          time.Duration
	maxWidth        int
	metadataTimeout time.Duration
	statsInterval   time.Duration
	recentSize      int
	recent          *lru.Cache[string, time.Time]

	mu      sync.Mutex
	state   State
	session *session
	last    *session
	closed  bool

	result atomic.Pointer[Result]

	listenersMu     sync.RWMutex
	stateListeners  []StateListener
	resultListeners []ResultListener
}

// New returns an idle controller. logger may be nil.
func New(acq camera.Acquirer, dec decode.Decoder, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Controller{
		acquirer:        acq,
		decoder:         dec,
		logger:          logger,
		constraints:     camera.Constraints{FacingMode: camera.FacingEnvironment},
		period:          DefaultPeriod,
		maxWidth:        frame.MaxWidth,
		metadataTimeout: DefaultMetadataTimeout,
		statsInterval:   DefaultStatsInterval,
		recentSize:      DefaultRecentResults,
	}
	for _, o := range opts {
		o(c)
	}
	if c.recentSize > 0 {
		recent, err := lru.New[string, time.Time](c.recentSize)
		if err != nil {
			c.logger.Warn("scan.repeat_detection_disabled", "size", c.recentSize, "error", err)
		} else {
			c.recent = recent
		}
	}
	return c
}

// AddListener registers a state transition callback.
func (c *Controller) AddListener(l StateListener) {
	if l == nil {
		return
	}
	c.listenersMu.Lock()
	c.stateListeners = append(c.stateListeners, l)
	c.listenersMu.Unlock()
}

// OnResult registers a callback for decoded payloads.
func (c *Controller) OnResult(l ResultListener) {
	if l == nil {
		return
	}
	c.listenersMu.Lock()
	c.resultListeners = append(c.resultListeners, l)
	c.listenersMu.Unlock()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentResult returns the most recently decoded payload.
func (c *Controller) CurrentResult() (string, bool) {
	r := c.result.Load()
	if r == nil {
		return "", false
	}
	return r.Text, true
}

// LastResult returns the most recent Result with its metadata.
func (c *Controller) LastResult() (Result, bool) {
	r := c.result.Load()
	if r == nil {
		return Result{}, false
	}
	return *r, true
}

// Stats reports counters for the live session, or the last one when idle.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	if s == nil {
		s = c.last
	}
	if s == nil {
		return Stats{State: c.state}
	}
	st := s.stats()
	st.State = c.state
	return st
}

// Snapshot returns a pooled copy of the frame buffer, or nil when not
// scanning. Return it with frame.Recycle.
func (c *Controller) Snapshot() *image.RGBA {
	c.mu.Lock()
	var buf *frame.Buffer
	if c.session != nil {
		buf = c.session.buf
	}
	c.mu.Unlock()
	if buf == nil {
		return nil
	}
	return buf.Snapshot()
}

// StartStream acquires a camera, sizes the frame buffer from the stream
// metadata and starts ticking. It returns once the session is scanning or
// has failed; failures are *AcquisitionError and leave the controller idle
// with nothing acquired. ctx bounds acquisition only; the session itself
// lives until StopStream.
func (c *Controller) StartStream(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.session != nil {
		state := c.state
		c.mu.Unlock()
		c.logger.Warn("scan.start_rejected", "state", state.String(), "reason", "session active")
		return ErrSessionActive
	}
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := newSession(sctx, cancel)
	c.session = s
	c.last = s
	prev := c.setStateLocked(StateAcquiring)
	c.mu.Unlock()
	c.notifyState(prev, StateAcquiring)
	c.logger.Info("scan.acquiring", "session", s.id, "facing", string(c.constraints.FacingMode))

	// Acquisition is cancelled by either the caller or StopStream.
	actx, acancel := context.WithCancel(sctx)
	defer acancel()
	stopAfter := context.AfterFunc(ctx, acancel)
	defer stopAfter()

	stream, err := c.acquirer.Acquire(actx, c.constraints)
	if err != nil {
		return c.abort(s, classifyAcquire(err), err)
	}
	handle := camera.NewStreamHandle(stream)
	c.mu.Lock()
	if s.stopped {
		c.mu.Unlock()
		_ = handle.Stop()
		return c.abort(s, ReasonCanceled, context.Canceled)
	}
	s.handle = handle
	c.mu.Unlock()

	if c.sink != nil {
		c.sink.Attach(stream)
		c.mu.Lock()
		stopped := s.stopped
		if !stopped {
			s.attached = true
		}
		c.mu.Unlock()
		if stopped {
			c.sink.Detach()
			return c.abort(s, ReasonCanceled, context.Canceled)
		}
	}

	mctx, mcancel := context.WithTimeout(actx, c.metadataTimeout)
	size, err := stream.Metadata(mctx)
	mcancel()
	if err != nil {
		if actx.Err() != nil {
			return c.abort(s, ReasonCanceled, err)
		}
		return c.abort(s, ReasonSizing, err)
	}
	buf, err := frame.NewBuffer(size.X, size.Y, c.maxWidth)
	if err != nil {
		return c.abort(s, ReasonSizing, err)
	}

	c.mu.Lock()
	if s.stopped {
		c.mu.Unlock()
		buf.Release()
		return c.abort(s, ReasonCanceled, context.Canceled)
	}
	s.buf = buf
	s.started = time.Now()
	s.ticker = time.NewTicker(c.period)
	prev = c.setStateLocked(StateScanning)
	go c.run(s)
	c.mu.Unlock()
	c.notifyState(prev, StateScanning)
	c.logger.Info("scan.started", "session", s.id,
		"source_width", size.X, "source_height", size.Y,
		"buffer_width", buf.Width(), "buffer_height", buf.Height(),
		"period", c.period)
	return nil
}

// abort tears down a session that failed to reach Scanning and reports the
// failure. When StopStream already ended the session the reason becomes canceled.
func (c *Controller) abort(s *session, reason Reason, cause error) error {
	c.mu.Lock()
	alreadyStopped := s.stopped
	s.stopped = true
	s.cancel()
	handle, attached := s.handle, s.attached
	var prev State
	changed := false
	if c.session == s {
		c.session = nil
		prev = c.setStateLocked(StateIdle)
		changed = prev != StateIdle
	}
	c.mu.Unlock()

	if alreadyStopped {
		reason = ReasonCanceled
	} else {
		if handle != nil {
			if err := handle.Stop(); err != nil {
				c.logger.Warn("scan.stream_stop", "session", s.id, "error", err)
			}
		}
		if attached && c.sink != nil {
			c.sink.Detach()
		}
	}
	if changed {
		c.notifyState(prev, StateIdle)
	}
	err := &AcquisitionError{Reason: reason, Err: cause}
	if reason == ReasonCanceled {
		c.logger.Info("scan.acquire_canceled", "session", s.id, "error", cause)
	} else {
		c.logger.Error("scan.acquire_failed", "session", s.id, "reason", string(reason), "error", cause)
	}
	return err
}

// StopStream ends the session: the ticker is cancelled, every track is
// stopped and the sink is detached. It is idempotent. A decode in flight
// when StopStream is called may run to completion but its outcome is ignored.
func (c *Controller) StopStream() { c.endSession(nil, "stop") }

// endSession tears down the current session. With only set, it does nothing
// unless only is still the current session.
func (c *Controller) endSession(only *session, cause string) {
	c.mu.Lock()
	s := c.session
	if s == nil || (only != nil && s != only) {
		c.mu.Unlock()
		return
	}
	c.session = nil
	s.stopped = true
	s.cancel()
	if s.ticker != nil {
		s.ticker.Stop()
	}
	handle, attached := s.handle, s.attached
	prev := c.setStateLocked(StateIdle)
	c.mu.Unlock()

	if handle != nil {
		if err := handle.Stop(); err != nil {
			c.logger.Warn("scan.stream_stop", "session", s.id, "error", err)
		}
	}
	if attached && c.sink != nil {
		c.sink.Detach()
	}
	c.notifyState(prev, StateIdle)
	c.logger.Info("scan.stopped", "session", s.id, "state_before", prev.String(), "cause", cause)
}

// Close stops any session and rejects further StartStream calls.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.StopStream()
}

// setStateLocked records next and returns the previous state. c.mu must be held.
func (c *Controller) setStateLocked(next State) State {
	prev := c.state
	c.state = next
	return prev
}

func (c *Controller) notifyState(prev, next State) {
	if prev == next {
		return
	}
	c.logger.Debug("scan state transition", "from", prev.String(), "to", next.String())
	c.listenersMu.RLock()
	ls := append([]StateListener(nil), c.stateListeners...)
	c.listenersMu.RUnlock()
	for _, l := range ls {
		l(prev, next)
	}
}

func (c *Controller) notifyResult(r Result) {
	c.listenersMu.RLock()
	ls := append([]ResultListener(nil), c.resultListeners...)
	c.listenersMu.RUnlock()
	for _, l := range ls {
		l(r)
	}
}

// classifyAcquire maps an acquisition error to a Reason.
func classifyAcquire(err error) Reason {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	case errors.Is(err, camera.ErrPermissionDenied):
		return ReasonDenied
	case errors.Is(err, camera.ErrNoDevice):
		return ReasonUnavailable
	case errors.Is(err, frame.ErrInvalidDimensions):
		return ReasonSizing
	default:
		return ReasonPlatform
	}
}
