package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soocke/qrscan-go/domain/camera"
	"github.com/soocke/qrscan-go/domain/decode"
	"github.com/soocke/qrscan-go/domain/frame"
)

const testPeriod = 5 * time.Millisecond

// markDecoder finds "ABC123" in marked frames and nothing elsewhere.
var markDecoder = decode.Func(func(ctx context.Context, img image.Image) decode.Outcome {
	if isMarked(img) {
		return decode.FoundText("ABC123", "QR_CODE")
	}
	return decode.Absent()
})

func newTestController(acq camera.Acquirer, dec decode.Decoder, opts ...Option) *Controller {
	opts = append([]Option{WithPeriod(testPeriod), WithStatsInterval(0)}, opts...)
	return New(acq, dec, discardLogger, opts...)
}

func TestStartStream_BufferSizedFromMetadata(t *testing.T) {
	stream := newFakeStream(1920, 1080)
	acq := &fakeAcquirer{stream: stream}
	c := newTestController(acq, markDecoder)
	defer c.Close()

	if err := c.StartStream(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.State() != StateScanning {
		t.Fatalf("state=%v want scanning", c.State())
	}
	if got := c.Stats().BufferSize; got != image.Pt(500, 281) {
		t.Fatalf("buffer=%v want 500x281", got)
	}
	if acq.lastCons.FacingMode != camera.FacingEnvironment {
		t.Fatalf("facing=%q want environment", acq.lastCons.FacingMode)
	}
}

func TestStartStream_SizingProperty(t *testing.T) {
	cases := []image.Point{{640, 480}, {500, 500}, {320, 240}, {3000, 1000}, {1080, 1920}, {501, 3}}
	for _, src := range cases {
		t.Run(fmt.Sprintf("%dx%d", src.X, src.Y), func(t *testing.T) {
			c := newTestController(&fakeAcquirer{stream: newFakeStream(src.X, src.Y)}, markDecoder)
			defer c.Close()
			if err := c.StartStream(context.Background()); err != nil {
				t.Fatalf("start: %v", err)
			}
			want, _ := frame.Size(src.X, src.Y, frame.MaxWidth)
			if got := c.Stats().BufferSize; got != want {
				t.Fatalf("buffer=%v want %v", got, want)
			}
			if want.X != min(src.X, 500) {
				t.Fatalf("width=%d want %d", want.X, min(src.X, 500))
			}
		})
	}
}

func TestStopStream_Idempotent(t *testing.T) {
	stream := newFakeStream(640, 480)
	sink := &fakeSink{}
	c := newTestController(&fakeAcquirer{stream: stream}, markDecoder, WithSink(sink))

	c.StopStream() // before any start
	if c.State() != StateIdle {
		t.Fatalf("state=%v", c.State())
	}
	if err := c.StartStream(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	s := lastSession(c)
	c.StopStream()
	c.StopStream()

	waitDone(t, s)
	if n := stream.liveTracks(); n != 0 {
		t.Fatalf("live tracks=%d want 0", n)
	}
	if c.State() != StateIdle {
		t.Fatalf("state=%v want idle", c.State())
	}
	if a, d := sink.attached.Load(), sink.detached.Load(); a != 1 || d != 1 {
		t.Fatalf("sink attach=%d detach=%d want 1/1", a, d)
	}
	ticks := c.Stats().Ticks
	time.Sleep(5 * testPeriod)
	if got := c.Stats().Ticks; got != ticks {
		t.Fatalf("ticks advanced after stop: %d -> %d", ticks, got)
	}
}

func TestTicksNeverOverlap(t *testing.T) {
	var inFlight, maxInFlight, calls atomic.Int32
	slow := decode.Func(func(ctx context.Context, img image.Image) decode.Outcome {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		calls.Add(1)
		time.Sleep(6 * testPeriod)
		inFlight.Add(-1)
		return decode.Absent()
	})
	c := newTestController(&fakeAcquirer{stream: newFakeStream(640, 480)}, slow)
	if err := c.StartStream(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "several decodes", func() bool { return calls.Load() >= 4 })
	s := lastSession(c)
	c.StopStream()
	waitDone(t, s)
	if m := maxInFlight.Load(); m != 1 {
		t.Fatalf("max in-flight decodes=%d want 1", m)
	}
}

func TestTick_ClassificationCompleteness(t *testing.T) {
	var n atomic.Int32
	mixed := decode.Func(func(ctx context.Context, img image.Image) decode.Outcome {
		switch n.Add(1) % 5 {
		case 0:
			return decode.FoundText("X", "QR_CODE")
		case 1:
			return decode.Absent()
		case 2:
			return decode.Failed(errors.New("checksum"))
		case 3:
			panic("decoder bug")
		default:
			return decode.Outcome{Kind: decode.Kind(42)}
		}
	})
	c := newTestController(&fakeAcquirer{stream: newFakeStream(64, 64)}, mixed)
	if err := c.StartStream(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "ticks", func() bool { return c.Stats().Ticks >= 12 })
	s := lastSession(c)
	c.StopStream()
	waitDone(t, s)

	st := c.Stats()
	classified := st.Found + st.NotFound + st.Errors + st.Skipped + st.Abandoned
	if classified != st.Ticks {
		t.Fatalf("ticks=%d classified=%d (%+v)", st.Ticks, classified, st)
	}
	if st.Found == 0 || st.NotFound == 0 || st.Errors == 0 {
		t.Fatalf("expected every outcome kind: %+v", st)
	}
}

func TestResult_OnlyFoundChangesResult(t *testing.T) {
	stream := newFakeStream(800, 600)
	stream.setFrame(markedImage(800, 600))
	var failNext atomic.Bool
	dec := decode.Func(func(ctx context.Context, img image.Image) decode.Outcome {
		if failNext.Load() {
			return decode.Failed(errors.New("boom"))
		}
		return markDecoder(ctx, img)
	})
	var results []Result
	var mu sync.Mutex
	c := newTestController(&fakeAcquirer{stream: stream}, dec)
	c.OnResult(func(r Result) { mu.Lock(); results = append(results, r); mu.Unlock() })
	defer c.Close()

	if _, ok := c.CurrentResult(); ok {
		t.Fatalf("result set before start")
	}
	if err := c.StartStream(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "found result", func() bool { _, ok := c.CurrentResult(); return ok })
	if got, _ := c.CurrentResult(); got != "ABC123" {
		t.Fatalf("result=%q want ABC123", got)
	}

	stream.setFrame(blankImage(800, 600))
	base := c.Stats().NotFound
	waitFor(t, "not-found ticks", func() bool { return c.Stats().NotFound >= base+3 })
	if got, _ := c.CurrentResult(); got != "ABC123" {
		t.Fatalf("NotFound changed result to %q", got)
	}

	failNext.Store(true)
	baseErr := c.Stats().Errors
	waitFor(t, "error ticks", func() bool { return c.Stats().Errors >= baseErr+3 })
	if got, _ := c.CurrentResult(); got != "ABC123" {
		t.Fatalf("DecodeError changed result to %q", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) == 0 || results[0].Text != "ABC123" || results[0].Repeat {
		t.Fatalf("results=%+v", results)
	}
	if len(results) > 1 && !results[1].Repeat {
		t.Fatalf("second identical payload should be flagged repeat: %+v", results[1])
	}
}

func TestResult_SurvivesStop(t *testing.T) {
	stream := newFakeStream(100, 100)
	stream.setFrame(markedImage(100, 100))
	c := newTestController(&fakeAcquirer{stream: stream}, markDecoder)
	if err := c.StartStream(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "result", func() bool { _, ok := c.CurrentResult(); return ok })
	c.StopStream()
	if got, ok := c.CurrentResult(); !ok || got != "ABC123" {
		t.Fatalf("result after stop=%q ok=%v", got, ok)
	}
}

func TestStartStream_PermissionDenied(t *testing.T) {
	rec := &recordingHandler{}
	acq := &fakeAcquirer{err: fmt.Errorf("%w: user refused", camera.ErrPermissionDenied)}
	sink := &fakeSink{}
	c := New(acq, markDecoder, slog.New(rec), WithPeriod(testPeriod), WithSink(sink))

	err := c.StartStream(context.Background())
	var ae *AcquisitionError
	if !errors.As(err, &ae) || ae.Reason != ReasonDenied {
		t.Fatalf("err=%v want AcquisitionError(denied)", err)
	}
	if !errors.Is(err, camera.ErrPermissionDenied) {
		t.Fatalf("errors.Is ErrPermissionDenied failed for %v", err)
	}
	if _, ok := c.CurrentResult(); ok {
		t.Fatalf("result set after failed start")
	}
	if c.State() != StateIdle {
		t.Fatalf("state=%v want idle", c.State())
	}
	r, ok := rec.find("scan.acquire_failed")
	if !ok || r.Level != slog.LevelError {
		t.Fatalf("missing error-level acquire_failed event")
	}
	if sink.attached.Load() != 0 {
		t.Fatalf("sink attached on failure")
	}

	// Recoverable: a later start succeeds once access is granted.
	acq.err = nil
	acq.stream = newFakeStream(320, 240)
	if err := c.StartStream(context.Background()); err != nil {
		t.Fatalf("retry start: %v", err)
	}
	c.StopStream()
}

func TestStartStream_Unavailable(t *testing.T) {
	c := newTestController(&fakeAcquirer{err: camera.ErrNoDevice}, markDecoder)
	err := c.StartStream(context.Background())
	var ae *AcquisitionError
	if !errors.As(err, &ae) || ae.Reason != ReasonUnavailable {
		t.Fatalf("err=%v want unavailable", err)
	}
	c2 := newTestController(&fakeAcquirer{err: errors.New("ioctl failed")}, markDecoder)
	if err := c2.StartStream(context.Background()); !errors.As(err, &ae) || ae.Reason != ReasonPlatform {
		t.Fatalf("err=%v want platform", err)
	}
}

func TestStopStream_MidDecode(t *testing.T) {
	stream := newFakeStream(640, 480)
	stream.setFrame(markedImage(640, 480))
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var calls atomic.Int32
	blocking := decode.Func(func(ctx context.Context, img image.Image) decode.Outcome {
		calls.Add(1)
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return decode.FoundText("LATE", "QR_CODE")
	})
	c := newTestController(&fakeAcquirer{stream: stream}, blocking)
	if err := c.StartStream(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-entered
	s := lastSession(c)

	stopped := make(chan struct{})
	go func() { c.StopStream(); close(stopped) }()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("StopStream waited for the in-flight decode")
	}
	if n := stream.liveTracks(); n != 0 {
		t.Fatalf("live tracks=%d after stop", n)
	}
	close(release)
	waitDone(t, s)

	if got, ok := c.CurrentResult(); ok {
		t.Fatalf("abandoned decode published %q", got)
	}
	if c.Stats().Abandoned != 1 {
		t.Fatalf("abandoned=%d want 1", c.Stats().Abandoned)
	}
	n := calls.Load()
	time.Sleep(5 * testPeriod)
	if calls.Load() != n {
		t.Fatalf("decode invoked after stop")
	}
}

func TestStartStream_RejectsWhileActive(t *testing.T) {
	rec := &recordingHandler{}
	acq := &fakeAcquirer{stream: newFakeStream(640, 480)}
	c := New(acq, markDecoder, slog.New(rec), WithPeriod(testPeriod))
	defer c.Close()
	if err := c.StartStream(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	first := lastSession(c)
	if err := c.StartStream(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("err=%v want ErrSessionActive", err)
	}
	if acq.calls.Load() != 1 {
		t.Fatalf("second start acquired a stream")
	}
	if lastSession(c) != first || c.State() != StateScanning {
		t.Fatalf("running session disturbed")
	}
	if r, ok := rec.find("scan.start_rejected"); !ok || r.Level != slog.LevelWarn {
		t.Fatalf("missing warn-level start_rejected event")
	}
}

func TestStartStream_RejectsWhileAcquiring(t *testing.T) {
	acq := &fakeAcquirer{stream: newFakeStream(640, 480), block: true, entered: make(chan struct{})}
	c := newTestController(acq, markDecoder)
	errc := make(chan error, 1)
	go func() { errc <- c.StartStream(context.Background()) }()
	<-acq.entered
	if c.State() != StateAcquiring {
		t.Fatalf("state=%v want acquiring", c.State())
	}
	if err := c.StartStream(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("err=%v want ErrSessionActive", err)
	}
	c.StopStream()
	err := <-errc
	var ae *AcquisitionError
	if !errors.As(err, &ae) || ae.Reason != ReasonCanceled {
		t.Fatalf("err=%v want canceled", err)
	}
	if c.State() != StateIdle {
		t.Fatalf("state=%v want idle", c.State())
	}
}

func TestStopStream_DuringAcquireReleasesLateStream(t *testing.T) {
	stream := newFakeStream(640, 480)
	acq := &fakeAcquirer{stream: stream, block: true, ignoreCtx: true, release: make(chan struct{}), entered: make(chan struct{})}
	c := newTestController(acq, markDecoder)
	errc := make(chan error, 1)
	go func() { errc <- c.StartStream(context.Background()) }()
	<-acq.entered
	c.StopStream()
	close(acq.release)
	err := <-errc
	var ae *AcquisitionError
	if !errors.As(err, &ae) || ae.Reason != ReasonCanceled {
		t.Fatalf("err=%v want canceled", err)
	}
	if n := stream.liveTracks(); n != 0 {
		t.Fatalf("late stream left %d live tracks", n)
	}
	if c.State() != StateIdle {
		t.Fatalf("state=%v", c.State())
	}
}

func TestStartStream_CallerContextCancelsAcquisition(t *testing.T) {
	acq := &fakeAcquirer{block: true}
	c := newTestController(acq, markDecoder)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.StartStream(ctx)
	var ae *AcquisitionError
	if !errors.As(err, &ae) || ae.Reason != ReasonCanceled {
		t.Fatalf("err=%v want canceled", err)
	}
}

func TestStartStream_SessionOutlivesCallerContext(t *testing.T) {
	c := newTestController(&fakeAcquirer{stream: newFakeStream(64, 64)}, markDecoder)
	defer c.Close()
	ctx, cancel := context.WithCancel(context.Background())
	if err := c.StartStream(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
	base := c.Stats().Ticks
	waitFor(t, "ticks after caller cancel", func() bool { return c.Stats().Ticks > base+2 })
	if c.State() != StateScanning {
		t.Fatalf("state=%v", c.State())
	}
}

func TestStartStream_SizingFailsClosed(t *testing.T) {
	stream := newFakeStream(640, 0)
	sink := &fakeSink{}
	var decodes atomic.Int32
	dec := decode.Func(func(context.Context, image.Image) decode.Outcome { decodes.Add(1); return decode.Absent() })
	c := newTestController(&fakeAcquirer{stream: stream}, dec, WithSink(sink))

	err := c.StartStream(context.Background())
	if !IsSizing(err) || !errors.Is(err, frame.ErrInvalidDimensions) {
		t.Fatalf("err=%v want sizing failure", err)
	}
	if c.State() != StateIdle {
		t.Fatalf("state=%v", c.State())
	}
	if n := stream.liveTracks(); n != 0 {
		t.Fatalf("live tracks=%d after sizing failure", n)
	}
	if sink.attached.Load() != sink.detached.Load() {
		t.Fatalf("sink left attached")
	}
	time.Sleep(5 * testPeriod)
	if decodes.Load() != 0 {
		t.Fatalf("decoder ran without a sized buffer")
	}
	if c.Snapshot() != nil {
		t.Fatalf("snapshot available after sizing failure")
	}
}

func TestStartStream_MetadataUnavailable(t *testing.T) {
	stream := newFakeStream(640, 480)
	stream.metaErr = context.DeadlineExceeded
	c := newTestController(&fakeAcquirer{stream: stream}, markDecoder, WithMetadataTimeout(10*time.Millisecond))
	if err := c.StartStream(context.Background()); !IsSizing(err) {
		t.Fatalf("err=%v want sizing", err)
	}
	if n := stream.liveTracks(); n != 0 {
		t.Fatalf("live tracks=%d", n)
	}
}

func TestListeners_StateTransitions(t *testing.T) {
	c := newTestController(&fakeAcquirer{stream: newFakeStream(64, 64)}, markDecoder)
	var mu sync.Mutex
	var seen []string
	c.AddListener(func(prev, next State) {
		mu.Lock()
		seen = append(seen, prev.String()+">"+next.String())
		mu.Unlock()
	})
	if err := c.StartStream(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.StopStream()
	mu.Lock()
	defer mu.Unlock()
	want := []string{"idle>acquiring", "acquiring>scanning", "scanning>idle"}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Fatalf("transitions=%v want %v", seen, want)
	}
}

func TestSnapshot_MirrorsBuffer(t *testing.T) {
	stream := newFakeStream(1000, 500)
	stream.setFrame(markedImage(1000, 500))
	c := newTestController(&fakeAcquirer{stream: stream}, markDecoder)
	defer c.Close()
	if c.Snapshot() != nil {
		t.Fatalf("snapshot before start")
	}
	if err := c.StartStream(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "a decoded tick", func() bool { return c.Stats().Found > 0 })
	snap := c.Snapshot()
	if snap == nil || snap.Bounds().Size() != image.Pt(500, 250) || !isMarked(snap) {
		t.Fatalf("snapshot=%v", snap)
	}
	frame.Recycle(snap)
}

func TestStartStream_MissingFrameIsSkipped(t *testing.T) {
	stream := newFakeStream(64, 64)
	stream.frame.Store(nil)
	c := newTestController(&fakeAcquirer{stream: stream}, markDecoder)
	defer c.Close()
	if err := c.StartStream(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "skipped ticks", func() bool { return c.Stats().Skipped >= 2 })
	if st := c.Stats(); st.NotFound+st.Found+st.Errors != 0 {
		t.Fatalf("decoder ran without a frame: %+v", st)
	}
}

func TestClose_RejectsStart(t *testing.T) {
	c := newTestController(&fakeAcquirer{stream: newFakeStream(64, 64)}, markDecoder)
	c.Close()
	if err := c.StartStream(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v want ErrClosed", err)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{StateIdle: "idle", StateAcquiring: "acquiring", StateScanning: "scanning", State(9): "unknown"} {
		if s.String() != want {
			t.Errorf("%d=%q want %q", s, s.String(), want)
		}
	}
}

func TestStreamEnded_ReturnsToIdle(t *testing.T) {
	stream := newFakeStream(64, 64)
	sink := &fakeSink{}
	rec := &recordingHandler{}
	c := New(&fakeAcquirer{stream: stream}, markDecoder, slog.New(rec),
		WithPeriod(testPeriod), WithStatsInterval(0), WithSink(sink))
	defer c.Close()
	var toIdle atomic.Int32
	c.AddListener(func(prev, next State) {
		if prev == StateScanning && next == StateIdle {
			toIdle.Add(1)
		}
	})
	if err := c.StartStream(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	s := lastSession(c)
	waitFor(t, "first tick", func() bool { return c.Stats().Ticks >= 1 })

	// The source goes away without StopStream being called.
	for _, tr := range stream.tracks {
		tr.live.Store(false)
	}
	waitFor(t, "idle after stream end", func() bool { return c.State() == StateIdle })
	waitDone(t, s)
	if toIdle.Load() != 1 {
		t.Fatalf("scanning->idle transitions=%d want 1", toIdle.Load())
	}
	if sink.detached.Load() != 1 {
		t.Fatalf("sink detached %d times", sink.detached.Load())
	}
	if _, ok := rec.find("scan.stream_ended"); !ok {
		t.Fatalf("missing scan.stream_ended event")
	}
	ticks := c.Stats().Ticks
	time.Sleep(5 * testPeriod)
	if got := c.Stats().Ticks; got != ticks {
		t.Fatalf("ticks kept running after stream end: %d -> %d", ticks, got)
	}

	// A fresh start works and StopStream afterwards stays a no-op-safe call.
	for _, tr := range stream.tracks {
		tr.live.Store(true)
	}
	if err := c.StartStream(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	c.StopStream()
	c.StopStream()
}

func TestNew_RepeatDetectionWindow(t *testing.T) {
	if c := New(nil, markDecoder, discardLogger, WithRecentResults(4)); c.recent == nil {
		t.Fatalf("repeat detection cache missing")
	}
	if c := New(nil, markDecoder, discardLogger, WithRecentResults(0)); c.recent != nil {
		t.Fatalf("repeat detection should be off for size 0")
	}
}
