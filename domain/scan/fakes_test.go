package scan

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soocke/qrscan-go/domain/camera"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// recordingHandler keeps every log record for assertions.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r.Clone())
	h.mu.Unlock()
	return nil
}
func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

// find returns the first record with msg.
func (h *recordingHandler) find(msg string) (slog.Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.Message == msg {
			return r, true
		}
	}
	return slog.Record{}, false
}

type fakeTrack struct{ live atomic.Bool }

func (t *fakeTrack) ID() string    { return "track" }
func (t *fakeTrack) Kind() string  { return "video" }
func (t *fakeTrack) Label() string { return "fake" }
func (t *fakeTrack) Live() bool    { return t.live.Load() }
func (t *fakeTrack) Stop() error   { t.live.Store(false); return nil }

// fakeStream serves whatever image is stored in frame.
type fakeStream struct {
	tracks  []*fakeTrack
	size    image.Point
	metaErr error
	frame   atomic.Pointer[image.Image]
}

func newFakeStream(w, h int) *fakeStream {
	s := &fakeStream{size: image.Pt(w, h)}
	for i := 0; i < 2; i++ {
		tr := &fakeTrack{}
		tr.live.Store(true)
		s.tracks = append(s.tracks, tr)
	}
	s.setFrame(blankImage(w, h))
	return s
}

func (s *fakeStream) setFrame(img image.Image) { s.frame.Store(&img) }

func (s *fakeStream) ID() string { return "stream" }
func (s *fakeStream) Tracks() []camera.Track {
	out := make([]camera.Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}
func (s *fakeStream) Metadata(ctx context.Context) (image.Point, error) {
	if s.metaErr != nil {
		return image.Point{}, s.metaErr
	}
	return s.size, nil
}
func (s *fakeStream) CurrentFrame() (camera.Snapshot, bool) {
	p := s.frame.Load()
	if p == nil || *p == nil {
		return camera.Snapshot{}, false
	}
	return camera.Snapshot{Image: *p, CapturedAt: time.Now()}, true
}

func (s *fakeStream) liveTracks() int {
	n := 0
	for _, t := range s.tracks {
		if t.Live() {
			n++
		}
	}
	return n
}

// fakeAcquirer returns stream or err. With block set it waits for ctx, or for
// release when ignoreCtx is also set.
type fakeAcquirer struct {
	stream    *fakeStream
	err       error
	block     bool
	ignoreCtx bool
	release   chan struct{}
	entered   chan struct{}
	calls     atomic.Int32
	lastCons  camera.Constraints
}

func (a *fakeAcquirer) Acquire(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	a.calls.Add(1)
	a.lastCons = c
	if a.entered != nil {
		close(a.entered)
	}
	if a.block {
		if a.ignoreCtx {
			<-a.release
		} else {
			<-ctx.Done()
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.stream, nil
}

type fakeSink struct {
	attached atomic.Int32
	detached atomic.Int32
}

func (s *fakeSink) Attach(camera.Stream) { s.attached.Add(1) }
func (s *fakeSink) Detach()              { s.detached.Add(1) }

func blankImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// markedImage is recognised by fake decoders as carrying a code.
func markedImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	return img
}

// isMarked reports whether the buffer holds a markedImage copy.
func isMarked(img image.Image) bool {
	r, _, _, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
	return r < 0x1000
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// lastSession returns the most recent session for white-box checks.
func lastSession(c *Controller) *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func waitDone(t *testing.T, s *session) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(3 * time.Second):
		t.Fatalf("scan loop did not exit")
	}
}
