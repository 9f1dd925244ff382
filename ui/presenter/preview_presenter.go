package presenter

import (
	"image"
	"sync/atomic"

	"github.com/soocke/qrscan-go/domain/camera"
)

// StreamSink is the video sink the scan controller binds its stream to. It
// only remembers the stream; the preview presenter pulls frames on the UI thread.
type StreamSink struct {
	stream   atomic.Pointer[camera.Stream]
	lastSeq  atomic.Uint64
	attached atomic.Bool
}

func (s *StreamSink) Attach(st camera.Stream) {
	s.stream.Store(&st)
	s.lastSeq.Store(0)
	s.attached.Store(true)
}

func (s *StreamSink) Detach() {
	s.stream.Store(nil)
	s.attached.Store(false)
}

// Attached reports whether a stream is bound.
func (s *StreamSink) Attached() bool { return s.attached.Load() }

// NextFrame returns the stream's current frame if it is newer than the last
// one returned.
func (s *StreamSink) NextFrame() (image.Image, bool) {
	p := s.stream.Load()
	if p == nil || *p == nil {
		return nil, false
	}
	snap, ok := (*p).CurrentFrame()
	if !ok || snap.Image == nil {
		return nil, false
	}
	if snap.Sequence != 0 && snap.Sequence == s.lastSeq.Load() {
		return nil, false
	}
	s.lastSeq.Store(snap.Sequence)
	return snap.Image, true
}

// FrameSource supplies live frames for the preview.
type FrameSource interface {
	NextFrame() (image.Image, bool)
}

// PreviewView renders a preview frame.
type PreviewView interface {
	UpdatePreview(img image.Image)
}

// PreviewPresenter refreshes the preview every Every ticks while a stream is bound.
type PreviewPresenter struct {
	src   FrameSource
	view  PreviewView
	every int
	n     int
}

func NewPreviewPresenter(src FrameSource, view PreviewView, every int) *PreviewPresenter {
	if every < 1 {
		every = 1
	}
	return &PreviewPresenter{src: src, view: view, every: every}
}

func (p *PreviewPresenter) Tick() {
	if p == nil || p.src == nil || p.view == nil {
		return
	}
	p.n++
	if p.n%p.every != 0 {
		return
	}
	img, ok := p.src.NextFrame()
	if !ok {
		return
	}
	p.view.UpdatePreview(img)
}
