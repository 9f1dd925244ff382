package presenter

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/soocke/qrscan-go/domain/camera"
	"github.com/soocke/qrscan-go/domain/scan"
	"github.com/soocke/qrscan-go/ui/model"
)

var _ scan.VideoSink = (*StreamSink)(nil)

func TestStatePresenter_ShowsLatest(t *testing.T) {
	view := &mockView{}
	p := NewStatePresenter(view)
	p.Tick()
	if view.state != "State: idle" {
		t.Fatalf("initial label=%q", view.state)
	}
	p.OnState(scan.StateIdle, scan.StateAcquiring)
	p.OnState(scan.StateAcquiring, scan.StateScanning)
	p.Tick()
	if view.state != "State: scanning" {
		t.Fatalf("label=%q want scanning", view.state)
	}
}

type fakeResults struct {
	r  scan.Result
	ok bool
}

func (f *fakeResults) LastResult() (scan.Result, bool) { return f.r, f.ok }

func TestResultPresenter_PushesChangesOnly(t *testing.T) {
	src := &fakeResults{}
	view := &mockView{}
	p := NewResultPresenter(src, model.NewResultModel(), view)
	p.Tick()
	if view.result != "" {
		t.Fatalf("result shown before any decode")
	}
	src.r, src.ok = scan.Result{Text: "ABC123", At: time.Unix(1, 0)}, true
	p.Tick()
	if view.result != "ABC123" {
		t.Fatalf("result=%q", view.result)
	}
	view.result = ""
	p.Tick()
	if view.result != "" {
		t.Fatalf("unchanged result pushed again")
	}
}

type fakeStats struct{ st scan.Stats }

func (f *fakeStats) Stats() scan.Stats { return f.st }

func TestSessionPresenter_TracksScanningState(t *testing.T) {
	src := &fakeStats{st: scan.Stats{State: scan.StateScanning, Found: 2, Ticks: 9}}
	view := &mockView{}
	p := NewSessionPresenter(model.NewSessionModel(), src, view)
	base := time.Unix(0, 0)
	p.Tick(base)
	p.Tick(base.Add(4 * time.Second))
	if view.session != 4*time.Second || view.found != 2 || view.ticks != 9 {
		t.Fatalf("session=%v found=%d ticks=%d", view.session, view.found, view.ticks)
	}
	src.st.State = scan.StateIdle
	p.Tick(base.Add(6 * time.Second))
	if view.total != 6*time.Second {
		t.Fatalf("total=%v want 6s", view.total)
	}
}

type fakeFrames struct{ calls int }

func (f *fakeFrames) NextFrame() (image.Image, bool) {
	f.calls++
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), true
}

type previewView struct{ n int }

func (v *previewView) UpdatePreview(image.Image) { v.n++ }

func TestPreviewPresenter_Throttles(t *testing.T) {
	src := &fakeFrames{}
	view := &previewView{}
	p := NewPreviewPresenter(src, view, 3)
	for i := 0; i < 9; i++ {
		p.Tick()
	}
	if src.calls != 3 || view.n != 3 {
		t.Fatalf("calls=%d updates=%d want 3/3", src.calls, view.n)
	}
}

type seqStream struct {
	seq uint64
	img image.Image
}

func (s *seqStream) ID() string             { return "s" }
func (s *seqStream) Tracks() []camera.Track { return nil }
func (s *seqStream) Metadata(context.Context) (image.Point, error) {
	return s.img.Bounds().Size(), nil
}
func (s *seqStream) CurrentFrame() (camera.Snapshot, bool) {
	return camera.Snapshot{Image: s.img, Sequence: s.seq}, true
}

func TestStreamSink_OnlyNewFrames(t *testing.T) {
	var sink StreamSink
	if _, ok := sink.NextFrame(); ok {
		t.Fatalf("frame before attach")
	}
	st := &seqStream{seq: 1, img: image.NewRGBA(image.Rect(0, 0, 2, 2))}
	sink.Attach(st)
	if _, ok := sink.NextFrame(); !ok {
		t.Fatalf("first frame missing")
	}
	if _, ok := sink.NextFrame(); ok {
		t.Fatalf("same frame returned twice")
	}
	st.seq = 2
	if _, ok := sink.NextFrame(); !ok {
		t.Fatalf("new frame missing")
	}
	sink.Detach()
	if sink.Attached() {
		t.Fatalf("still attached")
	}
	if _, ok := sink.NextFrame(); ok {
		t.Fatalf("frame after detach")
	}
}

func TestLoop_NilSafe(t *testing.T) {
	var l *Loop
	l.Tick()
	scheduled := 0
	(&Loop{Schedule: func() { scheduled++ }}).Tick()
	if scheduled != 1 {
		t.Fatalf("schedule not invoked")
	}
}
