package presenter

import (
	"context"
	"errors"
	"log/slog"

	"github.com/soocke/qrscan-go/domain/scan"
)

// ScanModel provides enabled state access.
type ScanModel interface {
	Enabled() bool
	SetEnabled(bool)
}

// LifecycleContract narrows what the presenter needs from the scan controller.
type LifecycleContract interface {
	StartStream(ctx context.Context) error
	StopStream()
}

// ScanView updates UI elements affected by starting and stopping a scan.
type ScanView interface {
	PreviewReset()
	ConfigEditable(bool)
	SetStatus(string)
}

type startFailure struct {
	gen uint64
	err error
}

// ScanPresenter owns presentation logic for toggling scanning. StartStream
// blocks on camera acquisition, so it runs off the UI thread and failures are
// handed back through Tick.
type ScanPresenter struct {
	model    ScanModel
	service  LifecycleContract
	view     ScanView
	logger   *slog.Logger
	gen      uint64
	failures chan startFailure
	cancel   context.CancelFunc // cancels the latest start request
	inflight chan struct{}      // closed when the latest start request returns
	// spawn runs StartStream; tests replace it to run synchronously.
	spawn func(func())
}

func NewScanPresenter(model ScanModel, service LifecycleContract, view ScanView, logger *slog.Logger) *ScanPresenter {
	return &ScanPresenter{
		model:    model,
		service:  service,
		view:     view,
		logger:   logger,
		failures: make(chan startFailure, 4),
		spawn:    func(f func()) { go f() },
	}
}

// Enable starts a scan session. Idempotent. Requests run one at a time so a
// start superseded by Disable can stop its own session without touching a
// newer one.
func (p *ScanPresenter) Enable() {
	if p == nil || p.model == nil || p.service == nil || p.view == nil {
		return
	}
	if p.model.Enabled() {
		return
	}
	p.gen++
	gen := p.gen
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	prev := p.inflight
	done := make(chan struct{})
	p.inflight = done
	p.model.SetEnabled(true)
	p.view.ConfigEditable(false)
	p.view.SetStatus("Starting camera...")
	p.spawn(func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		if ctx.Err() != nil {
			return
		}
		err := p.service.StartStream(ctx)
		if err == nil {
			if ctx.Err() != nil {
				// Disable ran before the session existed.
				p.service.StopStream()
			}
			return
		}
		select {
		case p.failures <- startFailure{gen: gen, err: err}:
		default:
			if p.logger != nil {
				p.logger.Warn("start failure dropped", "error", err)
			}
		}
	})
}

// Disable stops the session and resets the preview. Idempotent.
func (p *ScanPresenter) Disable() {
	if p == nil || p.model == nil || p.service == nil || p.view == nil {
		return
	}
	if !p.model.Enabled() {
		return
	}
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.service.StopStream()
	p.model.SetEnabled(false)
	p.view.PreviewReset()
	p.view.ConfigEditable(true)
	p.view.SetStatus("Stopped")
}

// Toggle flips enabled state delegating to Enable/Disable.
func (p *ScanPresenter) Toggle() {
	if p == nil || p.model == nil {
		return
	}
	if p.model.Enabled() {
		p.Disable()
		return
	}
	p.Enable()
}

// Tick reports start failures of the current request on the UI thread.
// Failures from superseded requests and cancellations are ignored.
func (p *ScanPresenter) Tick() {
	if p == nil || p.view == nil {
		return
	}
	for {
		select {
		case f := <-p.failures:
			if f.gen != p.gen || !p.model.Enabled() {
				continue
			}
			var ae *scan.AcquisitionError
			if errors.As(f.err, &ae) && ae.Reason == scan.ReasonCanceled {
				continue
			}
			p.model.SetEnabled(false)
			p.view.ConfigEditable(true)
			p.view.SetStatus(failureText(f.err))
		default:
			return
		}
	}
}

// failureText turns a start error into a short message for the status line.
func failureText(err error) string {
	var ae *scan.AcquisitionError
	if errors.As(err, &ae) {
		switch ae.Reason {
		case scan.ReasonDenied:
			return "Camera access denied"
		case scan.ReasonUnavailable:
			return "No camera available"
		case scan.ReasonSizing:
			return "Camera reported an unusable frame size"
		}
	}
	if errors.Is(err, scan.ErrSessionActive) {
		return "Already scanning"
	}
	return "Camera error: " + err.Error()
}
