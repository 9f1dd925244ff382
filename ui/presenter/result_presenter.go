package presenter

import (
	"time"

	"github.com/soocke/qrscan-go/domain/scan"
	"github.com/soocke/qrscan-go/ui/model"
)

// ResultSource exposes the controller's last decoded payload.
type ResultSource interface {
	LastResult() (scan.Result, bool)
}

// ResultView shows the decoded payload.
type ResultView interface {
	SetResult(text string, at time.Time, repeat bool)
}

// ResultPresenter polls for new payloads and pushes them to the view.
type ResultPresenter struct {
	src   ResultSource
	model *model.ResultModel
	view  ResultView
}

func NewResultPresenter(src ResultSource, m *model.ResultModel, view ResultView) *ResultPresenter {
	return &ResultPresenter{src: src, model: m, view: view}
}

func (p *ResultPresenter) Tick() {
	if p == nil || p.src == nil || p.model == nil || p.view == nil {
		return
	}
	r, ok := p.src.LastResult()
	if !ok {
		return
	}
	if p.model.Update(r.Text, r.At) {
		p.view.SetResult(r.Text, r.At, r.Repeat)
	}
}
