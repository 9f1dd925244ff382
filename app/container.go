package app

import (
	"log/slog"

	"github.com/soocke/qrscan-go/config"
	"github.com/soocke/qrscan-go/domain/scan"
	"github.com/soocke/qrscan-go/scanner"
	"github.com/soocke/qrscan-go/ui/model"
	"github.com/soocke/qrscan-go/ui/presenter"
	"github.com/soocke/qrscan-go/ui/view"
)

// previewEvery is how many UI ticks pass between preview refreshes.
const previewEvery = 2

// AppContainer assembles models, the controller, presenters and the root view.
type AppContainer struct {
	Config     *config.Config
	Logger     *slog.Logger
	Controller *scan.Controller
	Sink       *presenter.StreamSink
	Scan       *model.ScanModel
	Session    *model.SessionModel
	Result     *model.ResultModel
	RootView   *view.RootView

	// Presenters
	ScanPresenter    *presenter.ScanPresenter
	StatePresenter   *presenter.StatePresenter
	SessionPresenter *presenter.SessionPresenter
	ResultPresenter  *presenter.ResultPresenter
	PreviewPresenter *presenter.PreviewPresenter
	Loop             *presenter.Loop
}

// BuildContainer constructs everything except Tk widgets, which need Build
// on the UI thread.
func BuildContainer(cfg *config.Config, cfgPath string, logger *slog.Logger) (*AppContainer, error) {
	c := &AppContainer{Config: cfg, Logger: logger}
	c.Sink = &presenter.StreamSink{}
	ctl, err := scanner.BuildController(cfg, logger, c.Sink)
	if err != nil {
		return nil, err
	}
	c.Controller = ctl
	c.Scan = &model.ScanModel{}
	c.Session = model.NewSessionModel()
	c.Result = model.NewResultModel()
	c.RootView = view.NewRootView(cfg, cfgPath, logger)
	return c, nil
}

// WirePresenters connects presenters to the built view. schedule re-arms the
// UI timer after every loop tick.
func (c *AppContainer) WirePresenters(schedule func()) {
	rv := c.RootView
	c.ScanPresenter = presenter.NewScanPresenter(c.Scan, c.Controller, rv, c.Logger)
	c.StatePresenter = presenter.NewStatePresenter(rv)
	c.Controller.AddListener(c.StatePresenter.OnState)
	c.SessionPresenter = presenter.NewSessionPresenter(c.Session, c.Controller, rv)
	c.ResultPresenter = presenter.NewResultPresenter(c.Controller, c.Result, rv)
	c.PreviewPresenter = presenter.NewPreviewPresenter(c.Sink, rv, previewEvery)
	c.Loop = presenter.NewLoop(c.ScanPresenter, c.StatePresenter, c.SessionPresenter, c.ResultPresenter, c.PreviewPresenter, schedule)
}
