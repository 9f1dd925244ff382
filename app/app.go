package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tk "modernc.org/tk9.0"

	"github.com/soocke/qrscan-go/config"
	"github.com/soocke/qrscan-go/ui/theme"
)

const tick = 100 * time.Millisecond

// App hosts the Tk window and drives presenters from Tk's event loop.
type App struct {
	c         *AppContainer
	ctx       context.Context
	afterID   string
	closeOnce sync.Once
}

// NewApp builds the container and configures the main window.
func NewApp(title string, width, height int, cfg *config.Config, cfgPath string, logger *slog.Logger) (*App, error) {
	c, err := BuildContainer(cfg, cfgPath, logger)
	if err != nil {
		return nil, err
	}
	a := &App{c: c}
	tk.App.WmTitle(title)
	tk.WmProtocol(tk.App, "WM_DELETE_WINDOW", a.exitHandler)
	tk.WmGeometry(tk.App, fmt.Sprintf("%dx%d+100+100", width, height))
	return a, nil
}

// Start builds the widgets, begins the update loop and blocks until the
// window is closed or ctx is done.
func (a *App) Start(ctx context.Context) {
	a.ctx = ctx
	theme.InitStyles()
	a.c.WirePresenters(a.scheduleUpdate)
	a.c.RootView.Build(a.c.ScanPresenter.Toggle, a.exitHandler)
	a.scheduleUpdate()
	tk.App.Wait()
}

// scheduleUpdate uses TclAfter so presenters run on Tk's event loop thread.
func (a *App) scheduleUpdate() {
	a.afterID = tk.TclAfter(tick, func() {
		if a.ctx != nil && a.ctx.Err() != nil {
			a.afterID = ""
			a.exitHandler()
			return
		}
		a.c.Loop.Tick()
	})
}

func (a *App) exitHandler() {
	a.closeOnce.Do(func() {
		if a.afterID != "" {
			tk.TclAfterCancel(a.afterID)
		}
		a.c.Controller.Close()
		a.c.Logger.Info("exit")
		tk.Destroy(tk.App)
	})
}
