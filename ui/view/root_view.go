package view

import (
	"image"
	"log/slog"
	"time"

	"github.com/soocke/qrscan-go/config"
	"github.com/soocke/qrscan-go/ui/theme"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// RootView composes the top-level application layout and wires UI callbacks.
// It owns high-level subviews but exposes minimal exported fields for presenters.
type RootView struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger

	// Subviews
	Session     SessionStats
	ConfigPanel ConfigPanel
	Preview     Preview
	Result      ResultPanel

	// Widgets
	StateLabel  *TLabelWidget
	StatusLabel *LabelWidget
	ScanButton  *TButtonWidget
}

// UI is the subset of view operations presenters need.
type UI interface {
	SetStateLabel(text string)
	SetStatus(text string)
	SetConfigEditable(enabled bool)
	UpdatePreview(img image.Image)
	SetResult(text string, at time.Time, repeat bool)
	SetSession(session, total time.Duration)
	SetCounters(found, ticks uint64, avgDecode time.Duration)
}

func NewRootView(cfg *config.Config, cfgPath string, logger *slog.Logger) *RootView {
	return &RootView{cfg: cfg, cfgPath: cfgPath, logger: logger}
}

// Build constructs the layout. Handlers are invoked on user actions.
func (rv *RootView) Build(onToggleScan func(), onExit func()) {
	if rv == nil {
		return
	}
	// Row 0: session stats, state label, buttons frame
	statsFrame := Frame()
	Grid(statsFrame, Row(0), Column(0), Columnspan(2), Sticky("w"), Padx("0.4m"), Pady("0.3m"))
	rv.Session = NewSessionStats(statsFrame, 0, 0)

	rv.StateLabel = TLabel(Txt("State: idle"), Style(theme.StyleStateLabel))
	Grid(rv.StateLabel, Row(0), Column(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))

	btnFrame := Frame()
	Grid(btnFrame, Row(0), Column(4), Sticky("ne"), Padx("0.3m"), Pady("0.3m"))
	rv.ScanButton = TButton(Txt("Start / Stop Scan"), Command(onToggleScan), Style(theme.StylePrimaryButton))
	Grid(rv.ScanButton, In(btnFrame), Row(0), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	exitBtn := TButton(Txt("Exit"), Command(onExit), Style(theme.StyleDangerButton))
	Grid(exitBtn, In(btnFrame), Row(1), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))

	// Row 1: decoded payload and status line
	rv.Result = NewResultPanel(1)
	rv.StatusLabel = Label(Txt("Ready"), Anchor("w"))
	Grid(rv.StatusLabel, Row(2), Column(0), Columnspan(5), Sticky("we"), Padx("0.4m"), Pady("0.2m"))

	// Config panel rows
	rv.ConfigPanel = NewConfigPanel(rv.cfg, rv.cfgPath, rv.logger)
	endRow := rv.ConfigPanel.Build(3)

	w, h := 0, 0
	if rv.cfg != nil {
		w, h = rv.cfg.PreviewWidth, rv.cfg.PreviewHeight
	}
	rv.Preview = NewPreview(endRow, w, h)
}

// SetStateLabel updates the state label text.
func (rv *RootView) SetStateLabel(text string) {
	if rv != nil && rv.StateLabel != nil {
		rv.StateLabel.Configure(Txt(text))
	}
}

// SetStatus updates the status line.
func (rv *RootView) SetStatus(text string) {
	if rv != nil && rv.StatusLabel != nil {
		rv.StatusLabel.Configure(Txt(text))
	}
}

// SetConfigEditable toggles config panel editability.
func (rv *RootView) SetConfigEditable(enabled bool) {
	if rv != nil && rv.ConfigPanel != nil {
		rv.ConfigPanel.SetEditable(enabled)
	}
}

// UpdatePreview proxies to the preview view.
func (rv *RootView) UpdatePreview(img image.Image) {
	if rv != nil && rv.Preview != nil {
		rv.Preview.Update(img)
	}
}

// SetResult shows the latest decoded payload.
func (rv *RootView) SetResult(text string, at time.Time, repeat bool) {
	if rv != nil && rv.Result != nil {
		rv.Result.Set(text, at, repeat)
	}
}

// SetSession updates both session and total scan durations.
func (rv *RootView) SetSession(session, total time.Duration) {
	if rv == nil || rv.Session == nil {
		return
	}
	rv.Session.SetSession(session)
	rv.Session.SetTotal(total)
}

// SetCounters updates the decode counters.
func (rv *RootView) SetCounters(found, ticks uint64, avgDecode time.Duration) {
	if rv != nil && rv.Session != nil {
		rv.Session.SetCounters(found, ticks, avgDecode)
	}
}

// --- ScanPresenter view contract methods ---
// PreviewReset clears the preview.
func (rv *RootView) PreviewReset() {
	if rv != nil && rv.Preview != nil {
		rv.Preview.Reset()
	}
}

// ConfigEditable redirects to SetConfigEditable to satisfy ScanView.
func (rv *RootView) ConfigEditable(b bool) { rv.SetConfigEditable(b) }
