package view

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/soocke/qrscan-go/config"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// ConfigPanel encapsulates the configuration form widgets and apply logic.
// It writes back into *config.Config on ApplyChanges. Saved values take
// effect the next time the application starts.
type ConfigPanel interface {
	Build(startRow int) (endRow int) // constructs widgets starting at startRow, returns next free row
	SetEditable(enabled bool)
	ApplyChanges()
}

type configPanel struct {
	cfg      *config.Config
	cfgPath  string
	logger   *slog.Logger
	applyBtn *ButtonWidget
	widgets  map[string]*TextWidget // keyed by field id
}

// NewConfigPanel creates the view bound to cfg.
func NewConfigPanel(cfg *config.Config, cfgPath string, logger *slog.Logger) ConfigPanel {
	return &configPanel{cfg: cfg, cfgPath: cfgPath, logger: logger, widgets: make(map[string]*TextWidget)}
}

func (v *configPanel) Build(startRow int) (row int) {
	row = startRow
	if v.cfg == nil {
		return row
	}
	c := v.cfg
	makeRow := func(id, label, value string) {
		lbl := Label(Txt(label), Anchor("w"))
		Grid(lbl, Row(row), Column(0), Sticky("w"), Padx("0.4m"), Pady("0.15m"))
		w := Text(Height(1), Width(24))
		Grid(w, Row(row), Column(1), Sticky("we"), Padx("0.4m"), Pady("0.15m"))
		w.Delete("1.0", END)
		w.Insert("1.0", value)
		v.widgets[id] = w
		row++
	}
	makeRow("source", "Source (auto/v4l2/gocv/screen/file/ws)", c.Source)
	makeRow("device", "Device", c.Device)
	makeRow("facing", "Facing (environment/user)", c.FacingMode)
	makeRow("tickMs", "Tick ms", strconv.Itoa(c.TickMillis))
	makeRow("maxWidth", "Max Buffer Width", strconv.Itoa(c.MaxBufferWidth))
	makeRow("formats", "Formats (qr,1d)", strings.Join(c.Formats, ","))
	makeRow("tryHarder", "Try Harder (true/false)", fmt.Sprintf("%t", c.TryHarder))
	v.applyBtn = Button(Txt("Apply Changes"), Command(func() { v.ApplyChanges() }))
	Grid(v.applyBtn, Row(row), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	row++
	return row
}

func (v *configPanel) SetEditable(enabled bool) {
	state := "disabled"
	if enabled {
		state = "normal"
	}
	for _, w := range v.widgets {
		if w != nil {
			w.Configure(State(state))
		}
	}
	if v.applyBtn != nil {
		v.applyBtn.Configure(State(state))
	}
}

func (v *configPanel) text(id string) (string, bool) {
	w := v.widgets[id]
	if w == nil {
		return "", false
	}
	return strings.TrimSpace(strings.Join(w.Get("1.0", END), "")), true
}

func (v *configPanel) ApplyChanges() {
	if v.cfg == nil {
		return
	}
	cfg := *v.cfg
	cfg.Formats = append([]string(nil), v.cfg.Formats...)
	if s, ok := v.text("source"); ok && s != "" {
		cfg.Source = s
	}
	if s, ok := v.text("device"); ok {
		cfg.Device = s
	}
	if s, ok := v.text("facing"); ok {
		cfg.FacingMode = s
	}
	if s, ok := v.text("tickMs"); ok {
		if i, err := strconv.Atoi(s); err == nil {
			cfg.TickMillis = i
		}
	}
	if s, ok := v.text("maxWidth"); ok {
		if i, err := strconv.Atoi(s); err == nil {
			cfg.MaxBufferWidth = i
		}
	}
	if s, ok := v.text("formats"); ok && s != "" {
		cfg.Formats = strings.Split(s, ",")
	}
	if s, ok := v.text("tryHarder"); ok {
		if b, ok := parseBoolLoose(s); ok {
			cfg.TryHarder = b
		}
	}
	if verr := cfg.Validate(); verr != nil {
		return
	}
	*v.cfg = cfg
	if err := v.cfg.Save(v.cfgPath); err != nil {
		if v.logger != nil {
			v.logger.Error("config save failed", "error", err)
		}
	} else if v.logger != nil {
		v.logger.Info("config saved", "path", v.cfgPath)
	}
}

func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "on", "t":
		return true, true
	case "false", "0", "no", "n", "off", "f":
		return false, true
	default:
		return false, false
	}
}
