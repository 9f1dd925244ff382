package view

import (
	"time"

	"github.com/soocke/qrscan-go/ui/theme"

	//lint:ignore ST1001 Dot import for concise Tk widget DSL.
	. "modernc.org/tk9.0"
)

// ResultPanel shows the decoded payload in a selectable text widget so it
// can be copied.
type ResultPanel interface {
	Set(text string, at time.Time, repeat bool)
}

type resultPanel struct {
	caption *TLabelWidget
	text    *TextWidget
}

func NewResultPanel(row int) ResultPanel {
	p := &resultPanel{
		caption: TLabel(Txt("Result: <none>"), Style(theme.StyleResultLabel)),
		text:    Text(Height(2), Width(48)),
	}
	Grid(p.caption, Row(row), Column(0), Sticky("w"), Padx("0.4m"), Pady("0.2m"))
	Grid(p.text, Row(row), Column(1), Columnspan(4), Sticky("we"), Padx("0.4m"), Pady("0.2m"))
	return p
}

func (p *resultPanel) Set(text string, at time.Time, repeat bool) {
	if p == nil || p.text == nil {
		return
	}
	p.text.Delete("1.0", END)
	p.text.Insert("1.0", text)
	caption := "Result @ " + at.Format("15:04:05")
	if repeat {
		caption += " (again)"
	}
	p.caption.Configure(Txt(caption))
}
