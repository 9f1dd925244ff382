package theme

// Theming for the scanner UI: light and dark palettes plus the semantic
// ttk styles the views refer to by name.

import (
	tk "modernc.org/tk9.0"
)

// Palette holds resolved colors for one mode.
type Palette struct {
	AppBg     string
	Surface   string
	Border    string
	Primary   string
	Danger    string
	Accent    string
	Text      string
	TextMuted string
}

var (
	light = Palette{
		AppBg:     "#f7f9fb",
		Surface:   "#ffffff",
		Border:    "#d0d7de",
		Primary:   "#2563eb",
		Danger:    "#dc2626",
		Accent:    "#10b981",
		Text:      "#1e293b",
		TextMuted: "#64748b",
	}
	dark = Palette{
		AppBg:     "#0f172a",
		Surface:   "#1e293b",
		Border:    "#334155",
		Primary:   "#3b82f6",
		Danger:    "#ef4444",
		Accent:    "#10b981",
		Text:      "#f1f5f9",
		TextMuted: "#94a3b8",
	}
)

// Style names passed to Style(...).
const (
	StylePrimaryButton = "primary.TButton"
	StyleDangerButton  = "danger.TButton"
	StyleResultLabel   = "result.TLabel"
	StyleStateLabel    = "state.TLabel"
)

var darkMode bool

// Current returns the palette for the active mode.
func Current() Palette {
	if darkMode {
		return dark
	}
	return light
}

// InitStyles (re)applies styles for the current mode.
func InitStyles() { applyStyles(Current()) }

// SetDark switches mode and reapplies styles.
func SetDark(on bool) bool {
	darkMode = on
	applyStyles(Current())
	return darkMode
}

// IsDark reports current mode.
func IsDark() bool { return darkMode }

func applyStyles(p Palette) {
	base := "azure light"
	if darkMode {
		base = "azure dark"
	}
	_ = tk.ActivateTheme(base)
	tk.App.Configure(tk.Background(p.AppBg))

	tk.StyleConfigure(StylePrimaryButton, tk.Background(p.Primary), tk.Foreground("white"), tk.Padding("4p 3p"), tk.Borderwidth(1), tk.Relief("ridge"))
	tk.StyleConfigure(StyleDangerButton, tk.Background(p.Danger), tk.Foreground("white"), tk.Padding("4p 3p"), tk.Borderwidth(1), tk.Relief("ridge"))
	tk.StyleConfigure(StyleResultLabel, tk.Foreground(p.Primary), tk.Background(p.Surface), tk.Padding("2p 1p"))
	tk.StyleConfigure(StyleStateLabel, tk.Foreground("white"), tk.Background(p.Accent), tk.Padding("4p 2p"), tk.Borderwidth(1), tk.Relief("groove"))
}
