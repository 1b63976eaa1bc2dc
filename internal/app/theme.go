// Package app holds desktop application plumbing: the theme and the
// development hot reloader.
package app

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"

	"mold-measure/pkg/colorutil"
)

// MoldMeasureTheme is the application theme.
type MoldMeasureTheme struct{}

var _ fyne.Theme = (*MoldMeasureTheme)(nil)

func (t *MoldMeasureTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		c := colorutil.Blue
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xFF}
	case theme.ColorNameSelection:
		c := colorutil.Green
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0x80}
	case theme.ColorNameScrollBar:
		return color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
	default:
		return theme.DefaultTheme().Color(name, variant)
	}
}

func (t *MoldMeasureTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *MoldMeasureTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *MoldMeasureTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameScrollBar:
		return 16
	case theme.SizeNameScrollBarSmall:
		return 12
	default:
		return theme.DefaultTheme().Size(name)
	}
}
