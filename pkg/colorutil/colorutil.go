// Package colorutil provides shared color utilities for the mold measurement application.
package colorutil

import (
	"fmt"
	"image/color"
	"math"
)

// Common overlay colors used throughout the application.
var (
	Black      = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Red        = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Green      = color.RGBA{R: 46, G: 125, B: 50, A: 255}
	Purple     = color.RGBA{R: 156, G: 39, B: 176, A: 255}
	Orange     = color.RGBA{R: 255, G: 152, B: 0, A: 255}
	Blue       = color.RGBA{R: 25, G: 118, B: 210, A: 255}
	LightGreen = color.RGBA{R: 76, G: 175, B: 80, A: 255}
)

// HSV channel limits in the OpenCV 8-bit convention.
const (
	HueMax = 180
	SatMax = 255
	ValMax = 255
)

// HSV is an 8-bit HSV triple using OpenCV's convention: H 0-180, S 0-255, V 0-255.
type HSV struct {
	H int `json:"h"`
	S int `json:"s"`
	V int `json:"v"`
}

func (c HSV) String() string {
	return fmt.Sprintf("H%d S%d V%d", c.H, c.S, c.V)
}

// Valid reports whether every channel lies inside its domain.
func (c HSV) Valid() bool {
	return c.H >= 0 && c.H <= HueMax &&
		c.S >= 0 && c.S <= SatMax &&
		c.V >= 0 && c.V <= ValMax
}

// RGBToHSV converts RGB (0-255) to HSV (OpenCV convention: H 0-180, S 0-255, V 0-255).
func RGBToHSV(r, g, b float64) (h, s, v float64) {
	r /= 255.0
	g /= 255.0
	b /= 255.0

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	diff := maxC - minC

	v = maxC * 255.0 // V in 0-255

	if maxC == 0 {
		s = 0
	} else {
		s = (diff / maxC) * 255.0 // S in 0-255
	}

	if diff == 0 {
		h = 0
	} else if maxC == r {
		h = 60 * math.Mod((g-b)/diff, 6)
	} else if maxC == g {
		h = 60 * ((b-r)/diff + 2)
	} else {
		h = 60 * ((r-g)/diff + 4)
	}

	if h < 0 {
		h += 360
	}

	h = h / 2 // Convert to OpenCV's 0-180 range

	return h, s, v
}

// ToHSV converts any color to the rounded 8-bit HSV triple.
func ToHSV(c color.Color) HSV {
	r, g, b, _ := c.RGBA()
	h, s, v := RGBToHSV(float64(r>>8), float64(g>>8), float64(b>>8))
	return HSV{
		H: clampInt(int(math.Round(h)), 0, HueMax),
		S: clampInt(int(math.Round(s)), 0, SatMax),
		V: clampInt(int(math.Round(v)), 0, ValMax),
	}
}

// WithAlpha returns c with its alpha replaced. The color channels are
// premultiplied so the result is a valid color.RGBA.
func WithAlpha(c color.RGBA, alpha uint8) color.RGBA {
	scale := func(v uint8) uint8 { return uint8(uint16(v) * uint16(alpha) / 255) }
	return color.RGBA{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: alpha}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
