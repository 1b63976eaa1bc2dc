// Package measure estimates the physical size of a mold outline.
package measure

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"mold-measure/pkg/geometry"
)

// Dimensions is the estimated oriented extent of a contour in centimeters.
// AreaCm2 is WidthCm * HeightCm, the area of the estimated box.
type Dimensions struct {
	WidthCm  float64
	HeightCm float64
	AreaCm2  float64
	// Degraded is set when the contour had too few points for a principal
	// axis and the axis-aligned box was used instead.
	Degraded bool
}

// minPrincipalPoints is the fewest points the principal-axis estimate uses.
const minPrincipalPoints = 4

// Estimate measures contour with the given cm-per-pixel factor. The box is
// aligned with the contour's principal axis, which approximates a
// minimum-area rotated rectangle for elongated shapes.
func Estimate(contour []geometry.Point2D, factor float64) Dimensions {
	if len(contour) < minPrincipalPoints {
		bb := geometry.BoundingBox(contour)
		w, h := bb.Width*factor, bb.Height*factor
		return Dimensions{WidthCm: w, HeightCm: h, AreaCm2: w * h, Degraded: true}
	}

	xs := make([]float64, len(contour))
	ys := make([]float64, len(contour))
	for i, p := range contour {
		xs[i], ys[i] = p.X, p.Y
	}
	mx, my := stat.Mean(xs, nil), stat.Mean(ys, nil)
	covXX := stat.Covariance(xs, xs, nil)
	covYY := stat.Covariance(ys, ys, nil)
	covXY := stat.Covariance(xs, ys, nil)
	theta := 0.5 * math.Atan2(2*covXY, covXX-covYY)
	cos, sin := math.Cos(theta), math.Sin(theta)

	us := make([]float64, len(contour))
	vs := make([]float64, len(contour))
	for i := range contour {
		dx, dy := xs[i]-mx, ys[i]-my
		us[i] = dx*cos + dy*sin
		vs[i] = -dx*sin + dy*cos
	}
	w := (floats.Max(us) - floats.Min(us)) * factor
	h := (floats.Max(vs) - floats.Min(vs)) * factor
	return Dimensions{WidthCm: w, HeightCm: h, AreaCm2: w * h}
}

// Long returns the longer side.
func (d Dimensions) Long() float64 {
	return math.Max(d.WidthCm, d.HeightCm)
}

// Short returns the shorter side.
func (d Dimensions) Short() float64 {
	return math.Min(d.WidthCm, d.HeightCm)
}

// Format renders "L × S cm (A cm²)" with the longer side first.
func (d Dimensions) Format() string {
	return fmt.Sprintf("%.1f × %.1f cm (%.2f cm²)", d.Long(), d.Short(), d.AreaCm2)
}
