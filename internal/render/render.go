// Package render draws the measurement overlay. Render is a pure function of
// its Scene: the same scene always yields the same pixels and the scene's
// images are never modified.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"mold-measure/internal/calibration"
	"mold-measure/internal/mold"
	"mold-measure/pkg/colorutil"
	"mold-measure/pkg/geometry"
)

// Overlay sizes in image pixels.
const (
	PointRadius = 8
	LabelRadius = 25

	fillAlpha     = 77 // about 30%
	borderWidth   = 2
	selectedWidth = 4
	guideWidth    = 2
	tagOffset     = 15
)

// Scene is everything that appears on screen.
type Scene struct {
	Original image.Image

	// Calibration guide.
	Points     []geometry.Point2D
	Cursor     *geometry.Point2D
	DistanceCm float64
	// GuideFactor converts the live guide to centimeters. Zero shows pixels.
	GuideFactor float64

	Molds      []mold.Mold
	SelectedID int

	// DebugMask replaces the photo when set; DebugOutlines are drawn on it.
	DebugMask     *image.Gray
	DebugOutlines [][]geometry.Point2D
}

// Render draws s onto a fresh RGBA image the size of the original (or of the
// debug mask when one is shown).
func Render(s Scene) *image.RGBA {
	var base image.Image = s.Original
	if s.DebugMask != nil {
		base = s.DebugMask
	}
	if base == nil {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	r := base.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), base, r.Min, draw.Src)

	if s.DebugMask != nil {
		for _, c := range s.DebugOutlines {
			strokePolygon(out, c, borderWidth, colorutil.Green)
		}
		return out
	}

	for _, m := range s.Molds {
		drawMold(out, m, m.ID == s.SelectedID)
	}
	drawCalibration(out, s)
	return out
}

func drawMold(dst *image.RGBA, m mold.Mold, selected bool) {
	col := m.Type.Color()
	fillPolygon(dst, m.Contour, colorutil.WithAlpha(col, fillAlpha))
	width := borderWidth
	if selected {
		width = selectedWidth
		strokePolygon(dst, m.Contour, width+2, colorutil.Blue)
	}
	strokePolygon(dst, m.Contour, width, col)

	c, ok := geometry.PolygonCentroid(m.Contour)
	if !ok {
		c = geometry.Centroid(m.Contour)
	}
	fillCircle(dst, c, LabelRadius, col)
	strokeCircle(dst, c, LabelRadius, borderWidth, colorutil.White)
	drawText(dst, strconv.Itoa(m.ID), c, colorutil.White)
}

func drawCalibration(dst *image.RGBA, s Scene) {
	if len(s.Points) == 1 && s.Cursor != nil {
		p0, cur := s.Points[0], *s.Cursor
		drawDashedLine(dst, p0, cur, 5, 3, guideWidth, colorutil.Orange)
		drawTag(dst, GuideLabel(p0, cur, s.GuideFactor), tagPoint(p0, cur))
	}
	if len(s.Points) == 2 {
		p0, p1 := s.Points[0], s.Points[1]
		drawLine(dst, p0, p1, guideWidth, colorutil.LightGreen)
		drawTag(dst, fmt.Sprintf("%s cm", strconv.FormatFloat(s.DistanceCm, 'f', -1, 64)), tagPoint(p0, p1))
	}
	for i, p := range s.Points {
		fillCircle(dst, p, PointRadius, colorutil.WithAlpha(color.RGBA{R: 33, G: 150, B: 243, A: 255}, 128))
		strokeCircle(dst, p, PointRadius, borderWidth, colorutil.Blue)
		drawText(dst, strconv.Itoa(i+1), p, colorutil.White)
	}
}

// GuideLabel is the text shown on the live calibration guide.
func GuideLabel(p0, cursor geometry.Point2D, factor float64) string {
	if factor > 0 {
		return fmt.Sprintf("~ %.1f cm", calibration.EstimateDistance(p0, cursor, factor))
	}
	return fmt.Sprintf("%.0f px", p0.Distance(cursor))
}

func tagPoint(a, b geometry.Point2D) geometry.Point2D {
	m := a.Midpoint(b)
	m.Y -= tagOffset
	return m
}
