package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"mold-measure/pkg/colorutil"
	"mold-measure/pkg/geometry"
)

// circleSegments is the polygon resolution used for filled circles.
const circleSegments = 48

// fillPolygon composites col over the polygon's interior with antialiasing.
func fillPolygon(dst *image.RGBA, pts []geometry.Point2D, col color.RGBA) {
	if len(pts) < 3 {
		return
	}
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	z.MoveTo(float32(pts[0].X-float64(b.Min.X)), float32(pts[0].Y-float64(b.Min.Y)))
	for _, p := range pts[1:] {
		z.LineTo(float32(p.X-float64(b.Min.X)), float32(p.Y-float64(b.Min.Y)))
	}
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(col), image.Point{})
}

// fillCircle composites a disc.
func fillCircle(dst *image.RGBA, c geometry.Point2D, r float64, col color.RGBA) {
	fillPolygon(dst, circlePoints(c, r), col)
}

// strokeCircle draws a ring of the given thickness inside radius r.
func strokeCircle(dst *image.RGBA, c geometry.Point2D, r float64, thickness int, col color.RGBA) {
	pts := circlePoints(c, r)
	strokePolygon(dst, pts, thickness, col)
}

func circlePoints(c geometry.Point2D, r float64) []geometry.Point2D {
	pts := make([]geometry.Point2D, circleSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / circleSegments
		pts[i] = geometry.Point2D{X: c.X + r*math.Cos(a), Y: c.Y + r*math.Sin(a)}
	}
	return pts
}

// strokePolygon outlines a closed polygon.
func strokePolygon(dst *image.RGBA, pts []geometry.Point2D, thickness int, col color.RGBA) {
	n := len(pts)
	if n == 0 {
		return
	}
	if n == 1 {
		drawLine(dst, pts[0], pts[0], thickness, col)
		return
	}
	for i := 0; i < n; i++ {
		drawLine(dst, pts[i], pts[(i+1)%n], thickness, col)
	}
}

// drawLine draws a thick line with Bresenham's algorithm.
func drawLine(dst *image.RGBA, from, to geometry.Point2D, thickness int, col color.RGBA) {
	b := dst.Bounds()
	x1, y1 := int(math.Round(from.X)), int(math.Round(from.Y))
	x2, y2 := int(math.Round(to.X)), int(math.Round(to.Y))

	dx, dy := abs(x2-x1), abs(y2-y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	lo, hi := -(thickness / 2), (thickness-1)/2

	for {
		for t := lo; t <= hi; t++ {
			for s := lo; s <= hi; s++ {
				p := image.Point{X: x1 + s, Y: y1 + t}
				if p.In(b) {
					dst.SetRGBA(p.X, p.Y, col)
				}
			}
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// drawDashedLine draws dash-long segments separated by gap-long spaces.
func drawDashedLine(dst *image.RGBA, from, to geometry.Point2D, dash, gap float64, thickness int, col color.RGBA) {
	length := from.Distance(to)
	if length == 0 {
		return
	}
	dir := to.Sub(from).Scale(1 / length)
	for pos := 0.0; pos < length; pos += dash + gap {
		end := math.Min(pos+dash, length)
		drawLine(dst, from.Add(dir.Scale(pos)), from.Add(dir.Scale(end)), thickness, col)
	}
}

// textWidth returns the rendered width of s in pixels.
func textWidth(s string) int {
	d := font.Drawer{Face: basicfont.Face7x13}
	return d.MeasureString(s).Ceil()
}

// drawText draws s centered on c.
func drawText(dst *image.RGBA, s string, c geometry.Point2D, col color.RGBA) {
	face := basicfont.Face7x13
	w := textWidth(s)
	// Center the cap height on c.
	baseline := int(math.Round(c.Y)) + (face.Ascent-face.Descent)/2
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(int(math.Round(c.X))-w/2, baseline),
	}
	d.DrawString(s)
}

// drawTag draws s centered on c over a translucent dark box.
func drawTag(dst *image.RGBA, s string, c geometry.Point2D) {
	w := textWidth(s)
	h := basicfont.Face7x13.Height
	x, y := int(math.Round(c.X)), int(math.Round(c.Y))
	box := image.Rect(x-w/2-5, y-h/2-3, x+w/2+5, y+h/2+3)
	draw.Draw(dst, box, image.NewUniform(colorutil.WithAlpha(colorutil.Black, 178)), image.Point{}, draw.Over)
	drawText(dst, s, c, colorutil.White)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
