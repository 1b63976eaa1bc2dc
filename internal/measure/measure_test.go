package measure

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"mold-measure/pkg/geometry"
)

func TestEstimateRectangle(t *testing.T) {
	const w, h, f = 200.0, 80.0, 0.05
	rect := geometry.RectPolygon(50, 60, w, h)

	d := Estimate(rect, f)
	assert.False(t, d.Degraded)
	assert.InDelta(t, w*f, d.WidthCm, 1e-9)
	assert.InDelta(t, h*f, d.HeightCm, 1e-9)
	assert.InDelta(t, w*f*h*f, d.AreaCm2, 1e-9)
}

func TestEstimateRotationInvariant(t *testing.T) {
	const w, h, f = 300.0, 120.0, 0.02
	rect := geometry.RectPolygon(0, 0, w, h)
	want := w * f * h * f
	center := geometry.NewPoint2D(w/2, h/2)

	for _, deg := range []float64{0, 15, 30, 45, 60, 90, 135, 170} {
		rot := geometry.RotationAbout(center, deg*math.Pi/180).ApplyAll(rect)
		d := Estimate(rot, f)
		assert.InDelta(t, want, d.AreaCm2, want*1e-9, "rotation %v°", deg)
		assert.InDelta(t, w*f, d.Long(), 1e-9, "rotation %v°", deg)
		assert.InDelta(t, h*f, d.Short(), 1e-9, "rotation %v°", deg)
	}
}

func TestEstimateDegraded(t *testing.T) {
	tri := []geometry.Point2D{{X: 0, Y: 0}, {X: 40, Y: 0}, {X: 10, Y: 30}}
	d := Estimate(tri, 0.5)
	assert.True(t, d.Degraded)
	assert.InDelta(t, 20, d.WidthCm, 1e-12)
	assert.InDelta(t, 15, d.HeightCm, 1e-12)
	assert.InDelta(t, 300, d.AreaCm2, 1e-12)

	single := Estimate([]geometry.Point2D{{X: 7, Y: 7}}, 1)
	assert.True(t, single.Degraded)
	assert.Zero(t, single.AreaCm2)
}

func TestFormat(t *testing.T) {
	d := Dimensions{WidthCm: 8, HeightCm: 20, AreaCm2: 160}
	assert.Equal(t, "20.0 × 8.0 cm (160.00 cm²)", d.Format())
}
