package contour

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mold-measure/internal/vision/raster"
	"mold-measure/pkg/geometry"
)

func mask(w, h int, rects ...image.Rectangle) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for _, r := range rects {
		draw.Draw(g, r, image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)
	}
	return g
}

func TestProcessDropsSmallRegions(t *testing.T) {
	m := raster.Mask(mask(200, 150, image.Rect(10, 10, 70, 50), image.Rect(120, 100, 140, 120)))
	regions, err := NewPostProcessor(raster.New()).Process(m, FullImageParams)
	require.NoError(t, err)
	require.Len(t, regions, 1)

	r := regions[0]
	assert.InDelta(t, 59*39, r.PixelArea, 1e-9)
	assert.Len(t, r.Contour, 4)
	assert.InDelta(t, r.PixelArea, geometry.Area(r.Contour), 1e-9)
}

func TestProcessRelativeFloor(t *testing.T) {
	m := raster.Mask(mask(1000, 1000, image.Rect(100, 100, 140, 140)))
	pp := NewPostProcessor(raster.New())

	full, err := pp.Process(m, FullImageParams)
	require.NoError(t, err)
	assert.Empty(t, full, "1521 px is below 0.2% of a megapixel")

	eye, err := pp.Process(m, EyedropperParams)
	require.NoError(t, err)
	assert.Len(t, eye, 1)
}

func TestMinArea(t *testing.T) {
	assert.Equal(t, 1000.0, FullImageParams.MinArea(100, 100))
	assert.Equal(t, 4000.0, FullImageParams.MinArea(2000, 1000))
	assert.Equal(t, 500.0, EyedropperParams.MinArea(100, 100))
	assert.Equal(t, 2000.0, EyedropperParams.MinArea(2000, 1000))
}

// collapsing simplifies every boundary to nothing.
type collapsing struct {
	*raster.Backend
}

func (collapsing) ApproxPoly([]geometry.Point2D, float64, bool) []geometry.Point2D {
	return nil
}

func TestProcessSkipsEmptyContours(t *testing.T) {
	m := raster.Mask(mask(200, 150, image.Rect(10, 10, 70, 50)))
	regions, err := NewPostProcessor(collapsing{raster.New()}).Process(m, FullImageParams)
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestProcessKeepsBoundaryOrder(t *testing.T) {
	m := raster.Mask(mask(300, 200, image.Rect(200, 10, 260, 60), image.Rect(10, 100, 80, 160)))
	regions, err := NewPostProcessor(raster.New()).Process(m, FullImageParams)
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Less(t, regions[0].Contour[0].Y, regions[1].Contour[0].Y)
}
