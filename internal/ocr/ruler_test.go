package ocr

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mold-measure/pkg/geometry"
)

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12", 12, true},
		{" 3cm", 3, true},
		{"7,5", 7.5, true},
		{"10.", 10, true},
		{"1O", 0, false},
		{"", 0, false},
		{"1234", 0, false},
		{"cm", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseLabel(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func ruler(y float64) []Label {
	return []Label{
		{Value: 1, Center: geometry.NewPoint2D(100, y), Confidence: 90},
		{Value: 2, Center: geometry.NewPoint2D(200, y), Confidence: 85},
		{Value: 3, Center: geometry.NewPoint2D(300, y), Confidence: 80},
	}
}

func TestSuggestDistance(t *testing.T) {
	labels := append(ruler(70),
		Label{Value: 9, Center: geometry.NewPoint2D(150, 400), Confidence: 99}, // far from the line
		Label{Value: 4, Center: geometry.NewPoint2D(250, 70), Confidence: 10},  // low confidence
		Label{Value: 2, Center: geometry.NewPoint2D(230, 70), Confidence: 20},  // duplicate value
	)
	s, err := SuggestDistance(labels, geometry.NewPoint2D(100, 50), geometry.NewPoint2D(300, 50), DefaultRulerParams())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, s.DistanceCm, 1e-9)
	assert.InDelta(t, 0.01, s.CmPerPixel, 1e-9)
	assert.Len(t, s.Labels, 3)
	assert.InDelta(t, 1.0, s.RSquared, 1e-9)
}

func TestSuggestDistanceReversedRuler(t *testing.T) {
	s, err := SuggestDistance(ruler(50), geometry.NewPoint2D(300, 50), geometry.NewPoint2D(50, 50), DefaultRulerParams())
	require.NoError(t, err)
	assert.InDelta(t, 2.5, s.DistanceCm, 1e-9)
}

func TestSuggestDistanceRejects(t *testing.T) {
	params := DefaultRulerParams()
	p0, p1 := geometry.NewPoint2D(100, 50), geometry.NewPoint2D(300, 50)

	_, err := SuggestDistance(ruler(50)[:1], p0, p1, params)
	assert.ErrorIs(t, err, ErrNoSuggestion)

	scattered := []Label{
		{Value: 1, Center: geometry.NewPoint2D(100, 50), Confidence: 90},
		{Value: 8, Center: geometry.NewPoint2D(150, 50), Confidence: 90},
		{Value: 2, Center: geometry.NewPoint2D(200, 50), Confidence: 90},
		{Value: 9, Center: geometry.NewPoint2D(250, 50), Confidence: 90},
	}
	_, err = SuggestDistance(scattered, p0, p1, params)
	assert.ErrorIs(t, err, ErrNoSuggestion)

	_, err = SuggestDistance(ruler(50), p0, p0, params)
	assert.ErrorIs(t, err, ErrNoSuggestion)
}

func TestSearchRegion(t *testing.T) {
	bounds := image.Rect(0, 0, 400, 300)
	r := SearchRegion(geometry.NewPoint2D(50, 100), geometry.NewPoint2D(350, 120), 80, bounds)
	assert.Equal(t, image.Rect(0, 20, 400, 200), r)
}

func TestPreparedToImage(t *testing.T) {
	// Crop pixel (5, 30) of a 40x100 crop at (10, 20), upscaled twice.
	left := prepared{scale: 2, turn: turnedLeft, origin: image.Pt(10, 20), w: 40, h: 100}
	assert.Equal(t, geometry.NewPoint2D(15, 50), left.toImage(60, 68))

	right := prepared{scale: 2, turn: turnedRight, origin: image.Pt(10, 20), w: 40, h: 100}
	assert.Equal(t, geometry.NewPoint2D(15, 50), right.toImage(138, 10))

	up := prepared{scale: 2, turn: upright, origin: image.Pt(10, 20), w: 40, h: 100}
	assert.Equal(t, geometry.NewPoint2D(15, 50), up.toImage(10, 60))
}

func TestPrepareUpscalesAndInverts(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 40))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 20, G: 20, B: 20, A: 255}), image.Point{}, draw.Src)

	p, err := prepare(img, img.Bounds(), upright, 150)
	require.NoError(t, err)
	assert.InDelta(t, 3.75, p.scale, 1e-9)

	out, err := png.Decode(bytes.NewReader(p.png))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(750, 150), out.Bounds().Size())
	r, _, _, _ := out.At(10, 10).RGBA()
	assert.Greater(t, r>>8, uint32(128), "dark crops are inverted")

	assert.Equal(t, []orientation{upright}, orientationsFor(img.Bounds()))
	assert.Len(t, orientationsFor(image.Rect(0, 0, 40, 200)), 3)
}

func TestLabelFromWord(t *testing.T) {
	p := prepared{scale: 1, origin: image.Pt(100, 200)}
	l, ok := labelFromWord(p, "4", image.Rect(10, 10, 20, 30), 77)
	require.True(t, ok)
	assert.Equal(t, 4.0, l.Value)
	assert.Equal(t, geometry.NewPoint2D(115, 220), l.Center)

	_, ok = labelFromWord(p, "mm", image.Rect(0, 0, 1, 1), 99)
	assert.False(t, ok)
}

type fakeReader struct {
	labels []Label
	err    error
	roi    image.Rectangle
}

func (f *fakeReader) ReadLabels(_ image.Image, roi image.Rectangle) ([]Label, error) {
	f.roi = roi
	return f.labels, f.err
}

func (f *fakeReader) Close() error { return nil }

func TestSuggest(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	p0, p1 := geometry.NewPoint2D(100, 50), geometry.NewPoint2D(300, 50)

	r := &fakeReader{labels: ruler(60)}
	s, err := Suggest(r, img, p0, p1, DefaultRulerParams())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, s.DistanceCm, 1e-9)
	assert.Equal(t, image.Rect(20, 0, 380, 130), r.roi)

	boom := errors.New("boom")
	_, err = Suggest(&fakeReader{err: boom}, img, p0, p1, DefaultRulerParams())
	assert.ErrorIs(t, err, boom)
}

func TestStubEngine(t *testing.T) {
	e, err := NewEngine(DefaultRulerParams())
	if err == nil {
		require.NoError(t, e.Close())
		t.Skip("built with tesseract")
	}
	assert.ErrorIs(t, err, ErrUnavailable)
}
