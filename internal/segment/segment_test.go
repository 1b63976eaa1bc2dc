package segment

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mold-measure/internal/vision"
	"mold-measure/internal/vision/raster"
	"mold-measure/pkg/colorutil"
)

func inAny(bands []HSVRange, c colorutil.HSV) bool {
	for _, b := range bands {
		if b.Contains(c) {
			return true
		}
	}
	return false
}

func TestDeriveRangeWrapsLowHue(t *testing.T) {
	bands := DeriveRange(colorutil.HSV{H: 2, S: 200, V: 200}, 10)
	require.Len(t, bands, 2)
	assert.Equal(t, 0, bands[0].Lower.H)
	assert.Equal(t, 12, bands[0].Upper.H)
	assert.Equal(t, 170, bands[1].Lower.H)
	assert.Equal(t, 180, bands[1].Upper.H)

	assert.True(t, inAny(bands, colorutil.HSV{H: 5, S: 200, V: 200}))
	assert.True(t, inAny(bands, colorutil.HSV{H: 175, S: 200, V: 200}))
	assert.False(t, inAny(bands, colorutil.HSV{H: 90, S: 200, V: 200}))
}

func TestDeriveRangeWrapsHighHue(t *testing.T) {
	bands := DeriveRange(colorutil.HSV{H: 175, S: 100, V: 100}, 10)
	require.Len(t, bands, 2)
	assert.Equal(t, HSVRange{Lower: colorutil.HSV{H: 0, S: 90, V: 90}, Upper: colorutil.HSV{H: 10, S: 110, V: 110}}, bands[0])
	assert.Equal(t, HSVRange{Lower: colorutil.HSV{H: 165, S: 90, V: 90}, Upper: colorutil.HSV{H: 180, S: 110, V: 110}}, bands[1])
}

func TestDeriveRangeSingleBand(t *testing.T) {
	bands := DeriveRange(colorutil.HSV{H: 90, S: 10, V: 250}, 25)
	require.Len(t, bands, 1)
	assert.Equal(t, colorutil.HSV{H: 65, S: 0, V: 225}, bands[0].Lower)
	assert.Equal(t, colorutil.HSV{H: 115, S: 35, V: 255}, bands[0].Upper)
}

func TestConfigValidate(t *testing.T) {
	def := DefaultConfig()
	require.NoError(t, def.Validate())
	assert.Equal(t, StrategyWhiteHSV, def.Strategy)
	assert.Equal(t, 200, def.Threshold)
	assert.Equal(t, 25, def.Tolerance)

	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"normal min", def.WithStrategy(StrategyNormal).WithThreshold(50), true},
		{"normal max", def.WithStrategy(StrategyNormal).WithThreshold(245), true},
		{"below range", def.WithStrategy(StrategyInverse).WithThreshold(45), false},
		{"off step", def.WithStrategy(StrategyAdaptive).WithThreshold(201), false},
		{"bounds swapped", def.WithHSV(colorutil.HSV{V: 250}, colorutil.HSV{H: 180, S: 50, V: 200}), false},
		{"hue too large", def.WithHSV(colorutil.HSV{}, colorutil.HSV{H: 181, S: 255, V: 255}), false},
		{"eyedropper no sample", def.WithStrategy(StrategyEyedropper), false},
		{"eyedropper", def.WithSample(colorutil.HSV{H: 10, S: 10, V: 10}), true},
		{"tolerance off step", def.WithSample(colorutil.HSV{}).WithTolerance(12), false},
		{"tolerance too large", def.WithSample(colorutil.HSV{}).WithTolerance(55), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range Strategies {
		got, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStrategy("sepia")
	assert.Error(t, err)
}

// scene draws a fg rectangle on a bg canvas.
func scene(bg, fg color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 120, 90))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(30, 25, 90, 65), image.NewUniform(fg), image.Point{}, draw.Src)
	return img
}

func maskPixels(t *testing.T, b vision.Backend, m vision.Mat) *image.Gray {
	t.Helper()
	img, err := b.ToImage(m)
	require.NoError(t, err)
	return img.(*image.Gray)
}

func runSegment(t *testing.T, img image.Image, cfg Config) (*image.Gray, int) {
	t.Helper()
	b := raster.New()
	src, err := b.FromImage(img)
	require.NoError(t, err)
	defer src.Close()

	mask, err := NewOrchestrator(b).Segment(context.Background(), src, cfg)
	require.NoError(t, err)
	defer mask.Close()

	contours, err := b.FindExternalContours(mask)
	require.NoError(t, err)
	return maskPixels(t, b, mask), len(contours)
}

func TestSegmentStrategies(t *testing.T) {
	dark := color.RGBA{R: 40, G: 40, B: 40, A: 255}
	light := color.RGBA{R: 250, G: 250, B: 250, A: 255}

	t.Run("white", func(t *testing.T) {
		mask, n := runSegment(t, scene(dark, light), DefaultConfig())
		assert.Equal(t, 1, n)
		assert.Equal(t, uint8(255), mask.GrayAt(60, 45).Y)
		assert.Equal(t, uint8(0), mask.GrayAt(5, 5).Y)
	})
	t.Run("normal", func(t *testing.T) {
		mask, n := runSegment(t, scene(dark, light), DefaultConfig().WithStrategy(StrategyNormal))
		assert.Equal(t, 1, n)
		assert.Equal(t, uint8(255), mask.GrayAt(60, 45).Y)
		assert.Equal(t, uint8(0), mask.GrayAt(5, 5).Y)
	})
	t.Run("inverse", func(t *testing.T) {
		mask, _ := runSegment(t, scene(dark, light), DefaultConfig().WithStrategy(StrategyInverse))
		assert.Equal(t, uint8(0), mask.GrayAt(60, 45).Y)
		assert.Equal(t, uint8(255), mask.GrayAt(5, 5).Y)
	})
	t.Run("adaptive", func(t *testing.T) {
		mask, _ := runSegment(t, scene(dark, light), DefaultConfig().WithStrategy(StrategyAdaptive))
		assert.Equal(t, uint8(255), mask.GrayAt(60, 45).Y)
	})
	t.Run("eyedropper", func(t *testing.T) {
		red := color.RGBA{R: 220, G: 20, B: 20, A: 255}
		img := scene(color.RGBA{R: 128, G: 128, B: 128, A: 255}, red)
		sample := colorutil.ToHSV(red)
		mask, n := runSegment(t, img, DefaultConfig().WithSample(sample))
		assert.Equal(t, 1, n)
		assert.Equal(t, uint8(255), mask.GrayAt(60, 45).Y)
		assert.Equal(t, uint8(0), mask.GrayAt(5, 5).Y)
	})
}

func TestSegmentRejectsInvalidConfig(t *testing.T) {
	b := raster.New()
	src, err := b.FromImage(scene(color.RGBA{A: 255}, color.RGBA{A: 255}))
	require.NoError(t, err)
	_, err = NewOrchestrator(b).Segment(context.Background(), src, DefaultConfig().WithStrategy(StrategyEyedropper))
	assert.Error(t, err)
}

func TestSegmentHonorsCancellation(t *testing.T) {
	b := raster.New()
	src, err := b.FromImage(scene(color.RGBA{A: 255}, color.RGBA{R: 255, G: 255, B: 255, A: 255}))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewOrchestrator(b).Segment(ctx, src, DefaultConfig().WithStrategy(StrategyNormal))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSampleHSV(t *testing.T) {
	b := raster.New()
	src, err := b.FromImage(scene(color.RGBA{A: 255}, color.RGBA{G: 255, A: 255}))
	require.NoError(t, err)
	hsv, err := b.ToHSV(src)
	require.NoError(t, err)

	got, err := SampleHSV(b, hsv, 60, 45)
	require.NoError(t, err)
	assert.Equal(t, 60, got.H)

	for _, p := range []image.Point{{-1, 0}, {0, -1}, {120, 0}, {0, 90}} {
		_, err := SampleHSV(b, hsv, p.X, p.Y)
		assert.ErrorIs(t, err, ErrOutOfBoundsSample)
	}
}
