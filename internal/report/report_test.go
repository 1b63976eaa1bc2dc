package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mold-measure/internal/measure"
	"mold-measure/internal/mold"
	"mold-measure/internal/segment"
	"mold-measure/internal/session"
	"mold-measure/pkg/colorutil"
	"mold-measure/pkg/geometry"
)

func sample() (session.CalibrationInfo, []mold.Mold) {
	calib := session.CalibrationInfo{
		Points:     []geometry.Point2D{geometry.NewPoint2D(0, 0), geometry.NewPoint2D(100, 0)},
		DistanceCm: 10,
		Factor:     0.1,
		HasFactor:  true,
	}
	molds := []mold.Mold{
		{ID: 1, Type: mold.TypeCut, Multiplier: 2, AreaCm2: 10, PixelArea: 1000,
			Dimensions: measure.Dimensions{WidthCm: 2, HeightCm: 5}},
		{ID: 2, Type: mold.TypeLining, Multiplier: 1, AreaCm2: 4, PixelArea: 400},
		{ID: 3, Type: mold.TypeCut, Multiplier: 1, AreaCm2: 6, PixelArea: 600},
	}
	return calib, molds
}

func TestNew(t *testing.T) {
	calib, molds := sample()
	f := New(calib, segment.DefaultConfig(), molds)

	assert.Equal(t, FormatVersion, f.Version)
	assert.Equal(t, 0.1, f.Calibration.CmPerPixel)
	require.Len(t, f.Molds, 3)
	assert.Equal(t, "cut", f.Molds[0].Type)
	assert.Equal(t, 20.0, f.Molds[0].TotalCm2)
	assert.Equal(t, 5.0, f.Molds[0].LongCm)
	assert.Equal(t, 2.0, f.Molds[0].ShortCm)

	assert.Equal(t, []Total{
		{Type: "cut", Count: 2, AreaCm2: 16, TotalCm2: 26},
		{Type: "lining", Count: 1, AreaCm2: 4, TotalCm2: 4},
		{Type: "total", Count: 3, AreaCm2: 20, TotalCm2: 30},
	}, f.Totals)

	assert.Equal(t, "white", f.Settings.Strategy)
	require.NotNil(t, f.Settings.Lower)
	assert.Equal(t, segment.DefaultConfig().Lower, *f.Settings.Lower)
	assert.Zero(t, f.Settings.Threshold)
}

func TestNewWithoutMolds(t *testing.T) {
	f := New(session.CalibrationInfo{DistanceCm: 10}, segment.DefaultConfig().WithStrategy(segment.StrategyNormal), nil)
	assert.Empty(t, f.Molds)
	assert.Empty(t, f.Totals)
	assert.Zero(t, f.Calibration.CmPerPixel)
	assert.Equal(t, 200, f.Settings.Threshold)
	assert.Nil(t, f.Settings.Lower)
}

func TestEyedropperSettings(t *testing.T) {
	cfg := segment.DefaultConfig().WithSample(colorutil.HSV{H: 5, S: 200, V: 180})
	s := settingsFor(cfg)
	assert.Equal(t, "eyedropper", s.Strategy)
	require.NotNil(t, s.Sample)
	assert.Equal(t, 5, s.Sample.H)
	assert.Equal(t, cfg.Tolerance, s.Tolerance)
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "table.molds.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	calib, molds := sample()
	f := New(calib, segment.DefaultConfig(), molds)
	f.SetImage(path, filepath.Join(dir, "photos", "table.jpg"))
	assert.Equal(t, filepath.Join("..", "photos", "table.jpg"), f.ImagePath)
	require.NoError(t, f.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, float64(FormatVersion), raw["version"])
	assert.Len(t, raw["molds"], 3)
	assert.Contains(t, raw, "totals")
	assert.NotContains(t, raw["settings"], "sample")
}
