package calibration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mold-measure/pkg/geometry"
)

func TestComputeFactorRoundTrip(t *testing.T) {
	pairs := []struct {
		p0, p1 geometry.Point2D
		d      float64
	}{
		{geometry.NewPoint2D(0, 0), geometry.NewPoint2D(100, 0), 10},
		{geometry.NewPoint2D(12.5, 40), geometry.NewPoint2D(300.25, 410.75), 25},
		{geometry.NewPoint2D(5, 5), geometry.NewPoint2D(5, 5.5), 0.1},
		{geometry.NewPoint2D(-20, 3), geometry.NewPoint2D(1800, 2400), 120},
	}
	for _, pc := range pairs {
		f, err := ComputeFactor(pc.p0, pc.p1, pc.d)
		require.NoError(t, err)
		assert.InDelta(t, pc.d, f*pc.p0.Distance(pc.p1), 1e-9)
	}
}

func TestComputeFactorDegenerate(t *testing.T) {
	p := geometry.NewPoint2D(42, 17)
	_, err := ComputeFactor(p, p, 10)
	assert.ErrorIs(t, err, ErrInvalidCalibration)
}

func TestComputeFactorBadDistance(t *testing.T) {
	p0, p1 := geometry.NewPoint2D(0, 0), geometry.NewPoint2D(10, 0)
	for _, d := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := ComputeFactor(p0, p1, d)
		assert.ErrorIs(t, err, ErrInvalidDistance)
		assert.ErrorIs(t, err, ErrInvalidCalibration)
	}
}

func TestStateLifecycle(t *testing.T) {
	s := NewState()
	assert.Equal(t, DefaultDistanceCm, s.Distance())

	_, ok := s.Factor()
	assert.False(t, ok)

	require.NoError(t, s.AddPoint(geometry.NewPoint2D(0, 0)))
	_, ok = s.Factor()
	assert.False(t, ok, "one point never defines a factor")

	require.NoError(t, s.AddPoint(geometry.NewPoint2D(200, 0)))
	f, ok := s.Factor()
	require.True(t, ok)
	assert.InDelta(t, 0.05, f, 1e-12)

	// Editing the distance reuses the stored pair.
	require.NoError(t, s.SetDistance(20))
	f, ok = s.Factor()
	require.True(t, ok)
	assert.InDelta(t, 0.1, f, 1e-12)
	assert.Len(t, s.Points(), 2)

	// A third click starts a new pair.
	require.NoError(t, s.AddPoint(geometry.NewPoint2D(5, 5)))
	assert.Len(t, s.Points(), 1)
	_, ok = s.Factor()
	assert.False(t, ok)

	s.Reset()
	assert.Empty(t, s.Points())
	assert.Equal(t, 20.0, s.Distance())
}

func TestStateRejectsDegeneratePair(t *testing.T) {
	s := NewState()
	p := geometry.NewPoint2D(10, 10)
	require.NoError(t, s.AddPoint(p))

	err := s.AddPoint(p)
	assert.ErrorIs(t, err, ErrInvalidCalibration)
	assert.Len(t, s.Points(), 1)
	_, ok := s.Factor()
	assert.False(t, ok)
}

func TestSetDistanceRejectsNonPositive(t *testing.T) {
	s := NewState()
	require.NoError(t, s.AddPoint(geometry.NewPoint2D(0, 0)))
	require.NoError(t, s.AddPoint(geometry.NewPoint2D(0, 50)))
	before, _ := s.Factor()

	assert.ErrorIs(t, s.SetDistance(0), ErrInvalidDistance)
	after, ok := s.Factor()
	assert.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, DefaultDistanceCm, s.Distance())
}

func TestEstimateDistance(t *testing.T) {
	got := EstimateDistance(geometry.NewPoint2D(0, 0), geometry.NewPoint2D(30, 40), 0.2)
	assert.InDelta(t, 10.0, got, 1e-12)
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewState()
	require.NoError(t, s.AddPoint(geometry.NewPoint2D(1, 1)))
	c := s.Clone()
	require.NoError(t, s.AddPoint(geometry.NewPoint2D(2, 2)))
	assert.Len(t, c.Points(), 1)
}
