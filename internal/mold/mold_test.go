package mold

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mold-measure/internal/measure"
	"mold-measure/pkg/geometry"
)

func fixture(t *testing.T) *Collection {
	t.Helper()
	c := NewCollection()
	sq := geometry.RectPolygon(0, 0, 10, 10)
	molds := []Mold{
		c.Create(sq, 100, 0.1),
		c.Create(sq, 100, 0.1),
		c.Create(sq, 100, 0.1),
	}
	return c.Replace(molds)
}

func TestCreateDefaults(t *testing.T) {
	c := NewCollection()
	m := c.Create(geometry.RectPolygon(0, 0, 200, 100), 20000, 0.05)
	assert.Equal(t, 1, m.ID)
	assert.Equal(t, TypeCut, m.Type)
	assert.Equal(t, 1.0, m.Multiplier)
	assert.InDelta(t, 50.0, m.AreaCm2, 1e-9)
	assert.InDelta(t, 10.0, m.Dimensions.Long(), 1e-9)

	next := c.Create(geometry.RectPolygon(0, 0, 1, 1), 1, 1)
	assert.Equal(t, 2, next.ID)
}

func TestCreateUsesEstimatedArea(t *testing.T) {
	c := NewCollection()
	quad := []geometry.Point2D{
		geometry.NewPoint2D(0, 0),
		geometry.NewPoint2D(100, 0),
		geometry.NewPoint2D(100, 50),
		geometry.NewPoint2D(0, 100),
	}
	m := c.Create(quad, geometry.Area(quad), 0.1)
	want := measure.Estimate(quad, 0.1)
	assert.InDelta(t, want.AreaCm2, m.AreaCm2, 1e-9)
	assert.Equal(t, want, m.Dimensions)
	assert.Greater(t, math.Abs(m.AreaCm2-m.PixelArea*0.01), 1.0, "pixel area is not used for cm²")
}

func TestIDsAreUniqueAcrossPasses(t *testing.T) {
	c := fixture(t)
	again := c.Replace([]Mold{c.Create(nil, 1, 1)})
	m := again.Molds()[0]
	assert.Equal(t, 4, m.ID)
}

func TestAggregateExample(t *testing.T) {
	molds := []Mold{
		{ID: 1, Type: TypeCut, AreaCm2: 2, Multiplier: 1},
		{ID: 2, Type: TypeCut, AreaCm2: 3, Multiplier: 2},
		{ID: 3, Type: TypeLining, AreaCm2: 5, Multiplier: 1},
	}
	r, err := Aggregate(molds)
	require.NoError(t, err)
	assert.Equal(t, Summary{Count: 2, TotalArea: 5, TotalAreaWithMultiplier: 8}, r.ByType[TypeCut])
	assert.Equal(t, Summary{Count: 1, TotalArea: 5, TotalAreaWithMultiplier: 5}, r.ByType[TypeLining])
	assert.Equal(t, Summary{Count: 3, TotalArea: 10, TotalAreaWithMultiplier: 13}, r.Total)
	assert.Equal(t, []Type{TypeCut, TypeLining}, r.Present())
}

func TestAggregateEmpty(t *testing.T) {
	_, err := Aggregate(nil)
	assert.ErrorIs(t, err, ErrNoMolds)
	_, err = NewCollection().Aggregate()
	assert.ErrorIs(t, err, ErrNoMolds)
}

func TestDelete(t *testing.T) {
	c := fixture(t)
	c, err := c.Select(2)
	require.NoError(t, err)
	before := c.Molds()

	after, err := c.Delete(2)
	require.NoError(t, err)
	assert.Equal(t, []Mold{before[0], before[2]}, after.Molds())
	_, ok := after.Selected()
	assert.False(t, ok)
	assert.Equal(t, 3, c.Len(), "receiver unchanged")

	_, err = after.Delete(2)
	assert.ErrorIs(t, err, ErrMoldNotFound)
}

func TestDeleteKeepsOtherSelection(t *testing.T) {
	c := fixture(t)
	c, err := c.Select(3)
	require.NoError(t, err)
	after, err := c.Delete(1)
	require.NoError(t, err)
	sel, ok := after.Selected()
	require.True(t, ok)
	assert.Equal(t, 3, sel.ID)
}

func TestSetMultiplier(t *testing.T) {
	c := fixture(t)
	for _, v := range []float64{0, -2, math.NaN(), math.Inf(1)} {
		same, err := c.SetMultiplier(1, v)
		assert.ErrorIs(t, err, ErrInvalidMultiplier)
		assert.Same(t, c, same)
	}
	_, err := c.SetMultiplier(99, 2)
	assert.ErrorIs(t, err, ErrMoldNotFound)

	next, err := c.SetMultiplier(2, 3)
	require.NoError(t, err)
	m, _ := next.Get(2)
	assert.Equal(t, 3.0, m.Multiplier)
	old, _ := c.Get(2)
	assert.Equal(t, 1.0, old.Multiplier)
}

func TestSnapshotsAreIndependent(t *testing.T) {
	c := fixture(t)
	first, err := c.Aggregate()
	require.NoError(t, err)

	c, err = c.SetMultiplier(1, 4)
	require.NoError(t, err)
	c, err = c.SetType(2, TypeOther)
	require.NoError(t, err)
	second, err := c.Aggregate()
	require.NoError(t, err)

	assert.Equal(t, 3, first.ByType[TypeCut].Count)
	assert.InDelta(t, 3.0, first.Total.TotalAreaWithMultiplier, 1e-9)
	assert.Equal(t, 2, second.ByType[TypeCut].Count)
	assert.InDelta(t, 6.0, second.Total.TotalAreaWithMultiplier, 1e-9)
}

func TestParseType(t *testing.T) {
	for _, ty := range Types {
		got, err := ParseType(ty.String())
		require.NoError(t, err)
		assert.Equal(t, ty, got)
		assert.NotEqual(t, ty.Color(), Type(99).Color())
	}
	_, err := ParseType("felt")
	assert.Error(t, err)
}
