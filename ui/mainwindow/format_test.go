package mainwindow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mold-measure/internal/mold"
)

func TestParsePositive(t *testing.T) {
	v, err := parsePositive("12,5")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	_, err = parsePositive("0")
	assert.Error(t, err)
	_, err = parsePositive("ten")
	assert.Error(t, err)
}

func TestFormatResult(t *testing.T) {
	res, err := mold.Aggregate([]mold.Mold{
		{ID: 1, Type: mold.TypeCut, Multiplier: 2, AreaCm2: 10},
		{ID: 2, Type: mold.TypeOther, Multiplier: 1, AreaCm2: 5},
	})
	require.NoError(t, err)

	want := "Type     Count       Area      Total\n" +
		"Cut          1      10.00      20.00\n" +
		"Other        1       5.00       5.00\n" +
		"Total        2      15.00      25.00"
	assert.Equal(t, want, formatResult(res))
}

func TestMoldRow(t *testing.T) {
	m := mold.Mold{ID: 3, Type: mold.TypeLining, Multiplier: 1.5, AreaCm2: 42.126}
	assert.Equal(t, "#3 Lining x1.5 42.13 cm²", moldRow(m))
}
