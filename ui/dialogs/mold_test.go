package dialogs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mold-measure/internal/mold"
)

func TestParseMultiplier(t *testing.T) {
	v, err := parseMultiplier(" 2,5 ")
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	for _, bad := range []string{"", "x", "0", "-1", "NaN"} {
		_, err := parseMultiplier(bad)
		assert.ErrorIs(t, err, mold.ErrInvalidMultiplier, bad)
	}
}
