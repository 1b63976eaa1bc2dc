package colorutil

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToHSV(t *testing.T) {
	tests := []struct {
		name string
		in   color.Color
		want HSV
	}{
		{"red", color.RGBA{R: 255, A: 255}, HSV{H: 0, S: 255, V: 255}},
		{"green", color.RGBA{G: 255, A: 255}, HSV{H: 60, S: 255, V: 255}},
		{"blue", color.RGBA{B: 255, A: 255}, HSV{H: 120, S: 255, V: 255}},
		{"white", White, HSV{H: 0, S: 0, V: 255}},
		{"black", Black, HSV{}},
		{"magenta-ish", color.RGBA{R: 255, B: 20, A: 255}, HSV{H: 178, S: 255, V: 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToHSV(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestWithAlpha(t *testing.T) {
	c := WithAlpha(White, 128)
	assert.Equal(t, color.RGBA{R: 128, G: 128, B: 128, A: 128}, c)
}
