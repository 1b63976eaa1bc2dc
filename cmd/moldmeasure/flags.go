package main

import (
	"fmt"
	"strconv"
	"strings"

	"mold-measure/pkg/colorutil"
	"mold-measure/pkg/geometry"
)

// parsePoint reads "x,y" in image pixels.
func parsePoint(s string) (geometry.Point2D, error) {
	v, err := parseFloats(s, 2)
	if err != nil {
		return geometry.Point2D{}, fmt.Errorf("point %q: %w", s, err)
	}
	return geometry.NewPoint2D(v[0], v[1]), nil
}

// parseHSV reads "h,s,v" on the 0..180, 0..255, 0..255 scale.
func parseHSV(s string) (colorutil.HSV, error) {
	v, err := parseFloats(s, 3)
	if err != nil {
		return colorutil.HSV{}, fmt.Errorf("hsv %q: %w", s, err)
	}
	c := colorutil.HSV{H: int(v[0]), S: int(v[1]), V: int(v[2])}
	for i, f := range v {
		if f != float64(int(f)) {
			return colorutil.HSV{}, fmt.Errorf("hsv %q: component %d is not an integer", s, i+1)
		}
	}
	if !c.Valid() {
		return colorutil.HSV{}, fmt.Errorf("hsv %q: out of range", s)
	}
	return c, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated numbers", n)
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
