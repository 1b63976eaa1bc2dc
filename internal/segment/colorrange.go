package segment

import (
	"errors"
	"fmt"

	"mold-measure/internal/vision"
	"mold-measure/pkg/colorutil"
)

// ErrOutOfBoundsSample reports an eyedropper click outside the image.
var ErrOutOfBoundsSample = errors.New("sample point outside image")

// HSVRange is an inclusive box in HSV space.
type HSVRange struct {
	Lower colorutil.HSV
	Upper colorutil.HSV
}

func (r HSVRange) String() string {
	return fmt.Sprintf("%s..%s", r.Lower, r.Upper)
}

// Contains reports whether c lies inside the range.
func (r HSVRange) Contains(c colorutil.HSV) bool {
	return c.H >= r.Lower.H && c.H <= r.Upper.H &&
		c.S >= r.Lower.S && c.S <= r.Upper.S &&
		c.V >= r.Lower.V && c.V <= r.Upper.V
}

// DeriveRange returns the HSV bands that match colors within tolerance of
// sample. Hue is circular (0 and 180 are both red), so a sample near either
// end yields two bands whose masks the caller ORs together.
func DeriveRange(sample colorutil.HSV, tolerance int) []HSVRange {
	lower := colorutil.HSV{
		H: clamp(sample.H-tolerance, 0, colorutil.HueMax),
		S: clamp(sample.S-tolerance, 0, colorutil.SatMax),
		V: clamp(sample.V-tolerance, 0, colorutil.ValMax),
	}
	upper := colorutil.HSV{
		H: clamp(sample.H+tolerance, 0, colorutil.HueMax),
		S: clamp(sample.S+tolerance, 0, colorutil.SatMax),
		V: clamp(sample.V+tolerance, 0, colorutil.ValMax),
	}

	if sample.H >= tolerance && sample.H <= colorutil.HueMax-tolerance {
		return []HSVRange{{Lower: lower, Upper: upper}}
	}

	// Hue bounds measured around the circle.
	lowH := sample.H - tolerance
	if lowH < 0 {
		lowH += colorutil.HueMax
	}
	highH := sample.H + tolerance
	if highH > colorutil.HueMax {
		highH -= colorutil.HueMax
	}

	lowBand := HSVRange{Lower: lower, Upper: upper}
	lowBand.Lower.H = 0
	lowBand.Upper.H = clamp(max(tolerance, highH), 0, colorutil.HueMax)

	highBand := HSVRange{Lower: lower, Upper: upper}
	highBand.Lower.H = clamp(min(colorutil.HueMax-tolerance, lowH), 0, colorutil.HueMax)
	highBand.Upper.H = colorutil.HueMax

	return []HSVRange{lowBand, highBand}
}

// SampleHSV reads the HSV color at (x, y) of an HSV buffer, rejecting
// points outside the image before any pixel is touched.
func SampleHSV(b vision.Backend, hsv vision.Mat, x, y int) (colorutil.HSV, error) {
	w, h := hsv.Size()
	if x < 0 || y < 0 || x >= w || y >= h {
		return colorutil.HSV{}, fmt.Errorf("%w: (%d, %d) not in %dx%d", ErrOutOfBoundsSample, x, y, w, h)
	}
	return b.HSVAt(hsv, x, y)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
