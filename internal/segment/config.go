// Package segment turns a photograph into a binary foreground mask using one
// of several thresholding or color-range strategies.
package segment

import (
	"fmt"

	"mold-measure/pkg/colorutil"
)

// Strategy selects how foreground pixels are separated from the background.
type Strategy int

const (
	// StrategyNormal keeps pixels at or above the gray threshold (light molds
	// on a dark table).
	StrategyNormal Strategy = iota
	// StrategyInverse keeps pixels below the gray threshold.
	StrategyInverse
	// StrategyAdaptive combines a local adaptive threshold with the fixed one.
	StrategyAdaptive
	// StrategyWhiteHSV keeps pixels inside the configured HSV bounds.
	StrategyWhiteHSV
	// StrategyEyedropper keeps pixels close to a color sampled from the image.
	StrategyEyedropper
)

// Strategies lists every strategy in menu order.
var Strategies = []Strategy{StrategyNormal, StrategyInverse, StrategyAdaptive, StrategyWhiteHSV, StrategyEyedropper}

func (s Strategy) String() string {
	switch s {
	case StrategyNormal:
		return "normal"
	case StrategyInverse:
		return "inverse"
	case StrategyAdaptive:
		return "adaptive"
	case StrategyWhiteHSV:
		return "white"
	case StrategyEyedropper:
		return "eyedropper"
	default:
		return "unknown"
	}
}

// Label is the human-readable name shown in the mode selector.
func (s Strategy) Label() string {
	switch s {
	case StrategyNormal:
		return "Light molds on dark background"
	case StrategyInverse:
		return "Dark molds on light background"
	case StrategyAdaptive:
		return "Adaptive (uneven lighting)"
	case StrategyWhiteHSV:
		return "White molds (HSV)"
	case StrategyEyedropper:
		return "Eyedropper color"
	default:
		return "Unknown"
	}
}

// ParseStrategy accepts the String form of a strategy.
func ParseStrategy(name string) (Strategy, error) {
	for _, s := range Strategies {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown segmentation mode %q", name)
}

// Slider domains.
const (
	ThresholdMin  = 50
	ThresholdMax  = 245
	ThresholdStep = 5

	ToleranceMin  = 5
	ToleranceMax  = 50
	ToleranceStep = 5
)

// Config parameterizes one segmentation pass.
type Config struct {
	Strategy Strategy

	// Threshold is the gray level used by the normal, inverse and adaptive
	// strategies.
	Threshold int

	// HSV bounds for StrategyWhiteHSV.
	Lower colorutil.HSV
	Upper colorutil.HSV

	// Tolerance is the per-channel half-width of the eyedropper range.
	Tolerance int

	// Sampled is the eyedropper color. It is only meaningful with
	// StrategyEyedropper and HasSample set.
	Sampled   colorutil.HSV
	HasSample bool
}

// DefaultConfig returns the settings for white molds photographed on a
// darker surface.
func DefaultConfig() Config {
	return Config{
		Strategy:  StrategyWhiteHSV,
		Threshold: 200,
		// Low saturation, high value: white and light gray material.
		Lower:     colorutil.HSV{H: 0, S: 0, V: 200},
		Upper:     colorutil.HSV{H: colorutil.HueMax, S: 50, V: colorutil.ValMax},
		Tolerance: 25,
	}
}

// WithStrategy returns a copy of c using strategy s.
func (c Config) WithStrategy(s Strategy) Config {
	c.Strategy = s
	return c
}

// WithThreshold returns a copy of c with a new gray threshold.
func (c Config) WithThreshold(t int) Config {
	c.Threshold = t
	return c
}

// WithHSV returns a copy of c with new white-mode bounds.
func (c Config) WithHSV(lower, upper colorutil.HSV) Config {
	c.Lower = lower
	c.Upper = upper
	return c
}

// WithTolerance returns a copy of c with a new eyedropper tolerance.
func (c Config) WithTolerance(tol int) Config {
	c.Tolerance = tol
	return c
}

// WithSample returns a copy of c switched to the eyedropper strategy for
// the sampled color.
func (c Config) WithSample(hsv colorutil.HSV) Config {
	c.Strategy = StrategyEyedropper
	c.Sampled = hsv
	c.HasSample = true
	return c
}

// Validate checks every field the selected strategy reads.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyNormal, StrategyInverse, StrategyAdaptive:
		if err := checkStepped("threshold", c.Threshold, ThresholdMin, ThresholdMax, ThresholdStep); err != nil {
			return err
		}
	case StrategyWhiteHSV:
		if !c.Lower.Valid() || !c.Upper.Valid() {
			return fmt.Errorf("hsv bounds out of range: %s..%s", c.Lower, c.Upper)
		}
		if c.Lower.H > c.Upper.H || c.Lower.S > c.Upper.S || c.Lower.V > c.Upper.V {
			return fmt.Errorf("hsv lower bound %s exceeds upper bound %s", c.Lower, c.Upper)
		}
	case StrategyEyedropper:
		if err := checkStepped("tolerance", c.Tolerance, ToleranceMin, ToleranceMax, ToleranceStep); err != nil {
			return err
		}
		if !c.HasSample {
			return fmt.Errorf("eyedropper mode needs a sampled color")
		}
		if !c.Sampled.Valid() {
			return fmt.Errorf("sampled color out of range: %s", c.Sampled)
		}
	default:
		return fmt.Errorf("unknown strategy %d", int(c.Strategy))
	}
	return nil
}

func checkStepped(name string, v, lo, hi, step int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s %d outside %d..%d", name, v, lo, hi)
	}
	if (v-lo)%step != 0 {
		return fmt.Errorf("%s %d is not a multiple of %d from %d", name, v, step, lo)
	}
	return nil
}
