// Package mold holds detected mold records and aggregates their areas.
package mold

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"mold-measure/internal/measure"
	"mold-measure/pkg/colorutil"
	"mold-measure/pkg/geometry"
)

var (
	// ErrMoldNotFound reports an id that is not in the collection.
	ErrMoldNotFound = errors.New("mold not found")
	// ErrInvalidMultiplier reports a multiplier that is not a positive number.
	ErrInvalidMultiplier = errors.New("multiplier must be a positive number")
	// ErrNoMolds reports an aggregation over an empty list.
	ErrNoMolds = errors.New("no molds detected")
)

// Type classifies a mold piece.
type Type int

const (
	TypeCut Type = iota
	TypeLining
	TypeOther
)

// Types lists every mold type in display order.
var Types = []Type{TypeCut, TypeLining, TypeOther}

func (t Type) String() string {
	switch t {
	case TypeCut:
		return "cut"
	case TypeLining:
		return "lining"
	case TypeOther:
		return "other"
	default:
		return "unknown"
	}
}

// Label is the display name.
func (t Type) Label() string {
	switch t {
	case TypeCut:
		return "Cut"
	case TypeLining:
		return "Lining"
	case TypeOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// Color is the overlay color for the type.
func (t Type) Color() color.RGBA {
	switch t {
	case TypeCut:
		return colorutil.Green
	case TypeLining:
		return colorutil.Purple
	case TypeOther:
		return colorutil.Orange
	default:
		return colorutil.Red
	}
}

// ParseType accepts either the String or Label form of a type.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if s == t.String() || s == t.Label() {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown mold type %q", s)
}

// Mold is one detected piece. ID, Contour, PixelArea, AreaCm2 and
// Dimensions are fixed at detection; Type and Multiplier are user edits.
type Mold struct {
	ID         int
	Contour    []geometry.Point2D
	Type       Type
	Multiplier float64
	PixelArea  float64
	// AreaCm2 uses the calibration factor active when the mold was detected.
	AreaCm2    float64
	Dimensions measure.Dimensions
}

// TotalArea is the area counted Multiplier times.
func (m Mold) TotalArea() float64 {
	return m.AreaCm2 * m.Multiplier
}

func validMultiplier(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
