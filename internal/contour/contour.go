// Package contour turns a foreground mask into simplified region outlines,
// dropping regions too small to be a mold.
package contour

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"mold-measure/internal/vision"
	"mold-measure/pkg/geometry"
)

// ErrEmptyContour reports a boundary that simplified to nothing. It is
// logged and skipped, never returned from Process.
var ErrEmptyContour = errors.New("empty contour")

// epsilonFraction scales the boundary length into the simplification tolerance.
const epsilonFraction = 0.01

// Params sets the minimum region size. A region survives only if its pixel
// area exceeds max(AbsoluteFloor, width*height*RelativeFraction).
type Params struct {
	AbsoluteFloor    float64
	RelativeFraction float64
}

var (
	// FullImageParams filters a whole-image detection pass.
	FullImageParams = Params{AbsoluteFloor: 1000, RelativeFraction: 0.002}
	// EyedropperParams filters color-picked detections, which tend to be
	// smaller and tighter.
	EyedropperParams = Params{AbsoluteFloor: 500, RelativeFraction: 0.001}
)

// MinArea returns the area threshold for an image of the given size.
func (p Params) MinArea(width, height int) float64 {
	return math.Max(p.AbsoluteFloor, float64(width)*float64(height)*p.RelativeFraction)
}

// Region is one detected outline and the pixel area of its raw boundary.
type Region struct {
	Contour   []geometry.Point2D
	PixelArea float64
}

// PostProcessor extracts regions with an injected backend.
type PostProcessor struct {
	backend vision.Backend
}

// NewPostProcessor returns a post-processor that runs on b.
func NewPostProcessor(b vision.Backend) *PostProcessor {
	return &PostProcessor{backend: b}
}

// Process extracts the external boundaries of mask, drops those not larger
// than the minimum area, and simplifies the rest. Output keeps the
// backend's boundary order.
func (p *PostProcessor) Process(mask vision.Mat, params Params) ([]Region, error) {
	boundaries, err := p.backend.FindExternalContours(mask)
	if err != nil {
		return nil, fmt.Errorf("find contours: %w", err)
	}
	w, h := mask.Size()
	minArea := params.MinArea(w, h)

	regions := make([]Region, 0, len(boundaries))
	small := 0
	for i, boundary := range boundaries {
		area := p.backend.ContourArea(boundary)
		if area <= minArea {
			small++
			continue
		}
		eps := epsilonFraction * p.backend.ArcLength(boundary, true)
		simple := p.backend.ApproxPoly(boundary, eps, true)
		if len(simple) == 0 {
			log.Warn().Err(ErrEmptyContour).Int("index", i).Float64("area", area).
				Msg("Contour: skipping boundary")
			continue
		}
		regions = append(regions, Region{Contour: simple, PixelArea: area})
	}

	log.Debug().
		Int("boundaries", len(boundaries)).
		Int("too_small", small).
		Int("kept", len(regions)).
		Float64("min_area", minArea).
		Msg("Contour: post-processed mask")
	return regions, nil
}
