// Package calibration derives the centimeters-per-pixel factor from two
// reference clicks on a ruler and a known physical distance.
package calibration

import (
	"errors"
	"fmt"
	"math"

	"mold-measure/pkg/geometry"
)

// DefaultDistanceCm is the reference distance offered before the user edits it.
const DefaultDistanceCm = 10.0

// minPixelDistance is the separation below which a point pair is degenerate.
const minPixelDistance = 1e-9

var (
	// ErrInvalidCalibration reports a degenerate point pair or reference distance.
	ErrInvalidCalibration = errors.New("invalid calibration")
	// ErrInvalidDistance reports a non-positive or non-finite reference distance.
	ErrInvalidDistance = fmt.Errorf("%w: reference distance must be a positive number of centimeters", ErrInvalidCalibration)
)

// ComputeFactor returns the centimeters represented by one pixel given two
// reference points knownDistanceCm apart.
func ComputeFactor(p0, p1 geometry.Point2D, knownDistanceCm float64) (float64, error) {
	if !(knownDistanceCm > 0) || math.IsInf(knownDistanceCm, 0) {
		return 0, ErrInvalidDistance
	}
	d := p0.Distance(p1)
	if d < minPixelDistance {
		return 0, fmt.Errorf("%w: points (%.1f, %.1f) and (%.1f, %.1f) coincide",
			ErrInvalidCalibration, p0.X, p0.Y, p1.X, p1.Y)
	}
	return knownDistanceCm / d, nil
}

// EstimateDistance converts the pixel span between two points into
// centimeters using factor. It backs the live guide shown while the second
// calibration point is being placed.
func EstimateDistance(p0, p1 geometry.Point2D, factor float64) float64 {
	return p0.Distance(p1) * factor
}

// State holds the calibration clicks of one session. The factor is kept in
// step with the points and distance: it is defined exactly when two points
// are held and they yield a valid factor.
type State struct {
	points     []geometry.Point2D
	distanceCm float64
	factor     float64
	hasFactor  bool
}

// NewState returns an empty calibration with the default reference distance.
func NewState() *State {
	return &State{distanceCm: DefaultDistanceCm}
}

// Points returns a copy of the clicks held (0, 1 or 2).
func (s *State) Points() []geometry.Point2D {
	out := make([]geometry.Point2D, len(s.points))
	copy(out, s.points)
	return out
}

// Distance returns the reference distance in centimeters.
func (s *State) Distance() float64 {
	return s.distanceCm
}

// Factor returns the current centimeters-per-pixel factor, if defined.
func (s *State) Factor() (float64, bool) {
	return s.factor, s.hasFactor
}

// AddPoint records a calibration click. A click after a complete pair starts
// a new pair. When the click completes a pair the factor is computed; a
// degenerate pair is rejected and leaves the state unchanged.
func (s *State) AddPoint(p geometry.Point2D) error {
	if len(s.points) >= 2 {
		s.points = []geometry.Point2D{p}
		s.factor, s.hasFactor = 0, false
		return nil
	}
	if len(s.points) == 0 {
		s.points = append(s.points, p)
		return nil
	}

	factor, err := ComputeFactor(s.points[0], p, s.distanceCm)
	if err != nil {
		return err
	}
	s.points = append(s.points, p)
	s.factor, s.hasFactor = factor, true
	return nil
}

// SetDistance updates the reference distance. With a full pair held, the
// factor is recomputed from the stored points.
func (s *State) SetDistance(distanceCm float64) error {
	if !(distanceCm > 0) || math.IsInf(distanceCm, 0) {
		return ErrInvalidDistance
	}
	if len(s.points) == 2 {
		factor, err := ComputeFactor(s.points[0], s.points[1], distanceCm)
		if err != nil {
			return err
		}
		s.factor, s.hasFactor = factor, true
	}
	s.distanceCm = distanceCm
	return nil
}

// Reset clears the points and factor. The reference distance is kept.
func (s *State) Reset() {
	s.points = nil
	s.factor, s.hasFactor = 0, false
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	c := *s
	c.points = s.Points()
	return &c
}
