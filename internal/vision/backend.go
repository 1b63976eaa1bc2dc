// Package vision defines the image-processing capabilities the measurement
// pipeline needs and the lifecycle of the backend that provides them.
package vision

import (
	"errors"
	"image"

	"mold-measure/pkg/colorutil"
	"mold-measure/pkg/geometry"
)

// ErrBackendUnavailable reports that no ready backend can serve a request.
var ErrBackendUnavailable = errors.New("vision backend unavailable")

// Mat is an image buffer owned by a Backend. Buffers may hold native memory
// and must be closed; see Scope.
type Mat interface {
	Size() (width, height int)
	Close() error
}

// MorphOp selects a morphological operation.
type MorphOp int

const (
	// MorphClose is a dilation followed by an erosion; it fills small gaps.
	MorphClose MorphOp = iota
	// MorphOpen is an erosion followed by a dilation; it removes small specks.
	MorphOpen
	// MorphDilate grows foreground regions.
	MorphDilate
	// MorphErode shrinks foreground regions.
	MorphErode
)

func (op MorphOp) String() string {
	switch op {
	case MorphClose:
		return "close"
	case MorphOpen:
		return "open"
	case MorphDilate:
		return "dilate"
	case MorphErode:
		return "erode"
	default:
		return "unknown"
	}
}

// Backend is the set of pixel primitives the pipeline relies on. Every
// method that returns a Mat hands ownership of it to the caller.
//
// Color images use RGB channel order on the way in. Masks are single channel
// with foreground 255 and background 0.
type Backend interface {
	Name() string

	// Decode loads an encoded image (PNG, JPEG, ...).
	Decode(data []byte) (Mat, error)
	// FromImage copies a Go image into a color buffer.
	FromImage(img image.Image) (Mat, error)
	// ToImage copies a buffer out as a Go image (RGBA for color, Gray for masks).
	ToImage(m Mat) (image.Image, error)

	ToGray(src Mat) (Mat, error)
	ToHSV(src Mat) (Mat, error)
	// GaussianBlur applies a ksize x ksize Gaussian with sigma derived from ksize.
	GaussianBlur(src Mat, ksize int) (Mat, error)
	// Threshold marks pixels >= thresh as foreground, or < thresh when inverse.
	Threshold(src Mat, thresh float64, inverse bool) (Mat, error)
	// AdaptiveThreshold compares each pixel with a Gaussian-weighted local
	// mean over blockSize minus c.
	AdaptiveThreshold(src Mat, blockSize int, c float64, inverse bool) (Mat, error)
	// InRange marks HSV pixels whose channels all lie in [lower, upper].
	InRange(hsv Mat, lower, upper colorutil.HSV) (Mat, error)
	BitwiseOr(a, b Mat) (Mat, error)
	// Morph applies op with a ksize x ksize rectangular kernel, iterations times.
	Morph(src Mat, op MorphOp, ksize, iterations int) (Mat, error)
	// HSVAt reads one pixel of an HSV buffer.
	HSVAt(hsv Mat, x, y int) (colorutil.HSV, error)

	// FindExternalContours traces the outer boundary of every connected
	// foreground region. Holes are ignored.
	FindExternalContours(mask Mat) ([][]geometry.Point2D, error)
	ArcLength(contour []geometry.Point2D, closed bool) float64
	ContourArea(contour []geometry.Point2D) float64
	ApproxPoly(contour []geometry.Point2D, epsilon float64, closed bool) []geometry.Point2D
	// Centroid returns the first-order moment centroid of a polygon. ok is
	// false when the polygon has no area.
	Centroid(contour []geometry.Point2D) (c geometry.Point2D, ok bool)
}

// Scope collects buffers so they are released on every exit path:
//
//	var sc vision.Scope
//	defer sc.Close()
//	gray, err := sc.Keep(backend.ToGray(src))
//
// A buffer that must outlive the scope is handed out with Detach.
type Scope struct {
	mats []Mat
}

// Keep registers m with the scope and passes the pair through unchanged.
func (s *Scope) Keep(m Mat, err error) (Mat, error) {
	if err == nil && m != nil {
		s.mats = append(s.mats, m)
	}
	return m, err
}

// Add registers m with the scope.
func (s *Scope) Add(m Mat) Mat {
	if m != nil {
		s.mats = append(s.mats, m)
	}
	return m
}

// Detach removes m from the scope so Close leaves it open.
func (s *Scope) Detach(m Mat) Mat {
	for i, held := range s.mats {
		if held == m {
			s.mats = append(s.mats[:i], s.mats[i+1:]...)
			break
		}
	}
	return m
}

// Len reports how many buffers the scope still owns.
func (s *Scope) Len() int {
	return len(s.mats)
}

// Close releases every held buffer in reverse acquisition order.
func (s *Scope) Close() error {
	var errs []error
	for i := len(s.mats) - 1; i >= 0; i-- {
		if err := s.mats[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.mats = nil
	return errors.Join(errs...)
}
