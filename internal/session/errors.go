package session

import (
	"errors"

	"mold-measure/internal/calibration"
	"mold-measure/internal/contour"
	"mold-measure/internal/mold"
	"mold-measure/internal/segment"
	"mold-measure/internal/vision"
)

// Error kinds surfaced by a Session. Kinds owned by a lower package are
// re-exported so callers can match every failure with errors.Is against
// this package alone.
var (
	ErrInvalidCalibration = calibration.ErrInvalidCalibration
	ErrBackendUnavailable = vision.ErrBackendUnavailable
	ErrOutOfBoundsSample  = segment.ErrOutOfBoundsSample
	ErrEmptyContour       = contour.ErrEmptyContour
	ErrNoMolds            = mold.ErrNoMolds
	ErrMoldNotFound       = mold.ErrMoldNotFound
	ErrInvalidMultiplier  = mold.ErrInvalidMultiplier

	// ErrMissingCalibration reports a detection attempted before a factor exists.
	ErrMissingCalibration = errors.New("calibrate with two reference points before detecting")
	// ErrProcessingFailure reports a detection pass that failed or timed out.
	ErrProcessingFailure = errors.New("processing failure")
	// ErrBusy reports a detection requested while another is running.
	ErrBusy = errors.New("detection already in progress")
	// ErrNoImage reports an operation that needs a loaded image.
	ErrNoImage = errors.New("no image loaded")
)
