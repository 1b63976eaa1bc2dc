//go:build !tesseract

package ocr

import "image"

// Engine is unavailable without the tesseract build tag.
type Engine struct{}

// NewEngine reports ErrUnavailable. Build with -tags tesseract to enable it.
func NewEngine(RulerParams) (*Engine, error) {
	return nil, ErrUnavailable
}

// ReadLabels reports ErrUnavailable.
func (*Engine) ReadLabels(image.Image, image.Rectangle) ([]Label, error) {
	return nil, ErrUnavailable
}

// Close is a no-op.
func (*Engine) Close() error { return nil }
