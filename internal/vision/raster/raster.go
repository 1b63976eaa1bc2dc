// Package raster is a pure-Go vision backend. It needs no native libraries
// and produces the same masks and contours as the OpenCV backend to within
// border handling and rounding.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"mold-measure/internal/vision"
	"mold-measure/pkg/colorutil"
	"mold-measure/pkg/geometry"
)

// Name is the registry name of this backend.
const Name = "raster"

func init() {
	vision.Register(Name, func(ctx context.Context) (vision.Backend, error) {
		return New(), nil
	})
}

var (
	errClosed    = errors.New("raster: buffer already closed")
	errForeign   = errors.New("raster: buffer belongs to another backend")
	errEmptyData = errors.New("raster: empty image data")
)

type kind int

const (
	kindRGB kind = iota
	kindHSV
	kindGray
)

func (k kind) String() string {
	switch k {
	case kindRGB:
		return "rgb"
	case kindHSV:
		return "hsv"
	case kindGray:
		return "gray"
	default:
		return "unknown"
	}
}

func (k kind) channels() int {
	if k == kindGray {
		return 1
	}
	return 3
}

// buffer is an interleaved 8-bit image.
type buffer struct {
	w, h   int
	kind   kind
	pix    []uint8
	closed bool
}

func newBuffer(w, h int, k kind) *buffer {
	return &buffer{w: w, h: h, kind: k, pix: make([]uint8, w*h*k.channels())}
}

func (b *buffer) Size() (int, int) {
	return b.w, b.h
}

func (b *buffer) Close() error {
	b.closed = true
	b.pix = nil
	return nil
}

// Backend implements vision.Backend on plain byte slices.
type Backend struct{}

// New returns a raster backend.
func New() *Backend {
	return &Backend{}
}

// Name implements vision.Backend.
func (*Backend) Name() string {
	return Name
}

// Mask wraps a gray image as a mask buffer. Non-zero pixels are foreground.
func Mask(g *image.Gray) vision.Mat {
	r := g.Bounds()
	m := newBuffer(r.Dx(), r.Dy(), kindGray)
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			if g.GrayAt(r.Min.X+x, r.Min.Y+y).Y != 0 {
				m.pix[y*m.w+x] = 255
			}
		}
	}
	return m
}

// Decode implements vision.Backend.
func (b *Backend) Decode(data []byte) (vision.Mat, error) {
	if len(data) == 0 {
		return nil, errEmptyData
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("raster: decode: %w", err)
	}
	return b.FromImage(img)
}

// FromImage implements vision.Backend.
func (b *Backend) FromImage(img image.Image) (vision.Mat, error) {
	r := img.Bounds()
	if r.Empty() {
		return nil, fmt.Errorf("raster: empty image %v", r)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, r.Min, draw.Src)
	}
	m := newBuffer(r.Dx(), r.Dy(), kindRGB)
	for y := 0; y < m.h; y++ {
		src := rgba.Pix[y*rgba.Stride:]
		dst := m.pix[y*m.w*3:]
		for x := 0; x < m.w; x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return m, nil
}

// ToImage implements vision.Backend.
func (b *Backend) ToImage(mat vision.Mat) (image.Image, error) {
	m, err := use(mat)
	if err != nil {
		return nil, err
	}
	switch m.kind {
	case kindGray:
		g := image.NewGray(image.Rect(0, 0, m.w, m.h))
		copy(g.Pix, m.pix)
		return g, nil
	case kindRGB:
		out := image.NewRGBA(image.Rect(0, 0, m.w, m.h))
		for i, j := 0, 0; i < len(m.pix); i, j = i+3, j+4 {
			out.Pix[j] = m.pix[i]
			out.Pix[j+1] = m.pix[i+1]
			out.Pix[j+2] = m.pix[i+2]
			out.Pix[j+3] = 255
		}
		return out, nil
	default:
		return nil, fmt.Errorf("raster: cannot export %s buffer", m.kind)
	}
}

// ToHSV implements vision.Backend.
func (b *Backend) ToHSV(mat vision.Mat) (vision.Mat, error) {
	m, err := useKind(mat, kindRGB)
	if err != nil {
		return nil, err
	}
	out := newBuffer(m.w, m.h, kindHSV)
	for i := 0; i < len(m.pix); i += 3 {
		hsv := colorutil.ToHSV(color.RGBA{R: m.pix[i], G: m.pix[i+1], B: m.pix[i+2], A: 255})
		out.pix[i] = uint8(hsv.H)
		out.pix[i+1] = uint8(hsv.S)
		out.pix[i+2] = uint8(hsv.V)
	}
	return out, nil
}

// HSVAt implements vision.Backend.
func (b *Backend) HSVAt(mat vision.Mat, x, y int) (colorutil.HSV, error) {
	m, err := useKind(mat, kindHSV)
	if err != nil {
		return colorutil.HSV{}, err
	}
	if x < 0 || y < 0 || x >= m.w || y >= m.h {
		return colorutil.HSV{}, fmt.Errorf("raster: pixel (%d, %d) outside %dx%d", x, y, m.w, m.h)
	}
	i := (y*m.w + x) * 3
	return colorutil.HSV{H: int(m.pix[i]), S: int(m.pix[i+1]), V: int(m.pix[i+2])}, nil
}

// ArcLength implements vision.Backend.
func (*Backend) ArcLength(contour []geometry.Point2D, closed bool) float64 {
	return geometry.Perimeter(contour, closed)
}

// ContourArea implements vision.Backend.
func (*Backend) ContourArea(contour []geometry.Point2D) float64 {
	return geometry.Area(contour)
}

// ApproxPoly implements vision.Backend.
func (*Backend) ApproxPoly(contour []geometry.Point2D, epsilon float64, closed bool) []geometry.Point2D {
	return geometry.Simplify(contour, epsilon, closed)
}

// Centroid implements vision.Backend.
func (*Backend) Centroid(contour []geometry.Point2D) (geometry.Point2D, bool) {
	return geometry.PolygonCentroid(contour)
}

func use(mat vision.Mat) (*buffer, error) {
	m, ok := mat.(*buffer)
	if !ok {
		return nil, errForeign
	}
	if m.closed {
		return nil, errClosed
	}
	return m, nil
}

func useKind(mat vision.Mat, want kind) (*buffer, error) {
	m, err := use(mat)
	if err != nil {
		return nil, err
	}
	if m.kind != want {
		return nil, fmt.Errorf("raster: need %s buffer, got %s", want, m.kind)
	}
	return m, nil
}

var _ vision.Backend = (*Backend)(nil)
