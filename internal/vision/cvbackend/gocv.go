//go:build gocv

package cvbackend

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"mold-measure/internal/vision"
	"mold-measure/pkg/colorutil"
	"mold-measure/pkg/geometry"
)

func init() {
	vision.Register(Name, func(ctx context.Context) (vision.Backend, error) {
		return New()
	})
}

var errForeign = errors.New("opencv: buffer belongs to another backend")

// mat wraps a gocv.Mat. Color buffers are BGR, OpenCV's native order.
type mat struct {
	m gocv.Mat
}

func (w *mat) Size() (int, int) {
	return w.m.Cols(), w.m.Rows()
}

func (w *mat) Close() error {
	return w.m.Close()
}

// Backend implements vision.Backend with OpenCV.
type Backend struct{}

// New returns the OpenCV backend after checking the native library responds.
func New() (*Backend, error) {
	probe := gocv.NewMatWithSize(1, 1, gocv.MatTypeCV8UC1)
	defer probe.Close()
	if probe.Empty() {
		return nil, fmt.Errorf("opencv: cannot allocate buffers")
	}
	return &Backend{}, nil
}

// Name implements vision.Backend.
func (*Backend) Name() string {
	return Name
}

// Decode implements vision.Backend.
func (b *Backend) Decode(data []byte) (vision.Mat, error) {
	m, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("opencv: decode: %w", err)
	}
	if m.Empty() {
		m.Close()
		return nil, fmt.Errorf("opencv: decode produced an empty image")
	}
	return &mat{m: m}, nil
}

// FromImage implements vision.Backend.
func (b *Backend) FromImage(img image.Image) (vision.Mat, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("opencv: empty image %v", bounds)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgba.Set(x, y, img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return nil, fmt.Errorf("opencv: wrap pixels: %w", err)
	}
	defer src.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(src, &bgr, gocv.ColorRGBAToBGR)
	return &mat{m: bgr}, nil
}

// ToImage implements vision.Backend.
func (b *Backend) ToImage(m vision.Mat) (image.Image, error) {
	src, err := unwrap(m)
	if err != nil {
		return nil, err
	}
	return src.ToImage()
}

// ToGray implements vision.Backend.
func (b *Backend) ToGray(m vision.Mat) (vision.Mat, error) {
	return apply(m, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.CvtColor(src, dst, gocv.ColorBGRToGray)
	})
}

// ToHSV implements vision.Backend.
func (b *Backend) ToHSV(m vision.Mat) (vision.Mat, error) {
	return apply(m, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.CvtColor(src, dst, gocv.ColorBGRToHSV)
	})
}

// GaussianBlur implements vision.Backend.
func (b *Backend) GaussianBlur(m vision.Mat, ksize int) (vision.Mat, error) {
	return apply(m, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.GaussianBlur(src, dst, image.Point{X: ksize, Y: ksize}, 0, 0, gocv.BorderDefault)
	})
}

// Threshold implements vision.Backend. OpenCV compares with >, so the
// cut-off is lowered by one gray level to make thresh itself foreground.
func (b *Backend) Threshold(m vision.Mat, thresh float64, inverse bool) (vision.Mat, error) {
	typ := gocv.ThresholdBinary
	if inverse {
		typ = gocv.ThresholdBinaryInv
	}
	cut := float32(math.Ceil(thresh) - 1)
	return apply(m, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.Threshold(src, dst, cut, 255, typ)
	})
}

// AdaptiveThreshold implements vision.Backend.
func (b *Backend) AdaptiveThreshold(m vision.Mat, blockSize int, c float64, inverse bool) (vision.Mat, error) {
	typ := gocv.ThresholdBinary
	if inverse {
		typ = gocv.ThresholdBinaryInv
	}
	return apply(m, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.AdaptiveThreshold(src, dst, 255, gocv.AdaptiveThresholdGaussian, typ, blockSize, float32(c))
	})
}

// InRange implements vision.Backend.
func (b *Backend) InRange(m vision.Mat, lower, upper colorutil.HSV) (vision.Mat, error) {
	lo := gocv.NewScalar(float64(lower.H), float64(lower.S), float64(lower.V), 0)
	hi := gocv.NewScalar(float64(upper.H), float64(upper.S), float64(upper.V), 0)
	return apply(m, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.InRangeWithScalar(src, lo, hi, dst)
	})
}

// BitwiseOr implements vision.Backend.
func (b *Backend) BitwiseOr(x, y vision.Mat) (vision.Mat, error) {
	my, err := unwrap(y)
	if err != nil {
		return nil, err
	}
	return apply(x, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.BitwiseOr(src, my, dst)
	})
}

// Morph implements vision.Backend. Close and open with n iterations run n
// dilations then n erosions (or the reverse), matching OpenCV's semantics.
func (b *Backend) Morph(m vision.Mat, op vision.MorphOp, ksize, iterations int) (vision.Mat, error) {
	src, err := unwrap(m)
	if err != nil {
		return nil, err
	}
	if iterations < 1 {
		iterations = 1
	}
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: ksize, Y: ksize})
	defer kernel.Close()

	var steps []bool // true dilates, false erodes
	for i := 0; i < iterations; i++ {
		switch op {
		case vision.MorphDilate, vision.MorphClose:
			steps = append(steps, true)
		case vision.MorphErode, vision.MorphOpen:
			steps = append(steps, false)
		default:
			return nil, fmt.Errorf("opencv: unknown morph op %d", int(op))
		}
	}
	if op == vision.MorphClose || op == vision.MorphOpen {
		for i := 0; i < iterations; i++ {
			steps = append(steps, op == vision.MorphOpen)
		}
	}

	cur := src.Clone()
	for _, dilate := range steps {
		next := gocv.NewMat()
		if dilate {
			gocv.Dilate(cur, &next, kernel)
		} else {
			gocv.Erode(cur, &next, kernel)
		}
		cur.Close()
		cur = next
	}
	return &mat{m: cur}, nil
}

// HSVAt implements vision.Backend.
func (b *Backend) HSVAt(m vision.Mat, x, y int) (colorutil.HSV, error) {
	src, err := unwrap(m)
	if err != nil {
		return colorutil.HSV{}, err
	}
	if x < 0 || y < 0 || x >= src.Cols() || y >= src.Rows() {
		return colorutil.HSV{}, fmt.Errorf("opencv: pixel (%d, %d) outside %dx%d", x, y, src.Cols(), src.Rows())
	}
	v := src.GetVecbAt(y, x)
	return colorutil.HSV{H: int(v[0]), S: int(v[1]), V: int(v[2])}, nil
}

// FindExternalContours implements vision.Backend.
func (b *Backend) FindExternalContours(m vision.Mat) ([][]geometry.Point2D, error) {
	src, err := unwrap(m)
	if err != nil {
		return nil, err
	}
	contours := gocv.FindContours(src, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	out := make([][]geometry.Point2D, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		out = append(out, fromPoints(contours.At(i).ToPoints()))
	}
	return out, nil
}

// ArcLength implements vision.Backend.
func (b *Backend) ArcLength(contour []geometry.Point2D, closed bool) float64 {
	pv := toVector(contour)
	defer pv.Close()
	return gocv.ArcLength(pv, closed)
}

// ContourArea implements vision.Backend.
func (b *Backend) ContourArea(contour []geometry.Point2D) float64 {
	pv := toVector(contour)
	defer pv.Close()
	return gocv.ContourArea(pv)
}

// ApproxPoly implements vision.Backend.
func (b *Backend) ApproxPoly(contour []geometry.Point2D, epsilon float64, closed bool) []geometry.Point2D {
	pv := toVector(contour)
	defer pv.Close()
	approx := gocv.ApproxPolyDP(pv, epsilon, closed)
	defer approx.Close()
	return fromPoints(approx.ToPoints())
}

// Centroid implements vision.Backend. Contours are integer polygons here so
// the polygon moments match OpenCV's contour moments.
func (b *Backend) Centroid(contour []geometry.Point2D) (geometry.Point2D, bool) {
	return geometry.PolygonCentroid(contour)
}

func unwrap(m vision.Mat) (gocv.Mat, error) {
	w, ok := m.(*mat)
	if !ok {
		return gocv.Mat{}, errForeign
	}
	if w.m.Empty() {
		return gocv.Mat{}, fmt.Errorf("opencv: empty buffer")
	}
	return w.m, nil
}

func apply(m vision.Mat, fn func(src gocv.Mat, dst *gocv.Mat)) (vision.Mat, error) {
	src, err := unwrap(m)
	if err != nil {
		return nil, err
	}
	dst := gocv.NewMat()
	fn(src, &dst)
	if dst.Empty() {
		dst.Close()
		return nil, fmt.Errorf("opencv: operation produced an empty buffer")
	}
	return &mat{m: dst}, nil
}

func toVector(contour []geometry.Point2D) gocv.PointVector {
	pts := make([]image.Point, len(contour))
	for i, p := range contour {
		pts[i] = image.Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
	}
	return gocv.NewPointVectorFromPoints(pts)
}

func fromPoints(pts []image.Point) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[i] = geometry.Point2D{X: float64(p.X), Y: float64(p.Y)}
	}
	return out
}

var _ vision.Backend = (*Backend)(nil)
