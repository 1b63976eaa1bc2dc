package raster

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"mold-measure/internal/vision"
	"mold-measure/pkg/colorutil"
)

// ToGray implements vision.Backend using Rec. 601 luma weights.
func (b *Backend) ToGray(mat vision.Mat) (vision.Mat, error) {
	m, err := useKind(mat, kindRGB)
	if err != nil {
		return nil, err
	}
	gray := imaging.Grayscale(m.nrgba())
	out := newBuffer(m.w, m.h, kindGray)
	for i := range out.pix {
		out.pix[i] = gray.Pix[i*4]
	}
	return out, nil
}

// GaussianBlur implements vision.Backend. Sigma follows OpenCV's default
// for a kernel of size ksize.
func (b *Backend) GaussianBlur(mat vision.Mat, ksize int) (vision.Mat, error) {
	m, err := use(mat)
	if err != nil {
		return nil, err
	}
	if ksize < 1 || ksize%2 == 0 {
		return nil, fmt.Errorf("raster: blur kernel must be odd and positive, got %d", ksize)
	}
	if ksize == 1 {
		return m.clone(), nil
	}
	return m.fromNRGBA(imaging.Blur(m.nrgba(), kernelSigma(ksize))), nil
}

// Threshold implements vision.Backend.
func (b *Backend) Threshold(mat vision.Mat, thresh float64, inverse bool) (vision.Mat, error) {
	m, err := useKind(mat, kindGray)
	if err != nil {
		return nil, err
	}
	out := newBuffer(m.w, m.h, kindGray)
	for i, v := range m.pix {
		if (float64(v) >= thresh) != inverse {
			out.pix[i] = 255
		}
	}
	return out, nil
}

// AdaptiveThreshold implements vision.Backend.
func (b *Backend) AdaptiveThreshold(mat vision.Mat, blockSize int, c float64, inverse bool) (vision.Mat, error) {
	m, err := useKind(mat, kindGray)
	if err != nil {
		return nil, err
	}
	if blockSize < 3 || blockSize%2 == 0 {
		return nil, fmt.Errorf("raster: adaptive block size must be odd and >= 3, got %d", blockSize)
	}
	mean := imaging.Blur(m.nrgba(), kernelSigma(blockSize))
	out := newBuffer(m.w, m.h, kindGray)
	for i, v := range m.pix {
		above := float64(v) > float64(mean.Pix[i*4])-c
		if above != inverse {
			out.pix[i] = 255
		}
	}
	return out, nil
}

// InRange implements vision.Backend.
func (b *Backend) InRange(mat vision.Mat, lower, upper colorutil.HSV) (vision.Mat, error) {
	m, err := useKind(mat, kindHSV)
	if err != nil {
		return nil, err
	}
	lo := [3]int{lower.H, lower.S, lower.V}
	hi := [3]int{upper.H, upper.S, upper.V}
	out := newBuffer(m.w, m.h, kindGray)
	for i := range out.pix {
		px := m.pix[i*3 : i*3+3]
		in := true
		for ch := 0; ch < 3; ch++ {
			v := int(px[ch])
			if v < lo[ch] || v > hi[ch] {
				in = false
				break
			}
		}
		if in {
			out.pix[i] = 255
		}
	}
	return out, nil
}

// BitwiseOr implements vision.Backend.
func (b *Backend) BitwiseOr(x, y vision.Mat) (vision.Mat, error) {
	mx, err := use(x)
	if err != nil {
		return nil, err
	}
	my, err := use(y)
	if err != nil {
		return nil, err
	}
	if mx.w != my.w || mx.h != my.h || mx.kind != my.kind {
		return nil, fmt.Errorf("raster: or of mismatched buffers %dx%d %s and %dx%d %s",
			mx.w, mx.h, mx.kind, my.w, my.h, my.kind)
	}
	out := newBuffer(mx.w, mx.h, mx.kind)
	for i := range out.pix {
		out.pix[i] = mx.pix[i] | my.pix[i]
	}
	return out, nil
}

// Morph implements vision.Backend with a rectangular structuring element.
// Pixels outside the image never influence the result.
func (b *Backend) Morph(mat vision.Mat, op vision.MorphOp, ksize, iterations int) (vision.Mat, error) {
	m, err := useKind(mat, kindGray)
	if err != nil {
		return nil, err
	}
	if ksize < 1 {
		return nil, fmt.Errorf("raster: morph kernel must be positive, got %d", ksize)
	}
	if iterations < 1 {
		iterations = 1
	}

	out := m.clone()
	repeat := func(dilate bool) {
		for i := 0; i < iterations; i++ {
			out = rankFilter(out, ksize, dilate)
		}
	}
	switch op {
	case vision.MorphDilate:
		repeat(true)
	case vision.MorphErode:
		repeat(false)
	case vision.MorphClose:
		repeat(true)
		repeat(false)
	case vision.MorphOpen:
		repeat(false)
		repeat(true)
	default:
		return nil, fmt.Errorf("raster: unknown morph op %d", int(op))
	}
	return out, nil
}

// rankFilter takes the max (dilate) or min (erode) over a k x k window,
// separably: rows first, then columns.
func rankFilter(src *buffer, k int, dilate bool) *buffer {
	lo := -(k / 2)
	hi := k - 1 + lo
	pick := func(a, c uint8) uint8 {
		if dilate == (c > a) {
			return c
		}
		return a
	}

	rows := newBuffer(src.w, src.h, kindGray)
	for y := 0; y < src.h; y++ {
		row := src.pix[y*src.w : (y+1)*src.w]
		for x := 0; x < src.w; x++ {
			v := row[x]
			for d := lo; d <= hi; d++ {
				if xx := x + d; xx >= 0 && xx < src.w {
					v = pick(v, row[xx])
				}
			}
			rows.pix[y*src.w+x] = v
		}
	}

	out := newBuffer(src.w, src.h, kindGray)
	for y := 0; y < src.h; y++ {
		for x := 0; x < src.w; x++ {
			v := rows.pix[y*src.w+x]
			for d := lo; d <= hi; d++ {
				if yy := y + d; yy >= 0 && yy < src.h {
					v = pick(v, rows.pix[yy*src.w+x])
				}
			}
			out.pix[y*src.w+x] = v
		}
	}
	return out
}

// kernelSigma mirrors OpenCV's sigma for a Gaussian kernel given only its size.
func kernelSigma(ksize int) float64 {
	return 0.3*(float64(ksize-1)*0.5-1) + 0.8
}

func (m *buffer) clone() *buffer {
	out := &buffer{w: m.w, h: m.h, kind: m.kind, pix: make([]uint8, len(m.pix))}
	copy(out.pix, m.pix)
	return out
}

// nrgba packs the buffer's channels into R, G and B of an opaque image so
// imaging's filters can run on it. Gray is replicated to all three.
func (m *buffer) nrgba() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, m.w, m.h))
	ch := m.kind.channels()
	for i, j := 0, 0; j < len(img.Pix); i, j = i+ch, j+4 {
		if ch == 1 {
			img.Pix[j], img.Pix[j+1], img.Pix[j+2] = m.pix[i], m.pix[i], m.pix[i]
		} else {
			img.Pix[j], img.Pix[j+1], img.Pix[j+2] = m.pix[i], m.pix[i+1], m.pix[i+2]
		}
		img.Pix[j+3] = 255
	}
	return img
}

// fromNRGBA unpacks an image produced from nrgba into a buffer of m's kind.
func (m *buffer) fromNRGBA(img *image.NRGBA) *buffer {
	out := newBuffer(m.w, m.h, m.kind)
	ch := m.kind.channels()
	for i, j := 0, 0; i < len(out.pix); i, j = i+ch, j+4 {
		out.pix[i] = img.Pix[j]
		if ch == 3 {
			out.pix[i+1] = img.Pix[j+1]
			out.pix[i+2] = img.Pix[j+2]
		}
	}
	return out
}
