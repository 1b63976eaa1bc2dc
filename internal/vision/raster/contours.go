package raster

import (
	"mold-measure/internal/vision"
	"mold-measure/pkg/geometry"
)

// Neighbor offsets in clockwise screen order starting east.
var ring = [8][2]int{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

const west = 4

// FindExternalContours implements vision.Backend. Foreground is 8-connected
// and background 4-connected, as in OpenCV. Regions that sit inside a hole
// of another region are not reported. Contours are returned in raster order
// of their topmost-leftmost pixel.
func (b *Backend) FindExternalContours(mat vision.Mat) ([][]geometry.Point2D, error) {
	m, err := useKind(mat, kindGray)
	if err != nil {
		return nil, err
	}
	labels, starts := labelComponents(m)
	outside := outerBackground(m)

	var contours [][]geometry.Point2D
	for i, s := range starts {
		// The start pixel's west neighbor is background. If that background
		// is not connected to the image border, the region lies in a hole.
		if wx := s%m.w - 1; wx >= 0 && !outside[s-1] {
			continue
		}
		contours = append(contours, traceBoundary(labels, m.w, m.h, s, int32(i+1)))
	}
	return contours, nil
}

// labelComponents assigns 8-connected labels starting at 1 and returns the
// topmost-leftmost pixel index of each component.
func labelComponents(m *buffer) ([]int32, []int) {
	labels := make([]int32, m.w*m.h)
	var starts []int
	var stack []int
	for idx, v := range m.pix {
		if v == 0 || labels[idx] != 0 {
			continue
		}
		label := int32(len(starts) + 1)
		starts = append(starts, idx)
		labels[idx] = label
		stack = append(stack[:0], idx)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%m.w, p/m.w
			for _, d := range ring {
				nx, ny := px+d[0], py+d[1]
				if nx < 0 || ny < 0 || nx >= m.w || ny >= m.h {
					continue
				}
				n := ny*m.w + nx
				if m.pix[n] != 0 && labels[n] == 0 {
					labels[n] = label
					stack = append(stack, n)
				}
			}
		}
	}
	return labels, starts
}

// outerBackground marks background pixels 4-connected to the image border.
func outerBackground(m *buffer) []bool {
	outside := make([]bool, m.w*m.h)
	var stack []int
	seed := func(x, y int) {
		i := y*m.w + x
		if m.pix[i] == 0 && !outside[i] {
			outside[i] = true
			stack = append(stack, i)
		}
	}
	for x := 0; x < m.w; x++ {
		seed(x, 0)
		seed(x, m.h-1)
	}
	for y := 0; y < m.h; y++ {
		seed(0, y)
		seed(m.w-1, y)
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		px, py := p%m.w, p/m.w
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := px+d[0], py+d[1]
			if nx < 0 || ny < 0 || nx >= m.w || ny >= m.h {
				continue
			}
			seed(nx, ny)
		}
	}
	return outside
}

// traceBoundary follows the outer boundary of one labelled component with
// Moore-neighbor tracing, stopping when the first step is about to repeat.
func traceBoundary(labels []int32, w, h, start int, label int32) []geometry.Point2D {
	inside := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && labels[y*w+x] == label
	}
	sx, sy := start%w, start/w
	contour := []geometry.Point2D{{X: float64(sx), Y: float64(sy)}}

	cx, cy := sx, sy
	back := west
	firstX, firstY := -1, -1
	for {
		next := -1
		for i := 1; i <= 8; i++ {
			d := (back + i) % 8
			if inside(cx+ring[d][0], cy+ring[d][1]) {
				next = d
				break
			}
		}
		if next < 0 {
			// Isolated pixel.
			return contour
		}
		nx, ny := cx+ring[next][0], cy+ring[next][1]
		if cx == sx && cy == sy {
			if firstX < 0 {
				firstX, firstY = nx, ny
			} else if nx == firstX && ny == firstY {
				break
			}
		}

		// The ring position checked just before next is background; it
		// becomes the backtrack direction seen from the new pixel.
		prev := (next + 7) % 8
		bx := cx + ring[prev][0] - nx
		by := cy + ring[prev][1] - ny
		back = direction(bx, by)

		cx, cy = nx, ny
		contour = append(contour, geometry.Point2D{X: float64(cx), Y: float64(cy)})
	}

	// The walk ends back on the start pixel, which is already first.
	if n := len(contour); n > 1 && contour[n-1] == contour[0] {
		contour = contour[:n-1]
	}
	return contour
}

func direction(dx, dy int) int {
	for i, d := range ring {
		if d[0] == dx && d[1] == dy {
			return i
		}
	}
	return west
}
