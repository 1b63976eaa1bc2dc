package geometry

import "math"

// SignedArea returns the shoelace area of a closed polygon. The sign follows
// the winding: positive for counter-clockwise in a y-up frame, which is
// clockwise on screen.
func SignedArea(polygon []Point2D) float64 {
	n := len(polygon)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += polygon[i].X*polygon[j].Y - polygon[j].X*polygon[i].Y
	}
	return sum / 2
}

// Area returns the absolute shoelace area of a closed polygon.
func Area(polygon []Point2D) float64 {
	return math.Abs(SignedArea(polygon))
}

// PolygonCentroid returns the area centroid of a closed polygon from its
// first-order moments. ok is false when the polygon encloses no area.
func PolygonCentroid(polygon []Point2D) (c Point2D, ok bool) {
	a := SignedArea(polygon)
	if math.Abs(a) < 1e-12 {
		return Point2D{}, false
	}
	n := len(polygon)
	var cx, cy float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := polygon[i].X*polygon[j].Y - polygon[j].X*polygon[i].Y
		cx += (polygon[i].X + polygon[j].X) * cross
		cy += (polygon[i].Y + polygon[j].Y) * cross
	}
	return Point2D{X: cx / (6 * a), Y: cy / (6 * a)}, true
}

// Perimeter returns the summed edge length of a polyline. When closed is
// true the edge from the last point back to the first is included.
func Perimeter(points []Point2D, closed bool) float64 {
	n := len(points)
	if n < 2 {
		return 0
	}
	var total float64
	for i := 0; i < n-1; i++ {
		total += points[i].Distance(points[i+1])
	}
	if closed {
		total += points[n-1].Distance(points[0])
	}
	return total
}

// Simplify reduces a polyline with the Ramer-Douglas-Peucker algorithm.
// Points farther than epsilon from the simplified shape are kept. For closed
// polygons the ring is split at the vertex farthest from the first point so
// both halves are simplified independently and closure is preserved.
func Simplify(points []Point2D, epsilon float64, closed bool) []Point2D {
	n := len(points)
	if n <= 2 {
		out := make([]Point2D, n)
		copy(out, points)
		return out
	}

	keep := make([]bool, n)
	keep[0] = true

	type segment struct{ start, end int }
	var stack []segment

	if closed {
		far := 0
		var maxDist float64
		for i := 1; i < n; i++ {
			if d := distSq(points[0], points[i]); d > maxDist {
				maxDist = d
				far = i
			}
		}
		if far == 0 {
			// Every point coincides with the first.
			return []Point2D{points[0]}
		}
		keep[far] = true
		stack = append(stack, segment{0, far}, segment{far, n})
	} else {
		keep[n-1] = true
		stack = append(stack, segment{0, n - 1})
	}

	at := func(i int) Point2D { return points[i%n] }

	for len(stack) > 0 {
		seg := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seg.end-seg.start < 2 {
			continue
		}

		a, b := at(seg.start), at(seg.end)
		maxDist := -1.0
		maxIdx := seg.start
		for i := seg.start + 1; i < seg.end; i++ {
			d := segmentDistance(at(i), a, b)
			if d > maxDist {
				maxDist = d
				maxIdx = i
			}
		}

		if maxDist > epsilon {
			keep[maxIdx%n] = true
			stack = append(stack, segment{seg.start, maxIdx}, segment{maxIdx, seg.end})
		}
	}

	out := make([]Point2D, 0, n)
	for i, k := range keep {
		if k {
			out = append(out, points[i])
		}
	}
	return out
}

// PointInPolygon tests if a point is inside a polygon using ray casting.
func PointInPolygon(p Point2D, polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	n := len(polygon)

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		pi, pj := polygon[i], polygon[j]

		// Check if ray from p going right intersects edge pi-pj
		if ((pi.Y > p.Y) != (pj.Y > p.Y)) &&
			(p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
	}

	return inside
}

// segmentDistance returns the distance from p to the segment a-b.
func segmentDistance(p, a, b Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy
	if lenSq < 1e-12 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	proj := Point2D{X: a.X + t*dx, Y: a.Y + t*dy}
	return p.Distance(proj)
}

// distSq computes the squared distance between two points.
func distSq(a, b Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}
