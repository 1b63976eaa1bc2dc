// Package ocr reads the printed numbers of a ruler photographed next to
// the molds and suggests the reference distance between two calibration
// points.
package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"

	"mold-measure/pkg/geometry"
)

var (
	// ErrUnavailable reports a build without the Tesseract engine.
	ErrUnavailable = errors.New("ocr engine not available")
	// ErrNoSuggestion reports too few consistent ruler labels near the points.
	ErrNoSuggestion = errors.New("no ruler labels found between the points")
)

// Label is one number read from the ruler, in full-image coordinates.
type Label struct {
	Value      float64
	Center     geometry.Point2D
	Confidence float64
}

// LabelReader extracts numeric labels from a region of an image.
type LabelReader interface {
	ReadLabels(img image.Image, roi image.Rectangle) ([]Label, error)
	Close() error
}

// RulerParams tunes label selection.
type RulerParams struct {
	// Band is how far from the p0-p1 line a label may sit, in pixels.
	Band float64
	// MinConfidence drops low-confidence words (0..100).
	MinConfidence float64
	// MinRSquared rejects label sets that do not lie on a linear scale.
	MinRSquared float64
	// MinHeight is the height labels are upscaled to before recognition.
	MinHeight int
}

// DefaultRulerParams returns parameters for a typical phone photo.
func DefaultRulerParams() RulerParams {
	return RulerParams{
		Band:          80,
		MinConfidence: 40,
		MinRSquared:   0.95,
		MinHeight:     150,
	}
}

// Suggestion is a suggested reference distance.
type Suggestion struct {
	DistanceCm float64
	// CmPerPixel is the slope of the fitted ruler scale.
	CmPerPixel float64
	Labels     []Label
	RSquared   float64
}

var numberPattern = regexp.MustCompile(`^\d{1,3}([.,]\d)?$`)

// ParseLabel extracts a ruler value from an OCR word such as "12", "12cm"
// or "7,5". Words that are not a plain number are rejected.
func ParseLabel(text string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimSuffix(s, "cm")
	s = strings.Trim(s, " .|'")
	if !numberPattern.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SearchRegion returns the area of bounds around the segment p0-p1, padded
// by band pixels.
func SearchRegion(p0, p1 geometry.Point2D, band float64, bounds image.Rectangle) image.Rectangle {
	r := image.Rect(
		int(math.Floor(math.Min(p0.X, p1.X)-band)),
		int(math.Floor(math.Min(p0.Y, p1.Y)-band)),
		int(math.Ceil(math.Max(p0.X, p1.X)+band)),
		int(math.Ceil(math.Max(p0.Y, p1.Y)+band)),
	)
	return r.Intersect(bounds)
}

// SuggestDistance fits the ruler scale from labels lying along p0-p1 and
// returns the distance between the points in centimeters. Labels are
// projected onto the line; value against position must be linear.
func SuggestDistance(labels []Label, p0, p1 geometry.Point2D, params RulerParams) (Suggestion, error) {
	length := p0.Distance(p1)
	if length < 1 {
		return Suggestion{}, fmt.Errorf("%w: points coincide", ErrNoSuggestion)
	}
	ux, uy := (p1.X-p0.X)/length, (p1.Y-p0.Y)/length

	// One label per value, the most confident wins.
	best := make(map[float64]Label)
	for _, l := range labels {
		if l.Confidence < params.MinConfidence {
			continue
		}
		dx, dy := l.Center.X-p0.X, l.Center.Y-p0.Y
		t := dx*ux + dy*uy
		off := math.Abs(-dx*uy + dy*ux)
		if off > params.Band || t < -params.Band || t > length+params.Band {
			continue
		}
		if cur, ok := best[l.Value]; !ok || l.Confidence > cur.Confidence {
			best[l.Value] = l
		}
	}
	if len(best) < 2 {
		return Suggestion{}, fmt.Errorf("%w: %d usable labels", ErrNoSuggestion, len(best))
	}

	kept := make([]Label, 0, len(best))
	for _, l := range best {
		kept = append(kept, l)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Value < kept[j].Value })

	xs := make([]float64, len(kept))
	ys := make([]float64, len(kept))
	for i, l := range kept {
		xs[i] = (l.Center.X-p0.X)*ux + (l.Center.Y-p0.Y)*uy
		ys[i] = l.Value
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := 1.0
	if len(kept) > 2 {
		r2 = stat.RSquared(xs, ys, nil, alpha, beta)
	}
	if math.Abs(beta) < 1e-9 || r2 < params.MinRSquared {
		return Suggestion{}, fmt.Errorf("%w: labels do not form a scale (r²=%.2f)", ErrNoSuggestion, r2)
	}

	d := math.Round(math.Abs(beta)*length*10) / 10
	return Suggestion{
		DistanceCm: d,
		CmPerPixel: math.Abs(beta),
		Labels:     kept,
		RSquared:   r2,
	}, nil
}

// Suggest reads labels around p0-p1 with r and fits the scale.
func Suggest(r LabelReader, img image.Image, p0, p1 geometry.Point2D, params RulerParams) (Suggestion, error) {
	roi := SearchRegion(p0, p1, params.Band, img.Bounds())
	if roi.Empty() {
		return Suggestion{}, fmt.Errorf("%w: points outside the image", ErrNoSuggestion)
	}
	labels, err := r.ReadLabels(img, roi)
	if err != nil {
		return Suggestion{}, err
	}
	return SuggestDistance(labels, p0, p1, params)
}

// orientation is a quarter-turn applied before recognition so labels on a
// vertical ruler read upright.
type orientation int

const (
	upright orientation = iota
	turnedLeft
	turnedRight
)

// orientationsFor lists the turns worth trying for a ruler running along
// the given region.
func orientationsFor(roi image.Rectangle) []orientation {
	if roi.Dy() > roi.Dx() {
		return []orientation{turnedLeft, turnedRight, upright}
	}
	return []orientation{upright}
}

// prepared is a preprocessed crop ready for the engine.
type prepared struct {
	png    []byte
	scale  float64
	turn   orientation
	origin image.Point
	w, h   int // crop size before turning
}

// toImage maps a point in the prepared image back to full-image coordinates.
func (p prepared) toImage(x, y float64) geometry.Point2D {
	x, y = x/p.scale, y/p.scale
	switch p.turn {
	case turnedLeft:
		// Rotate90 is counter-clockwise: (x, y) came from (w-1-y, x).
		x, y = float64(p.w-1)-y, x
	case turnedRight:
		// Rotate270: (x, y) came from (y, h-1-x).
		x, y = y, float64(p.h-1)-x
	}
	return geometry.NewPoint2D(x+float64(p.origin.X), y+float64(p.origin.Y))
}

// prepare crops, turns, upscales and contrast-stretches a region.
// Light text on a dark ruler is inverted to dark on light.
func prepare(img image.Image, roi image.Rectangle, turn orientation, minHeight int) (prepared, error) {
	crop := imaging.Crop(img, roi)
	w, h := crop.Bounds().Dx(), crop.Bounds().Dy()
	switch turn {
	case turnedLeft:
		crop = imaging.Rotate90(crop)
	case turnedRight:
		crop = imaging.Rotate270(crop)
	}

	scale := 1.0
	if short := min(crop.Bounds().Dx(), crop.Bounds().Dy()); short > 0 && short < minHeight {
		tw := crop.Bounds().Dx()
		crop = imaging.Resize(crop, int(math.Round(float64(tw)*float64(minHeight)/float64(short))), 0, imaging.CatmullRom)
		scale = float64(crop.Bounds().Dx()) / float64(tw)
	}

	gray := imaging.Grayscale(crop)
	gray = imaging.AdjustContrast(gray, 40)
	if meanLuma(gray) < 128 {
		gray = imaging.Invert(gray)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return prepared{}, fmt.Errorf("encode crop: %w", err)
	}
	return prepared{png: buf.Bytes(), scale: scale, turn: turn, origin: roi.Min, w: w, h: h}, nil
}

func meanLuma(img *image.NRGBA) float64 {
	var sum uint64
	n := 0
	for i := 0; i < len(img.Pix); i += 4 {
		sum += uint64(img.Pix[i])
		n++
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// labelFromWord converts one recognized word into a label. box is in
// prepared-image coordinates.
func labelFromWord(p prepared, word string, box image.Rectangle, confidence float64) (Label, bool) {
	v, ok := ParseLabel(word)
	if !ok {
		return Label{}, false
	}
	cx := float64(box.Min.X+box.Max.X) / 2
	cy := float64(box.Min.Y+box.Max.Y) / 2
	return Label{Value: v, Center: p.toImage(cx, cy), Confidence: confidence}, true
}
