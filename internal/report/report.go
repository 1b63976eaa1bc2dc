// Package report writes measurement results to a JSON file.
package report

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"mold-measure/internal/mold"
	"mold-measure/internal/segment"
	"mold-measure/internal/session"
	"mold-measure/pkg/colorutil"
	"mold-measure/pkg/geometry"
)

// FormatVersion is bumped on incompatible changes to File.
const FormatVersion = 1

// File is one exported measurement (.molds.json).
type File struct {
	Version int       `json:"version"`
	Created time.Time `json:"created"`

	// ImagePath is relative to the report file when possible.
	ImagePath string `json:"image,omitempty"`

	Calibration Calibration `json:"calibration"`
	Settings    Settings    `json:"settings"`
	Molds       []Mold      `json:"molds"`
	Totals      []Total     `json:"totals"`
}

// Calibration records the reference points used for the areas.
type Calibration struct {
	Points     []geometry.Point2D `json:"points"`
	DistanceCm float64            `json:"distance_cm"`
	CmPerPixel float64            `json:"cm_per_pixel,omitempty"`
}

// Settings records the segmentation mode and the fields it reads.
type Settings struct {
	Strategy  string         `json:"strategy"`
	Threshold int            `json:"threshold,omitempty"`
	Lower     *colorutil.HSV `json:"lower,omitempty"`
	Upper     *colorutil.HSV `json:"upper,omitempty"`
	Sample    *colorutil.HSV `json:"sample,omitempty"`
	Tolerance int            `json:"tolerance,omitempty"`
}

// Mold is one measured piece.
type Mold struct {
	ID         int                `json:"id"`
	Type       string             `json:"type"`
	Multiplier float64            `json:"multiplier"`
	AreaCm2    float64            `json:"area_cm2"`
	TotalCm2   float64            `json:"total_cm2"`
	LongCm     float64            `json:"long_cm"`
	ShortCm    float64            `json:"short_cm"`
	PixelArea  float64            `json:"pixel_area"`
	Contour    []geometry.Point2D `json:"contour"`
}

// Total sums one mold type; Type "total" covers all molds.
type Total struct {
	Type     string  `json:"type"`
	Count    int     `json:"count"`
	AreaCm2  float64 `json:"area_cm2"`
	TotalCm2 float64 `json:"total_cm2"`
}

// New builds a report from a session snapshot.
func New(calib session.CalibrationInfo, cfg segment.Config, molds []mold.Mold) *File {
	f := &File{
		Version: FormatVersion,
		Created: time.Now(),
		Calibration: Calibration{
			Points:     calib.Points,
			DistanceCm: calib.DistanceCm,
		},
		Settings: settingsFor(cfg),
		Molds:    make([]Mold, 0, len(molds)),
		Totals:   []Total{},
	}
	if calib.HasFactor {
		f.Calibration.CmPerPixel = calib.Factor
	}

	for _, m := range molds {
		f.Molds = append(f.Molds, Mold{
			ID:         m.ID,
			Type:       m.Type.String(),
			Multiplier: m.Multiplier,
			AreaCm2:    m.AreaCm2,
			TotalCm2:   m.TotalArea(),
			LongCm:     m.Dimensions.Long(),
			ShortCm:    m.Dimensions.Short(),
			PixelArea:  m.PixelArea,
			Contour:    m.Contour,
		})
	}

	res, err := mold.Aggregate(molds)
	if errors.Is(err, mold.ErrNoMolds) {
		return f
	}
	for _, t := range res.Present() {
		s := res.ByType[t]
		f.Totals = append(f.Totals, Total{Type: t.String(), Count: s.Count, AreaCm2: s.TotalArea, TotalCm2: s.TotalAreaWithMultiplier})
	}
	f.Totals = append(f.Totals, Total{
		Type:     "total",
		Count:    res.Total.Count,
		AreaCm2:  res.Total.TotalArea,
		TotalCm2: res.Total.TotalAreaWithMultiplier,
	})
	return f
}

func settingsFor(cfg segment.Config) Settings {
	s := Settings{Strategy: cfg.Strategy.String()}
	switch cfg.Strategy {
	case segment.StrategyNormal, segment.StrategyInverse, segment.StrategyAdaptive:
		s.Threshold = cfg.Threshold
	case segment.StrategyWhiteHSV:
		lower, upper := cfg.Lower, cfg.Upper
		s.Lower, s.Upper = &lower, &upper
	case segment.StrategyEyedropper:
		s.Tolerance = cfg.Tolerance
		if cfg.HasSample {
			sample := cfg.Sampled
			s.Sample = &sample
		}
	}
	return s
}

// SetImage records imagePath relative to the report at reportPath.
func (f *File) SetImage(reportPath, imagePath string) {
	rel, err := filepath.Rel(filepath.Dir(reportPath), imagePath)
	if err != nil || imagePath == "" {
		f.ImagePath = imagePath
		return
	}
	f.ImagePath = rel
}

// Save writes the report as indented JSON.
func (f *File) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Write encodes the report to w.
func (f *File) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}
