// Package session coordinates one user's measurement session: the loaded
// photo, calibration, segmentation settings, detected molds and the
// rendered display. All actions are serialized; listeners are notified
// after the session lock is released.
package session

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"mold-measure/internal/calibration"
	"mold-measure/internal/mold"
	"mold-measure/internal/render"
	"mold-measure/internal/segment"
	"mold-measure/internal/vision"
	"mold-measure/pkg/colorutil"
	"mold-measure/pkg/geometry"
)

// DefaultDetectTimeout bounds a detection pass.
const DefaultDetectTimeout = 30 * time.Second

// Observer receives the outcome of every detection pass.
type Observer interface {
	ObserveDetect(strategy string, elapsed time.Duration, molds int, err error)
}

// Options configures a Session.
type Options struct {
	DetectTimeout time.Duration
	Observer      Observer
}

// DefaultOptions returns the standard session options.
func DefaultOptions() Options {
	return Options{DetectTimeout: DefaultDetectTimeout}
}

// Session is the state of one measurement session.
type Session struct {
	mu sync.RWMutex

	loader *vision.Loader
	opts   Options

	// original is never modified after LoadImage; display is re-rendered
	// from it on every change.
	original *image.RGBA
	display  *image.RGBA

	calib *calibration.State
	// guideFactor is the most recent factor, kept after a new pair is
	// started so the live guide can keep showing centimeters.
	guideFactor float64
	cursor      *geometry.Point2D

	cfg           segment.Config
	debug         bool
	debugMask     *image.Gray
	debugOutlines [][]geometry.Point2D

	molds      *mold.Collection
	processing bool

	listeners map[EventType][]EventListener
}

// CalibrationInfo is a snapshot of the calibration state.
type CalibrationInfo struct {
	Points     []geometry.Point2D
	DistanceCm float64
	Factor     float64
	HasFactor  bool
}

// New creates a session that runs detection on loader's backend.
func New(loader *vision.Loader, opts Options) *Session {
	if opts.DetectTimeout <= 0 {
		opts.DetectTimeout = DefaultDetectTimeout
	}
	return &Session{
		loader:    loader,
		opts:      opts,
		calib:     calibration.NewState(),
		cfg:       segment.DefaultConfig(),
		molds:     mold.NewCollection(),
		listeners: make(map[EventType][]EventListener),
	}
}

// Loader returns the backend loader.
func (s *Session) Loader() *vision.Loader {
	return s.loader
}

// LoadImage decodes an encoded photo and makes it the session image.
// Calibration points and molds are cleared; the reference distance and
// segmentation settings are kept.
func (s *Session) LoadImage(data []byte) error {
	b, err := s.loader.Backend()
	if err != nil {
		return err
	}
	m, err := b.Decode(data)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	defer m.Close()
	img, err := b.ToImage(m)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	return s.SetImage(img)
}

// SetImage makes a copy of img the session image. See LoadImage.
func (s *Session) SetImage(img image.Image) error {
	r := img.Bounds()
	if r.Empty() {
		return fmt.Errorf("empty image %v", r)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, r.Min, draw.Src)

	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return ErrBusy
	}
	s.original = rgba
	s.calib.Reset()
	s.cursor = nil
	s.debugMask, s.debugOutlines = nil, nil
	s.molds = s.molds.Replace(nil)
	s.redrawLocked()
	s.mu.Unlock()

	log.Info().Int("width", r.Dx()).Int("height", r.Dy()).Msg("Session: image loaded")
	s.Emit(EventImageLoaded, r.Size())
	s.Emit(EventCalibrationChanged, nil)
	s.Emit(EventMoldsChanged, nil)
	s.Emit(EventDisplayChanged, nil)
	return nil
}

// ImageSize returns the size of the session image, or zero.
func (s *Session) ImageSize() image.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.original == nil {
		return image.Point{}
	}
	return s.original.Bounds().Size()
}

// Original returns the session image. Callers must not modify it.
func (s *Session) Original() *image.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.original
}

// Display returns the current rendered view. A new image is produced on
// every change, so the returned one is never modified afterwards.
func (s *Session) Display() *image.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.display
}

// AddCalibrationPoint records a reference click. A degenerate second click
// is rejected and leaves the calibration unchanged.
func (s *Session) AddCalibrationPoint(p geometry.Point2D) error {
	s.mu.Lock()
	err := s.calib.AddPoint(p)
	if err == nil {
		if f, ok := s.calib.Factor(); ok {
			s.guideFactor = f
			log.Info().Float64("factor", f).Float64("distance_cm", s.calib.Distance()).
				Msg("Session: calibrated")
		}
		s.redrawLocked()
	}
	info := s.calibrationLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.Emit(EventCalibrationChanged, info)
	s.Emit(EventDisplayChanged, nil)
	return nil
}

// SetDistance changes the reference distance and recomputes the factor
// from the stored pair.
func (s *Session) SetDistance(cm float64) error {
	s.mu.Lock()
	err := s.calib.SetDistance(cm)
	if err == nil {
		if f, ok := s.calib.Factor(); ok {
			s.guideFactor = f
		}
		s.redrawLocked()
	}
	info := s.calibrationLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.Emit(EventCalibrationChanged, info)
	s.Emit(EventDisplayChanged, nil)
	return nil
}

// CancelCalibration clears the reference points.
func (s *Session) CancelCalibration() {
	s.mu.Lock()
	s.calib.Reset()
	s.cursor = nil
	s.redrawLocked()
	info := s.calibrationLocked()
	s.mu.Unlock()

	s.Emit(EventCalibrationChanged, info)
	s.Emit(EventDisplayChanged, nil)
}

// Calibration returns a snapshot of the calibration state.
func (s *Session) Calibration() CalibrationInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calibrationLocked()
}

func (s *Session) calibrationLocked() CalibrationInfo {
	f, ok := s.calib.Factor()
	return CalibrationInfo{
		Points:     s.calib.Points(),
		DistanceCm: s.calib.Distance(),
		Factor:     f,
		HasFactor:  ok,
	}
}

// SetCursor updates the pointer position used by the live calibration
// guide. nil hides the guide.
func (s *Session) SetCursor(p *geometry.Point2D) {
	s.mu.Lock()
	if p != nil {
		c := *p
		p = &c
	}
	s.cursor = p
	guide := len(s.calib.Points()) == 1
	if guide {
		s.redrawLocked()
	}
	s.mu.Unlock()

	if guide {
		s.Emit(EventDisplayChanged, nil)
	}
}

// SetConfig replaces the segmentation settings. They are validated when a
// detection runs.
func (s *Session) SetConfig(cfg segment.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.Emit(EventConfigChanged, cfg)
}

// Config returns the segmentation settings.
func (s *Session) Config() segment.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetDebug toggles mask display. Turning it off restores the normal view.
func (s *Session) SetDebug(on bool) {
	s.mu.Lock()
	s.debug = on
	changed := !on && s.debugMask != nil
	if changed {
		s.debugMask, s.debugOutlines = nil, nil
		s.redrawLocked()
	}
	s.mu.Unlock()

	if changed {
		s.Emit(EventDisplayChanged, nil)
	}
}

// Debug reports whether detection shows the mask instead of creating molds.
func (s *Session) Debug() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.debug
}

// DebugMask returns the mask shown by the last debug pass, if any.
func (s *Session) DebugMask() *image.Gray {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.debugMask
}

// Processing reports whether a detection pass is running.
func (s *Session) Processing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processing
}

// SampleAt reads the HSV color of the session image at p.
func (s *Session) SampleAt(p geometry.Point2D) (colorutil.HSV, error) {
	s.mu.RLock()
	img := s.original
	s.mu.RUnlock()
	if img == nil {
		return colorutil.HSV{}, ErrNoImage
	}

	x, y := int(math.Floor(p.X)), int(math.Floor(p.Y))
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return colorutil.HSV{}, fmt.Errorf("%w: (%d, %d) not in %v", ErrOutOfBoundsSample, x, y, img.Bounds().Size())
	}
	b, err := s.loader.Backend()
	if err != nil {
		return colorutil.HSV{}, err
	}

	var sc vision.Scope
	defer sc.Close()
	px, err := sc.Keep(b.FromImage(img.SubImage(image.Rect(x, y, x+1, y+1))))
	if err != nil {
		return colorutil.HSV{}, fmt.Errorf("sample: %w", err)
	}
	hsv, err := sc.Keep(b.ToHSV(px))
	if err != nil {
		return colorutil.HSV{}, fmt.Errorf("sample: %w", err)
	}
	return segment.SampleHSV(b, hsv, 0, 0)
}

// Molds returns the current mold collection. Collections are immutable
// snapshots.
func (s *Session) Molds() *mold.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.molds
}

// Results aggregates the current molds.
func (s *Session) Results() (mold.Result, error) {
	return s.Molds().Aggregate()
}

// SelectMold selects a mold by id; 0 clears the selection.
func (s *Session) SelectMold(id int) error {
	return s.editMolds(EventSelectionChanged, func(c *mold.Collection) (*mold.Collection, error) {
		return c.Select(id)
	})
}

// SelectAt selects the topmost mold containing p, or clears the selection.
// It returns the selected id or 0.
func (s *Session) SelectAt(p geometry.Point2D) int {
	molds := s.Molds().Molds()
	id := 0
	for i := len(molds) - 1; i >= 0; i-- {
		if geometry.PointInPolygon(p, molds[i].Contour) {
			id = molds[i].ID
			break
		}
	}
	if err := s.SelectMold(id); err != nil {
		return 0
	}
	return id
}

// SetMoldType changes one mold's type.
func (s *Session) SetMoldType(id int, t mold.Type) error {
	return s.editMolds(EventMoldsChanged, func(c *mold.Collection) (*mold.Collection, error) {
		return c.SetType(id, t)
	})
}

// SetMoldMultiplier changes one mold's multiplier.
func (s *Session) SetMoldMultiplier(id int, v float64) error {
	return s.editMolds(EventMoldsChanged, func(c *mold.Collection) (*mold.Collection, error) {
		return c.SetMultiplier(id, v)
	})
}

// DeleteMold removes one mold.
func (s *Session) DeleteMold(id int) error {
	return s.editMolds(EventMoldsChanged, func(c *mold.Collection) (*mold.Collection, error) {
		return c.Delete(id)
	})
}

func (s *Session) editMolds(event EventType, edit func(*mold.Collection) (*mold.Collection, error)) error {
	s.mu.Lock()
	next, err := edit(s.molds)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.molds = next
	s.redrawLocked()
	s.mu.Unlock()

	s.Emit(event, next)
	s.Emit(EventDisplayChanged, nil)
	return nil
}

func (s *Session) redrawLocked() {
	if s.original == nil {
		s.display = nil
		return
	}
	f, _ := s.calib.Factor()
	if f == 0 {
		f = s.guideFactor
	}
	s.display = render.Render(render.Scene{
		Original:      s.original,
		Points:        s.calib.Points(),
		Cursor:        s.cursor,
		DistanceCm:    s.calib.Distance(),
		GuideFactor:   f,
		Molds:         s.molds.Molds(),
		SelectedID:    s.molds.SelectedID(),
		DebugMask:     s.debugMask,
		DebugOutlines: s.debugOutlines,
	})
}
