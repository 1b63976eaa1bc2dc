package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mold-measure/internal/measure"
	"mold-measure/internal/mold"
	"mold-measure/internal/segment"
	"mold-measure/internal/vision"
	"mold-measure/internal/vision/raster"
	"mold-measure/pkg/geometry"
)

var (
	dark  = color.RGBA{R: 35, G: 35, B: 35, A: 255}
	white = color.RGBA{R: 245, G: 245, B: 245, A: 255}
	red   = color.RGBA{R: 210, G: 25, B: 25, A: 255}
)

// table draws a large and a tiny piece of fg on a dark background.
func table(fg color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	draw.Draw(img, img.Bounds(), image.NewUniform(dark), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(40, 40, 140, 100), image.NewUniform(fg), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(220, 150, 230, 160), image.NewUniform(fg), image.Point{}, draw.Src)
	return img
}

func newSession(t *testing.T, b vision.Backend, opts Options) *Session {
	t.Helper()
	s := New(vision.ReadyLoader(b), opts)
	require.NoError(t, s.SetImage(table(white)))
	return s
}

func calibrate(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.AddCalibrationPoint(geometry.NewPoint2D(0, 0)))
	require.NoError(t, s.AddCalibrationPoint(geometry.NewPoint2D(100, 0)))
	require.NoError(t, s.SetDistance(10))
}

func TestDetectRequiresCalibration(t *testing.T) {
	s := newSession(t, raster.New(), DefaultOptions())
	before := s.Molds()
	_, err := s.Detect(context.Background())
	assert.ErrorIs(t, err, ErrMissingCalibration)
	assert.Same(t, before, s.Molds())
}

func TestDetectRequiresImage(t *testing.T) {
	s := New(vision.ReadyLoader(raster.New()), DefaultOptions())
	_, err := s.Detect(context.Background())
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestDetectBackendUnavailable(t *testing.T) {
	loader := vision.NewLoader("broken", func(context.Context) (vision.Backend, error) {
		return nil, errors.New("missing library")
	})
	s := New(loader, DefaultOptions())
	require.NoError(t, s.SetImage(table(white)))
	calibrate(t, s)

	_, err := s.Detect(context.Background())
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.False(t, s.Processing())
}

func TestDetectCreatesMolds(t *testing.T) {
	s := newSession(t, raster.New(), DefaultOptions())
	calibrate(t, s)

	var events []EventType
	for _, ev := range []EventType{EventMoldsChanged, EventProcessingChanged, EventDisplayChanged} {
		ev := ev
		s.On(ev, func(interface{}) {
			// Listeners may call back into the session.
			_ = s.Molds()
			events = append(events, ev)
		})
	}

	report, err := s.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Molds, "the tiny piece is below the minimum area")
	assert.Contains(t, events, EventMoldsChanged)

	molds := s.Molds().Molds()
	require.Len(t, molds, 1)
	m := molds[0]
	assert.Equal(t, 1, m.ID)
	assert.Equal(t, mold.TypeCut, m.Type)
	assert.InDelta(t, measure.Estimate(m.Contour, 0.1).AreaCm2, m.AreaCm2, 1e-9)
	assert.Equal(t, m.Dimensions.AreaCm2, m.AreaCm2)

	// A new pass replaces the list and keeps ids unique.
	_, err = s.Detect(context.Background())
	require.NoError(t, err)
	molds = s.Molds().Molds()
	require.Len(t, molds, 1)
	assert.Equal(t, 2, molds[0].ID)

	res, err := s.Results()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total.Count)
}

func TestResultsWithoutMolds(t *testing.T) {
	s := newSession(t, raster.New(), DefaultOptions())
	_, err := s.Results()
	assert.ErrorIs(t, err, ErrNoMolds)
}

// gated wraps the raster backend so tests can stall or slow a pass.
type gated struct {
	*raster.Backend
	slow    atomic.Bool
	delay   time.Duration
	entered chan struct{}
	release chan struct{}
}

func (g *gated) ToHSV(m vision.Mat) (vision.Mat, error) {
	if g.entered != nil {
		g.entered <- struct{}{}
		<-g.release
	}
	if g.slow.Load() {
		time.Sleep(g.delay)
	}
	return g.Backend.ToHSV(m)
}

func TestDetectBusy(t *testing.T) {
	g := &gated{Backend: raster.New(), entered: make(chan struct{}), release: make(chan struct{})}
	s := newSession(t, g, DefaultOptions())
	calibrate(t, s)

	done := make(chan error, 1)
	go func() {
		_, err := s.Detect(context.Background())
		done <- err
	}()
	<-g.entered
	assert.True(t, s.Processing())

	_, err := s.Detect(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(g.release)
	require.NoError(t, <-done)
	assert.False(t, s.Processing())
}

func TestDetectTimeoutKeepsMolds(t *testing.T) {
	g := &gated{Backend: raster.New(), delay: 50 * time.Millisecond}
	s := newSession(t, g, DefaultOptions())
	calibrate(t, s)

	_, err := s.Detect(context.Background())
	require.NoError(t, err)
	before := s.Molds()
	require.Equal(t, 1, before.Len())
	display := s.Display()

	s.opts.DetectTimeout = 10 * time.Millisecond
	g.slow.Store(true)
	var failed error
	s.On(EventDetectFailed, func(data interface{}) { failed = data.(error) })

	_, err = s.Detect(context.Background())
	assert.ErrorIs(t, err, ErrProcessingFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, err, failed)
	assert.Same(t, before, s.Molds())
	assert.Equal(t, display.Pix, s.Display().Pix)
	assert.False(t, s.Processing())
}

func TestDebugMaskFlow(t *testing.T) {
	s := newSession(t, raster.New(), DefaultOptions())
	calibrate(t, s)

	s.SetDebug(true)
	report, err := s.Detect(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Debug)
	assert.Zero(t, s.Molds().Len(), "debug passes do not create molds")

	mask := s.DebugMask()
	require.NotNil(t, mask)
	assert.Equal(t, uint8(255), mask.GrayAt(90, 70).Y)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, s.Display().RGBAAt(90, 70))

	s.SetDebug(false)
	assert.Nil(t, s.DebugMask())
	assert.Equal(t, dark, s.Display().RGBAAt(5, 190))

	_, err = s.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Molds().Len())
}

func TestEyedropper(t *testing.T) {
	s := New(vision.ReadyLoader(raster.New()), DefaultOptions())
	require.NoError(t, s.SetImage(table(red)))
	calibrate(t, s)

	_, err := s.Eyedropper(context.Background(), geometry.NewPoint2D(-1, 10))
	assert.ErrorIs(t, err, ErrOutOfBoundsSample)
	assert.Equal(t, segment.StrategyWhiteHSV, s.Config().Strategy, "config untouched")

	report, err := s.Eyedropper(context.Background(), geometry.NewPoint2D(90, 70))
	require.NoError(t, err)
	assert.Equal(t, segment.StrategyEyedropper, report.Strategy)
	assert.Equal(t, 1, report.Molds)
	assert.True(t, s.Config().HasSample)
}

func TestEyedropperKeepsConfigWhenRejected(t *testing.T) {
	s := New(vision.ReadyLoader(raster.New()), DefaultOptions())
	require.NoError(t, s.SetImage(table(red)))
	before := s.Config()
	var changed int
	s.On(EventConfigChanged, func(interface{}) { changed++ })

	_, err := s.Eyedropper(context.Background(), geometry.NewPoint2D(90, 70))
	assert.ErrorIs(t, err, ErrMissingCalibration)
	assert.Equal(t, before, s.Config())
	assert.Zero(t, changed)

	g := &gated{Backend: raster.New(), entered: make(chan struct{}), release: make(chan struct{})}
	busy := newSession(t, g, DefaultOptions())
	calibrate(t, busy)
	done := make(chan error, 1)
	go func() {
		_, err := busy.Detect(context.Background())
		done <- err
	}()
	<-g.entered
	// Only the running pass stalls; sampling reads HSV too.
	g.entered = nil

	_, err = busy.Eyedropper(context.Background(), geometry.NewPoint2D(90, 70))
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, segment.StrategyWhiteHSV, busy.Config().Strategy)
	assert.False(t, busy.Config().HasSample)

	close(g.release)
	require.NoError(t, <-done)
}

func TestRecalibrationKeepsMoldAreas(t *testing.T) {
	s := newSession(t, raster.New(), DefaultOptions())
	calibrate(t, s)
	_, err := s.Detect(context.Background())
	require.NoError(t, err)
	before := s.Molds().Molds()
	require.NotEmpty(t, before)

	require.NoError(t, s.SetDistance(20))
	require.NoError(t, s.AddCalibrationPoint(geometry.NewPoint2D(0, 0)))
	require.NoError(t, s.AddCalibrationPoint(geometry.NewPoint2D(50, 0)))
	info := s.Calibration()
	require.True(t, info.HasFactor)
	require.InDelta(t, 0.4, info.Factor, 1e-12)

	after := s.Molds().Molds()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].AreaCm2, after[i].AreaCm2)
		assert.Equal(t, before[i].Dimensions, after[i].Dimensions)
	}
}

func TestSelectAndDelete(t *testing.T) {
	s := newSession(t, raster.New(), DefaultOptions())
	calibrate(t, s)
	_, err := s.Detect(context.Background())
	require.NoError(t, err)

	id := s.SelectAt(geometry.NewPoint2D(90, 70))
	require.NotZero(t, id)
	_, ok := s.Molds().Selected()
	assert.True(t, ok)

	require.NoError(t, s.SetMoldMultiplier(id, 2))
	assert.ErrorIs(t, s.SetMoldMultiplier(id, 0), ErrInvalidMultiplier)
	require.NoError(t, s.SetMoldType(id, mold.TypeLining))
	m, _ := s.Molds().Get(id)
	assert.Equal(t, 2.0, m.Multiplier)
	assert.Equal(t, mold.TypeLining, m.Type)

	require.NoError(t, s.DeleteMold(id))
	assert.Zero(t, s.Molds().Len())
	_, ok = s.Molds().Selected()
	assert.False(t, ok)
	assert.ErrorIs(t, s.DeleteMold(id), ErrMoldNotFound)

	assert.Zero(t, s.SelectAt(geometry.NewPoint2D(5, 5)))
}

func TestCalibrationEvents(t *testing.T) {
	s := newSession(t, raster.New(), DefaultOptions())
	var last CalibrationInfo
	s.On(EventCalibrationChanged, func(data interface{}) {
		if info, ok := data.(CalibrationInfo); ok {
			last = info
		}
	})
	calibrate(t, s)
	assert.True(t, last.HasFactor)
	assert.InDelta(t, 0.1, last.Factor, 1e-12)

	p := geometry.NewPoint2D(50, 50)
	s.SetCursor(&p)
	assert.ErrorIs(t, s.SetDistance(-3), ErrInvalidCalibration)

	s.CancelCalibration()
	assert.Empty(t, last.Points)
	assert.False(t, last.HasFactor)
	assert.Equal(t, 10.0, last.DistanceCm)
}

func TestLoadImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, table(white)))

	s := New(vision.ReadyLoader(raster.New()), DefaultOptions())
	require.NoError(t, s.LoadImage(buf.Bytes()))
	assert.Equal(t, image.Pt(300, 200), s.ImageSize())
	require.NotNil(t, s.Display())
	assert.Equal(t, white, s.Display().RGBAAt(90, 70))

	assert.Error(t, s.LoadImage([]byte("not an image")))
}
