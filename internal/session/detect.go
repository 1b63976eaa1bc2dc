package session

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"time"

	"github.com/rs/zerolog/log"

	"mold-measure/internal/contour"
	"mold-measure/internal/mold"
	"mold-measure/internal/segment"
	"mold-measure/internal/vision"
	"mold-measure/pkg/colorutil"
	"mold-measure/pkg/geometry"
)

// Report summarizes a successful detection pass.
type Report struct {
	Strategy segment.Strategy
	// Regions is the number of boundaries that passed the area filter.
	Regions int
	// Molds is the number of molds created; zero for a debug pass.
	Molds   int
	Debug   bool
	Elapsed time.Duration
}

// Detect segments the session image with the current settings. In debug
// mode the mask is displayed and the molds are left alone; otherwise the
// detected regions replace the mold list. A failed or timed-out pass
// returns ErrProcessingFailure, restores the normal display and keeps the
// previous molds.
func (s *Session) Detect(ctx context.Context) (Report, error) {
	return s.detect(ctx, nil)
}

// Eyedropper samples the color at p and detects regions of that color.
// The sampled settings are kept only once the pass has started.
func (s *Session) Eyedropper(ctx context.Context, p geometry.Point2D) (Report, error) {
	hsv, err := s.SampleAt(p)
	if err != nil {
		return Report{}, err
	}
	log.Info().Str("hsv", hsv.String()).Msg("Session: eyedropper sample")
	return s.detect(ctx, &hsv)
}

// detect runs one pass. A non-nil sample switches the settings to the
// eyedropper strategy after every precondition has passed.
func (s *Session) detect(ctx context.Context, sample *colorutil.HSV) (Report, error) {
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return Report{}, ErrBusy
	}
	if s.original == nil {
		s.mu.Unlock()
		return Report{}, ErrNoImage
	}
	factor, ok := s.calib.Factor()
	if !ok {
		s.mu.Unlock()
		return Report{}, ErrMissingCalibration
	}
	backend, err := s.loader.Backend()
	if err != nil {
		s.mu.Unlock()
		return Report{}, err
	}
	cfg := s.cfg
	if sample != nil {
		cfg = cfg.WithSample(*sample)
	}
	if err := cfg.Validate(); err != nil {
		s.mu.Unlock()
		return Report{}, fmt.Errorf("detect: %w", err)
	}
	s.cfg = cfg
	debug := s.debug
	img := s.original

	// A mask left from a debug pass is cleared before the next pass.
	restored := s.debugMask != nil
	if restored {
		s.debugMask, s.debugOutlines = nil, nil
		s.redrawLocked()
	}
	s.processing = true
	s.mu.Unlock()

	if sample != nil {
		s.Emit(EventConfigChanged, cfg)
	}
	if restored {
		s.Emit(EventDisplayChanged, nil)
	}
	s.Emit(EventProcessingChanged, true)

	params := contour.FullImageParams
	if cfg.Strategy == segment.StrategyEyedropper {
		params = contour.EyedropperParams
	}

	start := time.Now()
	passCtx, cancel := context.WithTimeout(ctx, s.opts.DetectTimeout)
	res, err := runPass(passCtx, backend, img, cfg, params, debug)
	cancel()
	elapsed := time.Since(start)

	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrProcessingFailure, cfg.Strategy, err)
		s.mu.Lock()
		s.processing = false
		s.redrawLocked()
		s.mu.Unlock()

		log.Error().Err(err).Str("strategy", cfg.Strategy.String()).Dur("elapsed", elapsed).
			Msg("Session: detection failed")
		s.observe(cfg, elapsed, 0, err)
		s.Emit(EventProcessingChanged, false)
		s.Emit(EventDisplayChanged, nil)
		s.Emit(EventDetectFailed, err)
		return Report{}, err
	}

	report := Report{Strategy: cfg.Strategy, Regions: len(res.regions), Debug: debug, Elapsed: elapsed}

	s.mu.Lock()
	s.processing = false
	if debug {
		s.debugMask = res.mask
		s.debugOutlines = make([][]geometry.Point2D, len(res.regions))
		for i, r := range res.regions {
			s.debugOutlines[i] = r.Contour
		}
	} else {
		molds := make([]mold.Mold, 0, len(res.regions))
		for _, r := range res.regions {
			molds = append(molds, s.molds.Create(r.Contour, r.PixelArea, factor))
		}
		s.molds = s.molds.Replace(molds)
		report.Molds = len(molds)
	}
	s.redrawLocked()
	snapshot := s.molds
	s.mu.Unlock()

	log.Info().
		Str("strategy", cfg.Strategy.String()).
		Bool("debug", debug).
		Int("regions", report.Regions).
		Int("molds", report.Molds).
		Dur("elapsed", elapsed).
		Msg("Session: detection complete")
	s.observe(cfg, elapsed, report.Molds, nil)
	s.Emit(EventProcessingChanged, false)
	if !debug {
		s.Emit(EventMoldsChanged, snapshot)
	}
	s.Emit(EventDisplayChanged, nil)
	return report, nil
}

func (s *Session) observe(cfg segment.Config, elapsed time.Duration, molds int, err error) {
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveDetect(cfg.Strategy.String(), elapsed, molds, err)
	}
}

type passResult struct {
	regions []contour.Region
	mask    *image.Gray
}

// runPass runs segmentation and post-processing. Backend buffers are
// released before it returns; the mask is copied out only for debug passes.
func runPass(ctx context.Context, b vision.Backend, img image.Image, cfg segment.Config, params contour.Params, debug bool) (passResult, error) {
	var sc vision.Scope
	defer sc.Close()

	src, err := sc.Keep(b.FromImage(img))
	if err != nil {
		return passResult{}, fmt.Errorf("load image: %w", err)
	}
	mask, err := sc.Keep(segment.NewOrchestrator(b).Segment(ctx, src, cfg))
	if err != nil {
		return passResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return passResult{}, err
	}
	regions, err := contour.NewPostProcessor(b).Process(mask, params)
	if err != nil {
		return passResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return passResult{}, err
	}

	res := passResult{regions: regions}
	if debug {
		out, err := b.ToImage(mask)
		if err != nil {
			return passResult{}, fmt.Errorf("export mask: %w", err)
		}
		res.mask = toGray(out)
	}
	return res, nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	r := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(g, g.Bounds(), img, r.Min, draw.Src)
	return g
}
