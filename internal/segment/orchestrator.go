package segment

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"mold-measure/internal/vision"
)

// Kernel sizes and adaptive-threshold parameters shared by the strategies.
const (
	blurKernel = 5

	thresholdCloseKernel = 7
	thresholdOpenKernel  = 3

	colorKernel      = 5
	whiteDilateIters = 2

	adaptiveBlockSize = 21
	adaptiveC         = 5
)

// Orchestrator builds foreground masks with an injected backend. It holds
// no per-pass state and may be shared.
type Orchestrator struct {
	backend vision.Backend
}

// NewOrchestrator returns an orchestrator that runs on b.
func NewOrchestrator(b vision.Backend) *Orchestrator {
	return &Orchestrator{backend: b}
}

// Backend returns the backend the orchestrator runs on.
func (o *Orchestrator) Backend() vision.Backend {
	return o.backend
}

// Segment returns a binary mask of img (an RGB buffer) for cfg. The caller
// owns the returned mask. Intermediate buffers are released on every path.
func (o *Orchestrator) Segment(ctx context.Context, img vision.Mat, cfg Config) (vision.Mat, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("segmentation config: %w", err)
	}
	start := time.Now()

	var sc vision.Scope
	defer sc.Close()

	var (
		mask vision.Mat
		err  error
	)
	switch cfg.Strategy {
	case StrategyNormal:
		mask, err = o.threshold(ctx, &sc, img, cfg, false)
	case StrategyInverse:
		mask, err = o.threshold(ctx, &sc, img, cfg, true)
	case StrategyAdaptive:
		mask, err = o.adaptive(ctx, &sc, img, cfg)
	case StrategyWhiteHSV:
		mask, err = o.white(ctx, &sc, img, cfg)
	case StrategyEyedropper:
		mask, err = o.eyedropper(ctx, &sc, img, cfg)
	default:
		return nil, fmt.Errorf("unknown strategy %d", int(cfg.Strategy))
	}
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", cfg.Strategy, err)
	}

	log.Debug().
		Str("strategy", cfg.Strategy.String()).
		Str("backend", o.backend.Name()).
		Dur("elapsed", time.Since(start)).
		Msg("Segment: mask ready")
	return sc.Detach(mask), nil
}

// threshold: gray, blur, fixed threshold, then morphological cleanup.
func (o *Orchestrator) threshold(ctx context.Context, sc *vision.Scope, img vision.Mat, cfg Config, inverse bool) (vision.Mat, error) {
	blurred, err := o.grayBlur(ctx, sc, img)
	if err != nil {
		return nil, err
	}
	bin, err := sc.Keep(o.backend.Threshold(blurred, float64(cfg.Threshold), inverse))
	if err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}
	return o.thresholdCleanup(ctx, sc, bin)
}

// adaptive ORs an inverted local threshold with the fixed one so that both
// evenly lit light regions and locally dark outlines survive.
func (o *Orchestrator) adaptive(ctx context.Context, sc *vision.Scope, img vision.Mat, cfg Config) (vision.Mat, error) {
	blurred, err := o.grayBlur(ctx, sc, img)
	if err != nil {
		return nil, err
	}
	local, err := sc.Keep(o.backend.AdaptiveThreshold(blurred, adaptiveBlockSize, adaptiveC, true))
	if err != nil {
		return nil, fmt.Errorf("adaptive threshold: %w", err)
	}
	fixed, err := sc.Keep(o.backend.Threshold(blurred, float64(cfg.Threshold), false))
	if err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	combined, err := sc.Keep(o.backend.BitwiseOr(local, fixed))
	if err != nil {
		return nil, fmt.Errorf("combine: %w", err)
	}
	return o.thresholdCleanup(ctx, sc, combined)
}

func (o *Orchestrator) white(ctx context.Context, sc *vision.Scope, img vision.Mat, cfg Config) (vision.Mat, error) {
	hsv, err := sc.Keep(o.backend.ToHSV(img))
	if err != nil {
		return nil, fmt.Errorf("hsv: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blurred, err := sc.Keep(o.backend.GaussianBlur(hsv, blurKernel))
	if err != nil {
		return nil, fmt.Errorf("blur: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mask, err := sc.Keep(o.backend.InRange(blurred, cfg.Lower, cfg.Upper))
	if err != nil {
		return nil, fmt.Errorf("in range: %w", err)
	}
	mask, err = o.colorCleanup(ctx, sc, mask)
	if err != nil {
		return nil, err
	}
	grown, err := sc.Keep(o.backend.Morph(mask, vision.MorphDilate, colorKernel, whiteDilateIters))
	if err != nil {
		return nil, fmt.Errorf("dilate: %w", err)
	}
	return grown, nil
}

func (o *Orchestrator) eyedropper(ctx context.Context, sc *vision.Scope, img vision.Mat, cfg Config) (vision.Mat, error) {
	hsv, err := sc.Keep(o.backend.ToHSV(img))
	if err != nil {
		return nil, fmt.Errorf("hsv: %w", err)
	}

	var mask vision.Mat
	for _, band := range DeriveRange(cfg.Sampled, cfg.Tolerance) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := sc.Keep(o.backend.InRange(hsv, band.Lower, band.Upper))
		if err != nil {
			return nil, fmt.Errorf("in range %s: %w", band, err)
		}
		if mask == nil {
			mask = m
			continue
		}
		if mask, err = sc.Keep(o.backend.BitwiseOr(mask, m)); err != nil {
			return nil, fmt.Errorf("combine bands: %w", err)
		}
	}
	return o.colorCleanup(ctx, sc, mask)
}

func (o *Orchestrator) grayBlur(ctx context.Context, sc *vision.Scope, img vision.Mat) (vision.Mat, error) {
	gray, err := sc.Keep(o.backend.ToGray(img))
	if err != nil {
		return nil, fmt.Errorf("gray: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blurred, err := sc.Keep(o.backend.GaussianBlur(gray, blurKernel))
	if err != nil {
		return nil, fmt.Errorf("blur: %w", err)
	}
	return blurred, ctx.Err()
}

// thresholdCleanup closes small gaps then removes specks.
func (o *Orchestrator) thresholdCleanup(ctx context.Context, sc *vision.Scope, bin vision.Mat) (vision.Mat, error) {
	return o.closeOpen(ctx, sc, bin, thresholdCloseKernel, thresholdOpenKernel)
}

func (o *Orchestrator) colorCleanup(ctx context.Context, sc *vision.Scope, mask vision.Mat) (vision.Mat, error) {
	return o.closeOpen(ctx, sc, mask, colorKernel, colorKernel)
}

func (o *Orchestrator) closeOpen(ctx context.Context, sc *vision.Scope, mask vision.Mat, closeK, openK int) (vision.Mat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	closed, err := sc.Keep(o.backend.Morph(mask, vision.MorphClose, closeK, 1))
	if err != nil {
		return nil, fmt.Errorf("close: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opened, err := sc.Keep(o.backend.Morph(closed, vision.MorphOpen, openK, 1))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return opened, nil
}
