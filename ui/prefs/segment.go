package prefs

import (
	"mold-measure/internal/segment"
	"mold-measure/pkg/colorutil"
)

// DefaultDistanceCm is the reference distance offered on first start.
const DefaultDistanceCm = 10.0

// Distance returns the last reference distance.
func (p *Prefs) Distance() float64 {
	d := p.FloatWithFallback(KeyDistance, DefaultDistanceCm)
	if d <= 0 {
		return DefaultDistanceCm
	}
	return d
}

// SegmentConfig restores the saved segmentation settings on top of the
// defaults. Each saved value that does not validate falls back to its
// default.
func (p *Prefs) SegmentConfig() segment.Config {
	def := segment.DefaultConfig()
	cfg := def

	if s, err := segment.ParseStrategy(p.String(KeyStrategy)); err == nil && s != segment.StrategyEyedropper {
		cfg = cfg.WithStrategy(s)
	}
	if t := def.WithStrategy(segment.StrategyNormal).WithThreshold(p.Int(KeyThreshold, def.Threshold)); t.Validate() == nil {
		cfg = cfg.WithThreshold(t.Threshold)
	}
	lower := colorutil.HSV{
		H: p.Int(KeyLowerH, def.Lower.H),
		S: p.Int(KeyLowerS, def.Lower.S),
		V: p.Int(KeyLowerV, def.Lower.V),
	}
	upper := colorutil.HSV{
		H: p.Int(KeyUpperH, def.Upper.H),
		S: p.Int(KeyUpperS, def.Upper.S),
		V: p.Int(KeyUpperV, def.Upper.V),
	}
	if def.WithStrategy(segment.StrategyWhiteHSV).WithHSV(lower, upper).Validate() == nil {
		cfg = cfg.WithHSV(lower, upper)
	}
	if t := def.WithSample(colorutil.HSV{}).WithTolerance(p.Int(KeyTolerance, def.Tolerance)); t.Validate() == nil {
		cfg = cfg.WithTolerance(t.Tolerance)
	}
	return cfg
}

// SetSegmentConfig stores cfg. An eyedropper sample is per image and is
// not persisted; the strategy it replaced is kept.
func (p *Prefs) SetSegmentConfig(cfg segment.Config) {
	if cfg.Strategy != segment.StrategyEyedropper {
		p.SetString(KeyStrategy, cfg.Strategy.String())
	}
	p.SetInt(KeyThreshold, cfg.Threshold)
	p.SetInt(KeyLowerH, cfg.Lower.H)
	p.SetInt(KeyLowerS, cfg.Lower.S)
	p.SetInt(KeyLowerV, cfg.Lower.V)
	p.SetInt(KeyUpperH, cfg.Upper.H)
	p.SetInt(KeyUpperS, cfg.Upper.S)
	p.SetInt(KeyUpperV, cfg.Upper.V)
	p.SetInt(KeyTolerance, cfg.Tolerance)
}
