package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mold-measure/internal/metrics"
	"mold-measure/internal/report"
	"mold-measure/internal/segment"
	"mold-measure/internal/session"
	"mold-measure/pkg/colorutil"
	"mold-measure/pkg/geometry"
	"mold-measure/pkg/watcher"
)

// measureFlags holds the raw measure command line.
type measureFlags struct {
	p0, p1      string
	distance    float64
	mode        string
	threshold   int
	lower       string
	upper       string
	tolerance   int
	sample      string
	mask        string
	overlay     string
	jsonPath    string
	watch       bool
	debounce    time.Duration
	timeout     time.Duration
	metricsAddr string
}

var mf measureFlags

var measureCmd = &cobra.Command{
	Use:   "measure <image>",
	Short: "Detect molds and print their areas",
	Long: `Detect molds in a photo and print a per-mold table followed by per-type
totals. The two calibration points mark a known distance on the ruler.

Segmentation modes: normal, inverse, adaptive, white (HSV range). Passing
--sample x,y switches to eyedropper mode using the color at that pixel.`,
	Example: `  moldmeasure measure table.jpg --p0 120,40 --p1 620,40 --distance 10
  moldmeasure measure table.jpg --p0 120,40 --p1 620,40 --mode normal --threshold 180 --overlay out.png
  moldmeasure measure table.jpg --p0 120,40 --p1 620,40 --sample 300,300 --tolerance 20 --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runMeasure,
}

func init() {
	rootCmd.AddCommand(measureCmd)

	def := segment.DefaultConfig()
	f := measureCmd.Flags()
	f.StringVar(&mf.p0, "p0", "", "first calibration point x,y")
	f.StringVar(&mf.p1, "p1", "", "second calibration point x,y")
	f.Float64Var(&mf.distance, "distance", 10, "distance between the calibration points in cm")
	f.StringVar(&mf.mode, "mode", def.Strategy.String(), "segmentation mode (normal, inverse, adaptive, white)")
	f.IntVar(&mf.threshold, "threshold", def.Threshold, "gray threshold for normal, inverse and adaptive modes")
	f.StringVar(&mf.lower, "lower", hsvFlag(def.Lower.H, def.Lower.S, def.Lower.V), "lower h,s,v bound for white mode")
	f.StringVar(&mf.upper, "upper", hsvFlag(def.Upper.H, def.Upper.S, def.Upper.V), "upper h,s,v bound for white mode")
	f.IntVar(&mf.tolerance, "tolerance", def.Tolerance, "eyedropper tolerance")
	f.StringVar(&mf.sample, "sample", "", "eyedropper sample point x,y")
	f.StringVar(&mf.mask, "mask", "", "write the segmentation mask to this PNG")
	f.StringVar(&mf.overlay, "overlay", "", "write the annotated image to this PNG")
	f.StringVar(&mf.jsonPath, "json", "", "write the measurement report to this JSON file")
	f.BoolVar(&mf.watch, "watch", false, "measure again whenever the image changes")
	f.DurationVar(&mf.debounce, "debounce", 500*time.Millisecond, "quiet period before re-measuring in watch mode")
	f.DurationVar(&mf.timeout, "timeout", session.DefaultDetectTimeout, "limit for one detection pass")
	f.StringVar(&mf.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	_ = measureCmd.MarkFlagRequired("p0")
	_ = measureCmd.MarkFlagRequired("p1")
}

func hsvFlag(h, s, v int) string {
	return fmt.Sprintf("%d,%d,%d", h, s, v)
}

// job is a validated measure request.
type job struct {
	path     string
	p0, p1   geometry.Point2D
	distance float64
	cfg      segment.Config
	sample   *geometry.Point2D
	mask     string
	overlay  string
	jsonPath string
}

// buildJob validates the command line.
func buildJob(path string, f measureFlags) (job, error) {
	j := job{path: path, distance: f.distance, mask: f.mask, overlay: f.overlay, jsonPath: f.jsonPath}

	var err error
	if j.p0, err = parsePoint(f.p0); err != nil {
		return job{}, fmt.Errorf("--p0: %w", err)
	}
	if j.p1, err = parsePoint(f.p1); err != nil {
		return job{}, fmt.Errorf("--p1: %w", err)
	}
	if !(f.distance > 0) {
		return job{}, fmt.Errorf("--distance must be greater than zero")
	}

	strategy, err := segment.ParseStrategy(f.mode)
	if err != nil {
		return job{}, fmt.Errorf("--mode: %w", err)
	}
	lower, err := parseHSV(f.lower)
	if err != nil {
		return job{}, fmt.Errorf("--lower: %w", err)
	}
	upper, err := parseHSV(f.upper)
	if err != nil {
		return job{}, fmt.Errorf("--upper: %w", err)
	}
	j.cfg = segment.DefaultConfig().
		WithStrategy(strategy).
		WithThreshold(f.threshold).
		WithHSV(lower, upper).
		WithTolerance(f.tolerance)

	if f.sample != "" {
		p, err := parsePoint(f.sample)
		if err != nil {
			return job{}, fmt.Errorf("--sample: %w", err)
		}
		j.sample = &p
		j.cfg.Strategy = segment.StrategyEyedropper
		// The sampled color is only known once the image is loaded.
		if err := j.cfg.WithSample(colorutil.HSV{}).Validate(); err != nil {
			return job{}, err
		}
		return j, nil
	}
	if strategy == segment.StrategyEyedropper {
		return job{}, fmt.Errorf("--mode eyedropper needs --sample")
	}
	if err := j.cfg.Validate(); err != nil {
		return job{}, err
	}
	return j, nil
}

func runMeasure(cmd *cobra.Command, args []string) error {
	j, err := buildJob(args[0], mf)
	if err != nil {
		return err
	}
	loader, err := loadBackend(cmd)
	if err != nil {
		return err
	}

	opts := session.Options{DetectTimeout: mf.timeout}
	if mf.metricsAddr != "" {
		m := metrics.New()
		opts.Observer = m
		go func() {
			if err := m.StartServer(mf.metricsAddr); err != nil {
				log.Error().Err(err).Str("addr", mf.metricsAddr).Msg("Metrics: server stopped")
			}
		}()
	}
	s := session.New(loader, opts)

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if !mf.watch {
		return measure(ctx, s, j, out)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchMeasure(ctx, s, j, out, mf.debounce)
}

// measure runs one full pass over j and prints the report.
func measure(ctx context.Context, s *session.Session, j job, out io.Writer) error {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return err
	}
	if err := s.LoadImage(data); err != nil {
		return fmt.Errorf("%s: %w", j.path, err)
	}
	if err := s.SetDistance(j.distance); err != nil {
		return err
	}
	for _, p := range []geometry.Point2D{j.p0, j.p1} {
		if err := s.AddCalibrationPoint(p); err != nil {
			return fmt.Errorf("calibration: %w", err)
		}
	}

	cfg := j.cfg
	if j.sample != nil {
		hsv, err := s.SampleAt(*j.sample)
		if err != nil {
			return fmt.Errorf("--sample: %w", err)
		}
		cfg = cfg.WithSample(hsv)
		log.Info().Str("hsv", hsv.String()).Msg("CLI: sampled color")
	}
	s.SetConfig(cfg)

	if j.mask != "" {
		s.SetDebug(true)
		rep, err := s.Detect(ctx)
		if err != nil {
			return err
		}
		mask := s.DebugMask()
		if mask == nil {
			return fmt.Errorf("no mask produced")
		}
		if err := writePNG(j.mask, mask); err != nil {
			return err
		}
		log.Info().Int("regions", rep.Regions).Str("path", j.mask).Msg("CLI: mask written")
		s.SetDebug(false)
	}

	rep, err := s.Detect(ctx)
	if err != nil {
		return err
	}
	if err := printReport(out, j.path, s.Calibration(), rep, s.Molds().Molds()); err != nil {
		return err
	}

	if j.overlay != "" {
		if err := writePNG(j.overlay, s.Display()); err != nil {
			return err
		}
		log.Info().Str("path", j.overlay).Msg("CLI: overlay written")
	}
	if j.jsonPath != "" {
		r := report.New(s.Calibration(), s.Config(), s.Molds().Molds())
		imgAbs, err1 := filepath.Abs(j.path)
		jsonAbs, err2 := filepath.Abs(j.jsonPath)
		if err1 == nil && err2 == nil {
			r.SetImage(jsonAbs, imgAbs)
		}
		if err := r.Save(j.jsonPath); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		log.Info().Str("path", j.jsonPath).Msg("CLI: report written")
	}
	return nil
}

// watchMeasure measures once, then again after every change to the image
// until ctx is done.
func watchMeasure(ctx context.Context, s *session.Session, j job, out io.Writer, debounce time.Duration) error {
	if err := measure(ctx, s, j, out); err != nil {
		log.Error().Err(err).Str("path", j.path).Msg("CLI: measure failed")
	}

	fw, err := watcher.NewFileWatcher(debounce)
	if err != nil {
		return err
	}
	defer fw.Close()

	changed := make(chan struct{}, 1)
	if err := fw.Watch([]string{j.path}, func(string) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}); err != nil {
		return err
	}
	fw.Start()
	log.Info().Str("path", j.path).Msg("CLI: watching for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			fmt.Fprintln(out)
			if err := measure(ctx, s, j, out); err != nil {
				log.Error().Err(err).Str("path", j.path).Msg("CLI: measure failed")
			}
		}
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
