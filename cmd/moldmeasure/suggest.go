package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mold-measure/internal/ocr"
	"mold-measure/internal/session"
)

var (
	suggestP0, suggestP1 string
	suggestParams        = ocr.DefaultRulerParams()
)

var suggestCmd = &cobra.Command{
	Use:   "suggest-distance <image>",
	Short: "Read the ruler between two points and suggest their distance",
	Long: `Read the printed numbers of the ruler near the line p0-p1 and fit a linear
scale to them. The suggested distance is the scale's length between the
two points. Requires a build with the tesseract tag.`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	f := suggestCmd.Flags()
	f.StringVar(&suggestP0, "p0", "", "first calibration point x,y")
	f.StringVar(&suggestP1, "p1", "", "second calibration point x,y")
	f.Float64Var(&suggestParams.Band, "band", suggestParams.Band, "search distance from the p0-p1 line in pixels")
	f.Float64Var(&suggestParams.MinConfidence, "min-confidence", suggestParams.MinConfidence, "drop OCR words below this confidence (0-100)")
	f.Float64Var(&suggestParams.MinRSquared, "min-r2", suggestParams.MinRSquared, "reject label sets with a worse linear fit")

	_ = suggestCmd.MarkFlagRequired("p0")
	_ = suggestCmd.MarkFlagRequired("p1")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	p0, err := parsePoint(suggestP0)
	if err != nil {
		return fmt.Errorf("--p0: %w", err)
	}
	p1, err := parsePoint(suggestP1)
	if err != nil {
		return fmt.Errorf("--p1: %w", err)
	}

	eng, err := ocr.NewEngine(suggestParams)
	if errors.Is(err, ocr.ErrUnavailable) {
		return fmt.Errorf("%w: rebuild with -tags tesseract", err)
	}
	if err != nil {
		return err
	}
	defer eng.Close()

	loader, err := loadBackend(cmd)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	s := session.New(loader, session.DefaultOptions())
	if err := s.LoadImage(data); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	sug, err := ocr.Suggest(eng, s.Original(), p0, p1, suggestParams)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "distance: %.1f cm\n", sug.DistanceCm)
	fmt.Fprintf(out, "scale:    %.6f cm/px (R² %.4f)\n", sug.CmPerPixel, sug.RSquared)
	for _, l := range sug.Labels {
		fmt.Fprintf(out, "  label %g at (%.0f, %.0f) confidence %.0f\n", l.Value, l.Center.X, l.Center.Y, l.Confidence)
	}
	return nil
}
