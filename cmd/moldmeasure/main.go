// Command moldmeasure measures molds in a photo without the desktop UI.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mold-measure/internal/logging"
	"mold-measure/internal/version"
	"mold-measure/internal/vision"
	"mold-measure/internal/vision/raster"

	_ "mold-measure/internal/vision/cvbackend"
)

var (
	logLevel    string
	backendName string
	closeLog    = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "moldmeasure",
	Short: "Measure pattern pieces photographed next to a ruler",
	Long: `moldmeasure segments a photo of pattern pieces (molds), converts their
pixel areas to square centimeters using two calibration points of known
separation, and prints per-mold and per-type totals.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		lvl, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		opts := logging.DefaultOptions()
		opts.Dir = ""
		opts.ConsoleLevel = lvl
		cleanup, err := logging.Init(opts)
		if err != nil {
			return err
		}
		closeLog = cleanup
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLog()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", raster.Name,
		fmt.Sprintf("vision backend %v", vision.Names()))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadBackend returns a ready loader for the selected backend.
func loadBackend(cmd *cobra.Command) (*vision.Loader, error) {
	loader, err := vision.NewNamedLoader(backendName)
	if err != nil {
		return nil, err
	}
	if err := loader.Load(cmd.Context()); err != nil {
		return nil, err
	}
	log.Debug().Str("backend", loader.Name()).Msg("CLI: backend ready")
	return loader, nil
}
