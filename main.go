// Package main provides the entry point for the Mold Measure desktop
// application.
package main

import (
	"context"
	"os"
	"time"

	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"mold-measure/internal/app"
	"mold-measure/internal/logging"
	"mold-measure/internal/metrics"
	"mold-measure/internal/ocr"
	"mold-measure/internal/session"
	"mold-measure/internal/version"
	"mold-measure/internal/vision"
	"mold-measure/internal/vision/raster"
	"mold-measure/ui/mainwindow"
	"mold-measure/ui/prefs"

	_ "mold-measure/internal/vision/cvbackend"
)

const appID = "io.github.moldmeasure"

func main() {
	logLevel := flag.String("log-level", "info", "console log level")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
	hotReload := flag.Bool("hot-reload", false, "offer a restart when the binary is rebuilt")
	flag.Parse()

	opts := logging.DefaultOptions()
	if lvl, err := logging.ParseLevel(*logLevel); err == nil {
		opts.ConsoleLevel = lvl
	}
	closeLog, err := logging.Init(opts)
	if err != nil {
		opts.Dir = ""
		closeLog, _ = logging.Init(opts)
		log.Error().Err(err).Msg("Logging: file output disabled")
	}
	defer closeLog()

	log.Info().Str("version", version.String()).Msg("Starting Mold Measure")

	appPrefs := prefs.Load()
	loader := newLoader(appPrefs)

	m := metrics.New()
	sess := session.New(loader, session.Options{
		DetectTimeout: session.DefaultDetectTimeout,
		Observer:      m,
	})
	sess.On(session.EventProcessingChanged, func(data interface{}) {
		if on, ok := data.(bool); ok {
			m.SetProcessing(on)
		}
	})
	if *metricsAddr != "" {
		go func() {
			if err := m.StartServer(*metricsAddr); err != nil {
				log.Error().Err(err).Str("addr", *metricsAddr).Msg("Metrics: server stopped")
			}
		}()
	}

	var reader ocr.LabelReader
	if eng, err := ocr.NewEngine(ocr.DefaultRulerParams()); err != nil {
		log.Info().Err(err).Msg("OCR: distance suggestions disabled")
	} else {
		reader = eng
		defer eng.Close()
	}

	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(&app.MoldMeasureTheme{})

	win := mainwindow.New(fyneApp, sess, appPrefs, reader)

	go func() {
		if err := loader.Load(context.Background()); err != nil {
			log.Error().Err(err).Msg("Vision: backend unavailable at startup")
		}
	}()

	if args := flag.Args(); len(args) > 0 {
		win.LoadImageFile(args[0])
	}

	if *hotReload {
		setupHotReload(win)
	}

	win.ShowAndRun()
}

// newLoader picks the stored backend, falling back to the pure-Go one.
func newLoader(p *prefs.Prefs) *vision.Loader {
	name := p.String(prefs.KeyBackend)
	if name == "" {
		name = raster.Name
	}
	loader, err := vision.NewNamedLoader(name)
	if err != nil {
		log.Warn().Err(err).Str("backend", name).Msg("Vision: falling back to raster backend")
		loader, _ = vision.NewNamedLoader(raster.Name)
	}
	return loader
}

// setupHotReload offers a restart when the binary is recompiled.
func setupHotReload(win *mainwindow.MainWindow) {
	reloader, err := app.NewHotReloader(2 * time.Second)
	if err != nil {
		log.Warn().Err(err).Msg("Hot reload: disabled")
		return
	}

	log.Info().Str("path", reloader.ExecPath()).
		Str("modified", reloader.StartupTime().Format(time.TimeOnly)).
		Msg("Hot reload: watching binary")

	reloader.OnNewBinary(func() {
		dialog.ShowConfirm("New Version Available",
			"The application binary has been updated.\nRestart now?",
			func(restart bool) {
				if !restart {
					reloader.ResetBaseline()
					return
				}
				win.SavePreferences()
				log.Info().Msg("Hot reload: restarting")
				if err := reloader.Restart(); err != nil {
					log.Error().Err(err).Msg("Hot reload: restart failed")
					os.Exit(1)
				}
			}, win.Window)
	})
	reloader.Start()
}
