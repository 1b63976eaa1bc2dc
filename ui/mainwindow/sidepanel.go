package mainwindow

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"mold-measure/internal/mold"
	"mold-measure/internal/segment"
	"mold-measure/internal/session"
	"mold-measure/pkg/colorutil"
	"mold-measure/ui/prefs"
)

// sidePanel holds the calibration, detection and mold widgets.
type sidePanel struct {
	mw *MainWindow

	// Calibration
	distance    *widget.Entry
	calibrate   *widget.Button
	suggest     *widget.Button
	calibStatus *widget.Label

	// Detection
	mode       *widget.Select
	threshold  *widget.Slider
	thrLabel   *widget.Label
	hsv        [6]*widget.Slider
	hsvLabel   *widget.Label
	tolerance  *widget.Slider
	tolLabel   *widget.Label
	eyedropper *widget.Button
	debug      *widget.Check
	detect     *widget.Button
	stop       *widget.Button
	progress   *widget.ProgressBarInfinite

	thresholdBox *fyne.Container
	hsvBox       *fyne.Container

	// Molds
	list       *widget.List
	molds      []mold.Mold
	typeRadio  *widget.RadioGroup
	multiplier *widget.Entry
	dimensions *widget.Label
	deleteBtn  *widget.Button
	results    *widget.Label

	// syncing suppresses widget callbacks while widgets are updated from
	// session state.
	syncing bool
}

func newSidePanel(mw *MainWindow) *sidePanel {
	sp := &sidePanel{mw: mw}
	return sp
}

// Container builds the panel layout.
func (sp *sidePanel) Container() fyne.CanvasObject {
	return container.NewVScroll(container.NewVBox(
		widget.NewCard("Calibration", "", sp.calibrationSection()),
		widget.NewCard("Detection", "", sp.detectionSection()),
		widget.NewCard("Molds", "", sp.moldSection()),
		widget.NewCard("Results", "", sp.resultsSection()),
	))
}

func (sp *sidePanel) calibrationSection() fyne.CanvasObject {
	sp.distance = widget.NewEntry()
	sp.distance.SetText(formatFloat(sp.mw.prefs.Distance()))
	sp.distance.Validator = func(s string) error {
		_, err := parsePositive(s)
		return err
	}
	sp.distance.OnSubmitted = func(s string) { sp.applyDistance() }
	sp.distance.OnChanged = func(s string) {
		if !sp.syncing {
			sp.applyDistance()
		}
	}

	sp.calibrate = widget.NewButtonWithIcon("Mark ruler", theme.ContentAddIcon(), func() {
		sp.mw.setClickMode(modeCalibrate)
	})
	sp.suggest = widget.NewButtonWithIcon("Suggest", theme.SearchIcon(), sp.mw.onSuggestDistance)
	cancel := widget.NewButtonWithIcon("Cancel", theme.CancelIcon(), sp.mw.onCancelCalibration)
	sp.calibStatus = widget.NewLabel("Click two points of known separation on the ruler")
	sp.calibStatus.Wrapping = fyne.TextWrapWord

	return container.NewVBox(
		container.NewBorder(nil, nil, widget.NewLabel("Distance (cm)"), nil, sp.distance),
		container.NewGridWithColumns(3, sp.calibrate, sp.suggest, cancel),
		sp.calibStatus,
	)
}

func (sp *sidePanel) detectionSection() fyne.CanvasObject {
	labels := make([]string, 0, len(segment.Strategies))
	for _, s := range segment.Strategies {
		if s != segment.StrategyEyedropper {
			labels = append(labels, s.Label())
		}
	}
	sp.mode = widget.NewSelect(labels, func(label string) {
		if sp.syncing {
			return
		}
		for _, s := range segment.Strategies {
			if s.Label() == label {
				sp.mw.updateConfig(func(c segment.Config) segment.Config { return c.WithStrategy(s) })
				return
			}
		}
	})

	sp.threshold = steppedSlider(segment.ThresholdMin, segment.ThresholdMax, segment.ThresholdStep)
	sp.thrLabel = widget.NewLabel("")
	sp.threshold.OnChanged = func(v float64) { sp.thrLabel.SetText(fmt.Sprintf("Threshold: %d", int(v))) }
	sp.threshold.OnChangeEnded = func(v float64) {
		if !sp.syncing {
			sp.mw.updateConfig(func(c segment.Config) segment.Config { return c.WithThreshold(int(v)) })
		}
	}
	sp.thresholdBox = container.NewVBox(sp.thrLabel, sp.threshold)

	sp.hsvLabel = widget.NewLabel("")
	maxes := [6]int{colorutil.HueMax, colorutil.SatMax, colorutil.ValMax, colorutil.HueMax, colorutil.SatMax, colorutil.ValMax}
	for i := range sp.hsv {
		sp.hsv[i] = steppedSlider(0, maxes[i], 1)
		sp.hsv[i].OnChanged = func(float64) { sp.hsvLabel.SetText(sp.hsvText()) }
		sp.hsv[i].OnChangeEnded = func(float64) {
			if !sp.syncing {
				lower, upper := sp.hsvBounds()
				sp.mw.updateConfig(func(c segment.Config) segment.Config { return c.WithHSV(lower, upper) })
			}
		}
	}
	sp.hsvBox = container.NewVBox(
		sp.hsvLabel,
		container.NewGridWithColumns(2,
			widget.NewLabel("H min"), sp.hsv[0], widget.NewLabel("S min"), sp.hsv[1], widget.NewLabel("V min"), sp.hsv[2],
			widget.NewLabel("H max"), sp.hsv[3], widget.NewLabel("S max"), sp.hsv[4], widget.NewLabel("V max"), sp.hsv[5],
		),
	)

	sp.tolerance = steppedSlider(segment.ToleranceMin, segment.ToleranceMax, segment.ToleranceStep)
	sp.tolLabel = widget.NewLabel("")
	sp.tolerance.OnChanged = func(v float64) { sp.tolLabel.SetText(fmt.Sprintf("Eyedropper tolerance: %d", int(v))) }
	sp.tolerance.OnChangeEnded = func(v float64) {
		if !sp.syncing {
			sp.mw.updateConfig(func(c segment.Config) segment.Config { return c.WithTolerance(int(v)) })
		}
	}
	sp.eyedropper = widget.NewButtonWithIcon("Pick color", theme.ColorPaletteIcon(), func() {
		sp.mw.setClickMode(modeEyedropper)
	})

	sp.debug = widget.NewCheck("Show mask", func(on bool) {
		if !sp.syncing {
			sp.mw.session.SetDebug(on)
			sp.mw.prefs.SetBool(prefs.KeyShowDebug, on)
			sp.mw.setMenuChecked(sp.mw.debugItem, on)
		}
	})

	sp.detect = widget.NewButtonWithIcon("Detect molds", theme.MediaPlayIcon(), sp.mw.onDetect)
	sp.detect.Importance = widget.HighImportance
	sp.stop = widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), sp.mw.onStopDetect)
	sp.stop.Disable()
	sp.progress = widget.NewProgressBarInfinite()
	sp.progress.Stop()
	sp.progress.Hide()

	return container.NewVBox(
		container.NewBorder(nil, nil, widget.NewLabel("Mode"), nil, sp.mode),
		sp.thresholdBox,
		sp.hsvBox,
		sp.tolLabel, sp.tolerance, sp.eyedropper,
		sp.debug,
		container.NewGridWithColumns(2, sp.detect, sp.stop),
		sp.progress,
	)
}

func (sp *sidePanel) moldSection() fyne.CanvasObject {
	sp.list = widget.NewList(
		func() int { return len(sp.molds) },
		func() fyne.CanvasObject { return widget.NewLabel("#000 Lining x10 0000.00 cm²") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id < 0 || id >= len(sp.molds) {
				return
			}
			obj.(*widget.Label).SetText(moldRow(sp.molds[id]))
		},
	)
	sp.list.OnSelected = func(id widget.ListItemID) {
		if sp.syncing || id < 0 || id >= len(sp.molds) {
			return
		}
		sp.mw.selectMold(sp.molds[id].ID)
	}

	typeLabels := make([]string, len(mold.Types))
	for i, t := range mold.Types {
		typeLabels[i] = t.Label()
	}
	sp.typeRadio = widget.NewRadioGroup(typeLabels, func(label string) {
		if sp.syncing || label == "" {
			return
		}
		for _, t := range mold.Types {
			if t.Label() == label {
				sp.mw.setSelectedType(t)
			}
		}
	})
	sp.typeRadio.Horizontal = true

	sp.multiplier = widget.NewEntry()
	sp.multiplier.Validator = func(s string) error {
		_, err := parsePositive(s)
		return err
	}
	sp.multiplier.OnSubmitted = func(s string) { sp.mw.setSelectedMultiplier(s) }
	apply := widget.NewButton("Apply", func() { sp.mw.setSelectedMultiplier(sp.multiplier.Text) })

	sp.dimensions = widget.NewLabel("")
	sp.deleteBtn = widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), sp.mw.onDeleteSelected)

	list := container.NewGridWrap(fyne.NewSize(280, 180), sp.list)
	return container.NewVBox(
		list,
		sp.typeRadio,
		container.NewBorder(nil, nil, widget.NewLabel("Multiplier"), apply, sp.multiplier),
		sp.dimensions,
		sp.deleteBtn,
	)
}

func (sp *sidePanel) resultsSection() fyne.CanvasObject {
	sp.results = widget.NewLabel("No molds detected")
	sp.results.TextStyle = fyne.TextStyle{Monospace: true}
	return sp.results
}

// syncConfig shows cfg in the detection widgets.
func (sp *sidePanel) syncConfig(cfg segment.Config) {
	sp.syncing = true
	defer func() { sp.syncing = false }()

	if cfg.Strategy != segment.StrategyEyedropper {
		sp.mode.SetSelected(cfg.Strategy.Label())
	}
	sp.threshold.SetValue(float64(cfg.Threshold))
	vals := [6]int{cfg.Lower.H, cfg.Lower.S, cfg.Lower.V, cfg.Upper.H, cfg.Upper.S, cfg.Upper.V}
	for i, v := range vals {
		sp.hsv[i].SetValue(float64(v))
	}
	sp.tolerance.SetValue(float64(cfg.Tolerance))
	sp.thrLabel.SetText(fmt.Sprintf("Threshold: %d", cfg.Threshold))
	sp.tolLabel.SetText(fmt.Sprintf("Eyedropper tolerance: %d", cfg.Tolerance))
	sp.hsvLabel.SetText(sp.hsvText())

	switch cfg.Strategy {
	case segment.StrategyNormal, segment.StrategyInverse, segment.StrategyAdaptive:
		sp.thresholdBox.Show()
		sp.hsvBox.Hide()
	case segment.StrategyWhiteHSV:
		sp.thresholdBox.Hide()
		sp.hsvBox.Show()
	case segment.StrategyEyedropper:
		sp.thresholdBox.Hide()
		sp.hsvBox.Hide()
	}
}

// syncCalibration shows the calibration state.
func (sp *sidePanel) syncCalibration(info session.CalibrationInfo) {
	switch {
	case info.HasFactor:
		sp.calibStatus.SetText(fmt.Sprintf("Calibrated: %.6f cm/px", info.Factor))
	case len(info.Points) == 1:
		sp.calibStatus.SetText("Click the second reference point")
	default:
		sp.calibStatus.SetText("Click two points of known separation on the ruler")
	}
}

// syncMolds shows the mold list, the selected mold and the results.
func (sp *sidePanel) syncMolds(c *mold.Collection) {
	sp.syncing = true
	defer func() { sp.syncing = false }()

	sp.molds = c.Molds()
	sp.list.Refresh()

	sel, ok := c.Selected()
	if ok {
		for i, m := range sp.molds {
			if m.ID == sel.ID {
				sp.list.Select(i)
			}
		}
		sp.typeRadio.SetSelected(sel.Type.Label())
		sp.multiplier.SetText(formatFloat(sel.Multiplier))
		sp.dimensions.SetText(fmt.Sprintf("#%d  %s", sel.ID, sel.Dimensions.Format()))
		sp.typeRadio.Enable()
		sp.multiplier.Enable()
		sp.deleteBtn.Enable()
	} else {
		sp.list.UnselectAll()
		sp.typeRadio.SetSelected("")
		sp.multiplier.SetText("")
		sp.dimensions.SetText("")
		sp.typeRadio.Disable()
		sp.multiplier.Disable()
		sp.deleteBtn.Disable()
	}

	res, err := c.Aggregate()
	if err != nil {
		sp.results.SetText("No molds detected")
		return
	}
	sp.results.SetText(formatResult(res))
}

// setProcessing toggles the busy state of the detection controls.
func (sp *sidePanel) setProcessing(on bool) {
	if on {
		sp.detect.Disable()
		sp.eyedropper.Disable()
		sp.stop.Enable()
		sp.progress.Show()
		sp.progress.Start()
		return
	}
	sp.detect.Enable()
	sp.eyedropper.Enable()
	sp.stop.Disable()
	sp.progress.Stop()
	sp.progress.Hide()
}

func (sp *sidePanel) applyDistance() {
	d, err := parsePositive(sp.distance.Text)
	if err != nil {
		return
	}
	if err := sp.mw.session.SetDistance(d); err != nil {
		sp.mw.updateStatus(err.Error())
		return
	}
	sp.mw.prefs.SetFloat(prefs.KeyDistance, d)
}

func (sp *sidePanel) hsvBounds() (colorutil.HSV, colorutil.HSV) {
	v := func(i int) int { return int(sp.hsv[i].Value) }
	return colorutil.HSV{H: v(0), S: v(1), V: v(2)}, colorutil.HSV{H: v(3), S: v(4), V: v(5)}
}

func (sp *sidePanel) hsvText() string {
	lower, upper := sp.hsvBounds()
	return fmt.Sprintf("HSV %s .. %s", lower, upper)
}

func steppedSlider(lo, hi, step int) *widget.Slider {
	s := widget.NewSlider(float64(lo), float64(hi))
	s.Step = float64(step)
	return s
}

func moldRow(m mold.Mold) string {
	return fmt.Sprintf("#%d %s x%s %.2f cm²", m.ID, m.Type.Label(), formatFloat(m.Multiplier), m.AreaCm2)
}

// formatResult renders the per-type summary table.
func formatResult(res mold.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %5s %10s %10s\n", "Type", "Count", "Area", "Total")
	for _, t := range res.Present() {
		s := res.ByType[t]
		fmt.Fprintf(&b, "%-8s %5d %10.2f %10.2f\n", t.Label(), s.Count, s.TotalArea, s.TotalAreaWithMultiplier)
	}
	fmt.Fprintf(&b, "%-8s %5d %10.2f %10.2f", "Total", res.Total.Count, res.Total.TotalArea, res.Total.TotalAreaWithMultiplier)
	return b.String()
}

func parsePositive(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if !(v > 0) {
		return 0, fmt.Errorf("must be greater than zero")
	}
	return v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
