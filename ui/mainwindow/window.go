// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog/log"

	"mold-measure/internal/mold"
	"mold-measure/internal/ocr"
	"mold-measure/internal/report"
	"mold-measure/internal/segment"
	"mold-measure/internal/session"
	"mold-measure/internal/version"
	"mold-measure/internal/vision"
	"mold-measure/pkg/geometry"
	"mold-measure/ui/canvas"
	"mold-measure/ui/dialogs"
	"mold-measure/ui/prefs"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp"}

// clickMode decides what a left click on the image does.
type clickMode int

const (
	modeSelect clickMode = iota
	modeCalibrate
	modeEyedropper
)

func (m clickMode) String() string {
	switch m {
	case modeSelect:
		return "select"
	case modeCalibrate:
		return "calibrate"
	case modeEyedropper:
		return "eyedropper"
	default:
		return "unknown"
	}
}

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app       fyne.App
	session   *session.Session
	prefs     *prefs.Prefs
	ocr       ocr.LabelReader
	canvas    *canvas.ImageCanvas
	sidePanel *sidePanel
	statusBar *widget.Label

	mode      clickMode
	imagePath string

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	// Menu items that need state tracking
	fitToWindowItem *fyne.MenuItem
	debugItem       *fyne.MenuItem
}

// New creates the main window for sess. reader may be nil when no OCR
// engine is available.
func New(fyneApp fyne.App, sess *session.Session, p *prefs.Prefs, reader ocr.LabelReader) *MainWindow {
	win := fyneApp.NewWindow("Mold Measure")

	mw := &MainWindow{
		Window:  win,
		app:     fyneApp,
		session: sess,
		prefs:   p,
		ocr:     reader,
	}

	sess.SetConfig(p.SegmentConfig())
	sess.SetDebug(p.Bool(prefs.KeyShowDebug, false))
	if err := sess.SetDistance(p.Distance()); err != nil {
		log.Warn().Err(err).Msg("UI: stored distance rejected")
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()
	mw.setupKeys()

	w := p.Int(prefs.KeyWindowW, 1280)
	h := p.Int(prefs.KeyWindowH, 800)
	win.Resize(fyne.NewSize(float32(w), float32(h)))
	win.SetCloseIntercept(mw.onClose)

	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewImageCanvas(mw.session.Display)
	mw.canvas.SetFitToWindow(true)
	mw.canvas.OnLeftClick(mw.onCanvasClick)
	mw.canvas.OnRightClick(mw.onCanvasRightClick)
	mw.canvas.OnMouseMove(mw.onCanvasMove)
	mw.canvas.OnMouseOut(func() {
		if mw.mode == modeCalibrate {
			mw.session.SetCursor(nil)
		}
	})

	mw.sidePanel = newSidePanel(mw)
	mw.statusBar = widget.NewLabel("Open a photo of the molds to begin")

	panel := mw.sidePanel.Container()
	mw.sidePanel.syncConfig(mw.session.Config())
	mw.sidePanel.debug.SetChecked(mw.session.Debug())
	mw.sidePanel.syncCalibration(mw.session.Calibration())
	mw.sidePanel.syncMolds(mw.session.Molds())
	if mw.ocr == nil {
		mw.sidePanel.suggest.Disable()
	}

	canvasArea := container.NewBorder(
		mw.createToolbar(),
		nil,
		nil,
		nil,
		mw.canvas.Container(),
	)

	split := container.NewHSplit(panel, canvasArea)
	split.SetOffset(0.25)

	mw.SetContent(container.NewBorder(
		nil,
		container.NewPadded(mw.statusBar),
		nil,
		nil,
		split,
	))
}

// createToolbar creates the toolbar with zoom controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	zoomLabel := widget.NewLabel("100%")
	mw.canvas.OnZoomChange(func(zoom float64) {
		zoomLabel.SetText(fmt.Sprintf("%.0f%%", zoom*100))
	})

	return container.NewHBox(
		widget.NewLabel("Zoom:"),
		widget.NewButton("-", mw.onZoomOut),
		widget.NewButton("+", mw.onZoomIn),
		widget.NewButton("Fit", mw.onToggleFitToWindow),
		widget.NewButton("1:1", mw.onActualSize),
		zoomLabel,
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Image...", mw.onOpenImage),
		fyne.NewMenuItem("Save Overlay...", mw.onSaveOverlay),
		fyne.NewMenuItem("Export Results...", mw.onExportResults),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", mw.onClose),
	)

	mw.fitToWindowItem = fyne.NewMenuItem("Fit to Window", mw.onToggleFitToWindow)
	mw.fitToWindowItem.Checked = mw.canvas.FitsToWindow()
	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", mw.onZoomIn),
		fyne.NewMenuItem("Zoom Out", mw.onZoomOut),
		mw.fitToWindowItem,
		fyne.NewMenuItem("Actual Size", mw.onActualSize),
	)

	mw.debugItem = fyne.NewMenuItem("Show Mask", func() {
		mw.sidePanel.debug.SetChecked(!mw.session.Debug())
	})
	mw.debugItem.Checked = mw.session.Debug()
	toolsMenu := fyne.NewMenu("Tools",
		fyne.NewMenuItem("Mark Ruler", func() { mw.setClickMode(modeCalibrate) }),
		fyne.NewMenuItem("Suggest Distance", mw.onSuggestDistance),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Detect Molds", mw.onDetect),
		fyne.NewMenuItem("Pick Color", func() { mw.setClickMode(modeEyedropper) }),
		mw.debugItem,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Reload Vision Backend", mw.onRetryBackend),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, viewMenu, toolsMenu, helpMenu))
}

// setupEventHandlers registers for session and backend events.
func (mw *MainWindow) setupEventHandlers() {
	s := mw.session

	s.On(session.EventImageLoaded, func(data interface{}) {
		if size, ok := data.(image.Point); ok {
			mw.canvas.SetImageSize(size)
			mw.updateStatus(fmt.Sprintf("Image loaded: %dx%d", size.X, size.Y))
		}
		mw.setClickMode(modeSelect)
	})

	s.On(session.EventCalibrationChanged, func(interface{}) {
		info := s.Calibration()
		mw.sidePanel.syncCalibration(info)
		if info.HasFactor && mw.mode == modeCalibrate && len(info.Points) == 2 {
			mw.setClickMode(modeSelect)
			mw.updateStatus(fmt.Sprintf("Calibrated: %.1f cm over %.1f px",
				info.DistanceCm, info.Points[0].Distance(info.Points[1])))
		}
	})

	s.On(session.EventConfigChanged, func(data interface{}) {
		if cfg, ok := data.(segment.Config); ok {
			mw.sidePanel.syncConfig(cfg)
			mw.prefs.SetSegmentConfig(cfg)
		}
	})

	s.On(session.EventMoldsChanged, func(interface{}) {
		mw.sidePanel.syncMolds(s.Molds())
	})
	s.On(session.EventSelectionChanged, func(interface{}) {
		mw.sidePanel.syncMolds(s.Molds())
	})

	s.On(session.EventDisplayChanged, func(interface{}) {
		mw.canvas.Refresh()
	})

	s.On(session.EventProcessingChanged, func(data interface{}) {
		if on, ok := data.(bool); ok {
			mw.sidePanel.setProcessing(on)
			if on {
				mw.updateStatus("Detecting...")
			}
		}
	})

	s.On(session.EventDetectFailed, func(data interface{}) {
		if err, ok := data.(error); ok {
			mw.updateStatus("Detection failed: " + err.Error())
		}
	})

	s.Loader().OnChange(func(state vision.State) {
		switch state {
		case vision.StateLoading:
			mw.updateStatus("Loading vision backend " + s.Loader().Name() + "...")
		case vision.StateReady:
			mw.updateStatus("Vision backend " + s.Loader().Name() + " ready")
		case vision.StateFailed:
			err := s.Loader().Err()
			mw.updateStatus("Vision backend unavailable")
			dialog.ShowError(err, mw.Window)
		}
	})
}

// setupKeys binds keyboard shortcuts.
func (mw *MainWindow) setupKeys() {
	mw.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyEscape:
			mw.onCancelCalibration()
		case fyne.KeyDelete, fyne.KeyBackspace:
			mw.onDeleteSelected()
		case fyne.KeyPlus, fyne.KeyEqual:
			mw.onZoomIn()
		case fyne.KeyMinus:
			mw.onZoomOut()
		}
	})
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// setClickMode switches what a left click on the image does.
func (mw *MainWindow) setClickMode(m clickMode) {
	if mw.mode == modeCalibrate && m != modeCalibrate {
		mw.session.SetCursor(nil)
	}
	mw.mode = m
	switch m {
	case modeCalibrate:
		mw.updateStatus("Click two points on the ruler")
	case modeEyedropper:
		mw.updateStatus("Click a mold to pick its color")
	}
	log.Debug().Str("mode", m.String()).Msg("UI: click mode")
}

func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyLastDir)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

func (mw *MainWindow) saveLastDir(filePath string) {
	mw.prefs.SetString(prefs.KeyLastDir, filepath.Dir(filePath))
}

func (mw *MainWindow) onOpenImage() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		if reader == nil {
			return
		}
		defer reader.Close()

		data, err := io.ReadAll(reader)
		if err != nil {
			dialog.ShowError(fmt.Errorf("read %s: %w", reader.URI().Name(), err), mw.Window)
			return
		}
		mw.loadImage(reader.URI().Path(), data)
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(imageExtensions))
	if dir := mw.getLastDir(); dir != nil {
		fd.SetLocation(dir)
	}
	fd.Show()
}

// LoadImageFile opens a photo from disk.
func (mw *MainWindow) LoadImageFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.loadImage(path, data)
}

func (mw *MainWindow) loadImage(path string, data []byte) {
	go func() {
		// The backend may still be loading at startup.
		if err := mw.session.Loader().Load(context.Background()); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		if err := mw.session.LoadImage(data); err != nil {
			dialog.ShowError(fmt.Errorf("open %s: %w", filepath.Base(path), err), mw.Window)
			return
		}
		mw.saveLastDir(path)
		mw.imagePath = path
		mw.SetTitle("Mold Measure - " + filepath.Base(path))
	}()
}

func (mw *MainWindow) onSaveOverlay() {
	img := mw.session.Display()
	if img == nil {
		dialog.ShowInformation("Save Overlay", "No image loaded", mw.Window)
		return
	}
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		if writer == nil {
			return
		}
		defer writer.Close()
		if err := png.Encode(writer, img); err != nil {
			dialog.ShowError(fmt.Errorf("save overlay: %w", err), mw.Window)
			return
		}
		mw.saveLastDir(writer.URI().Path())
		mw.updateStatus("Overlay saved: " + writer.URI().Path())
	}, mw.Window)
	fd.SetFileName("overlay.png")
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".png"}))
	if dir := mw.getLastDir(); dir != nil {
		fd.SetLocation(dir)
	}
	fd.Show()
}

func (mw *MainWindow) onExportResults() {
	molds := mw.session.Molds().Molds()
	if len(molds) == 0 {
		dialog.ShowInformation("Export Results", session.ErrNoMolds.Error(), mw.Window)
		return
	}
	r := report.New(mw.session.Calibration(), mw.session.Config(), molds)
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		if writer == nil {
			return
		}
		defer writer.Close()
		path := writer.URI().Path()
		r.SetImage(path, mw.imagePath)
		if err := r.Write(writer); err != nil {
			dialog.ShowError(fmt.Errorf("export results: %w", err), mw.Window)
			return
		}
		mw.saveLastDir(path)
		mw.updateStatus("Results exported: " + path)
	}, mw.Window)
	fd.SetFileName("molds.json")
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".json"}))
	if dir := mw.getLastDir(); dir != nil {
		fd.SetLocation(dir)
	}
	fd.Show()
}

func (mw *MainWindow) onCanvasClick(x, y float64) {
	p := geometry.Point2D{X: x, Y: y}
	switch mw.mode {
	case modeCalibrate:
		if err := mw.session.AddCalibrationPoint(p); err != nil {
			mw.updateStatus(err.Error())
		}
	case modeEyedropper:
		mw.setClickMode(modeSelect)
		mw.runDetect(func(ctx context.Context) (session.Report, error) {
			return mw.session.Eyedropper(ctx, p)
		})
	default:
		mw.session.SelectAt(p)
	}
}

func (mw *MainWindow) onCanvasRightClick(x, y float64) {
	id := mw.session.SelectAt(geometry.Point2D{X: x, Y: y})
	if id == 0 {
		return
	}
	m, ok := mw.session.Molds().Get(id)
	if !ok {
		return
	}
	dialogs.NewMoldEditDialog(m, mw.Window,
		func(t mold.Type, multiplier float64) {
			mw.report(mw.session.SetMoldType(id, t))
			mw.report(mw.session.SetMoldMultiplier(id, multiplier))
		},
		func() { mw.report(mw.session.DeleteMold(id)) },
	).Show()
}

func (mw *MainWindow) onCanvasMove(x, y float64) {
	if mw.mode == modeCalibrate {
		mw.session.SetCursor(&geometry.Point2D{X: x, Y: y})
	}
}

func (mw *MainWindow) onCancelCalibration() {
	switch mw.mode {
	case modeCalibrate:
		mw.session.CancelCalibration()
		mw.setClickMode(modeSelect)
		mw.updateStatus("Calibration cancelled")
	case modeEyedropper:
		mw.setClickMode(modeSelect)
		mw.updateStatus("Color pick cancelled")
	}
}

func (mw *MainWindow) onDetect() {
	mw.runDetect(mw.session.Detect)
}

// runDetect runs a detection pass off the UI goroutine.
func (mw *MainWindow) runDetect(run func(context.Context) (session.Report, error)) {
	ctx, cancel := context.WithCancel(context.Background())
	mw.cancelMu.Lock()
	if mw.cancel != nil {
		mw.cancelMu.Unlock()
		cancel()
		mw.updateStatus(session.ErrBusy.Error())
		return
	}
	mw.cancel = cancel
	mw.cancelMu.Unlock()

	go func() {
		defer func() {
			mw.cancelMu.Lock()
			mw.cancel = nil
			mw.cancelMu.Unlock()
			cancel()
		}()

		rep, err := run(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			mw.updateStatus("Detection stopped")
		case err != nil:
			dialog.ShowError(err, mw.Window)
		case rep.Debug:
			mw.updateStatus(fmt.Sprintf("Mask: %d regions (%s, %s)", rep.Regions, rep.Strategy.Label(), rep.Elapsed.Round(time.Millisecond)))
		default:
			mw.updateStatus(fmt.Sprintf("Detected %d molds (%s, %s)", rep.Molds, rep.Strategy.Label(), rep.Elapsed.Round(time.Millisecond)))
		}
	}()
}

func (mw *MainWindow) onStopDetect() {
	mw.cancelMu.Lock()
	defer mw.cancelMu.Unlock()
	if mw.cancel != nil {
		mw.cancel()
	}
}

// updateConfig applies edit to the session's segmentation settings.
func (mw *MainWindow) updateConfig(edit func(segment.Config) segment.Config) {
	mw.session.SetConfig(edit(mw.session.Config()))
}

func (mw *MainWindow) onSuggestDistance() {
	if mw.ocr == nil {
		dialog.ShowError(ocr.ErrUnavailable, mw.Window)
		return
	}
	info := mw.session.Calibration()
	img := mw.session.Original()
	if img == nil || len(info.Points) != 2 {
		dialog.ShowInformation("Suggest Distance", "Mark two points on the ruler first", mw.Window)
		return
	}
	mw.updateStatus("Reading ruler...")
	go func() {
		sug, err := ocr.Suggest(mw.ocr, img, info.Points[0], info.Points[1], ocr.DefaultRulerParams())
		if err != nil {
			mw.updateStatus("No distance suggestion")
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.updateStatus(fmt.Sprintf("Ruler reads %.1f cm (%d labels, R² %.3f)", sug.DistanceCm, len(sug.Labels), sug.RSquared))
		dialog.ShowConfirm("Suggest Distance",
			fmt.Sprintf("The ruler reads %.1f cm between the points. Use it?", sug.DistanceCm),
			func(ok bool) {
				if ok {
					mw.sidePanel.distance.SetText(formatFloat(sug.DistanceCm))
				}
			}, mw.Window)
	}()
}

func (mw *MainWindow) selectMold(id int) {
	mw.report(mw.session.SelectMold(id))
}

func (mw *MainWindow) setSelectedType(t mold.Type) {
	if id := mw.session.Molds().SelectedID(); id != 0 {
		mw.report(mw.session.SetMoldType(id, t))
	}
}

func (mw *MainWindow) setSelectedMultiplier(text string) {
	id := mw.session.Molds().SelectedID()
	if id == 0 {
		return
	}
	v, err := parsePositive(text)
	if err != nil {
		mw.updateStatus(session.ErrInvalidMultiplier.Error())
		return
	}
	mw.report(mw.session.SetMoldMultiplier(id, v))
}

func (mw *MainWindow) onDeleteSelected() {
	if id := mw.session.Molds().SelectedID(); id != 0 {
		mw.report(mw.session.DeleteMold(id))
	}
}

// report shows a failed edit in the status bar.
func (mw *MainWindow) report(err error) {
	if err != nil {
		mw.updateStatus(err.Error())
	}
}

func (mw *MainWindow) onRetryBackend() {
	go func() {
		if err := mw.session.Loader().Load(context.Background()); err == nil {
			mw.updateStatus("Vision backend " + mw.session.Loader().Name() + " ready")
		}
	}()
}

func (mw *MainWindow) onZoomIn() {
	mw.disableFitToWindow()
	mw.canvas.ZoomIn()
}

func (mw *MainWindow) onZoomOut() {
	mw.disableFitToWindow()
	mw.canvas.ZoomOut()
}

func (mw *MainWindow) onToggleFitToWindow() {
	enabled := !mw.canvas.FitsToWindow()
	mw.canvas.SetFitToWindow(enabled)
	mw.setMenuChecked(mw.fitToWindowItem, enabled)
}

func (mw *MainWindow) onActualSize() {
	mw.disableFitToWindow()
	mw.canvas.SetZoom(1.0)
}

func (mw *MainWindow) disableFitToWindow() {
	if mw.canvas.FitsToWindow() {
		mw.canvas.SetFitToWindow(false)
		mw.setMenuChecked(mw.fitToWindowItem, false)
	}
}

func (mw *MainWindow) setMenuChecked(item *fyne.MenuItem, on bool) {
	if item == nil || item.Checked == on {
		return
	}
	item.Checked = on
	if menu := mw.MainMenu(); menu != nil {
		menu.Refresh()
	}
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About Mold Measure",
		fmt.Sprintf("Mold Measure %s\n\n"+
			"Measures the area of pattern pieces photographed\n"+
			"next to a ruler.\n\n"+
			"Vision backend: %s",
			version.String(), mw.session.Loader().Name()),
		mw.Window)
}

// onClose stores window state and preferences, then quits.
func (mw *MainWindow) onClose() {
	mw.onStopDetect()
	mw.SavePreferences()
	mw.app.Quit()
}

// SavePreferences writes the window size and settings to disk.
func (mw *MainWindow) SavePreferences() {
	size := mw.Canvas().Size()
	mw.prefs.SetInt(prefs.KeyWindowW, int(size.Width))
	mw.prefs.SetInt(prefs.KeyWindowH, int(size.Height))
	mw.prefs.SetBool(prefs.KeyShowDebug, mw.session.Debug())
	if err := mw.prefs.Save(); err != nil {
		log.Error().Err(err).Msg("UI: saving preferences failed")
	}
}
