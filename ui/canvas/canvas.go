// Package canvas provides an image canvas with zoom, fit-to-window and
// pointer callbacks in image coordinates.
package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	xdraw "golang.org/x/image/draw"
)

const (
	minZoom  = 0.1
	maxZoom  = 10.0
	zoomStep = 1.25
)

var background = color.RGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xFF}

// RenderFunc returns the image to display. It is called on every redraw
// and must not modify the returned image afterwards.
type RenderFunc func() *image.RGBA

// ImageCanvas displays the output of a RenderFunc.
type ImageCanvas struct {
	widget.BaseWidget

	render RenderFunc

	raster  *fynecanvas.Raster
	zoom    float64
	imgSize image.Point

	scroll  *zoomScroll
	content *pointerContent
	size    fyne.Size

	fitToWindow    bool
	lastScrollSize fyne.Size

	onZoomChange func(zoom float64)
	onLeftClick  func(x, y float64)
	onRightClick func(x, y float64)
	onMouseMove  func(x, y float64)
	onMouseOut   func()
}

// zoomScroll wraps a scroll container but uses the wheel for zoom.
type zoomScroll struct {
	widget.BaseWidget
	scroll *container.Scroll
	canvas *ImageCanvas
}

func newZoomScroll(content fyne.CanvasObject, canvas *ImageCanvas) *zoomScroll {
	scroll := container.NewScroll(content)
	scroll.Direction = container.ScrollBoth
	zs := &zoomScroll{scroll: scroll, canvas: canvas}
	zs.ExtendBaseWidget(zs)
	return zs
}

func (zs *zoomScroll) Scrolled(ev *fyne.ScrollEvent) {
	zs.canvas.wheel(ev)
}

func (zs *zoomScroll) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(zs.scroll)
}

// Size returns the scroll container's size.
func (zs *zoomScroll) Size() fyne.Size {
	return zs.scroll.Size()
}

// Refresh refreshes the scroll container.
func (zs *zoomScroll) Refresh() {
	zs.scroll.Refresh()
	zs.BaseWidget.Refresh()
}

// Resize sets the size of the scroll container.
func (zs *zoomScroll) Resize(size fyne.Size) {
	zs.scroll.Resize(size)
	zs.BaseWidget.Resize(size)
}

// pointerContent wraps the raster to receive pointer events.
type pointerContent struct {
	widget.BaseWidget
	canvas *ImageCanvas
	raster *fynecanvas.Raster
}

var (
	_ fyne.Tappable          = (*pointerContent)(nil)
	_ fyne.SecondaryTappable = (*pointerContent)(nil)
	_ desktop.Hoverable      = (*pointerContent)(nil)
)

func newPointerContent(ic *ImageCanvas, raster *fynecanvas.Raster) *pointerContent {
	pc := &pointerContent{canvas: ic, raster: raster}
	pc.ExtendBaseWidget(pc)
	return pc
}

func (pc *pointerContent) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(pc.raster)
}

func (pc *pointerContent) MinSize() fyne.Size {
	return pc.raster.MinSize()
}

func (pc *pointerContent) Scrolled(ev *fyne.ScrollEvent) {
	pc.canvas.wheel(ev)
}

// toImage converts a widget position to image coordinates. ok is false
// outside the widget, which fyne occasionally reports.
func (pc *pointerContent) toImage(pos fyne.Position) (x, y float64, ok bool) {
	size := pc.Size()
	if pos.X < 0 || pos.Y < 0 || pos.X > size.Width || pos.Y > size.Height {
		return 0, 0, false
	}
	x, y = pc.canvas.CanvasToImage(float64(pos.X), float64(pos.Y))
	return x, y, true
}

// Tapped handles left-click events.
func (pc *pointerContent) Tapped(ev *fyne.PointEvent) {
	if pc.canvas.onLeftClick == nil {
		return
	}
	if x, y, ok := pc.toImage(ev.Position); ok {
		pc.canvas.onLeftClick(x, y)
	}
}

// TappedSecondary handles right-click events.
func (pc *pointerContent) TappedSecondary(ev *fyne.PointEvent) {
	if pc.canvas.onRightClick == nil {
		return
	}
	if x, y, ok := pc.toImage(ev.Position); ok {
		pc.canvas.onRightClick(x, y)
	}
}

func (pc *pointerContent) MouseIn(ev *desktop.MouseEvent) {
	pc.MouseMoved(ev)
}

func (pc *pointerContent) MouseMoved(ev *desktop.MouseEvent) {
	if pc.canvas.onMouseMove == nil {
		return
	}
	if x, y, ok := pc.toImage(ev.Position); ok {
		pc.canvas.onMouseMove(x, y)
	}
}

func (pc *pointerContent) MouseOut() {
	if pc.canvas.onMouseOut != nil {
		pc.canvas.onMouseOut()
	}
}

// NewImageCanvas creates a canvas that displays whatever render returns.
func NewImageCanvas(render RenderFunc) *ImageCanvas {
	ic := &ImageCanvas{
		render: render,
		zoom:   1.0,
		size:   fyne.NewSize(400, 300),
	}

	ic.raster = fynecanvas.NewRaster(ic.draw)
	ic.raster.ScaleMode = fynecanvas.ImageScalePixels
	ic.raster.SetMinSize(ic.size)

	ic.content = newPointerContent(ic, ic.raster)
	ic.scroll = newZoomScroll(ic.content, ic)

	ic.ExtendBaseWidget(ic)
	return ic
}

// Container returns the canvas container for embedding in layouts.
func (ic *ImageCanvas) Container() fyne.CanvasObject {
	return ic.scroll
}

// SetImageSize tells the canvas the size of the rendered image. Call it
// when a new image is loaded.
func (ic *ImageCanvas) SetImageSize(size image.Point) {
	ic.imgSize = size
	if ic.fitToWindow {
		ic.FitToWindow()
		return
	}
	ic.updateContentSize()
}

// SetZoom sets the zoom level.
func (ic *ImageCanvas) SetZoom(zoom float64) {
	ic.zoom = clampZoom(zoom)
	ic.updateContentSize()

	if ic.onZoomChange != nil {
		ic.onZoomChange(ic.zoom)
	}
}

// Zoom returns the current zoom level.
func (ic *ImageCanvas) Zoom() float64 {
	return ic.zoom
}

// ZoomIn increases the zoom level.
func (ic *ImageCanvas) ZoomIn() {
	ic.SetZoom(ic.zoom * zoomStep)
}

// ZoomOut decreases the zoom level.
func (ic *ImageCanvas) ZoomOut() {
	ic.SetZoom(ic.zoom / zoomStep)
}

func (ic *ImageCanvas) wheel(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		ic.ZoomIn()
	} else if ev.Scrolled.DY < 0 {
		ic.ZoomOut()
	}
}

// FitToWindow adjusts zoom to fit the image in the visible area.
func (ic *ImageCanvas) FitToWindow() {
	view := ic.scroll.Size()
	if z, ok := fitZoom(ic.imgSize, float64(view.Width), float64(view.Height)); ok {
		ic.SetZoom(z)
	}
}

// SetFitToWindow enables or disables auto-fit on resize.
func (ic *ImageCanvas) SetFitToWindow(fit bool) {
	ic.fitToWindow = fit
	if fit {
		ic.FitToWindow()
	}
}

// FitsToWindow reports whether auto-fit is enabled.
func (ic *ImageCanvas) FitsToWindow() bool {
	return ic.fitToWindow
}

// CheckResize auto-fits after the scroll container was resized.
func (ic *ImageCanvas) CheckResize(size fyne.Size) {
	if !ic.fitToWindow {
		return
	}
	if size.Width > 0 && size.Height > 0 && size != ic.lastScrollSize {
		ic.lastScrollSize = size
		ic.FitToWindow()
	}
}

// OnZoomChange sets a callback for zoom changes.
func (ic *ImageCanvas) OnZoomChange(callback func(zoom float64)) {
	ic.onZoomChange = callback
}

// OnLeftClick sets a callback for left-click events.
// Coordinates are in image space (not zoomed).
func (ic *ImageCanvas) OnLeftClick(callback func(x, y float64)) {
	ic.onLeftClick = callback
}

// OnRightClick sets a callback for right-click events.
// Coordinates are in image space (not zoomed).
func (ic *ImageCanvas) OnRightClick(callback func(x, y float64)) {
	ic.onRightClick = callback
}

// OnMouseMove sets a callback for pointer movement over the image.
func (ic *ImageCanvas) OnMouseMove(callback func(x, y float64)) {
	ic.onMouseMove = callback
}

// OnMouseOut sets a callback for the pointer leaving the image.
func (ic *ImageCanvas) OnMouseOut(callback func()) {
	ic.onMouseOut = callback
}

// Refresh redraws the canvas.
func (ic *ImageCanvas) Refresh() {
	ic.raster.Refresh()
}

// ImageToCanvas converts image coordinates to canvas coordinates.
func (ic *ImageCanvas) ImageToCanvas(imgX, imgY float64) (canvasX, canvasY float64) {
	return imgX * ic.zoom, imgY * ic.zoom
}

// CanvasToImage converts canvas coordinates to image coordinates.
func (ic *ImageCanvas) CanvasToImage(canvasX, canvasY float64) (imgX, imgY float64) {
	return canvasX / ic.zoom, canvasY / ic.zoom
}

func (ic *ImageCanvas) updateContentSize() {
	ic.size = contentSize(ic.imgSize, ic.zoom)
	ic.raster.SetMinSize(ic.size)
	ic.raster.Resize(ic.size)
	if ic.content != nil {
		ic.content.Resize(ic.size)
		ic.content.Refresh()
	}
	ic.raster.Refresh()
	if ic.scroll != nil {
		ic.scroll.Refresh()
	}
}

// draw is the raster drawing function. w and h are device pixels.
func (ic *ImageCanvas) draw(w, h int) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	var src *image.RGBA
	if ic.render != nil {
		src = ic.render()
	}
	scaleInto(out, src)
	return out
}

// CreateRenderer implements fyne.Widget.
func (ic *ImageCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &imageCanvasRenderer{canvas: ic}
}

type imageCanvasRenderer struct {
	canvas *ImageCanvas
}

func (r *imageCanvasRenderer) Layout(size fyne.Size) {
	r.canvas.scroll.Resize(size)
	r.canvas.CheckResize(size)
}

func (r *imageCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

func (r *imageCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *imageCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.scroll}
}

func (r *imageCanvasRenderer) Destroy() {}

func clampZoom(z float64) float64 {
	return math.Max(minZoom, math.Min(maxZoom, z))
}

// fitZoom returns the zoom that fits img inside a view, leaving a margin.
func fitZoom(img image.Point, viewW, viewH float64) (float64, bool) {
	if img.X <= 0 || img.Y <= 0 || viewW <= 0 || viewH <= 0 {
		return 0, false
	}
	z := math.Min(viewW/float64(img.X), viewH/float64(img.Y))
	return clampZoom(z * 0.95), true
}

// contentSize is the display size of img at zoom; a placeholder size is
// used before an image is loaded.
func contentSize(img image.Point, zoom float64) fyne.Size {
	if img.X <= 0 || img.Y <= 0 {
		return fyne.NewSize(400, 300)
	}
	return fyne.NewSize(float32(float64(img.X)*zoom), float32(float64(img.Y)*zoom))
}

// scaleInto fills dst with the background and stretches src over it with
// nearest-neighbor sampling so pixel edges stay visible when zoomed in.
func scaleInto(dst *image.RGBA, src *image.RGBA) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	if src == nil || src.Bounds().Empty() || dst.Bounds().Empty() {
		return
	}
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
}
