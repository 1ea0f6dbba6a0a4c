package surface

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/offlinefirst/fractalcap/pkg/schedule"
)

// FractalOptions configure the synthetic Mandelbrot surface.
type FractalOptions struct {
	Width         int
	Height        int
	Theme         string
	Location      string
	ZoomFactor    float64
	MaxIterations int
	Interval      time.Duration
	Ticks         schedule.TickSource
	Logger        *slog.Logger
}

// View describes the region of the complex plane currently on screen.
type View struct {
	Location string
	XMin     float64
	YMin     float64
	Scale    float64
	Theme    string
}

// Fractal is a continuously auto-zooming Mandelbrot renderer.
type Fractal struct {
	width      int
	height     int
	maxIter    int
	zoomFactor float64
	interval   time.Duration
	ticks      schedule.TickSource
	logger     *slog.Logger
	theme      Theme
	palette    []color.RGBA
	location   Location

	renderMu sync.Mutex
	scale    float64

	mu       sync.RWMutex
	frame    *image.RGBA
	view     View
	rendered int

	handleMu sync.Mutex
	handle   *schedule.Handle
}

// NewFractal validates options and constructs a renderer. No frame exists
// until Render or Start is called.
func NewFractal(opts FractalOptions) (*Fractal, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.New("surface dimensions must be positive")
	}
	theme, err := LookupTheme(opts.Theme)
	if err != nil {
		return nil, err
	}
	loc, ok := LookupLocation(opts.Location)
	if !ok {
		return nil, fmt.Errorf("unknown location %q", opts.Location)
	}
	zoom := opts.ZoomFactor
	if zoom <= 0 {
		zoom = 1.01
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = 200
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fractal{
		width:      opts.Width,
		height:     opts.Height,
		maxIter:    maxIter,
		zoomFactor: zoom,
		interval:   interval,
		ticks:      opts.Ticks,
		logger:     logger,
		theme:      theme,
		palette:    theme.Palette(),
		location:   loc,
		scale:      1,
	}, nil
}

// Bounds implements Surface.
func (f *Fractal) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.width, f.height)
}

// Snapshot implements Surface.
func (f *Fractal) Snapshot() (image.Image, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.frame == nil {
		return nil, ErrNotRendered
	}
	return Clone(f.frame), nil
}

// View reports the coordinates of the most recently rendered frame.
func (f *Fractal) View() View {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.view
}

// Rendered reports how many frames have been painted.
func (f *Fractal) Rendered() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rendered
}

// Render paints one frame at the current zoom level and advances the zoom.
func (f *Fractal) Render() {
	f.renderMu.Lock()
	defer f.renderMu.Unlock()

	span := 4 / f.scale
	step := span / float64(f.width)
	xmin := f.location.X - span/2
	ymin := f.location.Y - step*float64(f.height)/2

	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	for py := 0; py < f.height; py++ {
		ci := ymin + float64(py)*step
		for px := 0; px < f.width; px++ {
			cr := xmin + float64(px)*step
			n := escape(cr, ci, f.maxIter)
			c := color.RGBA{A: 0xff}
			if n < f.maxIter {
				c = f.palette[n*(PaletteSize-1)/f.maxIter]
			}
			img.SetRGBA(px, py, c)
		}
	}

	view := View{
		Location: f.location.Name,
		XMin:     xmin,
		YMin:     ymin,
		Scale:    f.scale,
		Theme:    f.theme.Name,
	}
	f.scale *= f.zoomFactor

	f.mu.Lock()
	f.frame = img
	f.view = view
	f.rendered++
	f.mu.Unlock()
}

func escape(cr, ci float64, maxIter int) int {
	var zr, zi float64
	for n := 0; n < maxIter; n++ {
		zr2, zi2 := zr*zr, zi*zi
		if zr2+zi2 > 4 {
			return n
		}
		zi = 2*zr*zi + ci
		zr = zr2 - zi2 + cr
	}
	return maxIter
}

// Start paints an initial frame and keeps repainting on the configured cadence.
func (f *Fractal) Start() error {
	f.handleMu.Lock()
	defer f.handleMu.Unlock()
	if f.handle != nil {
		return errors.New("renderer already running")
	}
	f.Render()
	handle, err := schedule.Every(f.interval, f.ticks, func(time.Time) { f.Render() })
	if err != nil {
		return fmt.Errorf("start render loop: %w", err)
	}
	f.handle = handle
	f.logger.Debug("fractal renderer started", "width", f.width, "height", f.height, "theme", f.theme.Code, "location", f.location.Name)
	return nil
}

// Stop halts the render loop; the last frame stays available.
func (f *Fractal) Stop() {
	f.handleMu.Lock()
	handle := f.handle
	f.handle = nil
	f.handleMu.Unlock()
	if handle != nil {
		handle.Cancel()
		f.logger.Debug("fractal renderer stopped", "frames", f.Rendered())
	}
}
