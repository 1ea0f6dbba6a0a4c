// Package snapshot produces single still images of the live surface,
// optionally annotated with an information panel, and pushes them to the
// clipboard.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/offlinefirst/fractalcap/pkg/sink"
	"github.com/offlinefirst/fractalcap/pkg/surface"
)

// Options configure the exporter.
type Options struct {
	Format      string
	JPEGQuality int
	DefaultBase string
	Pool        *ScratchPool
	Clipboard   sink.Clipboard
	Clock       func() time.Time
	Logger      *slog.Logger
}

// Exporter renders still artifacts.
type Exporter struct {
	format    string
	quality   int
	base      string
	pool      *ScratchPool
	clipboard sink.Clipboard
	clock     func() time.Time
	logger    *slog.Logger
}

// NewExporter validates options.
func NewExporter(opts Options) (*Exporter, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "png"
	}
	if !supported(format) {
		return nil, fmt.Errorf("unsupported snapshot format %q", opts.Format)
	}
	if opts.JPEGQuality < 0 || opts.JPEGQuality > 100 {
		return nil, errors.New("jpeg quality must be between 1 and 100")
	}
	pool := opts.Pool
	if pool == nil {
		pool = &ScratchPool{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Exporter{
		format:    format,
		quality:   opts.JPEGQuality,
		base:      sink.Base(opts.DefaultBase, sink.DefaultBase),
		pool:      pool,
		clipboard: opts.Clipboard,
		clock:     clock,
		logger:    logger,
	}, nil
}

func supported(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Pool exposes the scratch surface pool.
func (e *Exporter) Pool() *ScratchPool {
	return e.pool
}

// Capture encodes the current surface contents. An empty format selects the
// configured default.
func (e *Exporter) Capture(src surface.Surface, format string) (sink.Artifact, error) {
	return e.CaptureLabeled(src, format, "")
}

// CaptureLabeled is Capture with the filename derived from a location label.
func (e *Exporter) CaptureLabeled(src surface.Surface, format, label string) (sink.Artifact, error) {
	if src == nil {
		return sink.Artifact{}, fmt.Errorf("%w: no surface", ErrEncodeFailed)
	}
	if strings.TrimSpace(format) == "" {
		format = e.format
	}
	img, err := src.Snapshot()
	if err != nil {
		return sink.Artifact{}, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	enc, err := Encode(img, format, e.quality)
	if err != nil {
		return sink.Artifact{}, err
	}
	name := sink.Filename(sink.Base(label, e.base), e.clock(), enc.Extension)
	e.logger.Debug("snapshot captured", "format", enc.Extension, "bytes", len(enc.Data))
	return sink.Artifact{Data: enc.Data, MIMEType: enc.MIMEType, Filename: name}, nil
}

// CaptureWithOverlay composites the surface onto the pooled scratch buffer,
// draws the information panel and encodes the result as PNG.
func (e *Exporter) CaptureWithOverlay(src surface.Surface, width, height int, meta Metadata) (sink.Artifact, error) {
	if src == nil {
		return sink.Artifact{}, fmt.Errorf("%w: no surface", ErrEncodeFailed)
	}
	if width <= 0 || height <= 0 {
		return sink.Artifact{}, fmt.Errorf("%w: invalid size %dx%d", ErrEncodeFailed, width, height)
	}
	img, err := src.Snapshot()
	if err != nil {
		return sink.Artifact{}, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	scratch, release, err := e.pool.Acquire(width, height)
	if err != nil {
		return sink.Artifact{}, err
	}
	defer release()

	now := e.clock()
	if meta.Date.IsZero() {
		meta.Date = now
	}
	draw.Draw(scratch, scratch.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(scratch, scratch.Bounds(), img, img.Bounds().Min, draw.Src)
	DrawOverlay(scratch, meta)

	enc, err := Encode(scratch, "png", 0)
	if err != nil {
		return sink.Artifact{}, err
	}
	name := sink.InfoFilename(sink.Base(meta.Location, e.base), now)
	e.logger.Debug("annotated snapshot captured", "width", width, "height", height, "bytes", len(enc.Data))
	return sink.Artifact{Data: enc.Data, MIMEType: enc.MIMEType, Filename: name}, nil
}

// CopyToClipboard writes a PNG snapshot to the clipboard sink.
func (e *Exporter) CopyToClipboard(ctx context.Context, src surface.Surface) error {
	if e.clipboard == nil {
		return ErrClipboardUnavailable
	}
	art, err := e.Capture(src, "png")
	if err != nil {
		return err
	}
	if err := e.clipboard.WriteImage(ctx, art.Data); err != nil {
		return fmt.Errorf("copy snapshot: %w", err)
	}
	return nil
}
