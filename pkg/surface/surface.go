// Package surface defines the live raster surface consumed by the capture
// subsystem, plus the synthetic renderers used by the CLI and tests.
package surface

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
)

// ErrNotRendered is returned by Snapshot before the first frame is available.
var ErrNotRendered = errors.New("surface has not rendered a frame yet")

// Surface is a continuously repainted raster area. Implementations must allow
// concurrent readers; Snapshot returns a self-contained copy, never a view into
// memory the renderer keeps mutating.
type Surface interface {
	Bounds() image.Rectangle
	Snapshot() (image.Image, error)
}

// Solid is a fixed single-colour surface.
type Solid struct {
	rect  image.Rectangle
	color color.RGBA
}

// NewSolid returns a width × height surface filled with c.
func NewSolid(width, height int, c color.Color) *Solid {
	r, g, b, a := c.RGBA()
	return &Solid{
		rect:  image.Rect(0, 0, width, height),
		color: color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)},
	}
}

// Bounds implements Surface.
func (s *Solid) Bounds() image.Rectangle {
	return s.rect
}

// Snapshot implements Surface.
func (s *Solid) Snapshot() (image.Image, error) {
	img := image.NewRGBA(s.rect)
	draw.Draw(img, img.Bounds(), image.NewUniform(s.color), image.Point{}, draw.Src)
	return img, nil
}

// Clone copies any image into a freshly allocated RGBA buffer.
func Clone(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
