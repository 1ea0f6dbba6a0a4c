package animation

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/ericpauley/go-quantize/quantize"
)

// MaxPaletteSize is the GIF palette limit.
const MaxPaletteSize = 256

// Quantized is one frame reduced to an indexed palette.
type Quantized struct {
	Palette color.Palette
	Indexed *image.Paletted
}

// Quantize reduces img to at most maxColors colours by median cut and maps
// every pixel to its nearest palette entry.
func Quantize(img *image.RGBA, maxColors int) Quantized {
	if maxColors <= 0 || maxColors > MaxPaletteSize {
		maxColors = MaxPaletteSize
	}
	q := quantize.MedianCutQuantizer{}
	raw := q.Quantize(make(color.Palette, 0, maxColors), img)

	palette := make(color.Palette, 0, len(raw))
	for _, c := range raw {
		palette = append(palette, color.RGBAModel.Convert(c))
	}
	if len(palette) == 0 {
		palette = append(palette, color.RGBA{A: 0xff})
	}

	bounds := img.Bounds()
	indexed := image.NewPaletted(image.Rect(0, 0, bounds.Dx(), bounds.Dy()), palette)
	draw.Draw(indexed, indexed.Bounds(), img, bounds.Min, draw.Src)
	return Quantized{Palette: palette, Indexed: indexed}
}
