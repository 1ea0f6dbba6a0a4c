package surface

import (
	"fmt"
	"image/color"
	"sort"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// PaletteSize is the number of entries in every theme palette.
const PaletteSize = 256

// Theme maps normalised escape values in [0,1] to colours.
type Theme struct {
	Code string
	Name string
	ramp func(t float64) colorful.Color
}

// Palette expands the theme into PaletteSize opaque colours.
func (th Theme) Palette() []color.RGBA {
	out := make([]color.RGBA, PaletteSize)
	for i := range out {
		c := th.ramp(float64(i) / float64(PaletteSize-1)).Clamped()
		r, g, b := c.RGB255()
		out[i] = color.RGBA{R: r, G: g, B: b, A: 0xff}
	}
	return out
}

func rgb(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// stops blends evenly spaced colour stops in CIE-L*a*b* space.
func stops(colors ...colorful.Color) func(float64) colorful.Color {
	return func(t float64) colorful.Color {
		if len(colors) == 1 || t <= 0 {
			return colors[0]
		}
		if t >= 1 {
			return colors[len(colors)-1]
		}
		segments := float64(len(colors) - 1)
		pos := t * segments
		idx := int(pos)
		return colors[idx].BlendLab(colors[idx+1], pos-float64(idx))
	}
}

var themes = map[string]Theme{}

func register(code, name string, ramp func(float64) colorful.Color) {
	themes[code] = Theme{Code: code, Name: name, ramp: ramp}
}

func init() {
	black := rgb(0, 0, 0)
	white := rgb(255, 255, 255)

	register("rgb", "RGB (Classic)", func(t float64) colorful.Color {
		switch {
		case t < 1.0/3:
			return rgb(uint8(t*3*255), 0, 0)
		case t < 2.0/3:
			return rgb(0, uint8((t-1.0/3)*3*255), 0)
		default:
			return rgb(0, 0, uint8((t-2.0/3)*3*255))
		}
	})
	register("grayscale", "Grayscale", stops(black, white))
	register("fire", "Fire", stops(black, rgb(255, 0, 0), rgb(255, 255, 0), white, white))
	register("firestorm", "Firestorm", stops(black, rgb(139, 0, 0), rgb(255, 120, 0), rgb(255, 230, 60)))
	register("ocean", "Ocean", stops(rgb(0, 0, 150), rgb(200, 255, 255)))
	register("oceanic", "Oceanic", stops(rgb(20, 60, 150), rgb(70, 150, 200), rgb(120, 250, 255)))
	register("ice", "Ice", stops(white, rgb(155, 175, 255)))
	register("glacier", "Glacier", stops(black, rgb(70, 130, 180), rgb(100, 180, 255)))
	register("copper", "Copper", stops(rgb(100, 50, 20), rgb(255, 200, 100)))
	register("lavender", "Lavender", stops(rgb(150, 100, 200), white))
	register("mint", "Mint", stops(rgb(152, 251, 152), rgb(52, 200, 202)))
	register("royal", "Royal", stops(rgb(180, 80, 200), rgb(220, 120, 100), rgb(255, 180, 0)))
	register("sunset", "Sunset", stops(rgb(255, 100, 150), rgb(205, 255, 202), rgb(155, 100, 255)))
	register("cherry", "Cherry", stops(rgb(255, 182, 193), rgb(230, 255, 224), rgb(205, 182, 255)))
	register("midnight", "Midnight", stops(rgb(25, 25, 112), rgb(255, 125, 255)))
	register("autumn", "Autumn", stops(rgb(139, 0, 0), rgb(255, 100, 0), rgb(255, 255, 0), rgb(155, 100, 100)))
	register("cyberpunk", "Cyberpunk", stops(rgb(255, 0, 255), rgb(100, 200, 255)))
	register("forest", "Forest", stops(rgb(10, 40, 10), rgb(34, 139, 34), rgb(180, 230, 120)))
	register("matrix", "Matrix", stops(black, rgb(0, 120, 10), rgb(0, 255, 50)))
	register("hacker", "Hacker", stops(black, rgb(0, 255, 255)))
	register("spectrum", "Spectrum", func(t float64) colorful.Color {
		return colorful.Hsv(t*360, 1, 1)
	})
}

// LookupTheme resolves a theme by code (case-insensitive).
func LookupTheme(code string) (Theme, error) {
	th, ok := themes[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return Theme{}, fmt.Errorf("unknown theme %q", code)
	}
	return th, nil
}

// Themes lists all registered themes sorted by code.
func Themes() []Theme {
	out := make([]Theme, 0, len(themes))
	for _, th := range themes {
		out = append(out, th)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
