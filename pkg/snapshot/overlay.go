package snapshot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Overlay panel geometry, in pixels.
const (
	PanelPadding = 20
	PanelWidth   = 300
	PanelHeight  = 150
	LineHeight   = 22
	textInset    = 10
	firstBase    = 30
)

var (
	panelColor = color.RGBA{R: 12, G: 12, B: 18, A: 0xff}
	textColor  = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Metadata describes the view shown in an annotated still.
type Metadata struct {
	Location string
	X        float64
	Y        float64
	Scale    float64
	Theme    string
	Date     time.Time
}

// Lines renders the overlay text, one entry per panel row.
func (m Metadata) Lines() []string {
	location := strings.TrimSpace(m.Location)
	if location == "" {
		location = "Custom"
	}
	return []string{
		"Location: " + location,
		fmt.Sprintf("X: %.8f", m.X),
		fmt.Sprintf("Y: %.8f", m.Y),
		fmt.Sprintf("Scale: %.2f", m.Scale),
		"Theme: " + m.Theme,
		"Date: " + m.Date.Format("2006-01-02"),
	}
}

// PanelBounds is the rectangle covered by the information panel.
func PanelBounds() image.Rectangle {
	return image.Rect(PanelPadding, PanelPadding, PanelPadding+PanelWidth, PanelPadding+PanelHeight)
}

// DrawOverlay paints the information panel onto dst.
func DrawOverlay(dst draw.Image, meta Metadata) {
	draw.Draw(dst, PanelBounds(), image.NewUniform(panelColor), image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
	}
	for i, line := range meta.Lines() {
		d.Dot = fixed.P(PanelPadding+textInset, PanelPadding+firstBase+i*LineHeight)
		d.DrawString(line)
	}
}
