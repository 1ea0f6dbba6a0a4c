package surface

import (
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/offlinefirst/fractalcap/pkg/schedule"
)

func TestSolidSnapshotIsSelfContained(t *testing.T) {
	s := NewSolid(4, 3, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	first, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	second, _ := s.Snapshot()
	if first.Bounds().Dx() != 4 || first.Bounds().Dy() != 3 {
		t.Fatalf("unexpected bounds %v", first.Bounds())
	}
	r, g, b, _ := first.At(2, 1).RGBA()
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 {
		t.Fatalf("unexpected pixel %d %d %d", r>>8, g>>8, b>>8)
	}
	if first == second {
		t.Fatalf("expected distinct snapshot copies")
	}
}

func TestThemePalettes(t *testing.T) {
	if len(Themes()) < 10 {
		t.Fatalf("expected theme catalogue, got %d", len(Themes()))
	}
	fire, err := LookupTheme("FIRE")
	if err != nil {
		t.Fatalf("lookup fire: %v", err)
	}
	pal := fire.Palette()
	if len(pal) != PaletteSize {
		t.Fatalf("expected %d entries, got %d", PaletteSize, len(pal))
	}
	if pal[0] != (color.RGBA{A: 255}) {
		t.Fatalf("expected fire palette to start black, got %v", pal[0])
	}
	if pal[PaletteSize-1] != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("expected fire palette to end white, got %v", pal[PaletteSize-1])
	}
	if _, err := LookupTheme("plaid"); err == nil {
		t.Fatalf("expected error for unknown theme")
	}
}

func TestLookupLocation(t *testing.T) {
	loc, ok := LookupLocation("seahorse valley")
	if !ok || loc.X != 0.3 {
		t.Fatalf("unexpected lookup result %+v %t", loc, ok)
	}
	if loc, ok := LookupLocation(""); !ok || loc != DefaultLocation {
		t.Fatalf("expected default location for empty name")
	}
	if _, ok := LookupLocation("Atlantis"); ok {
		t.Fatalf("expected miss for unknown location")
	}
}

func TestFractalRenderAdvancesZoom(t *testing.T) {
	f, err := NewFractal(FractalOptions{Width: 32, Height: 24, Theme: "ocean", Location: "Needle", ZoomFactor: 2, MaxIterations: 50})
	if err != nil {
		t.Fatalf("new fractal: %v", err)
	}
	if _, err := f.Snapshot(); !errors.Is(err, ErrNotRendered) {
		t.Fatalf("expected ErrNotRendered before first frame, got %v", err)
	}

	f.Render()
	first := f.View()
	f.Render()
	second := f.View()

	if first.Scale != 1 || second.Scale != 2 {
		t.Fatalf("unexpected scales %v %v", first.Scale, second.Scale)
	}
	if first.Theme != "Ocean" || first.Location != "Needle" {
		t.Fatalf("unexpected view metadata %+v", first)
	}
	img, err := f.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if img.Bounds() != f.Bounds() {
		t.Fatalf("snapshot bounds %v != surface bounds %v", img.Bounds(), f.Bounds())
	}
}

func TestFractalStartStop(t *testing.T) {
	ticks := schedule.NewManualTicks()
	f, err := NewFractal(FractalOptions{Width: 8, Height: 8, Theme: "grayscale", MaxIterations: 10, Ticks: ticks.Source})
	if err != nil {
		t.Fatalf("new fractal: %v", err)
	}
	if err := f.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.Start(); err == nil {
		t.Fatalf("expected error when starting twice")
	}
	ticks.Tick(time.Now(), time.Second)
	ticks.Tick(time.Now(), time.Second)
	f.Stop()

	if got := f.Rendered(); got != 3 {
		t.Fatalf("expected initial frame plus two ticks, got %d", got)
	}
	if ticks.Tick(time.Now(), 20*time.Millisecond) {
		t.Fatalf("expected render loop to be stopped")
	}
}

func TestNewFractalValidation(t *testing.T) {
	if _, err := NewFractal(FractalOptions{Width: 0, Height: 10, Theme: "fire"}); err == nil {
		t.Fatalf("expected error for zero width")
	}
	if _, err := NewFractal(FractalOptions{Width: 10, Height: 10, Theme: "fire", Location: "Nowhere"}); err == nil {
		t.Fatalf("expected error for unknown location")
	}
}
