package frames

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/offlinefirst/fractalcap/pkg/schedule"
	"github.com/offlinefirst/fractalcap/pkg/surface"
)

type collector struct {
	mu     sync.Mutex
	frames []RasterFrame
}

func (c *collector) add(f RasterFrame) {
	c.mu.Lock()
	c.frames = append(c.frames, f)
	c.mu.Unlock()
}

func (c *collector) snapshot() []RasterFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]RasterFrame(nil), c.frames...)
}

type flakySurface struct {
	failures int
	inner    surface.Surface
}

func (f *flakySurface) Bounds() image.Rectangle { return f.inner.Bounds() }

func (f *flakySurface) Snapshot() (image.Image, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("not ready")
	}
	return f.inner.Snapshot()
}

func TestNewSamplerValidation(t *testing.T) {
	if _, err := NewSampler(Options{Emit: func(RasterFrame) {}}); err == nil {
		t.Fatalf("expected error for missing surface")
	}
	if _, err := NewSampler(Options{Surface: surface.NewSolid(1, 1, color.Black)}); err == nil {
		t.Fatalf("expected error for missing emit callback")
	}
	s, err := NewSampler(Options{Surface: surface.NewSolid(1, 1, color.Black), Emit: func(RasterFrame) {}})
	if err != nil {
		t.Fatalf("new sampler: %v", err)
	}
	if s.Interval() != DefaultInterval {
		t.Fatalf("expected default interval, got %s", s.Interval())
	}
}

func TestSamplerSequencesFrames(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := schedule.NewManualTicks()
	out := &collector{}

	s, err := NewSampler(Options{
		Surface: surface.NewSolid(6, 4, color.RGBA{G: 200, A: 255}),
		Clock:   func() time.Time { return base },
		Ticks:   ticks.Source,
		Emit:    out.add,
	})
	if err != nil {
		t.Fatalf("new sampler: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 5; i++ {
		if !ticks.Tick(base, time.Second) {
			t.Fatalf("tick %d not consumed", i)
		}
	}
	s.Stop()

	frames := out.snapshot()
	if len(frames) != 5 {
		t.Fatalf("expected 5 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.Sequence != i {
			t.Fatalf("frame %d has sequence %d", i, f.Sequence)
		}
		if f.Width != 6 || f.Height != 4 {
			t.Fatalf("unexpected frame size %dx%d", f.Width, f.Height)
		}
		if !f.CapturedAt.Equal(base) {
			t.Fatalf("unexpected capture time %s", f.CapturedAt)
		}
		img, err := f.Decode()
		if err != nil {
			t.Fatalf("decode frame %d: %v", i, err)
		}
		if _, g, _, _ := img.At(1, 1).RGBA(); g>>8 != 200 {
			t.Fatalf("unexpected green channel %d", g>>8)
		}
	}
}

func TestSamplerSkipsFailedSnapshots(t *testing.T) {
	ticks := schedule.NewManualTicks()
	out := &collector{}
	s, err := NewSampler(Options{
		Surface: &flakySurface{failures: 2, inner: surface.NewSolid(2, 2, color.White)},
		Ticks:   ticks.Source,
		Emit:    out.add,
	})
	if err != nil {
		t.Fatalf("new sampler: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 4; i++ {
		ticks.Tick(time.Now(), time.Second)
	}
	s.Stop()

	frames := out.snapshot()
	if len(frames) != 2 || s.Failed() != 2 {
		t.Fatalf("expected 2 frames and 2 failures, got %d and %d", len(frames), s.Failed())
	}
	if frames[0].Sequence != 0 || frames[1].Sequence != 1 {
		t.Fatalf("skipped ticks must not consume sequence numbers: %d, %d", frames[0].Sequence, frames[1].Sequence)
	}
}

func TestSamplerStopsAppending(t *testing.T) {
	out := &collector{}
	s, err := NewSampler(Options{
		Surface:  surface.NewSolid(2, 2, color.White),
		Interval: 2 * time.Millisecond,
		Emit:     out.add,
	})
	if err != nil {
		t.Fatalf("new sampler: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	count := len(out.snapshot())
	time.Sleep(20 * time.Millisecond)
	if after := len(out.snapshot()); after != count {
		t.Fatalf("frames appended after stop: %d -> %d", count, after)
	}
	if s.Captured() != count {
		t.Fatalf("captured counter %d disagrees with emitted frames %d", s.Captured(), count)
	}
}

func TestSamplerRestartResetsSequence(t *testing.T) {
	ticks := schedule.NewManualTicks()
	out := &collector{}
	s, err := NewSampler(Options{Surface: surface.NewSolid(1, 1, color.Black), Ticks: ticks.Source, Emit: out.add})
	if err != nil {
		t.Fatalf("new sampler: %v", err)
	}
	for round := 0; round < 2; round++ {
		if err := s.Start(); err != nil {
			t.Fatalf("start round %d: %v", round, err)
		}
		ticks.Tick(time.Now(), time.Second)
		s.Stop()
	}
	frames := out.snapshot()
	if len(frames) != 2 || frames[1].Sequence != 0 {
		t.Fatalf("expected sequence to restart, got %+v", frames)
	}
}
