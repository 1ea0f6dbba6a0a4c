package animation

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"strings"
	"testing"
	"time"

	"github.com/offlinefirst/fractalcap/pkg/frames"
)

func solidFrames(t *testing.T, n, w, h int) []frames.RasterFrame {
	t.Helper()
	out := make([]frames.RasterFrame, 0, n)
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p] = uint8(40 * i)
			img.Pix[p+1] = 90
			img.Pix[p+2] = 200
			img.Pix[p+3] = 255
		}
		f, err := frames.EncodePNG(i, time.Unix(int64(i), 0), img)
		if err != nil {
			t.Fatalf("encode frame %d: %v", i, err)
		}
		out = append(out, f)
	}
	return out
}

func newAssembler(t *testing.T, policy Policy) *Assembler {
	t.Helper()
	a, err := NewAssembler(Options{Delay: 100 * time.Millisecond, Policy: policy})
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	return a
}

func TestAssembleNoFrames(t *testing.T) {
	data, err := newAssembler(t, PolicyAbort).Assemble(context.Background(), nil, 10, 10, nil)
	if !errors.Is(err, ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
	if data != nil {
		t.Fatalf("expected no artifact")
	}
}

func TestAssembleProducesAnimatedGIF(t *testing.T) {
	input := solidFrames(t, 5, 12, 9)
	// Out-of-order input must still be emitted by sequence.
	input[0], input[4] = input[4], input[0]

	var progress []int
	data, err := newAssembler(t, PolicyAbort).Assemble(context.Background(), input, 12, 9, func(p int) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	decoded, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	if len(decoded.Image) != 5 {
		t.Fatalf("expected 5 frames, got %d", len(decoded.Image))
	}
	for i, d := range decoded.Delay {
		if d != 10 {
			t.Fatalf("frame %d delay %d, want 10", i, d)
		}
	}
	r, _, _, _ := decoded.Image[2].At(3, 3).RGBA()
	if r>>8 != 80 {
		t.Fatalf("expected frame 2 red channel 80, got %d", r>>8)
	}

	if len(progress) != 5 {
		t.Fatalf("expected progress after each frame, got %v", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress decreased: %v", progress)
		}
	}
	if progress[len(progress)-1] != 100 {
		t.Fatalf("expected final progress 100, got %v", progress)
	}
}

func TestJobCancelAtFrameBoundary(t *testing.T) {
	input := solidFrames(t, 6, 4, 4)
	job, err := newAssembler(t, PolicyAbort).NewJob(input, 4, 4, nil)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	for k := 0; k < 2; k++ {
		if done, err := job.Step(context.Background()); done || err != nil {
			t.Fatalf("step %d: done=%t err=%v", k, done, err)
		}
	}
	job.Cancel()

	data, err := job.Run(context.Background())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if data != nil {
		t.Fatalf("expected no partial artifact")
	}
	if job.Progress() != 33 {
		t.Fatalf("expected progress frozen at 33, got %d", job.Progress())
	}
}

func TestAssembleHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newAssembler(t, PolicyAbort).Assemble(ctx, solidFrames(t, 2, 2, 2), 2, 2, nil)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestDecodeFailureAborts(t *testing.T) {
	input := solidFrames(t, 3, 4, 4)
	input[1].PNG = []byte("not a png")

	_, err := newAssembler(t, PolicyAbort).Assemble(context.Background(), input, 4, 4, nil)
	if !errors.Is(err, ErrFrameDecodeFailed) {
		t.Fatalf("expected ErrFrameDecodeFailed, got %v", err)
	}
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Sequence != 1 {
		t.Fatalf("expected frame error for sequence 1, got %v", err)
	}
}

func TestDecodeFailureSkipPreservesDuration(t *testing.T) {
	input := solidFrames(t, 4, 4, 4)
	input[2].PNG = nil

	job, err := newAssembler(t, PolicySkip).NewJob(input, 4, 4, nil)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	data, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.Dropped() != 1 {
		t.Fatalf("expected 1 dropped frame, got %d", job.Dropped())
	}
	decoded, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	total := 0
	for _, d := range decoded.Delay {
		total += d
	}
	if len(decoded.Image) != 3 || total != 40 {
		t.Fatalf("expected 3 frames totalling 40cs, got %d frames %dcs", len(decoded.Image), total)
	}
	if decoded.Delay[1] != 20 {
		t.Fatalf("expected frame before the gap to absorb its delay, got %v", decoded.Delay)
	}
}

func TestFramesArePaddedToTarget(t *testing.T) {
	input := solidFrames(t, 1, 3, 3)
	data, err := newAssembler(t, PolicyAbort).Assemble(context.Background(), input, 5, 4, nil)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	decoded, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	if decoded.Config.Width != 5 || decoded.Config.Height != 4 {
		t.Fatalf("unexpected logical screen %dx%d", decoded.Config.Width, decoded.Config.Height)
	}
	r, g, b, _ := decoded.Image[0].At(4, 3).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Fatalf("expected black padding, got %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestQuantizeLimitsPalette(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8((x + y) * 2), A: 255})
		}
	}
	q := Quantize(img, 16)
	if len(q.Palette) < 2 || len(q.Palette) > 16 {
		t.Fatalf("expected between 2 and 16 palette entries, got %d", len(q.Palette))
	}
	for _, idx := range q.Indexed.Pix {
		if int(idx) >= len(q.Palette) {
			t.Fatalf("pixel index %d outside palette of %d", idx, len(q.Palette))
		}
	}
	if q.Indexed.Bounds() != img.Bounds() {
		t.Fatalf("indexed bounds %v != %v", q.Indexed.Bounds(), img.Bounds())
	}

	solid := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for p := 0; p < len(solid.Pix); p += 4 {
		copy(solid.Pix[p:], []uint8{10, 20, 30, 255})
	}
	q = Quantize(solid, 256)
	if len(q.Palette) != 1 || q.Palette[0] != (color.RGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Fatalf("expected exact single colour palette, got %v", q.Palette)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(" SKIP "); err != nil || p != PolicySkip {
		t.Fatalf("unexpected parse result %q %v", p, err)
	}
	if p, _ := ParsePolicy(""); p != PolicyAbort {
		t.Fatalf("expected abort default, got %q", p)
	}
	if _, err := ParsePolicy("retry"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestNewAssemblerMaxColors(t *testing.T) {
	a, err := NewAssembler(Options{})
	if err != nil {
		t.Fatalf("zero max colors should select the default: %v", err)
	}
	if a.maxColors != MaxPaletteSize {
		t.Fatalf("expected default %d colours, got %d", MaxPaletteSize, a.maxColors)
	}
	_, err = NewAssembler(Options{MaxColors: MaxPaletteSize + 1})
	if err == nil || !strings.Contains(err.Error(), "between 0 and 256") {
		t.Fatalf("expected range error mentioning 0, got %v", err)
	}
}
