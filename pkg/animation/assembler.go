// Package animation assembles buffered raster frames into a palette-quantized
// animated GIF. Assembly runs as an explicit step machine so callers can
// observe progress and cancel between frames.
package animation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/offlinefirst/fractalcap/pkg/frames"
)

// Policy decides what happens when a buffered frame cannot be decoded.
type Policy string

const (
	// PolicyAbort fails the whole job on the first undecodable frame.
	PolicyAbort Policy = "abort"
	// PolicySkip drops the frame and stretches the previous frame's delay.
	PolicySkip Policy = "skip"
)

// ParsePolicy normalises a policy name. Empty selects PolicyAbort.
func ParsePolicy(value string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(PolicyAbort):
		return PolicyAbort, nil
	case string(PolicySkip):
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unknown decode failure policy %q", value)
	}
}

// Options configure the assembler.
type Options struct {
	// Delay is the display time of each frame; it should match the sampling
	// interval. Zero selects 100ms.
	Delay     time.Duration
	MaxColors int
	Policy    Policy
	Logger    *slog.Logger
}

// Assembler creates GIF assembly jobs.
type Assembler struct {
	delay     int
	maxColors int
	policy    Policy
	logger    *slog.Logger
}

// NewAssembler validates options.
func NewAssembler(opts Options) (*Assembler, error) {
	if opts.Delay < 0 {
		return nil, errors.New("delay must not be negative")
	}
	if opts.MaxColors < 0 || opts.MaxColors > MaxPaletteSize {
		return nil, fmt.Errorf("max colors must be between 0 and %d (0 selects %d)", MaxPaletteSize, MaxPaletteSize)
	}
	delay := opts.Delay
	if delay == 0 {
		delay = 100 * time.Millisecond
	}
	centis := int(delay / (10 * time.Millisecond))
	if centis < 1 {
		centis = 1
	}
	maxColors := opts.MaxColors
	if maxColors == 0 {
		maxColors = MaxPaletteSize
	}
	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Assembler{delay: centis, maxColors: maxColors, policy: policy, logger: logger}, nil
}

// Assemble runs a job to completion, yielding between frames.
func (a *Assembler) Assemble(ctx context.Context, input []frames.RasterFrame, width, height int, onProgress func(int)) ([]byte, error) {
	job, err := a.NewJob(input, width, height, onProgress)
	if err != nil {
		return nil, err
	}
	return job.Run(ctx)
}

// NewJob prepares a job over a copy of input sorted by sequence.
func (a *Assembler) NewJob(input []frames.RasterFrame, width, height int, onProgress func(int)) (*Job, error) {
	if len(input) == 0 {
		return nil, ErrNoFrames
	}
	if width <= 0 || height <= 0 {
		return nil, errors.New("animation dimensions must be positive")
	}
	ordered := append([]frames.RasterFrame(nil), input...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })
	return &Job{
		asm:        a,
		frames:     ordered,
		width:      width,
		height:     height,
		onProgress: onProgress,
		anim:       &gif.GIF{LoopCount: 0, Config: image.Config{Width: width, Height: height}},
	}, nil
}

// Job is one in-flight assembly. Step and Run must be called from a single
// goroutine; Cancel and Progress are safe from any goroutine.
type Job struct {
	asm        *Assembler
	frames     []frames.RasterFrame
	width      int
	height     int
	onProgress func(int)

	next         int
	anim         *gif.GIF
	pendingDelay int
	dropped      int
	scratch      *image.RGBA

	cancelled atomic.Bool
	mu        sync.Mutex
	progress  int
	finished  bool
	result    []byte
	err       error
}

// Cancel requests cancellation; it is observed at the next frame boundary.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
}

// Progress reports the last published percentage.
func (j *Job) Progress() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Dropped reports how many frames the skip policy discarded.
func (j *Job) Dropped() int {
	return j.dropped
}

// Run steps the job until it finishes, yielding the processor between steps.
func (j *Job) Run(ctx context.Context) ([]byte, error) {
	for {
		done, err := j.Step(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			return j.result, nil
		}
		runtime.Gosched()
	}
}

// Step processes one frame, or serialises the animation once every frame has
// been processed. It reports whether the job has finished.
func (j *Job) Step(ctx context.Context) (bool, error) {
	if j.finished {
		return true, j.err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if j.cancelled.Load() {
		return j.fail(ErrCancelled)
	}
	if err := ctx.Err(); err != nil {
		return j.fail(fmt.Errorf("%w: %v", ErrCancelled, err))
	}

	if j.next >= len(j.frames) {
		return j.complete()
	}

	frame := j.frames[j.next]
	j.next++
	if err := j.appendFrame(frame); err != nil {
		if j.asm.policy != PolicySkip {
			return j.fail(err)
		}
		j.dropped++
		j.asm.logger.Warn("animation frame dropped", "sequence", frame.Sequence, "error", err)
		if n := len(j.anim.Delay); n > 0 {
			j.anim.Delay[n-1] += j.asm.delay
		} else {
			j.pendingDelay += j.asm.delay
		}
	}
	j.publish(j.next * 100 / len(j.frames))
	return false, nil
}

func (j *Job) appendFrame(frame frames.RasterFrame) error {
	src, err := frame.Decode()
	if err != nil {
		return &FrameError{Sequence: frame.Sequence, Err: err}
	}
	if j.scratch == nil {
		j.scratch = image.NewRGBA(image.Rect(0, 0, j.width, j.height))
	}
	draw.Draw(j.scratch, j.scratch.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(j.scratch, j.scratch.Bounds(), src, src.Bounds().Min, draw.Src)

	q := Quantize(j.scratch, j.asm.maxColors)
	j.anim.Image = append(j.anim.Image, q.Indexed)
	j.anim.Delay = append(j.anim.Delay, j.asm.delay+j.pendingDelay)
	j.anim.Disposal = append(j.anim.Disposal, gif.DisposalNone)
	j.pendingDelay = 0
	return nil
}

func (j *Job) complete() (bool, error) {
	if len(j.anim.Image) == 0 {
		return j.fail(fmt.Errorf("%w: all %d frames were dropped", ErrNoFrames, len(j.frames)))
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, j.anim); err != nil {
		return j.fail(fmt.Errorf("encode gif: %w", err))
	}
	j.mu.Lock()
	j.finished = true
	j.result = buf.Bytes()
	j.mu.Unlock()
	j.anim = nil
	j.scratch = nil
	j.asm.logger.Info("animation assembled", "frames", len(j.frames)-j.dropped, "dropped", j.dropped, "bytes", len(j.result))
	return true, nil
}

func (j *Job) fail(err error) (bool, error) {
	j.mu.Lock()
	j.finished = true
	j.err = err
	j.result = nil
	j.mu.Unlock()
	j.anim = nil
	j.scratch = nil
	return true, err
}

func (j *Job) publish(percent int) {
	j.mu.Lock()
	if percent < j.progress {
		percent = j.progress
	}
	j.progress = percent
	j.mu.Unlock()
	if j.onProgress != nil {
		j.onProgress(percent)
	}
}
