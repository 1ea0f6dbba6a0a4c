// Package frames samples the live surface into PNG-encoded raster frames on a
// fixed cadence that is independent from the render rate.
package frames

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/offlinefirst/fractalcap/pkg/schedule"
	"github.com/offlinefirst/fractalcap/pkg/surface"
)

// DefaultInterval is the sampling cadence used when none is configured.
const DefaultInterval = 100 * time.Millisecond

// Options configure the frame sampler.
type Options struct {
	Surface  surface.Surface
	Interval time.Duration
	Clock    func() time.Time
	Ticks    schedule.TickSource
	Logger   *slog.Logger
	// Emit receives each captured frame in sequence order. It runs on the
	// sampling goroutine.
	Emit func(RasterFrame)
}

// Sampler periodically snapshots a surface.
type Sampler struct {
	surface  surface.Surface
	interval time.Duration
	clock    func() time.Time
	ticks    schedule.TickSource
	logger   *slog.Logger
	emit     func(RasterFrame)

	mu     sync.Mutex
	handle *schedule.Handle
	next   int
	failed int
}

// NewSampler validates options and returns a stopped sampler.
func NewSampler(opts Options) (*Sampler, error) {
	if opts.Surface == nil {
		return nil, errors.New("surface must be provided")
	}
	if opts.Emit == nil {
		return nil, errors.New("emit callback must be provided")
	}
	if opts.Interval < 0 {
		return nil, errors.New("interval must not be negative")
	}
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sampler{
		surface:  opts.Surface,
		interval: interval,
		clock:    clock,
		ticks:    opts.Ticks,
		logger:   logger,
		emit:     opts.Emit,
	}, nil
}

// Interval reports the sampling cadence.
func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// Start begins sampling. Sequence numbering restarts at zero.
func (s *Sampler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return errors.New("sampler already running")
	}
	s.next = 0
	s.failed = 0
	handle, err := schedule.Every(s.interval, s.ticks, s.sample)
	if err != nil {
		return fmt.Errorf("start sampler: %w", err)
	}
	s.handle = handle
	return nil
}

// Stop cancels the timer and returns once the sampling goroutine has exited.
// No frame is emitted after Stop returns.
func (s *Sampler) Stop() {
	s.mu.Lock()
	handle := s.handle
	s.handle = nil
	s.mu.Unlock()
	handle.Cancel()
}

// Captured reports how many frames were emitted since the last Start.
func (s *Sampler) Captured() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Failed reports how many ticks were skipped because the surface had nothing
// to offer.
func (s *Sampler) Failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func (s *Sampler) sample(time.Time) {
	img, err := s.surface.Snapshot()
	if err != nil {
		s.skip("snapshot surface", err)
		return
	}

	s.mu.Lock()
	seq := s.next
	s.mu.Unlock()

	frame, err := EncodePNG(seq, s.clock(), img)
	if err != nil {
		s.skip("encode frame", err)
		return
	}

	s.mu.Lock()
	s.next++
	s.mu.Unlock()
	s.emit(frame)
}

func (s *Sampler) skip(stage string, err error) {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
	s.logger.Warn("frame sample skipped", "stage", stage, "error", err)
}
