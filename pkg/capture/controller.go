// Package capture orchestrates a recording session over a live surface: a
// streaming video encoder and a slower frame sampler run side by side, and
// the buffered results are exported on demand as single artifacts.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/offlinefirst/fractalcap/pkg/animation"
	"github.com/offlinefirst/fractalcap/pkg/frames"
	"github.com/offlinefirst/fractalcap/pkg/metrics"
	"github.com/offlinefirst/fractalcap/pkg/schedule"
	"github.com/offlinefirst/fractalcap/pkg/sink"
	"github.com/offlinefirst/fractalcap/pkg/snapshot"
	"github.com/offlinefirst/fractalcap/pkg/surface"
	"github.com/offlinefirst/fractalcap/pkg/video"
)

// DefaultTickInterval is the cadence of elapsed-time notifications.
const DefaultTickInterval = time.Second

// Options configure the controller.
type Options struct {
	FrameRate      int
	Codecs         []string
	Factories      []video.Factory
	SampleInterval time.Duration
	TickInterval   time.Duration
	SampleTicks    schedule.TickSource
	ElapsedTicks   schedule.TickSource
	Clock          func() time.Time
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	// Saver receives finished artifacts. When nil, artifacts are only
	// returned to the caller.
	Saver     sink.Saver
	Exporter  *snapshot.Exporter
	Assembler *animation.Assembler
	// OnTick receives the formatted elapsed time once per tick while
	// recording. It runs on the ticker goroutine.
	OnTick      func(elapsed string)
	DefaultBase string
	// CaptureLog, when set, receives one line per lifecycle event.
	CaptureLog io.Writer
}

// Export bundles a finished job with its artifact.
type Export struct {
	Job      Job
	Artifact sink.Artifact
	Path     string
}

// Result is delivered by asynchronous exports.
type Result struct {
	Export Export
	Err    error
}

// Controller owns one capture session and at most one running export job.
type Controller struct {
	adapter        *video.Adapter
	sampleInterval time.Duration
	tickInterval   time.Duration
	sampleTicks    schedule.TickSource
	elapsedTicks   schedule.TickSource
	clock          func() time.Time
	logger         *slog.Logger
	metrics        *metrics.Metrics
	saver          sink.Saver
	exporter       *snapshot.Exporter
	assembler      *animation.Assembler
	onTick         func(string)
	base           string

	logMu      sync.Mutex
	captureLog io.Writer

	// mu serialises lifecycle transitions and guards the running components.
	mu      sync.Mutex
	sampler *frames.Sampler
	ticker  *schedule.Handle
	watch   chan struct{}

	// sessMu guards session data; timer and encoder callbacks take only this.
	sessMu  sync.Mutex
	session *Session

	jobMu     sync.Mutex
	job       *Job
	gifJob    *animation.Job
	capturing bool
}

// NewController validates options and returns an idle controller.
func NewController(opts Options) (*Controller, error) {
	if opts.SampleInterval < 0 || opts.TickInterval < 0 {
		return nil, errors.New("intervals must not be negative")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sampleInterval := opts.SampleInterval
	if sampleInterval == 0 {
		sampleInterval = frames.DefaultInterval
	}
	tickInterval := opts.TickInterval
	if tickInterval == 0 {
		tickInterval = DefaultTickInterval
	}
	factories := opts.Factories
	if len(factories) == 0 {
		factories = []video.Factory{video.MJPEGFactory{Logger: logger}}
	}

	adapter, err := video.NewAdapter(video.Options{
		Codecs:    opts.Codecs,
		FrameRate: opts.FrameRate,
		Factories: factories,
		Clock:     clock,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise video adapter: %w", err)
	}

	base := sink.Base(opts.DefaultBase, sink.DefaultBase)
	exporter := opts.Exporter
	if exporter == nil {
		exporter, err = snapshot.NewExporter(snapshot.Options{DefaultBase: base, Clock: clock, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("initialise snapshot exporter: %w", err)
		}
	}
	assembler := opts.Assembler
	if assembler == nil {
		assembler, err = animation.NewAssembler(animation.Options{Delay: sampleInterval, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("initialise animation assembler: %w", err)
		}
	}

	return &Controller{
		adapter:        adapter,
		sampleInterval: sampleInterval,
		tickInterval:   tickInterval,
		sampleTicks:    opts.SampleTicks,
		elapsedTicks:   opts.ElapsedTicks,
		clock:          clock,
		logger:         logger,
		metrics:        opts.Metrics,
		saver:          opts.Saver,
		exporter:       exporter,
		assembler:      assembler,
		onTick:         opts.OnTick,
		base:           base,
		captureLog:     opts.CaptureLog,
	}, nil
}

// Start begins a new recording session over src. The encoder is negotiated
// first; when it cannot start, no session is created and no timer runs.
// Cancelling ctx stops the session.
func (c *Controller) Start(ctx context.Context, src surface.Surface) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Recording() {
		return ErrAlreadyRecording
	}
	if src == nil {
		return ErrNoSurface
	}
	bounds := src.Bounds()
	if bounds.Empty() {
		return fmt.Errorf("%w: surface has no area", ErrNoSurface)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Status:    StatusRecording,
		StartedAt: c.clock(),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}

	codec, err := c.adapter.Start(src, func(chunk video.Chunk) { c.appendChunk(sess, chunk) })
	if err != nil {
		c.writeLog("video", "start failed: %v", err)
		return fmt.Errorf("start encoder: %w", err)
	}

	sampler, err := frames.NewSampler(frames.Options{
		Surface:  src,
		Interval: c.sampleInterval,
		Clock:    c.clock,
		Ticks:    c.sampleTicks,
		Logger:   c.logger,
		Emit:     func(f frames.RasterFrame) { c.appendFrame(sess, f) },
	})
	if err == nil {
		err = sampler.Start()
	}
	if err != nil {
		_ = c.adapter.Finalize()
		return fmt.Errorf("start frame sampler: %w", err)
	}

	c.sessMu.Lock()
	sess.Codec = codec
	c.session = sess
	c.sessMu.Unlock()

	ticker, err := schedule.Every(c.tickInterval, c.elapsedTicks, func(time.Time) {
		if c.onTick != nil {
			c.onTick(c.ElapsedString())
		}
	})
	if err != nil {
		sampler.Stop()
		_ = c.adapter.Finalize()
		c.sessMu.Lock()
		c.session = nil
		c.sessMu.Unlock()
		return fmt.Errorf("start elapsed ticker: %w", err)
	}

	c.sampler = sampler
	c.ticker = ticker
	c.watch = make(chan struct{})
	if ctx.Done() != nil {
		go c.stopOnDone(ctx, sess, c.watch)
	}

	c.metrics.SessionStarted()
	c.writeLog("session", "started id=%s codec=%s size=%dx%d", sess.ID, codec, sess.Width, sess.Height)
	c.logger.Info("capture session started", "session_id", sess.ID, "codec", codec, "width", sess.Width, "height", sess.Height)
	return nil
}

// stopOnDone stops sess when ctx ends. A later session is never touched.
func (c *Controller) stopOnDone(ctx context.Context, sess *Session, watch chan struct{}) {
	select {
	case <-ctx.Done():
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.watch != watch {
			return
		}
		c.logger.Info("capture context done; stopping session", "session_id", sess.ID, "reason", ctx.Err())
		if err := c.stopLocked(sess); err != nil {
			c.logger.Warn("stop after context cancellation failed", "error", err)
		}
	case <-watch:
	}
}

func (c *Controller) appendChunk(sess *Session, chunk video.Chunk) {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	if sess.Status != StatusRecording {
		return
	}
	sess.Chunks = append(sess.Chunks, chunk)
	c.metrics.AddChunk(len(chunk.Data))
}

func (c *Controller) appendFrame(sess *Session, frame frames.RasterFrame) {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	if sess.Status != StatusRecording {
		return
	}
	sess.Frames = append(sess.Frames, frame)
	c.metrics.IncFrames()
}

// Stop ends the recording session. It is a no-op when not recording. The
// sampler and ticker are cancelled before Stop returns and the encoder is
// finalized, so every chunk is part of the session.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked(nil)
}

// stopLocked stops the current session, or only target when it is non-nil.
// The caller holds c.mu.
func (c *Controller) stopLocked(target *Session) error {
	c.sessMu.Lock()
	sess := c.session
	recording := sess != nil && sess.Status == StatusRecording
	c.sessMu.Unlock()
	if !recording || (target != nil && sess != target) {
		return nil
	}

	stoppedAt := c.clock()
	close(c.watch)
	c.sampler.Stop()
	c.ticker.Cancel()
	finalizeErr := c.adapter.Finalize()
	c.sampler, c.ticker, c.watch = nil, nil, nil

	c.sessMu.Lock()
	sess.Status = StatusStopped
	sess.StoppedAt = stoppedAt
	sess.ExportReady = true
	chunks, framesCount := len(sess.Chunks), len(sess.Frames)
	c.sessMu.Unlock()

	c.metrics.SessionStopped()
	c.writeLog("session", "stopped id=%s chunks=%d frames=%d", sess.ID, chunks, framesCount)
	c.logger.Info("capture session stopped", "session_id", sess.ID, "chunks", chunks, "frames", framesCount, "elapsed", FormatElapsed(stoppedAt.Sub(sess.StartedAt)))
	if finalizeErr != nil {
		return fmt.Errorf("finalize encoder: %w", finalizeErr)
	}
	return nil
}

// Recording reports whether a session is recording.
func (c *Controller) Recording() bool {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	return c.session != nil && c.session.Status == StatusRecording
}

// Counts reports how many frames and chunks the current session holds
// without copying them.
func (c *Controller) Counts() (frameCount, chunkCount int) {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	if c.session == nil {
		return 0, 0
	}
	return len(c.session.Frames), len(c.session.Chunks)
}

// Session returns a copy of the current session. The zero-value session has
// StatusIdle.
func (c *Controller) Session() Session {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	if c.session == nil {
		return Session{Status: StatusIdle}
	}
	return c.session.clone()
}

// Elapsed is live while recording and frozen at the stop instant afterwards.
func (c *Controller) Elapsed() time.Duration {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	switch {
	case c.session == nil:
		return 0
	case c.session.Status == StatusRecording:
		return c.clock().Sub(c.session.StartedAt)
	default:
		return c.session.StoppedAt.Sub(c.session.StartedAt)
	}
}

// ElapsedString renders Elapsed as m:ss.
func (c *Controller) ElapsedString() string {
	return FormatElapsed(c.Elapsed())
}

// Capturing reports whether a still export is running.
func (c *Controller) Capturing() bool {
	c.jobMu.Lock()
	defer c.jobMu.Unlock()
	return c.capturing
}

// Job returns the running or most recently finished export job.
func (c *Controller) Job() (Job, bool) {
	c.jobMu.Lock()
	defer c.jobMu.Unlock()
	if c.job == nil {
		return Job{}, false
	}
	return *c.job, true
}

func (c *Controller) beginJob(kind JobKind) (*Job, error) {
	c.jobMu.Lock()
	defer c.jobMu.Unlock()
	if c.job != nil && c.job.Status == JobRunning {
		c.metrics.ExportFinished(string(kind), metrics.OutcomeRejected)
		return nil, ErrExportInProgress
	}
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    JobRunning,
		StartedAt: c.clock(),
	}
	c.job = job
	c.capturing = kind == JobStill || kind == JobAnnotatedStill
	return job, nil
}

func (c *Controller) setProgress(job *Job, percent int) {
	c.jobMu.Lock()
	job.Progress = percent
	c.jobMu.Unlock()
	c.metrics.SetGIFProgress(percent)
}

func (c *Controller) finishJob(job *Job, err error) Job {
	c.jobMu.Lock()
	job.FinishedAt = c.clock()
	job.Err = err
	outcome := metrics.OutcomeSucceeded
	if err != nil {
		job.Status = JobFailed
		outcome = metrics.OutcomeFailed
	} else {
		job.Status = JobSucceeded
		job.Progress = 100
	}
	c.capturing = false
	out := *job
	c.jobMu.Unlock()

	c.metrics.ExportFinished(string(job.Kind), outcome)
	if err != nil {
		c.writeLog("export", "%s failed id=%s: %v", job.Kind, job.ID, err)
		c.logger.Warn("export failed", "job_id", job.ID, "kind", job.Kind, "error", err)
	} else {
		c.writeLog("export", "%s succeeded id=%s", job.Kind, job.ID)
		c.logger.Info("export finished", "job_id", job.ID, "kind", job.Kind, "duration", out.FinishedAt.Sub(out.StartedAt))
	}
	return out
}

func (c *Controller) deliver(job *Job, art sink.Artifact) (Export, error) {
	path := ""
	if c.saver != nil {
		var err error
		path, err = c.saver.Save(art)
		if err != nil {
			err = fmt.Errorf("save %s: %w", art.Filename, err)
			return Export{Job: c.finishJob(job, err)}, err
		}
	}
	return Export{Job: c.finishJob(job, nil), Artifact: art, Path: path}, nil
}

// ExportVideo concatenates the session's chunks into one video artifact and
// releases them.
func (c *Controller) ExportVideo() (Export, error) {
	c.sessMu.Lock()
	sess := c.session
	switch {
	case sess == nil:
		c.sessMu.Unlock()
		return Export{}, ErrNothingToExport
	case sess.Status == StatusRecording:
		c.sessMu.Unlock()
		return Export{}, ErrStillRecording
	case len(sess.Chunks) == 0:
		c.sessMu.Unlock()
		return Export{}, ErrNothingToExport
	}
	chunks := append([]video.Chunk(nil), sess.Chunks...)
	codec := sess.Codec
	c.sessMu.Unlock()

	job, err := c.beginJob(JobVideo)
	if err != nil {
		return Export{}, err
	}

	var buf bytes.Buffer
	for _, chunk := range chunks {
		buf.Write(chunk.Data)
	}
	art := sink.Artifact{
		Data:     buf.Bytes(),
		MIMEType: codec,
		Filename: sink.Filename(c.base, c.clock(), sink.Extension(codec)),
	}
	out, err := c.deliver(job, art)
	if err != nil {
		return out, err
	}

	c.sessMu.Lock()
	if c.session == sess {
		sess.Chunks = nil
		sess.ExportReady = false
	}
	c.sessMu.Unlock()
	return out, nil
}

// ExportGIF assembles the session's frames into an animated GIF, blocking
// until the job completes, fails or is cancelled.
func (c *Controller) ExportGIF(ctx context.Context, onProgress func(int)) (Export, error) {
	run, err := c.prepareGIF(onProgress)
	if err != nil {
		return Export{}, err
	}
	return run(ctx)
}

// ExportGIFAsync validates and registers the job synchronously, then runs
// the assembly on its own goroutine. The channel receives exactly one result.
func (c *Controller) ExportGIFAsync(ctx context.Context, onProgress func(int)) (<-chan Result, error) {
	run, err := c.prepareGIF(onProgress)
	if err != nil {
		return nil, err
	}
	out := make(chan Result, 1)
	go func() {
		exp, err := run(ctx)
		out <- Result{Export: exp, Err: err}
	}()
	return out, nil
}

func (c *Controller) prepareGIF(onProgress func(int)) (func(context.Context) (Export, error), error) {
	c.sessMu.Lock()
	sess := c.session
	switch {
	case sess != nil && sess.Status == StatusRecording:
		c.sessMu.Unlock()
		return nil, ErrStillRecording
	case sess == nil || len(sess.Frames) == 0:
		c.sessMu.Unlock()
		return nil, animation.ErrNoFrames
	}
	buffered := append([]frames.RasterFrame(nil), sess.Frames...)
	width, height := sess.Width, sess.Height
	c.sessMu.Unlock()

	job, err := c.beginJob(JobAnimatedImage)
	if err != nil {
		return nil, err
	}
	gifJob, err := c.assembler.NewJob(buffered, width, height, func(p int) {
		c.setProgress(job, p)
		if onProgress != nil {
			onProgress(p)
		}
	})
	if err != nil {
		c.finishJob(job, err)
		return nil, err
	}
	c.jobMu.Lock()
	c.gifJob = gifJob
	c.jobMu.Unlock()

	return func(ctx context.Context) (Export, error) {
		data, err := gifJob.Run(ctx)

		c.jobMu.Lock()
		c.gifJob = nil
		c.jobMu.Unlock()

		if err != nil {
			return Export{Job: c.finishJob(job, err)}, err
		}
		art := sink.Artifact{
			Data:     data,
			MIMEType: "image/gif",
			Filename: sink.Filename(c.base, c.clock(), "gif"),
		}
		out, err := c.deliver(job, art)
		if err != nil {
			return out, err
		}
		c.sessMu.Lock()
		if c.session == sess {
			sess.Frames = nil
			sess.ExportReady = false
		}
		c.sessMu.Unlock()
		return out, nil
	}, nil
}

// CancelExport cancels a running animated export. It reports whether a job
// was cancelled.
func (c *Controller) CancelExport() bool {
	c.jobMu.Lock()
	defer c.jobMu.Unlock()
	if c.gifJob == nil {
		return false
	}
	c.gifJob.Cancel()
	return true
}

// Snapshot exports a single still image of src named after the default base.
func (c *Controller) Snapshot(src surface.Surface, format string) (Export, error) {
	return c.SnapshotLabeled(src, format, "")
}

// SnapshotLabeled exports a still whose filename is derived from label, the
// name of the location being viewed. An empty label selects the default base.
func (c *Controller) SnapshotLabeled(src surface.Surface, format, label string) (Export, error) {
	if src == nil {
		return Export{}, ErrNoSurface
	}
	job, err := c.beginJob(JobStill)
	if err != nil {
		return Export{}, err
	}
	art, err := c.exporter.CaptureLabeled(src, format, label)
	if err != nil {
		return Export{Job: c.finishJob(job, err)}, err
	}
	return c.deliver(job, art)
}

// SnapshotWithOverlay exports an annotated still of src at width × height.
func (c *Controller) SnapshotWithOverlay(src surface.Surface, width, height int, meta snapshot.Metadata) (Export, error) {
	if src == nil {
		return Export{}, ErrNoSurface
	}
	job, err := c.beginJob(JobAnnotatedStill)
	if err != nil {
		return Export{}, err
	}
	art, err := c.exporter.CaptureWithOverlay(src, width, height, meta)
	if err != nil {
		return Export{Job: c.finishJob(job, err)}, err
	}
	return c.deliver(job, art)
}

// CopyToClipboard places a PNG still of src on the clipboard. Failure never
// affects the recording session.
func (c *Controller) CopyToClipboard(ctx context.Context, src surface.Surface) (Job, error) {
	if src == nil {
		return Job{}, ErrNoSurface
	}
	job, err := c.beginJob(JobStill)
	if err != nil {
		return Job{}, err
	}
	err = c.exporter.CopyToClipboard(ctx, src)
	return c.finishJob(job, err), err
}

// Close cancels a running animated export and stops any recording.
func (c *Controller) Close() error {
	if c.CancelExport() {
		c.logger.Info("animated export cancelled on close")
	}
	return c.Stop()
}

func (c *Controller) writeLog(subsystem, message string, args ...any) {
	if c.captureLog == nil {
		return
	}
	formatted := message
	if len(args) > 0 {
		formatted = fmt.Sprintf(message, args...)
	}
	line := fmt.Sprintf("[%s] subsystem=%s %s\n", c.clock().UTC().Format(time.RFC3339), subsystem, formatted)
	c.logMu.Lock()
	_, _ = io.WriteString(c.captureLog, line)
	c.logMu.Unlock()
}
