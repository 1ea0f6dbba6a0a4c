package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/offlinefirst/fractalcap/internal/buildinfo"
	"github.com/offlinefirst/fractalcap/internal/tui"
	"github.com/offlinefirst/fractalcap/pkg/animation"
	"github.com/offlinefirst/fractalcap/pkg/capture"
	"github.com/offlinefirst/fractalcap/pkg/config"
	"github.com/offlinefirst/fractalcap/pkg/logging"
	"github.com/offlinefirst/fractalcap/pkg/metrics"
	"github.com/offlinefirst/fractalcap/pkg/runmanifest"
	"github.com/offlinefirst/fractalcap/pkg/sink"
	"github.com/offlinefirst/fractalcap/pkg/snapshot"
	"github.com/offlinefirst/fractalcap/pkg/surface"
	"github.com/offlinefirst/fractalcap/pkg/video"
)

type recordOptions struct {
	duration time.Duration
	gif      bool
	video    bool
	tui      bool
	planOnly bool
}

func newRecordCommand(rc *RootCommand) *cobra.Command {
	opts := recordOptions{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the fractal surface and export the session",
		Long: `Record starts a capture session over the fractal surface. The session ends
after --duration, on SIGINT/SIGTERM, or when q is pressed in the --tui view.
The buffered session is then exported as video and/or animated GIF into a
run directory under paths.export_dir together with manifest.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rc.ensureAppContext()
			if err != nil {
				return err
			}
			return runRecord(cmd.Context(), opts, app, rc.stdin, rc.stdout)
		},
	}
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Stop recording after this long (0 records until interrupted)")
	cmd.Flags().BoolVar(&opts.gif, "gif", true, "Export the sampled frames as an animated GIF")
	cmd.Flags().BoolVar(&opts.video, "video", true, "Export the encoded stream as a video file")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "Show a live status view; press q to stop recording")
	cmd.Flags().BoolVar(&opts.planOnly, "plan-only", false, "Print the resolved configuration without recording")
	return cmd
}

var (
	timeNow          = time.Now
	hostname         = os.Hostname
	lookupEnv        = os.LookupEnv
	manifestSave     = runmanifest.Save
	encoderFactories = defaultEncoderFactories
	notifyContext    = func(ctx context.Context) (context.Context, context.CancelFunc) {
		return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	}
)

func defaultEncoderFactories(cfg config.Config, logger *slog.Logger) []video.Factory {
	return []video.Factory{
		&video.FFmpegFactory{
			Binary: cfg.Capture.FFmpegBinary,
			Lookup: lookupEnv,
			Logger: logging.Component(logger, "ffmpeg"),
		},
		video.MJPEGFactory{Logger: logging.Component(logger, "mjpeg")},
	}
}

func newFractal(cfg config.Config, logger *slog.Logger) (*surface.Fractal, error) {
	return surface.NewFractal(surface.FractalOptions{
		Width:         cfg.Surface.Width,
		Height:        cfg.Surface.Height,
		Theme:         cfg.Surface.Theme,
		Location:      cfg.Surface.Location,
		ZoomFactor:    cfg.Surface.ZoomFactor,
		MaxIterations: cfg.Surface.MaxIterations,
		Logger:        logging.Component(logger, "surface"),
	})
}

func runRecord(parent context.Context, opts recordOptions, app *AppContext, stdin io.Reader, stdout io.Writer) error {
	if app == nil {
		return fmt.Errorf("application context unavailable")
	}
	if parent == nil {
		parent = context.Background()
	}
	cfg := app.Config
	logger := app.Logger
	logger.Info("record command invoked", "plan_only", opts.planOnly, "duration", opts.duration, "gif", opts.gif, "video", opts.video, "export_dir", cfg.Paths.ExportDir)

	if opts.planOnly {
		printRecordPlan(app, opts, stdout)
		return nil
	}

	if err := os.MkdirAll(cfg.Paths.ExportDir, 0o755); err != nil {
		return fmt.Errorf("ensure export directory: %w", err)
	}
	runID, err := runmanifest.ResolveRunID(cfg.Paths.ExportDir, timeNow())
	if err != nil {
		return fmt.Errorf("resolve run id: %w", err)
	}
	layout := runmanifest.BuildLayout(cfg.Paths.ExportDir, runID)
	if err := runmanifest.EnsureFilesystem(layout); err != nil {
		return fmt.Errorf("prepare run filesystem: %w", err)
	}
	captureLog, err := os.OpenFile(layout.CaptureLogPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open capture log: %w", err)
	}
	defer captureLog.Close()

	host, err := hostname()
	if err != nil {
		host = "unknown"
	}
	manifest := runmanifest.New(runmanifest.Options{
		RunID:      runID,
		CreatedAt:  timeNow(),
		Hostname:   host,
		AppVersion: buildinfo.Version(),
		Config:     cfg,
		Layout:     layout,
	})
	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	fractal, err := newFractal(cfg, logger)
	if err != nil {
		return err
	}
	if err := fractal.Start(); err != nil {
		return err
	}
	defer fractal.Stop()

	downloader, err := sink.NewDownloader(layout.Root, logging.Component(logger, "sink"))
	if err != nil {
		return err
	}
	policy, err := animation.ParsePolicy(cfg.GIF.DecodeFailurePolicy)
	if err != nil {
		return err
	}
	assembler, err := animation.NewAssembler(animation.Options{
		Delay:     cfg.Capture.SampleInterval(),
		MaxColors: cfg.GIF.MaxColors,
		Policy:    policy,
		Logger:    logging.Component(logger, "animation"),
	})
	if err != nil {
		return err
	}
	exporter, err := snapshot.NewExporter(snapshot.Options{
		Format:      cfg.Snapshot.Format,
		JPEGQuality: cfg.Snapshot.JPEGQuality,
		DefaultBase: cfg.Snapshot.DefaultBase,
		Logger:      logging.Component(logger, "snapshot"),
	})
	if err != nil {
		return err
	}
	reg := metrics.New()

	sigCtx, stopSignals := notifyContext(parent)
	defer stopSignals()
	recCtx, stopRecording := context.WithCancel(sigCtx)
	defer stopRecording()
	if opts.duration > 0 {
		var cancelTimeout context.CancelFunc
		recCtx, cancelTimeout = context.WithTimeout(recCtx, opts.duration)
		defer cancelTimeout()
	}

	var (
		ui     *tea.Program
		uiDone chan error
	)
	send := func(tea.Msg) {}
	if opts.tui {
		ui = tui.NewProgram(tui.New(tui.Options{Title: "fractalcap " + runID, OnStop: stopRecording}), stdin, stdout)
		uiDone = make(chan error, 1)
		go func() {
			_, err := ui.Run()
			uiDone <- err
		}()
		send = ui.Send
	}

	var controller *capture.Controller
	controller, err = capture.NewController(capture.Options{
		FrameRate:      cfg.Capture.FrameRate,
		Codecs:         cfg.Capture.Codecs,
		Factories:      encoderFactories(cfg, logger),
		SampleInterval: cfg.Capture.SampleInterval(),
		TickInterval:   cfg.Capture.ElapsedTick(),
		Logger:         logging.Component(logger, "capture"),
		Metrics:        reg,
		Saver:          downloader,
		Exporter:       exporter,
		Assembler:      assembler,
		DefaultBase:    cfg.Snapshot.DefaultBase,
		CaptureLog:     captureLog,
		OnTick: func(elapsed string) {
			frameCount, chunkCount := controller.Counts()
			send(tui.ElapsedMsg{Elapsed: elapsed})
			send(tui.CountersMsg{Frames: frameCount, Chunks: chunkCount})
			if ui == nil {
				logger.Debug("recording", "elapsed", elapsed, "frames", frameCount, "chunks", chunkCount)
			}
		},
	})
	if err != nil {
		return finishUI(ui, uiDone, err)
	}

	if err := controller.Start(recCtx, fractal); err != nil {
		manifest.Finish(runmanifest.StateFailed, err.Error(), "encoder", timeNow())
		_ = manifestSave(manifest, layout.ManifestPath)
		return finishUI(ui, uiDone, fmt.Errorf("start recording: %w", err))
	}
	manifest.Status.State = runmanifest.StateRecording
	manifest.Status.Summary = "recording with " + controller.Session().Codec
	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		_ = controller.Close()
		return finishUI(ui, uiDone, fmt.Errorf("update manifest status: %w", err))
	}
	if ui == nil {
		fmt.Fprintf(stdout, "Recording %s (%s); press Ctrl+C to stop\n", runID, controller.Session().Codec)
	}

	<-recCtx.Done()
	termination := "interrupted"
	switch {
	case errors.Is(recCtx.Err(), context.DeadlineExceeded):
		termination = "duration"
	case sigCtx.Err() == nil:
		termination = "user"
	}
	stopErr := controller.Stop()
	if stopErr != nil {
		logger.Warn("encoder finalize reported an error", "error", stopErr)
	}
	// Recording is over; a further interrupt aborts the exports instead.
	stopSignals()
	exportCtx, stopExportSignals := notifyContext(parent)
	defer stopExportSignals()

	sess := controller.Session()
	manifest.RecordSession(sess)
	send(tui.CountersMsg{Frames: len(sess.Frames), Chunks: len(sess.Chunks)})

	var exportErrs []error
	if opts.video {
		send(tui.PhaseMsg{Phase: "exporting video"})
		exp, err := controller.ExportVideo()
		if err != nil {
			exportErrs = append(exportErrs, fmt.Errorf("video export: %w", err))
		} else {
			manifest.AddExport(exp)
			send(tui.ArtifactMsg{Path: exp.Path})
		}
	}
	if opts.gif {
		send(tui.PhaseMsg{Phase: "exporting gif"})
		exp, err := controller.ExportGIF(exportCtx, func(p int) {
			send(tui.ProgressMsg{Percent: p})
		})
		if err != nil {
			exportErrs = append(exportErrs, fmt.Errorf("gif export: %w", err))
		} else {
			manifest.AddExport(exp)
			send(tui.ArtifactMsg{Path: exp.Path})
		}
	}
	exportErr := errors.Join(exportErrs...)

	if path := cfg.Metrics.Textfile; path != "" {
		if err := reg.WriteTextfile(path); err != nil {
			logger.Warn("write metrics textfile failed", "path", path, "error", err)
		}
	}

	state, summary := runmanifest.StateCompleted, fmt.Sprintf("recording finished (%s)", termination)
	if exportErr != nil {
		state, summary = runmanifest.StateFailed, exportErr.Error()
	}
	manifest.Finish(state, summary, termination, timeNow())
	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		return finishUI(ui, uiDone, fmt.Errorf("finalise manifest: %w", err))
	}

	if err := finishUI(ui, uiDone, exportErr); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Run directory: %s\n", layout.Root)
	fmt.Fprintf(stdout, "Manifest: %s\n", layout.ManifestPath)
	fmt.Fprintf(stdout, "Capture log: %s\n", layout.CaptureLogPath)
	fmt.Fprintf(stdout, "Session: %s codec=%s elapsed=%s frames=%d chunks=%d (termination: %s)\n",
		sess.ID, sess.Codec, capture.FormatElapsed(sess.StoppedAt.Sub(sess.StartedAt)), len(sess.Frames), len(sess.Chunks), termination)
	for _, art := range manifest.Artifacts {
		fmt.Fprintf(stdout, "  %s: %s (%d bytes)\n", art.Kind, art.Filename, art.Bytes)
	}
	return nil
}

// finishUI tells the status view the run is over and waits for it to exit.
func finishUI(ui *tea.Program, done <-chan error, err error) error {
	if ui == nil {
		return err
	}
	ui.Send(tui.DoneMsg{Err: err})
	if uiErr := <-done; uiErr != nil && err == nil {
		return fmt.Errorf("status view: %w", uiErr)
	}
	return err
}

func printRecordPlan(app *AppContext, opts recordOptions, stdout io.Writer) {
	cfg := app.Config
	env := video.DetectEnvironment(cfg.Capture.Codecs, encoderFactories(cfg, app.Logger))
	duration := "until interrupted"
	if opts.duration > 0 {
		duration = opts.duration.String()
	}
	fmt.Fprintf(stdout, "Resolved configuration (source: %s)\n", cfg.Source)
	fmt.Fprintf(stdout, "  export_dir: %s\n", cfg.Paths.ExportDir)
	fmt.Fprintf(stdout, "  duration: %s\n", duration)
	fmt.Fprintf(stdout, "  capture.frame_rate: %d\n", cfg.Capture.FrameRate)
	fmt.Fprintf(stdout, "  capture.codecs: %v\n", cfg.Capture.Codecs)
	fmt.Fprintf(stdout, "  capture.selected: %s (backend %s)\n", planValue(env.Selected), planValue(env.Backend))
	fmt.Fprintf(stdout, "  capture.sample_interval: %s\n", cfg.Capture.SampleInterval())
	fmt.Fprintf(stdout, "  gif.enabled: %t (max_colors=%d, decode_failure_policy=%s)\n", opts.gif, cfg.GIF.MaxColors, cfg.GIF.DecodeFailurePolicy)
	fmt.Fprintf(stdout, "  video.enabled: %t\n", opts.video)
	fmt.Fprintf(stdout, "  surface: %dx%d theme=%s location=%s\n", cfg.Surface.Width, cfg.Surface.Height, cfg.Surface.Theme, planValue(cfg.Surface.Location))
	fmt.Fprintf(stdout, "  logging.level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(stdout, "  logging.format: %s\n", cfg.Logging.Format)
}

func planValue(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
