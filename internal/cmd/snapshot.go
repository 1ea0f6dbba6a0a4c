package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/fractalcap/pkg/capture"
	"github.com/offlinefirst/fractalcap/pkg/logging"
	"github.com/offlinefirst/fractalcap/pkg/metrics"
	"github.com/offlinefirst/fractalcap/pkg/sink"
	"github.com/offlinefirst/fractalcap/pkg/snapshot"
)

type snapshotOptions struct {
	format    string
	info      bool
	clipboard bool
	frames    int
}

// clipboardFactory builds the clipboard used by --clipboard.
var clipboardFactory = func() sink.Clipboard {
	return sink.NewSystemClipboard(lookupEnv)
}

func newSnapshotCommand(rc *RootCommand) *cobra.Command {
	opts := snapshotOptions{}
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render the fractal surface and save a still image",
		Long: `Snapshot renders the fractal surface and writes one still into
paths.export_dir. --info adds the location/scale/theme panel and always
produces PNG; --clipboard copies a PNG to the system clipboard instead of
writing a file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rc.ensureAppContext()
			if err != nil {
				return err
			}
			return runSnapshot(cmd.Context(), opts, app, rc.stdout)
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", "", "Image format: png, jpeg, gif, bmp, tiff (default: snapshot.format)")
	cmd.Flags().BoolVar(&opts.info, "info", false, "Annotate the still with the current view information")
	cmd.Flags().BoolVar(&opts.clipboard, "clipboard", false, "Copy the still to the clipboard instead of saving it")
	cmd.Flags().IntVar(&opts.frames, "frames", 1, "Number of zoom steps to render before capturing")
	return cmd
}

func runSnapshot(ctx context.Context, opts snapshotOptions, app *AppContext, stdout io.Writer) error {
	if app == nil {
		return fmt.Errorf("application context unavailable")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.info && opts.clipboard {
		return errors.New("--info and --clipboard cannot be combined")
	}
	if opts.frames < 1 {
		return errors.New("--frames must be at least 1")
	}
	cfg := app.Config
	logger := app.Logger

	fractal, err := newFractal(cfg, logger)
	if err != nil {
		return err
	}
	for i := 0; i < opts.frames; i++ {
		fractal.Render()
	}

	var clip sink.Clipboard
	if opts.clipboard {
		clip = clipboardFactory()
	}
	exporter, err := snapshot.NewExporter(snapshot.Options{
		Format:      cfg.Snapshot.Format,
		JPEGQuality: cfg.Snapshot.JPEGQuality,
		DefaultBase: cfg.Snapshot.DefaultBase,
		Clipboard:   clip,
		Clock:       timeNow,
		Logger:      logging.Component(logger, "snapshot"),
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Paths.ExportDir, 0o755); err != nil {
		return fmt.Errorf("ensure export directory: %w", err)
	}
	downloader, err := sink.NewDownloader(cfg.Paths.ExportDir, logging.Component(logger, "sink"))
	if err != nil {
		return err
	}
	reg := metrics.New()
	controller, err := capture.NewController(capture.Options{
		Clock:       timeNow,
		Logger:      logging.Component(logger, "capture"),
		Metrics:     reg,
		Saver:       downloader,
		Exporter:    exporter,
		DefaultBase: cfg.Snapshot.DefaultBase,
	})
	if err != nil {
		return err
	}
	defer controller.Close()
	defer func() {
		if path := cfg.Metrics.Textfile; path != "" {
			if err := reg.WriteTextfile(path); err != nil {
				logger.Warn("write metrics textfile failed", "path", path, "error", err)
			}
		}
	}()

	if opts.clipboard {
		copyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, err := controller.CopyToClipboard(copyCtx, fractal); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		fmt.Fprintln(stdout, "Copied still to clipboard")
		return nil
	}

	var exp capture.Export
	if opts.info {
		view := fractal.View()
		bounds := fractal.Bounds()
		exp, err = controller.SnapshotWithOverlay(fractal, bounds.Dx(), bounds.Dy(), snapshot.Metadata{
			Location: view.Location,
			X:        view.XMin,
			Y:        view.YMin,
			Scale:    view.Scale,
			Theme:    view.Theme,
			Date:     timeNow(),
		})
	} else {
		exp, err = controller.SnapshotLabeled(fractal, opts.format, cfg.Surface.Location)
	}
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	fmt.Fprintf(stdout, "Saved %s (%s, %d bytes)\n", exp.Path, exp.Artifact.MIMEType, len(exp.Artifact.Data))
	return nil
}
