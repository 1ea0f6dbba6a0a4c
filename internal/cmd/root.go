package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/fractalcap/internal/buildinfo"
	"github.com/offlinefirst/fractalcap/pkg/config"
	"github.com/offlinefirst/fractalcap/pkg/logging"
)

// AppContext exposes lazily initialised configuration and logging facilities.
type AppContext struct {
	Config config.Config
	Logger *slog.Logger
}

// RootCommand owns the cobra tree and the shared application context.
type RootCommand struct {
	cmd        *cobra.Command
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	appCtx     *AppContext
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand constructs the CLI with its subcommands and global flags.
func NewRootCommand() *RootCommand {
	rc := &RootCommand{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	root := &cobra.Command{
		Use:   "fractalcap",
		Short: "Record, snapshot and export a live fractal surface",
		Long: `fractalcap renders an auto-zooming Mandelbrot surface and captures it:
a streaming video encoder and a frame sampler run side by side while
recording, and the buffered session is exported as a video file or an
animated GIF. Single stills, optionally annotated, can be taken at any time.`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rc.configPath, "config", "", "Path to config file (default: ./config.yaml if present)")
	root.PersistentFlags().StringVar(&rc.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&rc.logFormat, "log-format", "", "Override log output format (json, console)")

	root.AddCommand(
		newRecordCommand(rc),
		newSnapshotCommand(rc),
		newThemesCommand(rc),
		newDoctorCommand(rc),
		newVersionCommand(rc),
	)
	rc.cmd = root
	return rc
}

// SetIO redirects the command streams, mainly for tests.
func (rc *RootCommand) SetIO(stdin io.Reader, stdout, stderr io.Writer) {
	rc.stdin = stdin
	rc.stdout = stdout
	rc.stderr = stderr
}

// Execute evaluates the supplied arguments and dispatches to a subcommand.
func (rc *RootCommand) Execute(args []string) error {
	rc.cmd.SetArgs(args)
	rc.cmd.SetIn(rc.stdin)
	rc.cmd.SetOut(rc.stdout)
	rc.cmd.SetErr(rc.stderr)
	if err := rc.cmd.Execute(); err != nil {
		fmt.Fprintf(rc.stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func (rc *RootCommand) ensureAppContext() (*AppContext, error) {
	if rc.appCtx != nil {
		return rc.appCtx, nil
	}

	cfg, err := config.Load(rc.configPath)
	if err != nil {
		return nil, err
	}

	if rc.logLevel != "" {
		lvl, err := config.NormalizeLogLevel(rc.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Level = lvl
	}
	if rc.logFormat != "" {
		format, err := config.NormalizeFormat(rc.logFormat)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Format = format
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: rc.stderr,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("configuration loaded", "source", cfg.Source, "export_dir", cfg.Paths.ExportDir)

	rc.appCtx = &AppContext{Config: cfg, Logger: logger}
	return rc.appCtx, nil
}

func versionString() string {
	v := buildinfo.Version()
	if rev := buildinfo.Revision(); rev != "" {
		v += "+" + rev
	}
	return fmt.Sprintf("%s (%s/%s)", v, runtimeVersion(), runtimeGOOS())
}

// runtimeVersion is extracted for testability.
var runtimeVersion = func() string { return runtime.Version() }

// runtimeGOOS is extracted for testability.
var runtimeGOOS = func() string { return runtime.GOOS }
