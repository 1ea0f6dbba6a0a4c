package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/fractalcap/pkg/capability"
	"github.com/offlinefirst/fractalcap/pkg/sink"
	"github.com/offlinefirst/fractalcap/pkg/video"
)

// clipboardProbe is extracted for testability.
var clipboardProbe = func() capability.ProbeResult {
	return sink.NewSystemClipboard(lookupEnv).Probe()
}

func newDoctorCommand(rc *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report encoder and clipboard availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rc.ensureAppContext()
			if err != nil {
				return err
			}
			return runDoctor(app, rc.stdout)
		},
	}
}

func runDoctor(app *AppContext, stdout io.Writer) error {
	if app == nil {
		return fmt.Errorf("application context unavailable")
	}
	cfg := app.Config
	env := video.DetectEnvironment(cfg.Capture.Codecs, encoderFactories(cfg, app.Logger))

	fmt.Fprintf(stdout, "Configuration: %s\n", cfg.Source)
	fmt.Fprintln(stdout, "Video encoders:")
	for _, backend := range env.Backends {
		state := "unavailable"
		if backend.Available {
			state = "available"
		}
		fmt.Fprintf(stdout, "  - %s: %s", backend.Name, state)
		if len(backend.Codecs) > 0 {
			fmt.Fprintf(stdout, " [%s]", strings.Join(backend.Codecs, ", "))
		}
		if backend.Message != "" {
			fmt.Fprintf(stdout, " (%s)", backend.Message)
		}
		fmt.Fprintln(stdout)
		if backend.Guidance != "" && !backend.Available {
			fmt.Fprintf(stdout, "      %s\n", backend.Guidance)
		}
	}
	if env.Selected != "" {
		fmt.Fprintf(stdout, "Selected codec: %s via %s\n", env.Selected, env.Backend)
	} else {
		fmt.Fprintln(stdout, "Selected codec: none (recording will fail)")
	}

	clip := clipboardProbe()
	fmt.Fprintf(stdout, "Clipboard: %s", clip.StatusString())
	if clip.Message != "" {
		fmt.Fprintf(stdout, " (%s)", clip.Message)
	}
	fmt.Fprintln(stdout)
	if clip.Guidance != "" && !clip.Usable() {
		fmt.Fprintf(stdout, "  %s\n", clip.Guidance)
	}
	return nil
}
