package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/fractalcap/pkg/surface"
)

func newThemesCommand(rc *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List colour themes and zoom locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printCatalogue(rc.stdout)
		},
	}
}

func printCatalogue(stdout io.Writer) error {
	fmt.Fprintln(stdout, "Themes:")
	for _, th := range surface.Themes() {
		fmt.Fprintf(stdout, "  %-12s %s\n", th.Code, th.Name)
	}
	fmt.Fprintln(stdout, "Locations:")
	fmt.Fprintf(stdout, "  %-24s x=%.6f y=%.6f (default)\n", surface.DefaultLocation.Name, surface.DefaultLocation.X, surface.DefaultLocation.Y)
	for _, loc := range surface.Locations {
		if _, err := fmt.Fprintf(stdout, "  %-24s x=%.6f y=%.6f\n", loc.Name, loc.X, loc.Y); err != nil {
			return err
		}
	}
	return nil
}
