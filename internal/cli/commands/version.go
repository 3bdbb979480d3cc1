package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/lusque/internal/artifact"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display lusque version and build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "lusque v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Bootstrap for the embedded %s compiler (%s/%s)\n", artifact.LibraryName(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
