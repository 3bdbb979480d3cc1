package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/lusque/internal/bootstrap"
	"github.com/leapstack-labs/lusque/internal/cli/config"
)

// NewInvokeCommand creates the hidden command an isolated run executes in
// its child process. It reads the source from stdin, loads the library at
// the given path, calls compile once and writes the raw bytes to stdout.
func NewInvokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:    bootstrap.InvokeCommand + " <library>",
		Short:  "Run one native compile call (internal)",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := config.GetLogger(cmd.Context())
			return bootstrap.Serve(cmd.InOrStdin(), cmd.OutOrStdout(), args[0], nativeLoader(), logger)
		},
	}
}
